package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fitstack/whoop-mcp/internal/server"
)

// RegisterUserResources registers resources describing the currently
// authenticated WHOOP user.
func RegisterUserResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	profileResource := mcp.NewResource(
		"whoop://profile",
		"WHOOP User Profile",
		mcp.WithResourceDescription("Basic profile of the currently authenticated WHOOP user"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleUserProfile(ctx, request, sc)
	})

	bodyResource := mcp.NewResource(
		"whoop://body",
		"WHOOP Body Measurements",
		mcp.WithResourceDescription("Height, weight, and max heart rate of the currently authenticated WHOOP user"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(bodyResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleBodyMeasurements(ctx, request, sc)
	})

	return nil
}

func handleUserProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	client := sc.WhoopClient()
	if client == nil {
		return nil, fmt.Errorf("WHOOP client is not configured")
	}

	profile, err := client.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func handleBodyMeasurements(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	client := sc.WhoopClient()
	if client == nil {
		return nil, fmt.Errorf("WHOOP client is not configured")
	}

	measurement, err := client.GetBodyMeasurements(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching body measurements: %w", err)
	}

	data, err := json.MarshalIndent(measurement, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding body measurements: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
