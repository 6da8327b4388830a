package whoop_tools

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fitstack/whoop-mcp/internal/server"
	"github.com/fitstack/whoop-mcp/internal/whoop"
)

const (
	// defaultDays is the fetch window when a tool omits the days argument.
	defaultDays = 7

	// maxDays bounds the fetch window.
	maxDays = 30
)

// getClient returns the shared WHOOP client or an actionable error
// message for the tool result.
func getClient(sc *server.ServerContext) (*whoop.Client, error) {
	client := sc.WhoopClient()
	if client == nil {
		return nil, fmt.Errorf("WHOOP client is not configured. Run 'whoop-mcp auth' to authenticate, or connect through the OAuth flow")
	}
	return client, nil
}

// daysFromArgs extracts the days argument, clamped to [1, maxDays].
func daysFromArgs(args map[string]any) int {
	days := defaultDays
	if v, ok := args["days"].(float64); ok && v > 0 {
		days = int(v)
	}
	if days < 1 {
		days = 1
	}
	if days > maxDays {
		days = maxDays
	}
	return days
}

// rangeParams builds list parameters covering the last n days.
func rangeParams(days int) whoop.ListParams {
	now := time.Now().UTC()
	return whoop.ListParams{
		Start: now.AddDate(0, 0, -days).Format(time.RFC3339),
		End:   now.Format(time.RFC3339),
		Limit: whoop.MaxLimit,
	}
}

// toolResult marshals the payload and augments it with a timestamp
// field before wrapping it in a text result.
func toolResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}

	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	envelope["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	out, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// errorResult formats an upstream failure as a tool error result.
func errorResult(action string, err error) (*mcp.CallToolResult, error) {
	if whoop.IsUnauthorized(err) {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: WHOOP authentication expired, re-authenticate and try again", action)), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", action, err)), nil
}

// cycleIDFromArgs extracts a positive cycle_id argument.
func cycleIDFromArgs(args map[string]any) (int64, error) {
	v, ok := args["cycle_id"].(float64)
	if !ok || v <= 0 {
		return 0, fmt.Errorf("cycle_id is required and must be a positive number")
	}
	return int64(v), nil
}

// stringArg extracts a required non-empty string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}
