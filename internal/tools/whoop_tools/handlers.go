package whoop_tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fitstack/whoop-mcp/internal/oauth"
	"github.com/fitstack/whoop-mcp/internal/server"
	"github.com/fitstack/whoop-mcp/internal/whoop"
)

func handleGetLatestCycle(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	coll, err := client.GetCycles(ctx, whoop.ListParams{Limit: 1})
	if err != nil {
		return errorResult("get latest cycle", err)
	}
	if len(coll.Records) == 0 {
		return mcp.NewToolResultError("No cycle data available"), nil
	}
	return toolResult(coll.Records[0])
}

func handleGetCycles(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	days := daysFromArgs(request.GetArguments())
	coll, err := client.GetCycles(ctx, rangeParams(days))
	if err != nil {
		return errorResult("get cycles", err)
	}
	return toolResult(coll)
}

func handleGetCycleByID(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cycleID, err := cycleIDFromArgs(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cycle, err := client.GetCycleByID(ctx, cycleID)
	if err != nil {
		return errorResult("get cycle", err)
	}
	return toolResult(cycle)
}

// fetchAllCycles follows pagination until the window is exhausted.
func fetchAllCycles(ctx context.Context, client *whoop.Client, days int) ([]whoop.Cycle, error) {
	params := rangeParams(days)
	var cycles []whoop.Cycle
	for {
		coll, err := client.GetCycles(ctx, params)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, coll.Records...)
		if coll.NextToken == nil || *coll.NextToken == "" {
			break
		}
		params.NextToken = *coll.NextToken
	}
	return cycles, nil
}

func handleGetAverageStrain(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	days := daysFromArgs(request.GetArguments())
	cycles, err := fetchAllCycles(ctx, client, days)
	if err != nil {
		return errorResult("get average strain", err)
	}

	// Pending and unscorable cycles carry no strain and are excluded
	// from the mean.
	var sum float64
	var counted int
	for _, c := range cycles {
		if c.Score == nil {
			continue
		}
		sum += c.Score.Strain
		counted++
	}

	if counted == 0 {
		return mcp.NewToolResultError("No scored cycles available for the requested period"), nil
	}

	return toolResult(map[string]any{
		"average_strain": sum / float64(counted),
		"days":           days,
		"cycles_counted": counted,
	})
}

func handleGetRecoveries(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	days := daysFromArgs(request.GetArguments())
	coll, err := client.GetRecoveries(ctx, rangeParams(days))
	if err != nil {
		return errorResult("get recoveries", err)
	}
	return toolResult(coll)
}

func handleGetLatestRecovery(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	coll, err := client.GetRecoveries(ctx, whoop.ListParams{Limit: 1})
	if err != nil {
		return errorResult("get latest recovery", err)
	}
	if len(coll.Records) == 0 {
		return mcp.NewToolResultError("No recovery data available"), nil
	}
	return toolResult(coll.Records[0])
}

func handleGetRecoveryForCycle(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cycleID, err := cycleIDFromArgs(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	recovery, err := client.GetRecoveryForCycle(ctx, cycleID)
	if err != nil {
		return errorResult("get recovery for cycle", err)
	}
	return toolResult(recovery)
}

func handleGetSleeps(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	days := daysFromArgs(request.GetArguments())
	coll, err := client.GetSleeps(ctx, rangeParams(days))
	if err != nil {
		return errorResult("get sleeps", err)
	}
	return toolResult(coll)
}

func handleGetSleepByID(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sleepID, err := stringArg(request.GetArguments(), "sleep_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sleep, err := client.GetSleepByID(ctx, sleepID)
	if err != nil {
		return errorResult("get sleep", err)
	}
	return toolResult(sleep)
}

func handleGetWorkouts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	days := daysFromArgs(request.GetArguments())
	coll, err := client.GetWorkouts(ctx, rangeParams(days))
	if err != nil {
		return errorResult("get workouts", err)
	}
	return toolResult(coll)
}

func handleGetWorkoutByID(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	workoutID, err := stringArg(request.GetArguments(), "workout_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	workout, err := client.GetWorkoutByID(ctx, workoutID)
	if err != nil {
		return errorResult("get workout", err)
	}
	return toolResult(workout)
}

func handleGetBodyMeasurements(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	measurements, err := client.GetBodyMeasurements(ctx)
	if err != nil {
		return errorResult("get body measurements", err)
	}
	return toolResult(measurements)
}

func handleGetProfile(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := getClient(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	profile, err := client.GetProfile(ctx)
	if err != nil {
		return errorResult("get profile", err)
	}
	return toolResult(profile)
}

func handleCheckAuthStatus(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	status := map[string]any{
		"authenticated": false,
		"source":        "none",
	}

	if record, ok := oauth.TokenFromContext(ctx); ok && record.UpstreamAccessToken != "" {
		status["authenticated"] = true
		status["source"] = "oauth"
		status["scope"] = record.Scope
		if record.UpstreamTokenExpiry > 0 {
			status["upstream_expires_at"] = time.Unix(record.UpstreamTokenExpiry, 0).UTC().Format(time.RFC3339)
		}
		return toolResult(status)
	}

	if tm := sc.TokenManager(); tm != nil {
		token, err := tm.Load()
		if err != nil {
			return errorResult("check auth status", err)
		}
		if token != nil {
			status["source"] = "token_file"
			// An expired access token still counts when a refresh
			// token can renew it.
			status["authenticated"] = !token.IsExpired() || token.RefreshToken != ""
			if !token.Expiry.IsZero() {
				status["expires_at"] = token.Expiry.UTC().Format(time.RFC3339)
			}
		}
	}

	return toolResult(status)
}
