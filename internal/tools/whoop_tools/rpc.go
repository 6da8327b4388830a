package whoop_tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fitstack/whoop-mcp/internal/instrumentation"
	"github.com/fitstack/whoop-mcp/internal/jsonrpc"
	"github.com/fitstack/whoop-mcp/internal/server"
	"github.com/fitstack/whoop-mcp/internal/tools/common"
)

type toolHandler func(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error)

// rpcHandlers maps tool names to their handlers for the TCP transport.
func rpcHandlers() map[string]toolHandler {
	return map[string]toolHandler{
		"whoop_get_latest_cycle":       handleGetLatestCycle,
		"whoop_get_cycles":             handleGetCycles,
		"whoop_get_cycle_by_id":        handleGetCycleByID,
		"whoop_get_average_strain":     handleGetAverageStrain,
		"whoop_get_recoveries":         handleGetRecoveries,
		"whoop_get_latest_recovery":    handleGetLatestRecovery,
		"whoop_get_recovery_for_cycle": handleGetRecoveryForCycle,
		"whoop_get_sleeps":             handleGetSleeps,
		"whoop_get_sleep_by_id":        handleGetSleepByID,
		"whoop_get_workouts":           handleGetWorkouts,
		"whoop_get_workout_by_id":      handleGetWorkoutByID,
		"whoop_get_body_measurements":  handleGetBodyMeasurements,
		"whoop_get_profile":            handleGetProfile,
		"whoop_check_auth_status":      handleCheckAuthStatus,
	}
}

// RegisterRPCMethods exposes every WHOOP tool as a JSON-RPC method on
// the TCP transport. Parameters are the tool arguments as a JSON
// object; tool failures surface as internal errors carrying the tool's
// error text.
func RegisterRPCMethods(rpc *jsonrpc.Server, sc *server.ServerContext, metrics *instrumentation.Metrics) {
	for name, handler := range rpcHandlers() {
		rpc.Register(name, rpcMethod(name, handler, sc, metrics))
	}
}

func rpcMethod(name string, handler toolHandler, sc *server.ServerContext, metrics *instrumentation.Metrics) jsonrpc.HandlerFunc {
	instrumented := common.InstrumentedToolHandler(name, metrics, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handler(ctx, request, sc)
	})

	return func(ctx context.Context, params json.RawMessage) (any, error) {
		args := map[string]interface{}{}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &args); err != nil {
				return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "params must be a JSON object")
			}
		}

		result, err := instrumented(ctx, mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name:      name,
				Arguments: args,
			},
		})
		if err != nil {
			return nil, err
		}

		text := resultPayload(result)
		if result.IsError {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, text)
		}
		return json.RawMessage(text), nil
	}
}

func resultPayload(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return "{}"
	}
	if text, ok := result.Content[0].(mcp.TextContent); ok {
		return text.Text
	}
	return "{}"
}
