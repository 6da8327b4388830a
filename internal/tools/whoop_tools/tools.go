package whoop_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fitstack/whoop-mcp/internal/instrumentation"
	"github.com/fitstack/whoop-mcp/internal/server"
	"github.com/fitstack/whoop-mcp/internal/tools/common"
)

// RegisterWhoopTools registers all WHOOP data tools with the MCP server.
// Every handler is wrapped for tracing and metrics; a nil metrics
// recorder disables recording without changing behavior.
func RegisterWhoopTools(s *mcpserver.MCPServer, sc *server.ServerContext, metrics *instrumentation.Metrics) error {
	addTool := func(tool mcp.Tool, handler func(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error)) {
		instrumented := common.InstrumentedToolHandler(tool.Name, metrics, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handler(ctx, request, sc)
		})
		s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return instrumented(ctx, request)
		})
	}

	daysOption := mcp.WithNumber("days",
		mcp.Description("Number of days to look back (1-30, default: 7)"),
	)

	// Cycles and strain
	addTool(mcp.NewTool("whoop_get_latest_cycle",
		mcp.WithDescription("Get the most recent physiological cycle, including day strain and energy expenditure"),
	), handleGetLatestCycle)

	addTool(mcp.NewTool("whoop_get_cycles",
		mcp.WithDescription("Get physiological cycles for a recent period"),
		daysOption,
	), handleGetCycles)

	addTool(mcp.NewTool("whoop_get_cycle_by_id",
		mcp.WithDescription("Get a specific physiological cycle by its ID"),
		mcp.WithNumber("cycle_id",
			mcp.Required(),
			mcp.Description("The WHOOP cycle ID"),
		),
	), handleGetCycleByID)

	addTool(mcp.NewTool("whoop_get_average_strain",
		mcp.WithDescription("Calculate the average day strain over a recent period, excluding unscored cycles"),
		daysOption,
	), handleGetAverageStrain)

	// Recovery
	addTool(mcp.NewTool("whoop_get_recoveries",
		mcp.WithDescription("Get recovery scores for a recent period, including HRV and resting heart rate"),
		daysOption,
	), handleGetRecoveries)

	addTool(mcp.NewTool("whoop_get_latest_recovery",
		mcp.WithDescription("Get the most recent recovery score"),
	), handleGetLatestRecovery)

	addTool(mcp.NewTool("whoop_get_recovery_for_cycle",
		mcp.WithDescription("Get the recovery score associated with a specific cycle"),
		mcp.WithNumber("cycle_id",
			mcp.Required(),
			mcp.Description("The WHOOP cycle ID"),
		),
	), handleGetRecoveryForCycle)

	// Sleep
	addTool(mcp.NewTool("whoop_get_sleeps",
		mcp.WithDescription("Get sleep activities for a recent period, including sleep stages and performance"),
		daysOption,
	), handleGetSleeps)

	addTool(mcp.NewTool("whoop_get_sleep_by_id",
		mcp.WithDescription("Get a specific sleep activity by its ID"),
		mcp.WithString("sleep_id",
			mcp.Required(),
			mcp.Description("The WHOOP sleep activity ID (UUID)"),
		),
	), handleGetSleepByID)

	// Workouts
	addTool(mcp.NewTool("whoop_get_workouts",
		mcp.WithDescription("Get workout activities for a recent period, including strain and heart rate zones"),
		daysOption,
	), handleGetWorkouts)

	addTool(mcp.NewTool("whoop_get_workout_by_id",
		mcp.WithDescription("Get a specific workout activity by its ID"),
		mcp.WithString("workout_id",
			mcp.Required(),
			mcp.Description("The WHOOP workout activity ID (UUID)"),
		),
	), handleGetWorkoutByID)

	// Profile and account
	addTool(mcp.NewTool("whoop_get_body_measurements",
		mcp.WithDescription("Get body measurements: height, weight, and max heart rate"),
	), handleGetBodyMeasurements)

	addTool(mcp.NewTool("whoop_get_profile",
		mcp.WithDescription("Get the authenticated user's basic profile"),
	), handleGetProfile)

	addTool(mcp.NewTool("whoop_check_auth_status",
		mcp.WithDescription("Check whether WHOOP authentication is configured and valid"),
	), handleCheckAuthStatus)

	return nil
}
