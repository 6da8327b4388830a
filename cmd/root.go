package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the whoop-mcp application
var rootCmd = &cobra.Command{
	Use:   "whoop-mcp",
	Short: "MCP server for WHOOP fitness data",
	Long: `whoop-mcp exposes WHOOP fitness data (cycles, recovery, sleep, workouts,
body measurements) to AI assistants through the Model Context Protocol.

It can run as:
  - An MCP server over stdio (default, for local assistants)
  - An OAuth 2.1 protected HTTP server (SSE or streamable HTTP transport)
  - A line-oriented TCP JSON-RPC server`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "whoop-mcp version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
