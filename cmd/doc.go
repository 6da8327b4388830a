// Package cmd implements the whoop-mcp command line interface.
package cmd
