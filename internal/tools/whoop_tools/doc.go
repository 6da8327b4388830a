// Package whoop_tools registers the WHOOP data tools with the MCP
// server: cycles, recovery, sleep, workouts, strain aggregation, body
// measurements, profile, and authentication status. Each tool returns
// the upstream JSON augmented with a timestamp field; upstream failures
// come back as tool error results, never protocol faults.
package whoop_tools
