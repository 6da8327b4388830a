// Package server wires the MCP server to its HTTP front-ends: the OAuth
// 2.1 authorization endpoints, the SSE and streamable HTTP MCP transports
// behind bearer middleware, health probes, and a dedicated Prometheus
// metrics listener.
package server
