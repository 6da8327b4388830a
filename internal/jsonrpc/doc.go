// Package jsonrpc implements the legacy line-oriented JSON-RPC 2.0
// front-end over TCP. Each accepted connection is served by its own
// goroutine; requests are newline-delimited JSON objects and every
// request gets exactly one response line. The built-in methods are
// initialize, echo, and shutdown; additional methods (the MCP tools) are
// registered by the caller.
package jsonrpc
