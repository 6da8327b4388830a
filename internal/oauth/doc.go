// Package oauth implements the OAuth 2.1 authorization server that fronts
// the MCP server.
//
// The server proxies authorization to WHOOP: MCP clients register via
// Dynamic Client Registration (RFC 7591), are redirected to WHOOP for
// consent, and receive locally minted access and refresh tokens that map
// to the upstream WHOOP token. Bearer middleware validates the local
// tokens on every MCP request. All state survives restarts through a
// file-backed store.
package oauth
