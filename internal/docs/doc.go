// Package docs renders the public HTML documentation page served at the
// root of the HTTP front-end. The page describes the MCP connection URL,
// the OAuth 2.1 flow, and the available tools. It requires no
// authentication.
package docs
