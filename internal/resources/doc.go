// Package resources registers MCP resources exposing the authenticated
// user's WHOOP profile and body measurements.
package resources
