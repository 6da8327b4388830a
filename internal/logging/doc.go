// Package logging provides structured logging helpers built on log/slog.
//
// It defines common attribute keys and constructors so that log output
// stays consistent across transports, tool handlers, and the OAuth layer,
// and it offers sanitization helpers (SanitizeToken, HashSubject) so that
// tokens and user identifiers never appear in logs in the clear.
package logging
