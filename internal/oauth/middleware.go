package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fitstack/whoop-mcp/internal/logging"
)

type contextKey string

const tokenContextKey contextKey = "oauth_access_token"

// RequireToken is middleware that validates the bearer token on MCP
// requests. A missing or invalid token gets a 401 with a WWW-Authenticate
// header pointing at the protected resource metadata so clients can
// discover the authorization server.
func (h *Handler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="%s/.well-known/oauth-protected-resource"`,
				h.config.Resource, h.config.Resource,
			))
			h.writeOAuthError(w, ErrInvalidToken("Missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", error="invalid_token", error_description="Invalid Authorization header format"`,
				h.config.Resource,
			))
			h.writeOAuthError(w, ErrInvalidToken("Invalid Authorization header format"))
			return
		}

		record, err := h.store.GetAccessToken(parts[1])
		if err != nil {
			h.logger.Debug("bearer token rejected",
				logging.Err(err))
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", error="invalid_token", error_description="Token is invalid or expired"`,
				h.config.Resource,
			))
			h.writeOAuthError(w, ErrInvalidToken("Token is invalid or expired. Re-authenticate through your MCP client."))
			return
		}

		ctx := context.WithValue(r.Context(), tokenContextKey, record)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromContext returns the validated access token for the request.
func TokenFromContext(ctx context.Context) (*AccessToken, bool) {
	record, ok := ctx.Value(tokenContextKey).(*AccessToken)
	return record, ok
}

// ContextWithToken stores an access token in the context, mainly for
// tests and non-HTTP transports.
func ContextWithToken(ctx context.Context, token *AccessToken) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// UpstreamTokenSource adapts a request context carrying a validated
// access token into a whoop.TokenSource. When no request token is
// present it falls back to the given source, which may be nil.
type UpstreamTokenSource struct {
	Fallback interface {
		AccessToken(ctx context.Context) (string, error)
	}
}

// AccessToken returns the upstream WHOOP token bound to the request's
// bearer token, or the fallback source's token.
func (s *UpstreamTokenSource) AccessToken(ctx context.Context) (string, error) {
	if record, ok := TokenFromContext(ctx); ok && record.UpstreamAccessToken != "" {
		return record.UpstreamAccessToken, nil
	}
	if s.Fallback != nil {
		return s.Fallback.AccessToken(ctx)
	}
	return "", fmt.Errorf("no upstream token available")
}
