package oauth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/fitstack/whoop-mcp/internal/whoop"
)

// Handler implements the OAuth 2.1 endpoints for the MCP server. It acts
// as an authorization server that proxies consent to WHOOP and as the
// resource server validating the tokens it issued.
type Handler struct {
	config         *Config
	store          *Store
	rateLimiter    *RateLimiter
	upstreamConfig *oauth2.Config
	httpClient     *http.Client
	logger         *slog.Logger

	mu           sync.Mutex
	clientsPerIP map[string]int
}

// NewHandler creates an OAuth handler.
func NewHandler(config *Config) (*Handler, error) {
	if config.Resource == "" {
		return nil, fmt.Errorf("resource is required")
	}
	if config.StorePath == "" {
		return nil, fmt.Errorf("store path is required")
	}

	parsedURL, err := url.Parse(config.Resource)
	if err != nil {
		return nil, fmt.Errorf("invalid resource URL: %w", err)
	}

	// HTTP is only permitted for local development.
	if parsedURL.Scheme != "https" && !isLoopback(parsedURL.Hostname()) {
		return nil, fmt.Errorf("resource must use HTTPS in production (got %s://)", parsedURL.Scheme)
	}

	if len(config.SupportedScopes) == 0 {
		config.SupportedScopes = strings.Split(whoop.Scopes, " ")
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	if config.Security.MaxClientsPerIP == 0 {
		config.Security.MaxClientsPerIP = DefaultMaxClientsPerIP
	}
	if config.Security.AccessTokenTTL == 0 {
		config.Security.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.Security.RefreshTokenTTL == 0 {
		config.Security.RefreshTokenTTL = DefaultRefreshTokenTTL
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if config.Security.AllowInsecureAuthWithoutState {
		logger.Warn("state parameter is optional, CSRF protection weakened")
	}

	var rateLimiter *RateLimiter
	if config.RateLimit.Rate > 0 {
		rateLimiter = NewRateLimiter(config.RateLimit.Rate, config.RateLimit.Burst, config.RateLimit.TrustProxy, logger)
		logger.Info("ip rate limiting enabled",
			slog.Int("rate", config.RateLimit.Rate),
			slog.Int("burst", config.RateLimit.Burst))
	}

	var upstreamConfig *oauth2.Config
	if config.Upstream.ClientID != "" && config.Upstream.ClientSecret != "" {
		redirectURL := config.Upstream.RedirectURL
		if redirectURL == "" {
			redirectURL = config.Resource + "/oauth/callback"
		}
		authURL := config.Upstream.AuthURL
		if authURL == "" {
			authURL = whoop.AuthURL
		}
		tokenURL := config.Upstream.TokenURL
		if tokenURL == "" {
			tokenURL = whoop.TokenURL
		}

		upstreamConfig = &oauth2.Config{
			ClientID:     config.Upstream.ClientID,
			ClientSecret: config.Upstream.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
			Scopes:      config.SupportedScopes,
			RedirectURL: redirectURL,
		}
		logger.Info("oauth proxy mode enabled", slog.String("redirect_url", redirectURL))
	} else {
		logger.Warn("oauth proxy disabled: WHOOP credentials not provided")
	}

	store, err := NewStore(config.StorePath, config.CleanupInterval, logger)
	if err != nil {
		return nil, fmt.Errorf("creating oauth store: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Handler{
		config:         config,
		store:          store,
		rateLimiter:    rateLimiter,
		upstreamConfig: upstreamConfig,
		httpClient:     httpClient,
		logger:         logger,
		clientsPerIP:   make(map[string]int),
	}, nil
}

// Store returns the underlying store.
func (h *Handler) Store() *Store {
	return h.store
}

// Config returns the handler configuration.
func (h *Handler) Config() *Config {
	return h.config
}

// Close releases background resources.
func (h *Handler) Close() {
	h.store.Close()
}

// ServeAuthorizationServerMetadata serves RFC 8414 discovery metadata.
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := AuthorizationServerMetadata{
		Issuer:                            h.config.Resource,
		AuthorizationEndpoint:             h.config.Resource + "/oauth/authorize",
		TokenEndpoint:                     h.config.Resource + "/oauth/token",
		RegistrationEndpoint:              h.config.Resource + "/oauth/register",
		RevocationEndpoint:                h.config.Resource + "/oauth/revoke",
		ScopesSupported:                   h.config.SupportedScopes,
		ResponseTypesSupported:            DefaultResponseTypes,
		GrantTypesSupported:               DefaultGrantTypes,
		TokenEndpointAuthMethodsSupported: SupportedTokenAuthMethods,
		CodeChallengeMethodsSupported:     SupportedCodeChallengeMethods,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("failed to encode authorization server metadata", "error", err)
	}
}

// ServeProtectedResourceMetadata serves RFC 9728 discovery metadata. MCP
// clients hit this after a 401 to discover the authorization server.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := ProtectedResourceMetadata{
		Resource:               h.config.Resource,
		AuthorizationServers:   []string{h.config.Resource},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        h.config.SupportedScopes,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("failed to encode protected resource metadata", "error", err)
	}
}

// setSecurityHeaders sets standard security headers on responses.
func (h *Handler) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	w.Header().Set("Referrer-Policy", "no-referrer")

	if parsedURL, err := url.Parse(h.config.Resource); err == nil && parsedURL.Scheme == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

// writeError writes an OAuth error response.
func (h *Handler) writeError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	h.logger.Debug("oauth error", "code", errorCode, "description", description, "status", statusCode)
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// writeOAuthError writes a structured OAuthError.
func (h *Handler) writeOAuthError(w http.ResponseWriter, err *OAuthError) {
	h.writeError(w, err.Code, err.Description, err.Status)
}

// isLoopback reports whether hostname is a loopback address.
func isLoopback(hostname string) bool {
	hostname = strings.Trim(hostname, "[]")
	for _, loopback := range LoopbackAddresses {
		if hostname == loopback {
			return true
		}
	}
	return strings.HasPrefix(hostname, "127.")
}
