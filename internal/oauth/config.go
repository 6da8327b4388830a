package oauth

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds the OAuth handler configuration.
type Config struct {
	// Resource is the externally reachable base URL of this server. It
	// is used as the issuer for discovery metadata and for building
	// endpoint URLs.
	Resource string

	// SupportedScopes are the WHOOP scopes this server proxies.
	SupportedScopes []string

	// Upstream holds WHOOP OAuth credentials.
	Upstream UpstreamConfig

	// StorePath is the file the persistent store writes to.
	StorePath string

	// RateLimit configures per-IP rate limiting (0 rate disables it).
	RateLimit RateLimitConfig

	// Security holds security settings.
	Security SecurityConfig

	// CleanupInterval is how often expired state is pruned.
	CleanupInterval time.Duration

	// Logger for structured logging.
	Logger *slog.Logger

	// HTTPClient is used for upstream token exchanges.
	HTTPClient *http.Client
}

// UpstreamConfig holds the WHOOP OAuth application credentials.
type UpstreamConfig struct {
	// ClientID is the WHOOP application client ID.
	ClientID string

	// ClientSecret is the WHOOP application client secret.
	ClientSecret string

	// RedirectURL is where WHOOP redirects after consent.
	// Default: {Resource}/oauth/callback
	RedirectURL string

	// AuthURL and TokenURL override the WHOOP endpoints, mainly for
	// tests.
	AuthURL  string
	TokenURL string
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP (0 = no limit).
	Rate int

	// Burst is the maximum burst per IP. Defaults to 2x Rate.
	Burst int

	// TrustProxy honors X-Forwarded-For and X-Real-IP. Only enable
	// behind a trusted proxy.
	TrustProxy bool
}

// SecurityConfig holds security settings. The zero value is the secure
// configuration.
type SecurityConfig struct {
	// AllowInsecureAuthWithoutState permits authorization requests
	// without a state parameter, weakening CSRF protection.
	AllowInsecureAuthWithoutState bool

	// MaxClientsPerIP caps registered clients per IP. 0 uses the
	// default.
	MaxClientsPerIP int

	// AccessTokenTTL and RefreshTokenTTL override the default token
	// lifetimes.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}
