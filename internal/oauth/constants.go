package oauth

import "time"

// Token and code lifetimes.
const (
	// DefaultAuthorizationCodeTTL is how long authorization codes are valid.
	DefaultAuthorizationCodeTTL = 10 * time.Minute

	// DefaultAccessTokenTTL is the lifetime of locally issued access tokens.
	DefaultAccessTokenTTL = 1 * time.Hour

	// DefaultRefreshTokenTTL is the lifetime of locally issued refresh tokens.
	DefaultRefreshTokenTTL = 24 * time.Hour

	// DefaultCleanupInterval is how often expired state is pruned.
	DefaultCleanupInterval = 1 * time.Minute
)

// Token generation lengths, in random bytes before base64url encoding.
const (
	ClientIDLength     = 16
	ClientSecretLength = 32
	AccessTokenLength  = 32
	RefreshTokenLength = 32
	AuthCodeLength     = 32
	StateTokenLength   = 24
)

// PKCE code verifier bounds per RFC 7636.
const (
	MinCodeVerifierLength = 43
	MaxCodeVerifierLength = 128
)

// Client registration defaults.
const (
	DefaultMaxClientsPerIP         = 10
	DefaultTokenEndpointAuthMethod = "client_secret_basic"
)

var (
	// DefaultGrantTypes are the grant types supported by default.
	DefaultGrantTypes = []string{"authorization_code", "refresh_token"}

	// DefaultResponseTypes are the response types supported by default.
	DefaultResponseTypes = []string{"code"}

	// SupportedCodeChallengeMethods limits PKCE to S256. The plain method
	// is forbidden by OAuth 2.1.
	SupportedCodeChallengeMethods = []string{"S256"}

	// SupportedTokenAuthMethods are the token endpoint auth methods.
	SupportedTokenAuthMethods = []string{"client_secret_basic", "client_secret_post", "none"}

	// DangerousSchemes are redirect URI schemes that are never allowed.
	DangerousSchemes = []string{"javascript", "data", "file", "vbscript", "about"}

	// LoopbackAddresses are hostnames treated as local development hosts.
	LoopbackAddresses = []string{"localhost", "127.0.0.1", "::1", "[::1]"}
)
