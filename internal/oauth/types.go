package oauth

// RegisteredClient is a dynamically registered OAuth client. The client
// secret is stored only as a bcrypt hash.
type RegisteredClient struct {
	ClientID                string   `json:"client_id"`
	ClientSecretHash        string   `json:"client_secret_hash"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ClientName              string   `json:"client_name,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// ClientRegistrationRequest is a Dynamic Client Registration request (RFC 7591).
type ClientRegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// ClientRegistrationResponse is the registration response. The plain
// client secret appears here and nowhere else.
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ClientName              string   `json:"client_name,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// AuthorizationState tracks an in-flight authorization request while the
// user is at WHOOP's consent screen. UpstreamState keys the record.
type AuthorizationState struct {
	State               string `json:"state"`
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	Scope               string `json:"scope"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
	UpstreamState       string `json:"upstream_state"`
	CreatedAt           int64  `json:"created_at"`
	ExpiresAt           int64  `json:"expires_at"`
}

// AuthorizationCode is a single-use code minted after the WHOOP callback.
// It carries the upstream token so the token exchange can bind a local
// access token to it.
type AuthorizationCode struct {
	Code                 string `json:"code"`
	ClientID             string `json:"client_id"`
	RedirectURI          string `json:"redirect_uri"`
	Scope                string `json:"scope"`
	CodeChallenge        string `json:"code_challenge"`
	CodeChallengeMethod  string `json:"code_challenge_method"`
	UpstreamAccessToken  string `json:"upstream_access_token"`
	UpstreamRefreshToken string `json:"upstream_refresh_token"`
	UpstreamTokenExpiry  int64  `json:"upstream_token_expiry"`
	UserID               int64  `json:"user_id,omitempty"`
	CreatedAt            int64  `json:"created_at"`
	ExpiresAt            int64  `json:"expires_at"`
}

// AccessToken is a locally issued bearer token mapped to an upstream
// WHOOP token.
type AccessToken struct {
	Token                string `json:"token"`
	ClientID             string `json:"client_id"`
	Scope                string `json:"scope"`
	UpstreamAccessToken  string `json:"upstream_access_token"`
	UpstreamRefreshToken string `json:"upstream_refresh_token"`
	UpstreamTokenExpiry  int64  `json:"upstream_token_expiry"`
	UserID               int64  `json:"user_id,omitempty"`
	CreatedAt            int64  `json:"created_at"`
	ExpiresAt            int64  `json:"expires_at"`
}

// RefreshToken is a locally issued refresh token. Rotation replaces the
// record on every use.
type RefreshToken struct {
	Token                string `json:"token"`
	ClientID             string `json:"client_id"`
	Scope                string `json:"scope"`
	UpstreamAccessToken  string `json:"upstream_access_token"`
	UpstreamRefreshToken string `json:"upstream_refresh_token"`
	UpstreamTokenExpiry  int64  `json:"upstream_token_expiry"`
	UserID               int64  `json:"user_id,omitempty"`
	CreatedAt            int64  `json:"created_at"`
	ExpiresAt            int64  `json:"expires_at"`
}

// TokenResponse is the token endpoint success response (RFC 6749).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// AuthorizationServerMetadata is the RFC 8414 discovery document.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
}

// ProtectedResourceMetadata is the RFC 9728 discovery document.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}
