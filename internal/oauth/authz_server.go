package oauth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/fitstack/whoop-mcp/internal/logging"
)

// ServeClientRegistration handles Dynamic Client Registration (RFC 7591).
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "invalid_request", "Failed to parse registration request", http.StatusBadRequest)
		return
	}

	if len(req.RedirectURIs) == 0 {
		h.writeOAuthError(w, ErrInvalidRedirectURI("At least one redirect_uri is required"))
		return
	}
	for _, uri := range req.RedirectURIs {
		if err := validateRedirectURI(uri, h.config.Resource); err != nil {
			h.writeOAuthError(w, ErrInvalidRedirectURI(err.Error()))
			return
		}
	}

	ip := clientIP(r, h.config.RateLimit.TrustProxy)
	if err := h.checkClientIPLimit(ip); err != nil {
		h.logger.Warn("client registration limit exceeded", slog.String("client_ip", ip))
		h.writeError(w, "invalid_request",
			fmt.Sprintf("Client registration limit exceeded (%d max per IP)", h.config.Security.MaxClientsPerIP),
			http.StatusTooManyRequests)
		return
	}

	resp, err := h.registerClient(&req, ip)
	if err != nil {
		h.logger.Error("failed to register client", "error", err)
		h.writeError(w, "server_error", "Failed to register client", http.StatusInternalServerError)
		return
	}

	h.logger.Info("registered oauth client",
		logging.ClientID(resp.ClientID),
		slog.String("client_name", resp.ClientName))

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) checkClientIPLimit(ip string) error {
	if h.config.Security.MaxClientsPerIP <= 0 || ip == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clientsPerIP[ip] >= h.config.Security.MaxClientsPerIP {
		return fmt.Errorf("registration limit reached for %s", ip)
	}
	h.clientsPerIP[ip]++
	return nil
}

func (h *Handler) registerClient(req *ClientRegistrationRequest, ip string) (*ClientRegistrationResponse, error) {
	clientID, err := generateSecureToken(ClientIDLength)
	if err != nil {
		return nil, fmt.Errorf("generating client ID: %w", err)
	}
	clientSecret, err := generateSecureToken(ClientSecretLength)
	if err != nil {
		return nil, fmt.Errorf("generating client secret: %w", err)
	}
	secretHash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing client secret: %w", err)
	}

	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = DefaultTokenEndpointAuthMethod
	}
	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = DefaultGrantTypes
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = DefaultResponseTypes
	}

	now := time.Now().Unix()
	client := &RegisteredClient{
		ClientID:                clientID,
		ClientSecretHash:        string(secretHash),
		ClientIDIssuedAt:        now,
		ClientSecretExpiresAt:   0,
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		ClientName:              req.ClientName,
		Scope:                   req.Scope,
	}

	if err := h.store.SaveClient(client); err != nil {
		return nil, fmt.Errorf("saving client: %w", err)
	}

	return &ClientRegistrationResponse{
		ClientID:                clientID,
		ClientSecret:            clientSecret,
		ClientIDIssuedAt:        now,
		ClientSecretExpiresAt:   0,
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		ClientName:              req.ClientName,
		Scope:                   req.Scope,
	}, nil
}

// ServeAuthorization handles the authorization endpoint by validating the
// request and redirecting the user to WHOOP for consent.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.upstreamConfig == nil {
		h.logger.Error("whoop oauth not configured")
		h.writeError(w, "server_error", "OAuth proxy not configured", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	clientID := query.Get("client_id")
	redirectURI := query.Get("redirect_uri")
	state := query.Get("state")
	scope := query.Get("scope")
	codeChallenge := query.Get("code_challenge")
	codeChallengeMethod := query.Get("code_challenge_method")

	if clientID == "" {
		h.writeError(w, "invalid_request", "client_id is required", http.StatusBadRequest)
		return
	}
	if redirectURI == "" {
		h.writeError(w, "invalid_request", "redirect_uri is required", http.StatusBadRequest)
		return
	}

	// OAuth 2.1 requires state for CSRF protection.
	if state == "" && !h.config.Security.AllowInsecureAuthWithoutState {
		h.logger.Warn("authorization request rejected: missing state",
			logging.ClientID(clientID))
		h.writeError(w, "invalid_request", "state parameter is required for CSRF protection", http.StatusBadRequest)
		return
	}

	client, err := h.store.GetClient(clientID)
	if err != nil {
		h.logger.Warn("invalid client_id", logging.ClientID(clientID), logging.Err(err))
		h.writeError(w, "invalid_client", "Invalid client_id", http.StatusUnauthorized)
		return
	}

	if !redirectURIRegistered(client, redirectURI) {
		h.logger.Warn("redirect_uri not registered",
			logging.ClientID(clientID),
			slog.String("redirect_uri", redirectURI))
		h.writeError(w, "invalid_request", "redirect_uri not registered for this client", http.StatusBadRequest)
		return
	}

	if unknown := h.unsupportedScope(scope); unknown != "" {
		h.writeOAuthError(w, ErrInvalidScope(fmt.Sprintf("Scope %q is not supported", unknown)))
		return
	}

	// PKCE is required for public clients.
	if codeChallenge == "" && client.TokenEndpointAuthMethod == "none" {
		h.writeError(w, "invalid_request", "PKCE is required for public clients", http.StatusBadRequest)
		return
	}
	if codeChallenge != "" && codeChallengeMethod != "S256" {
		h.writeError(w, "invalid_request", "code_challenge_method must be S256", http.StatusBadRequest)
		return
	}

	upstreamState, err := generateSecureToken(StateTokenLength)
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		h.writeError(w, "server_error", "Failed to generate state", http.StatusInternalServerError)
		return
	}

	now := time.Now().Unix()
	authState := &AuthorizationState{
		State:               state,
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		Scope:               scope,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		UpstreamState:       upstreamState,
		CreatedAt:           now,
		ExpiresAt:           now + int64(DefaultAuthorizationCodeTTL.Seconds()),
	}
	if err := h.store.SaveAuthorizationState(authState); err != nil {
		h.logger.Error("failed to save authorization state", "error", err)
		h.writeError(w, "server_error", "Failed to save state", http.StatusInternalServerError)
		return
	}

	upstreamURL := h.upstreamConfig.AuthCodeURL(upstreamState, oauth2.AccessTypeOffline)

	h.logger.Info("redirecting to whoop for authorization",
		logging.ClientID(clientID))

	http.Redirect(w, r, upstreamURL, http.StatusFound)
}

// ServeCallback handles the redirect back from WHOOP. It exchanges the
// upstream code for a WHOOP token, mints a local authorization code that
// carries it, and redirects back to the MCP client.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	upstreamState := query.Get("state")
	code := query.Get("code")

	if errParam := query.Get("error"); errParam != "" {
		errDesc := query.Get("error_description")
		h.logger.Warn("whoop oauth error", slog.String("error", errParam), slog.String("description", errDesc))
		http.Error(w, fmt.Sprintf("WHOOP OAuth error: %s - %s", errParam, errDesc), http.StatusBadRequest)
		return
	}

	authState, err := h.store.GetAuthorizationState(upstreamState)
	if err != nil {
		h.logger.Error("invalid or expired state", logging.Err(err))
		http.Error(w, "Invalid or expired state", http.StatusBadRequest)
		return
	}

	upstreamToken, err := h.upstreamConfig.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("failed to exchange code with whoop", logging.Err(err))
		http.Error(w, "Failed to exchange authorization code", http.StatusInternalServerError)
		return
	}

	localCode, err := generateSecureToken(AuthCodeLength)
	if err != nil {
		h.logger.Error("failed to generate authorization code", logging.Err(err))
		http.Error(w, "Failed to generate authorization code", http.StatusInternalServerError)
		return
	}

	now := time.Now().Unix()
	authCode := &AuthorizationCode{
		Code:                 localCode,
		ClientID:             authState.ClientID,
		RedirectURI:          authState.RedirectURI,
		Scope:                authState.Scope,
		CodeChallenge:        authState.CodeChallenge,
		CodeChallengeMethod:  authState.CodeChallengeMethod,
		UpstreamAccessToken:  upstreamToken.AccessToken,
		UpstreamRefreshToken: upstreamToken.RefreshToken,
		UpstreamTokenExpiry:  upstreamToken.Expiry.Unix(),
		CreatedAt:            now,
		ExpiresAt:            now + int64(DefaultAuthorizationCodeTTL.Seconds()),
	}
	if err := h.store.SaveAuthorizationCode(authCode); err != nil {
		h.logger.Error("failed to save authorization code", logging.Err(err))
		http.Error(w, "Failed to save authorization code", http.StatusInternalServerError)
		return
	}

	h.store.DeleteAuthorizationState(upstreamState)

	redirectURL, err := url.Parse(authState.RedirectURI)
	if err != nil {
		h.logger.Error("invalid redirect URI", slog.String("redirect_uri", authState.RedirectURI), logging.Err(err))
		http.Error(w, "Invalid redirect URI", http.StatusInternalServerError)
		return
	}
	redirectQuery := redirectURL.Query()
	redirectQuery.Set("code", localCode)
	if authState.State != "" {
		redirectQuery.Set("state", authState.State)
	}
	redirectURL.RawQuery = redirectQuery.Encode()

	h.logger.Info("redirecting back to mcp client",
		logging.ClientID(authState.ClientID))

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

// ServeToken handles the token endpoint.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(w, "invalid_request", "Failed to parse request", http.StatusBadRequest)
		return
	}

	switch grantType := r.FormValue("grant_type"); grantType {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r)
	case "refresh_token":
		h.handleRefreshTokenGrant(w, r)
	default:
		h.writeOAuthError(w, ErrUnsupportedGrantType(
			fmt.Sprintf("Grant type %q not supported", grantType)))
	}
}

func (h *Handler) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")
	redirectURI := r.FormValue("redirect_uri")
	codeVerifier := r.FormValue("code_verifier")

	if code == "" {
		h.writeOAuthError(w, ErrInvalidRequest("code is required"))
		return
	}

	authCode, err := h.store.ConsumeAuthorizationCode(code)
	if err != nil {
		h.logger.Warn("authorization code rejected", logging.Err(err))
		h.writeOAuthError(w, ErrInvalidGrant("Invalid or expired authorization code"))
		return
	}

	if redirectURI != "" && redirectURI != authCode.RedirectURI {
		h.writeOAuthError(w, ErrInvalidGrant("redirect_uri does not match authorization request"))
		return
	}

	clientID, oauthErr := h.authenticateClient(r, authCode.ClientID)
	if oauthErr != nil {
		h.writeOAuthError(w, oauthErr)
		return
	}
	if clientID != authCode.ClientID {
		h.writeOAuthError(w, ErrInvalidGrant("Authorization code was issued to a different client"))
		return
	}

	if authCode.CodeChallenge != "" {
		if codeVerifier == "" {
			h.writeOAuthError(w, ErrInvalidRequest("code_verifier is required"))
			return
		}
		if !ValidateCodeChallenge(codeVerifier, authCode.CodeChallenge, authCode.CodeChallengeMethod) {
			h.logger.Warn("pkce validation failed", logging.ClientID(clientID))
			h.writeOAuthError(w, ErrInvalidGrant("PKCE verification failed"))
			return
		}
	}

	tokenResp, oauthErr := h.issueTokens(clientID, authCode.Scope,
		authCode.UpstreamAccessToken, authCode.UpstreamRefreshToken, authCode.UpstreamTokenExpiry)
	if oauthErr != nil {
		h.writeOAuthError(w, oauthErr)
		return
	}

	h.logger.Info("issued access token",
		logging.ClientID(clientID),
		slog.String("scope", authCode.Scope))

	h.writeTokenResponse(w, tokenResp)
}

func (h *Handler) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.FormValue("refresh_token")
	if refreshToken == "" {
		h.writeOAuthError(w, ErrInvalidRequest("refresh_token is required"))
		return
	}

	record, err := h.store.GetRefreshToken(refreshToken)
	if err != nil {
		h.logger.Warn("refresh token rejected", logging.Err(err))
		h.writeOAuthError(w, ErrInvalidGrant("Invalid or expired refresh token"))
		return
	}

	clientID, oauthErr := h.authenticateClient(r, record.ClientID)
	if oauthErr != nil {
		h.writeOAuthError(w, oauthErr)
		return
	}
	if clientID != record.ClientID {
		h.writeOAuthError(w, ErrInvalidGrant("Refresh token was issued to a different client"))
		return
	}

	upstreamAccess := record.UpstreamAccessToken
	upstreamRefresh := record.UpstreamRefreshToken
	upstreamExpiry := record.UpstreamTokenExpiry

	// Refresh the upstream WHOOP token when it is near expiry so the new
	// local token is backed by a live upstream token.
	if upstreamRefresh != "" && time.Now().Add(5*time.Minute).Unix() > upstreamExpiry {
		newUpstream, refreshErr := h.refreshUpstreamToken(r, upstreamRefresh)
		if refreshErr != nil {
			h.logger.Warn("failed to refresh whoop token", logging.Err(refreshErr))
			h.writeOAuthError(w, ErrInvalidGrant("Upstream token refresh failed. Please re-authenticate."))
			return
		}
		upstreamAccess = newUpstream.AccessToken
		if newUpstream.RefreshToken != "" {
			upstreamRefresh = newUpstream.RefreshToken
		}
		upstreamExpiry = newUpstream.Expiry.Unix()
	}

	newAccess, err := generateSecureToken(AccessTokenLength)
	if err != nil {
		h.logger.Error("failed to generate access token", logging.Err(err))
		h.writeOAuthError(w, ErrServerError("Failed to generate access token"))
		return
	}
	newRefresh, err := generateSecureToken(RefreshTokenLength)
	if err != nil {
		h.logger.Error("failed to generate refresh token", logging.Err(err))
		h.writeOAuthError(w, ErrServerError("Failed to generate refresh token"))
		return
	}

	now := time.Now()
	accessRecord := &AccessToken{
		Token:                newAccess,
		ClientID:             clientID,
		Scope:                record.Scope,
		UpstreamAccessToken:  upstreamAccess,
		UpstreamRefreshToken: upstreamRefresh,
		UpstreamTokenExpiry:  upstreamExpiry,
		UserID:               record.UserID,
		CreatedAt:            now.Unix(),
		ExpiresAt:            now.Add(h.config.Security.AccessTokenTTL).Unix(),
	}
	if err := h.store.SaveAccessToken(accessRecord); err != nil {
		h.logger.Error("failed to store access token", logging.Err(err))
		h.writeOAuthError(w, ErrServerError("Failed to store token"))
		return
	}

	// Rotate: the old refresh token is invalidated in the same store
	// operation that records the new one.
	refreshRecord := &RefreshToken{
		Token:                newRefresh,
		ClientID:             clientID,
		Scope:                record.Scope,
		UpstreamAccessToken:  upstreamAccess,
		UpstreamRefreshToken: upstreamRefresh,
		UpstreamTokenExpiry:  upstreamExpiry,
		UserID:               record.UserID,
		CreatedAt:            now.Unix(),
		ExpiresAt:            now.Add(h.config.Security.RefreshTokenTTL).Unix(),
	}
	if err := h.store.RotateRefreshToken(refreshToken, refreshRecord); err != nil {
		h.logger.Error("failed to rotate refresh token", logging.Err(err))
		h.writeOAuthError(w, ErrServerError("Failed to store token"))
		return
	}

	h.logger.Info("rotated refresh token",
		logging.ClientID(clientID))

	h.writeTokenResponse(w, &TokenResponse{
		AccessToken:  newAccess,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.config.Security.AccessTokenTTL.Seconds()),
		RefreshToken: newRefresh,
		Scope:        record.Scope,
	})
}

// issueTokens mints an access and refresh token pair bound to the given
// upstream token.
func (h *Handler) issueTokens(clientID, scope, upstreamAccess, upstreamRefresh string, upstreamExpiry int64) (*TokenResponse, *OAuthError) {
	accessToken, err := generateSecureToken(AccessTokenLength)
	if err != nil {
		h.logger.Error("failed to generate access token", logging.Err(err))
		return nil, ErrServerError("Failed to generate access token")
	}
	refreshToken, err := generateSecureToken(RefreshTokenLength)
	if err != nil {
		h.logger.Error("failed to generate refresh token", logging.Err(err))
		return nil, ErrServerError("Failed to generate refresh token")
	}

	now := time.Now()
	accessRecord := &AccessToken{
		Token:                accessToken,
		ClientID:             clientID,
		Scope:                scope,
		UpstreamAccessToken:  upstreamAccess,
		UpstreamRefreshToken: upstreamRefresh,
		UpstreamTokenExpiry:  upstreamExpiry,
		CreatedAt:            now.Unix(),
		ExpiresAt:            now.Add(h.config.Security.AccessTokenTTL).Unix(),
	}
	if err := h.store.SaveAccessToken(accessRecord); err != nil {
		h.logger.Error("failed to store access token", logging.Err(err))
		return nil, ErrServerError("Failed to store token")
	}

	refreshRecord := &RefreshToken{
		Token:                refreshToken,
		ClientID:             clientID,
		Scope:                scope,
		UpstreamAccessToken:  upstreamAccess,
		UpstreamRefreshToken: upstreamRefresh,
		UpstreamTokenExpiry:  upstreamExpiry,
		CreatedAt:            now.Unix(),
		ExpiresAt:            now.Add(h.config.Security.RefreshTokenTTL).Unix(),
	}
	if err := h.store.SaveRefreshToken(refreshRecord); err != nil {
		h.logger.Error("failed to store refresh token", logging.Err(err))
		return nil, ErrServerError("Failed to store token")
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.config.Security.AccessTokenTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        scope,
	}, nil
}

// refreshUpstreamToken exchanges the upstream refresh token at WHOOP.
func (h *Handler) refreshUpstreamToken(r *http.Request, refreshToken string) (*oauth2.Token, error) {
	if h.upstreamConfig == nil {
		return nil, fmt.Errorf("oauth proxy not configured")
	}
	source := h.upstreamConfig.TokenSource(r.Context(), &oauth2.Token{RefreshToken: refreshToken})
	return source.Token()
}

// authenticateClient authenticates a client from Basic auth or form
// parameters. Public clients (auth method "none") pass without a secret;
// PKCE covers them.
func (h *Handler) authenticateClient(r *http.Request, fallbackClientID string) (string, *OAuthError) {
	clientID := r.FormValue("client_id")
	clientSecret := r.FormValue("client_secret")

	if basicID, basicSecret, ok := r.BasicAuth(); ok {
		clientID = basicID
		clientSecret = basicSecret
	}
	if clientID == "" {
		clientID = fallbackClientID
	}

	client, err := h.store.GetClient(clientID)
	if err != nil {
		return "", ErrInvalidClient("Unknown client")
	}

	if client.TokenEndpointAuthMethod == "none" {
		return clientID, nil
	}

	if clientSecret == "" {
		return "", ErrInvalidClient("Client authentication required")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(clientSecret)); err != nil {
		h.logger.Warn("client secret mismatch", logging.ClientID(clientID))
		return "", ErrInvalidClient("Invalid client credentials")
	}

	return clientID, nil
}

// ServeRevocation handles RFC 7009 token revocation. Per the RFC, the
// endpoint returns 200 even for unknown tokens.
func (h *Handler) ServeRevocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(w, "invalid_request", "Failed to parse request", http.StatusBadRequest)
		return
	}

	token := r.FormValue("token")
	if token == "" {
		h.writeError(w, "invalid_request", "token is required", http.StatusBadRequest)
		return
	}

	tokenTypeHint := r.FormValue("token_type_hint")
	switch tokenTypeHint {
	case "refresh_token":
		h.store.DeleteRefreshToken(token)
		h.store.DeleteAccessToken(token)
	default:
		h.store.DeleteAccessToken(token)
		h.store.DeleteRefreshToken(token)
	}

	h.logger.Info("token revoked",
		logging.Operation("revoke"),
		slog.String("token", logging.SanitizeToken(token)))

	h.setSecurityHeaders(w)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeTokenResponse(w http.ResponseWriter, resp *TokenResponse) {
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// validateRedirectURI validates a redirect URI per the OAuth 2.0 Security
// Best Current Practice.
func validateRedirectURI(uri, serverResource string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid redirect_uri format: %s", uri)
	}
	if parsed.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain fragments: %s", uri)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("redirect_uri must have a scheme: %s", uri)
	}

	schemeLower := strings.ToLower(parsed.Scheme)
	for _, dangerous := range DangerousSchemes {
		if schemeLower == dangerous {
			return fmt.Errorf("redirect_uri scheme %q is not allowed", parsed.Scheme)
		}
	}

	// Custom schemes (native apps) pass after the dangerous-scheme check.
	if schemeLower != "http" && schemeLower != "https" {
		return nil
	}

	if parsed.Host == "" {
		return fmt.Errorf("http/https redirect_uri must have a host: %s", uri)
	}

	serverURL, err := url.Parse(serverResource)
	if err != nil {
		return fmt.Errorf("cannot validate redirect_uri: invalid server resource")
	}

	// Loopback redirects stay legal in production since they cannot be
	// intercepted remotely.
	if !isLoopback(serverURL.Hostname()) && !isLoopback(parsed.Hostname()) && schemeLower != "https" {
		return fmt.Errorf("redirect_uri must use HTTPS for non-loopback hosts: %s", uri)
	}

	return nil
}

// unsupportedScope returns the first requested scope token not present
// in the configured scope set, or "" when all are supported. An empty
// request or an empty configured set passes.
func (h *Handler) unsupportedScope(scope string) string {
	if scope == "" || len(h.config.SupportedScopes) == 0 {
		return ""
	}
	supported := make(map[string]bool, len(h.config.SupportedScopes))
	for _, s := range h.config.SupportedScopes {
		supported[s] = true
	}
	for _, s := range strings.Fields(scope) {
		if !supported[s] {
			return s
		}
	}
	return ""
}

func redirectURIRegistered(client *RegisteredClient, redirectURI string) bool {
	for _, uri := range client.RedirectURIs {
		if uri == redirectURI {
			return true
		}
	}
	return false
}
