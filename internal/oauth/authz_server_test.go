package oauth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
)

// newTestHandler creates a handler wired against a fake WHOOP token
// endpoint.
func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"whoop-access","refresh_token":"whoop-refresh","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(upstream.Close)

	handler, err := NewHandler(&Config{
		Resource:        "http://localhost:8080",
		SupportedScopes: []string{"read:profile", "read:recovery"},
		StorePath:       filepath.Join(t.TempDir(), "oauth.json"),
		Upstream: UpstreamConfig{
			ClientID:     "whoop-client",
			ClientSecret: "whoop-secret",
			AuthURL:      upstream.URL + "/auth",
			TokenURL:     upstream.URL + "/token",
		},
		Logger: slog.Default(),
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(handler.Close)
	return handler
}

// registerTestClient runs dynamic client registration and returns the
// response.
func registerTestClient(t *testing.T, h *Handler) *ClientRegistrationResponse {
	t.Helper()

	body := `{"redirect_uris":["http://localhost:3000/callback"],"client_name":"test client"}`
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeClientRegistration(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("registration status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ClientRegistrationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing registration response: %v", err)
	}
	if resp.ClientID == "" || resp.ClientSecret == "" {
		t.Fatal("registration response missing credentials")
	}
	return &resp
}

// runAuthorizationFlow walks register, authorize, and callback, returning
// the registered client and the minted local authorization code.
func runAuthorizationFlow(t *testing.T, h *Handler, verifier string) (*ClientRegistrationResponse, string) {
	t.Helper()

	client := registerTestClient(t, h)
	challenge := GenerateCodeChallenge(verifier)

	authURL := "/oauth/authorize?" + url.Values{
		"client_id":             {client.ClientID},
		"redirect_uri":          {"http://localhost:3000/callback"},
		"response_type":         {"code"},
		"state":                 {"client-state"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}.Encode()

	req := httptest.NewRequest(http.MethodGet, authURL, nil)
	rec := httptest.NewRecorder()
	h.ServeAuthorization(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("authorize status = %d, body %s", rec.Code, rec.Body.String())
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing authorize redirect: %v", err)
	}
	upstreamState := location.Query().Get("state")
	if upstreamState == "" {
		t.Fatal("authorize redirect missing upstream state")
	}

	callbackURL := "/oauth/callback?" + url.Values{
		"state": {upstreamState},
		"code":  {"upstream-code"},
	}.Encode()
	req = httptest.NewRequest(http.MethodGet, callbackURL, nil)
	rec = httptest.NewRecorder()
	h.ServeCallback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("callback status = %d, body %s", rec.Code, rec.Body.String())
	}
	location, err = url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing callback redirect: %v", err)
	}
	if got := location.Query().Get("state"); got != "client-state" {
		t.Errorf("callback state = %q, want client-state", got)
	}
	code := location.Query().Get("code")
	if code == "" {
		t.Fatal("callback redirect missing code")
	}
	return client, code
}

func exchangeCode(t *testing.T, h *Handler, client *ClientRegistrationResponse, code, verifier string) *httptest.ResponseRecorder {
	t.Helper()

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"http://localhost:3000/callback"},
		"client_id":     {client.ClientID},
		"client_secret": {client.ClientSecret},
		"code_verifier": {verifier},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeToken(rec, req)
	return rec
}

func TestFullAuthorizationCodeFlow(t *testing.T) {
	h := newTestHandler(t)

	verifier, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("GenerateCodeVerifier: %v", err)
	}
	client, code := runAuthorizationFlow(t, h, verifier)

	rec := exchangeCode(t, h, client, code, verifier)
	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d, body %s", rec.Code, rec.Body.String())
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tokenResp); err != nil {
		t.Fatalf("parsing token response: %v", err)
	}
	if tokenResp.AccessToken == "" || tokenResp.RefreshToken == "" {
		t.Fatalf("token response missing tokens: %+v", tokenResp)
	}
	if tokenResp.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", tokenResp.TokenType)
	}

	// The issued token maps to the upstream WHOOP token.
	record, err := h.Store().GetAccessToken(tokenResp.AccessToken)
	if err != nil {
		t.Fatalf("GetAccessToken: %v", err)
	}
	if record.UpstreamAccessToken != "whoop-access" {
		t.Errorf("upstream access token = %q, want whoop-access", record.UpstreamAccessToken)
	}
}

func TestAuthorizationCodeReplayRejected(t *testing.T) {
	h := newTestHandler(t)

	verifier, _ := GenerateCodeVerifier()
	client, code := runAuthorizationFlow(t, h, verifier)

	if rec := exchangeCode(t, h, client, code, verifier); rec.Code != http.StatusOK {
		t.Fatalf("first exchange status = %d", rec.Code)
	}

	rec := exchangeCode(t, h, client, code, verifier)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("replayed code status = %d, want 400", rec.Code)
	}
	var errResp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &errResp)
	if errResp.Error != "invalid_grant" {
		t.Errorf("replay error = %q, want invalid_grant", errResp.Error)
	}
}

func TestWrongCodeVerifierRejected(t *testing.T) {
	h := newTestHandler(t)

	verifier, _ := GenerateCodeVerifier()
	client, code := runAuthorizationFlow(t, h, verifier)

	wrongVerifier, _ := GenerateCodeVerifier()
	rec := exchangeCode(t, h, client, code, wrongVerifier)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("wrong verifier status = %d, want 400", rec.Code)
	}
	var errResp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &errResp)
	if errResp.Error != "invalid_grant" {
		t.Errorf("error = %q, want invalid_grant", errResp.Error)
	}
}

func TestWrongClientSecretRejected(t *testing.T) {
	h := newTestHandler(t)

	verifier, _ := GenerateCodeVerifier()
	client, code := runAuthorizationFlow(t, h, verifier)

	badClient := *client
	badClient.ClientSecret = "wrong-secret"
	rec := exchangeCode(t, h, &badClient, code, verifier)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret status = %d, want 401", rec.Code)
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	h := newTestHandler(t)

	verifier, _ := GenerateCodeVerifier()
	client, code := runAuthorizationFlow(t, h, verifier)

	rec := exchangeCode(t, h, client, code, verifier)
	var first TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("parsing token response: %v", err)
	}

	refresh := func(token string) *httptest.ResponseRecorder {
		form := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {token},
			"client_id":     {client.ClientID},
			"client_secret": {client.ClientSecret},
		}
		req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeToken(rec, req)
		return rec
	}

	rec = refresh(first.RefreshToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	var second TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("parsing refresh response: %v", err)
	}
	if second.RefreshToken == "" || second.RefreshToken == first.RefreshToken {
		t.Error("refresh token should be rotated to a new value")
	}
	if second.AccessToken == first.AccessToken {
		t.Error("refresh should issue a new access token")
	}

	// The rotated-out refresh token is dead.
	rec = refresh(first.RefreshToken)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("old refresh token status = %d, want 400", rec.Code)
	}
}

func TestRevocation(t *testing.T) {
	h := newTestHandler(t)

	verifier, _ := GenerateCodeVerifier()
	client, code := runAuthorizationFlow(t, h, verifier)

	rec := exchangeCode(t, h, client, code, verifier)
	var tokenResp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tokenResp); err != nil {
		t.Fatalf("parsing token response: %v", err)
	}

	form := url.Values{"token": {tokenResp.AccessToken}}
	req := httptest.NewRequest(http.MethodPost, "/oauth/revoke", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeRevocation(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("revocation status = %d", rec.Code)
	}
	if _, err := h.Store().GetAccessToken(tokenResp.AccessToken); err == nil {
		t.Error("revoked access token should be invalid")
	}
}

func TestAuthorizationRequiresState(t *testing.T) {
	h := newTestHandler(t)
	client := registerTestClient(t, h)

	authURL := "/oauth/authorize?" + url.Values{
		"client_id":    {client.ClientID},
		"redirect_uri": {"http://localhost:3000/callback"},
	}.Encode()
	req := httptest.NewRequest(http.MethodGet, authURL, nil)
	rec := httptest.NewRecorder()
	h.ServeAuthorization(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing state status = %d, want 400", rec.Code)
	}
}

func TestAuthorizationRejectsUnregisteredRedirectURI(t *testing.T) {
	h := newTestHandler(t)
	client := registerTestClient(t, h)

	authURL := "/oauth/authorize?" + url.Values{
		"client_id":    {client.ClientID},
		"redirect_uri": {"http://evil.example.com/steal"},
		"state":        {"s"},
	}.Encode()
	req := httptest.NewRequest(http.MethodGet, authURL, nil)
	rec := httptest.NewRecorder()
	h.ServeAuthorization(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("unregistered redirect status = %d, want 400", rec.Code)
	}
}

func TestAuthorizationRejectsUnsupportedScope(t *testing.T) {
	h := newTestHandler(t)
	client := registerTestClient(t, h)

	authURL := "/oauth/authorize?" + url.Values{
		"client_id":    {client.ClientID},
		"redirect_uri": {"http://localhost:3000/callback"},
		"state":        {"s"},
		"scope":        {"read:profile admin:everything"},
	}.Encode()
	req := httptest.NewRequest(http.MethodGet, authURL, nil)
	rec := httptest.NewRecorder()
	h.ServeAuthorization(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported scope status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing error response: %v", err)
	}
	if resp.Error != "invalid_scope" {
		t.Errorf("error code = %q, want invalid_scope", resp.Error)
	}
}

func TestAuthorizationAcceptsSupportedScope(t *testing.T) {
	h := newTestHandler(t)
	client := registerTestClient(t, h)

	authURL := "/oauth/authorize?" + url.Values{
		"client_id":    {client.ClientID},
		"redirect_uri": {"http://localhost:3000/callback"},
		"state":        {"s"},
		"scope":        {"read:profile read:recovery"},
	}.Encode()
	req := httptest.NewRequest(http.MethodGet, authURL, nil)
	rec := httptest.NewRecorder()
	h.ServeAuthorization(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("supported scope status = %d, want 302", rec.Code)
	}
}

func TestRegistrationRejectsDangerousScheme(t *testing.T) {
	h := newTestHandler(t)

	body := `{"redirect_uris":["javascript:alert(1)"]}`
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeClientRegistration(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("dangerous scheme status = %d, want 400", rec.Code)
	}
}

func TestMetadataEndpoints(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rec := httptest.NewRecorder()
	h.ServeAuthorizationServerMetadata(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authorization server metadata status = %d", rec.Code)
	}
	var asMeta AuthorizationServerMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &asMeta); err != nil {
		t.Fatalf("parsing metadata: %v", err)
	}
	if asMeta.Issuer != "http://localhost:8080" {
		t.Errorf("issuer = %q", asMeta.Issuer)
	}
	if len(asMeta.CodeChallengeMethodsSupported) != 1 || asMeta.CodeChallengeMethodsSupported[0] != "S256" {
		t.Errorf("code challenge methods = %v, want [S256]", asMeta.CodeChallengeMethodsSupported)
	}

	req = httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil)
	rec = httptest.NewRecorder()
	h.ServeProtectedResourceMetadata(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("protected resource metadata status = %d", rec.Code)
	}
	var prMeta ProtectedResourceMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &prMeta); err != nil {
		t.Fatalf("parsing metadata: %v", err)
	}
	if len(prMeta.AuthorizationServers) != 1 {
		t.Errorf("authorization servers = %v", prMeta.AuthorizationServers)
	}
}
