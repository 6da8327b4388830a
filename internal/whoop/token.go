package whoop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fitstack/whoop-mcp/internal/logging"
)

const (
	tokenDirPerm  = 0o700
	tokenFilePerm = 0o600

	// A token within this window of its expiry is treated as expired so
	// requests never race the actual expiration.
	expiryBuffer = 5 * time.Minute
)

// Token is the WHOOP OAuth token persisted on disk.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// IsExpired reports whether the token has expired or will within the
// expiry buffer. A zero Expiry means the token never expires.
func (t *Token) IsExpired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().Add(expiryBuffer).After(t.Expiry)
}

// TokenManager loads, saves, and refreshes the WHOOP token file. It
// implements TokenSource. All methods are safe for concurrent use.
type TokenManager struct {
	mu           sync.Mutex
	path         string
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	logger       *slog.Logger
}

// TokenManagerConfig configures a TokenManager. Path, ClientID, and
// ClientSecret are required.
type TokenManagerConfig struct {
	Path         string
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// NewTokenManager creates a token manager backed by the file at cfg.Path.
func NewTokenManager(cfg TokenManagerConfig) (*TokenManager, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("token path is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client credentials are required")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = TokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TokenManager{
		path:         cfg.Path,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     cfg.TokenURL,
		httpClient:   cfg.HTTPClient,
		logger:       cfg.Logger,
	}, nil
}

// DefaultTokenPath returns the standard location for the token file.
func DefaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".whoop-mcp", "token.json"), nil
}

// Path returns the token file location.
func (tm *TokenManager) Path() string {
	return tm.path
}

// Load reads the token from disk. A missing file returns (nil, nil).
func (tm *TokenManager) Load() (*Token, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.loadLocked()
}

func (tm *TokenManager) loadLocked() (*Token, error) {
	data, err := os.ReadFile(tm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &token, nil
}

// Save writes the token to disk with owner-only permissions. The write
// goes through a temp file and rename so readers never see a partial
// token file.
func (tm *TokenManager) Save(token *Token) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.saveLocked(token)
}

func (tm *TokenManager) saveLocked(token *Token) error {
	dir := filepath.Dir(tm.path)
	if err := os.MkdirAll(dir, tokenDirPerm); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "token-*.json")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(tokenFilePerm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing token file: %w", err)
	}
	if err := os.Rename(tmpName, tm.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Delete removes the token file. A missing file is not an error.
func (tm *TokenManager) Delete() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if err := os.Remove(tm.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting token file: %w", err)
	}
	return nil
}

// AccessToken returns a valid access token, refreshing an expired one
// first. It returns ErrNotAuthenticated when no token file exists.
func (tm *TokenManager) AccessToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	token, err := tm.loadLocked()
	if err != nil {
		return "", err
	}
	if token == nil {
		return "", ErrNotAuthenticated
	}

	if token.IsExpired() {
		if token.RefreshToken == "" {
			return "", fmt.Errorf("token expired and no refresh token available")
		}
		token, err = tm.refreshLocked(ctx, token.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("refreshing token: %w", err)
		}
	}

	return token.AccessToken, nil
}

// Refresh exchanges the refresh token for a new token pair and persists it.
func (tm *TokenManager) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.refreshLocked(ctx, refreshToken)
}

func (tm *TokenManager) refreshLocked(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	token, err := tm.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}

	if err := tm.saveLocked(token); err != nil {
		return nil, fmt.Errorf("saving refreshed token: %w", err)
	}

	tm.logger.Info("refreshed upstream token",
		logging.Operation("token_refresh"),
		slog.Time("expiry", token.Expiry))

	return token, nil
}

// Exchange trades an authorization code for a token pair and persists it.
func (tm *TokenManager) Exchange(ctx context.Context, code, redirectURI string) (*Token, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	token, err := tm.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}

	if err := tm.saveLocked(token); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}

	tm.logger.Info("exchanged authorization code",
		logging.Operation("token_exchange"),
		slog.Time("expiry", token.Expiry))

	return token, nil
}

// requestToken posts a grant request to the token endpoint. Client
// credentials are added to the form; the caller holds the lock.
func (tm *TokenManager) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	form.Set("client_id", tm.clientID)
	form.Set("client_secret", tm.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}

	return &Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Expiry:       time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
