package whoop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fitstack/whoop-mcp/internal/logging"
)

// WHOOP API endpoints.
const (
	BaseURL  = "https://api.prod.whoop.com/developer"
	AuthURL  = "https://api.prod.whoop.com/oauth/oauth2/auth"
	TokenURL = "https://api.prod.whoop.com/oauth/oauth2/token"
)

// Scopes is the full set of scopes the server requests from WHOOP.
const Scopes = "read:profile read:body_measurement read:cycles read:recovery read:sleep read:workout offline"

const defaultTimeout = 30 * time.Second

// TokenSource supplies a valid WHOOP access token for API requests.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticTokenSource returns the same token on every call.
type StaticTokenSource string

func (s StaticTokenSource) AccessToken(ctx context.Context) (string, error) {
	return string(s), nil
}

// Client talks to the WHOOP developer API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	logger     *slog.Logger
}

// ClientConfig configures a Client. TokenSource is required; the other
// fields have working defaults.
type ClientConfig struct {
	TokenSource TokenSource
	BaseURL     string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// NewClient creates a WHOOP API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		httpClient: cfg.HTTPClient,
		baseURL:    cfg.BaseURL,
		tokens:     cfg.TokenSource,
		logger:     cfg.Logger,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("obtaining access token: %w", err)
	}
	if token == "" {
		return ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("whoop api error",
			logging.Operation("whoop_get"),
			slog.String("path", path),
			slog.Int("status_code", resp.StatusCode))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
