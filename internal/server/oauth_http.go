package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fitstack/whoop-mcp/internal/docs"
	"github.com/fitstack/whoop-mcp/internal/instrumentation"
	"github.com/fitstack/whoop-mcp/internal/oauth"
)

// Transport names.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
	TransportTCP            = "tcp"
)

// OAuthHTTPServerConfig configures the OAuth-protected HTTP front-end.
type OAuthHTTPServerConfig struct {
	// MCPServer is the MCP server the transports expose.
	MCPServer *mcpserver.MCPServer

	// ServerType selects the MCP transport: "sse" or "streamable-http".
	ServerType string

	// OAuth configures the authorization server. Its Resource field is
	// the externally reachable base URL.
	OAuth *oauth.Config

	// Version is shown on the documentation page.
	Version string

	// Metrics records HTTP and session metrics; may be nil.
	Metrics *instrumentation.Metrics

	// SessionTimeout is how long an idle MCP session is retained.
	SessionTimeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// OAuthHTTPServer wraps an MCP server with OAuth 2.1 authentication. It
// serves the authorization endpoints, RFC 8414/9728 discovery metadata,
// the bearer-protected MCP transports, health probes, and a public
// documentation page.
type OAuthHTTPServer struct {
	mcpServer    *mcpserver.MCPServer
	oauthHandler *oauth.Handler
	httpServer   *http.Server
	serverType   string
	version      string
	metrics      *instrumentation.Metrics
	sessions     *SessionTracker
	health       *HealthChecker
	logger       *slog.Logger
}

// NewOAuthHTTPServer creates a new OAuth-enabled HTTP server for MCP.
func NewOAuthHTTPServer(cfg OAuthHTTPServerConfig) (*OAuthHTTPServer, error) {
	if cfg.MCPServer == nil {
		return nil, fmt.Errorf("mcp server is required")
	}
	if cfg.ServerType != TransportSSE && cfg.ServerType != TransportStreamableHTTP {
		return nil, fmt.Errorf("unsupported server type: %s", cfg.ServerType)
	}
	if cfg.OAuth == nil {
		return nil, fmt.Errorf("oauth config is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.OAuth.Logger = logger

	oauthHandler, err := oauth.NewHandler(cfg.OAuth)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth handler: %w", err)
	}

	return &OAuthHTTPServer{
		mcpServer:    cfg.MCPServer,
		oauthHandler: oauthHandler,
		serverType:   cfg.ServerType,
		version:      cfg.Version,
		metrics:      cfg.Metrics,
		sessions:     NewSessionTracker(cfg.SessionTimeout, cfg.Metrics, logger),
		logger:       logger,
	}, nil
}

// SetHealthChecker attaches a health checker whose endpoints are
// registered on the mux.
func (s *OAuthHTTPServer) SetHealthChecker(h *HealthChecker) {
	s.health = h
}

// Handler builds the full HTTP handler tree.
func (s *OAuthHTTPServer) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	h := s.oauthHandler

	// Public documentation page
	mux.Handle("/", s.instrument("/", docs.Handler(h.Config().Resource, s.version)))

	// Discovery metadata (RFC 8414 + RFC 9728)
	mux.Handle("/.well-known/oauth-authorization-server",
		h.RateLimitMiddleware(http.HandlerFunc(h.ServeAuthorizationServerMetadata)))
	mux.Handle("/.well-known/oauth-protected-resource",
		h.RateLimitMiddleware(http.HandlerFunc(h.ServeProtectedResourceMetadata)))

	// Authorization server endpoints
	mux.Handle("/oauth/register", s.oauthEndpoint("/oauth/register", h.ServeClientRegistration))
	mux.Handle("/oauth/authorize", s.oauthEndpoint("/oauth/authorize", h.ServeAuthorization))
	mux.Handle("/oauth/callback", s.oauthEndpoint("/oauth/callback", h.ServeCallback))
	mux.Handle("/oauth/token", s.oauthEndpoint("/oauth/token", h.ServeToken))
	mux.Handle("/oauth/revoke", s.oauthEndpoint("/oauth/revoke", h.ServeRevocation))

	// Health probes
	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}

	// MCP transport behind bearer auth
	switch s.serverType {
	case TransportSSE:
		sseServer := mcpserver.NewSSEServer(s.mcpServer,
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/messages/"),
		)
		mux.Handle("/sse", s.protect("/sse", sseServer))
		mux.Handle("/messages/", s.protect("/messages/", sseServer))

	case TransportStreamableHTTP:
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath("/mcp"),
		)
		mux.Handle("/mcp", s.protect("/mcp", httpServer))

	default:
		return nil, fmt.Errorf("unsupported server type: %s", s.serverType)
	}

	return mux, nil
}

// protect wraps an MCP transport handler with rate limiting, bearer
// token validation, and session tracking.
func (s *OAuthHTTPServer) protect(path string, next http.Handler) http.Handler {
	tracked := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionID, isNew := s.sessions.Touch(r); isNew {
			s.logger.Debug("new mcp session",
				slog.String("session", sessionID[:8]),
				slog.String("path", path))
		}
		next.ServeHTTP(w, r)
	})

	return s.instrument(path, s.oauthHandler.RateLimitMiddleware(s.oauthHandler.RequireToken(tracked)))
}

// oauthEndpoint wraps an authorization endpoint with rate limiting and
// HTTP metrics.
func (s *OAuthHTTPServer) oauthEndpoint(path string, fn http.HandlerFunc) http.Handler {
	return s.instrument(path, s.oauthHandler.RateLimitMiddleware(fn))
}

// instrument records request counts and latency for a route. The route
// pattern, not the raw URL path, is used as the label to bound
// cardinality.
func (s *OAuthHTTPServer) instrument(route string, next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, route, rec.status, time.Since(start))
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush passes through to the underlying writer so SSE streaming works.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Start starts the OAuth-enabled HTTP server and blocks until it stops.
func (s *OAuthHTTPServer) Start(addr string) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting http server",
		slog.String("addr", addr),
		slog.String("transport", s.serverType))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its background workers.
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	s.sessions.Stop()
	s.oauthHandler.Close()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// OAuthHandler returns the OAuth handler for testing or direct access.
func (s *OAuthHTTPServer) OAuthHandler() *oauth.Handler {
	return s.oauthHandler
}
