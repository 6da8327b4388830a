package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fitstack/whoop-mcp/internal/instrumentation"
	"github.com/fitstack/whoop-mcp/internal/jsonrpc"
	"github.com/fitstack/whoop-mcp/internal/oauth"
	"github.com/fitstack/whoop-mcp/internal/resources"
	"github.com/fitstack/whoop-mcp/internal/server"
	"github.com/fitstack/whoop-mcp/internal/tools/whoop_tools"
	"github.com/fitstack/whoop-mcp/internal/whoop"
)

const (
	defaultHTTPAddr = ":8080"
	defaultTCPAddr  = ":9000"
)

type serveOptions struct {
	debug             bool
	transport         string
	httpAddr          string
	tcpAddr           string
	baseURL           string
	whoopClientID     string
	whoopClientSecret string
	redirectURI       string
	tokenFile         string
	oauthStorePath    string
	rateLimit         int
	rateLimitBurst    int
	trustProxy        bool
	sessionTimeout    time.Duration
	metricsEnabled    bool
	metricsAddr       string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing WHOOP fitness
data tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - sse: HTTP with Server-Sent Events, behind OAuth 2.1
  - streamable-http: Streamable HTTP transport, behind OAuth 2.1
  - tcp: Line-oriented JSON-RPC over TCP

OAuth Configuration (sse and streamable-http):
  Base URL (required for deployed instances):
    --base-url https://your-domain.com OR MCP_BASE_URL env var
    Auto-detected for localhost (development only)

  WHOOP credentials (required for the OAuth proxy and token refresh):
    --whoop-client-id and --whoop-client-secret flags
    OR WHOOP_CLIENT_ID and WHOOP_CLIENT_SECRET env vars

STDIO and TCP Transports:
  Use the vendor token saved by 'whoop-mcp auth'. Without it, tools
  report an authentication error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "Transport type: stdio, sse, streamable-http, or tcp")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", defaultHTTPAddr, "HTTP server address (for sse and streamable-http transports)")
	cmd.Flags().StringVar(&opts.tcpAddr, "tcp-addr", defaultTCPAddr, "TCP server address (for tcp transport)")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Public base URL for OAuth (HTTP transports only). Required for deployed instances. Can also use MCP_BASE_URL env var. Example: https://mcp.example.com")
	cmd.Flags().StringVar(&opts.whoopClientID, "whoop-client-id", "", "WHOOP OAuth client ID. Can also use WHOOP_CLIENT_ID env var.")
	cmd.Flags().StringVar(&opts.whoopClientSecret, "whoop-client-secret", "", "WHOOP OAuth client secret. Can also use WHOOP_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&opts.redirectURI, "whoop-redirect-uri", "", "Redirect URI registered with the WHOOP application. Can also use WHOOP_REDIRECT_URI env var. Default: {base-url}/oauth/callback")
	cmd.Flags().StringVar(&opts.tokenFile, "token-file", "", "Path to the vendor token file (default: ~/.whoop-mcp/token.json). Can also use WHOOP_TOKEN_FILE env var.")
	cmd.Flags().StringVar(&opts.oauthStorePath, "oauth-store", "", "Path to the OAuth state file (default: ~/.whoop-mcp/oauth_store.json). Can also use OAUTH_STORE_PATH env var.")
	cmd.Flags().IntVar(&opts.rateLimit, "rate-limit", 10, "Requests per second allowed per client IP on OAuth endpoints (0 disables)")
	cmd.Flags().IntVar(&opts.rateLimitBurst, "rate-limit-burst", 0, "Burst size for the per-IP rate limiter (default: 2x rate)")
	cmd.Flags().BoolVar(&opts.trustProxy, "trust-proxy", false, "Trust X-Forwarded-For and X-Real-IP headers for rate limiting. Only enable behind a trusted proxy.")
	cmd.Flags().DurationVar(&opts.sessionTimeout, "session-timeout", 0, "Idle MCP session retention (default: 24h)")
	cmd.Flags().BoolVar(&opts.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(opts serveOptions) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(opts.debug)

	// Environment fallbacks for flags not set explicitly.
	if opts.whoopClientID == "" {
		opts.whoopClientID = os.Getenv("WHOOP_CLIENT_ID")
	}
	if opts.whoopClientSecret == "" {
		opts.whoopClientSecret = os.Getenv("WHOOP_CLIENT_SECRET")
	}
	if opts.redirectURI == "" {
		opts.redirectURI = os.Getenv("WHOOP_REDIRECT_URI")
	}
	if opts.tokenFile == "" {
		opts.tokenFile = os.Getenv("WHOOP_TOKEN_FILE")
	}
	if opts.oauthStorePath == "" {
		opts.oauthStorePath = os.Getenv("OAUTH_STORE_PATH")
	}
	if opts.metricsEnabled && os.Getenv("METRICS_ENABLED") == "false" {
		opts.metricsEnabled = false
	}
	if opts.metricsAddr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			opts.metricsAddr = addr
		}
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	// Metrics get a dedicated listener so scrapes never hit the public
	// MCP port. Stdio mode has no listeners at all.
	var metricsServer *server.MetricsServer
	if opts.transport != server.TransportStdio && opts.metricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metricsAddr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	tokenManager, err := newTokenManager(opts, logger)
	if err != nil {
		return err
	}

	whoopClient, err := newWhoopClient(opts.transport, tokenManager, logger)
	if err != nil {
		return err
	}

	serverContext := server.NewServerContext(shutdownCtx, whoopClient, tokenManager)
	defer func() {
		if err := serverContext.Shutdown(); err != nil && opts.transport != server.TransportStdio {
			logger.Error("server context shutdown failed", "error", err)
		}
	}()

	mcpSrv := mcpserver.NewMCPServer("whoop-mcp", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)

	if err := whoop_tools.RegisterWhoopTools(mcpSrv, serverContext, provider.Metrics()); err != nil {
		return fmt.Errorf("failed to register WHOOP tools: %w", err)
	}
	if err := resources.RegisterUserResources(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register user resources: %w", err)
	}

	switch opts.transport {
	case server.TransportStdio:
		return runStdioServer(mcpSrv)
	case server.TransportSSE, server.TransportStreamableHTTP:
		return runOAuthHTTPServer(shutdownCtx, mcpSrv, serverContext, provider, opts, logger)
	case server.TransportTCP:
		return runTCPServer(shutdownCtx, serverContext, provider, opts, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse, streamable-http, tcp)", opts.transport)
	}
}

// newLogger builds the root logger. Output always goes to stderr so
// the stdio transport keeps stdout free for the MCP protocol.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newTokenManager builds the vendor token manager when WHOOP
// credentials are configured. Without credentials it returns nil and
// the OAuth proxy flow is the only authentication path.
func newTokenManager(opts serveOptions, logger *slog.Logger) (*whoop.TokenManager, error) {
	if opts.whoopClientID == "" || opts.whoopClientSecret == "" {
		logger.Warn("WHOOP credentials not configured, vendor token refresh disabled")
		return nil, nil
	}

	path := opts.tokenFile
	if path == "" {
		var err error
		path, err = whoop.DefaultTokenPath()
		if err != nil {
			return nil, fmt.Errorf("resolving token path: %w", err)
		}
	}

	return whoop.NewTokenManager(whoop.TokenManagerConfig{
		Path:         path,
		ClientID:     opts.whoopClientID,
		ClientSecret: opts.whoopClientSecret,
		Logger:       logger,
	})
}

// newWhoopClient builds the shared WHOOP API client. HTTP transports
// resolve the token per request from the OAuth context, falling back
// to the vendor token; stdio and tcp use the vendor token directly.
func newWhoopClient(transport string, tm *whoop.TokenManager, logger *slog.Logger) (*whoop.Client, error) {
	switch transport {
	case server.TransportSSE, server.TransportStreamableHTTP:
		source := &oauth.UpstreamTokenSource{}
		if tm != nil {
			source.Fallback = tm
		}
		return whoop.NewClient(whoop.ClientConfig{
			TokenSource: source,
			Logger:      logger,
		})
	default:
		if tm == nil {
			// Tools will report the missing authentication.
			return nil, nil
		}
		return whoop.NewClient(whoop.ClientConfig{
			TokenSource: tm,
			Logger:      logger,
		})
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	if err := <-serverDone; err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runOAuthHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, provider *instrumentation.Provider, opts serveOptions, logger *slog.Logger) error {
	baseURL := resolveBaseURL(opts.baseURL, opts.httpAddr)
	logger.Info("serving MCP over HTTP",
		"transport", opts.transport,
		"addr", opts.httpAddr,
		"base_url", baseURL)

	storePath := opts.oauthStorePath
	if storePath == "" {
		var err error
		storePath, err = defaultOAuthStorePath()
		if err != nil {
			return err
		}
	}

	httpSrv, err := server.NewOAuthHTTPServer(server.OAuthHTTPServerConfig{
		MCPServer:  mcpSrv,
		ServerType: opts.transport,
		OAuth: &oauth.Config{
			Resource:        baseURL,
			SupportedScopes: strings.Fields(whoop.Scopes),
			Upstream: oauth.UpstreamConfig{
				ClientID:     opts.whoopClientID,
				ClientSecret: opts.whoopClientSecret,
				RedirectURL:  opts.redirectURI,
			},
			StorePath: storePath,
			RateLimit: oauth.RateLimitConfig{
				Rate:       opts.rateLimit,
				Burst:      opts.rateLimitBurst,
				TrustProxy: opts.trustProxy,
			},
		},
		Version:        version,
		Metrics:        provider.Metrics(),
		SessionTimeout: opts.sessionTimeout,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	health := server.NewHealthChecker(sc)
	httpSrv.SetHealthChecker(health)
	health.SetReady(true)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- httpSrv.Start(opts.httpAddr)
	}()

	select {
	case err := <-serverDone:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
		<-serverDone
		return nil
	}
}

func runTCPServer(ctx context.Context, sc *server.ServerContext, provider *instrumentation.Provider, opts serveOptions, logger *slog.Logger) error {
	rpcSrv := jsonrpc.NewServer("whoop-mcp", version, logger)
	whoop_tools.RegisterRPCMethods(rpcSrv, sc, provider.Metrics())

	logger.Info("serving JSON-RPC over TCP", "addr", opts.tcpAddr)
	if err := rpcSrv.ListenAndServe(ctx, opts.tcpAddr); err != nil {
		return fmt.Errorf("TCP server failed: %w", err)
	}
	return nil
}

// resolveBaseURL determines the externally visible base URL, falling
// back to localhost auto-detection for development.
func resolveBaseURL(baseURL, addr string) string {
	if baseURL == "" {
		baseURL = os.Getenv("MCP_BASE_URL")
	}
	if baseURL != "" {
		return strings.TrimRight(baseURL, "/")
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func defaultOAuthStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".whoop-mcp", "oauth_store.json"), nil
}
