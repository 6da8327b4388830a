package server

import (
	"context"
	"sync"

	"github.com/fitstack/whoop-mcp/internal/whoop"
)

// ServerContext holds shared state for the MCP server: the WHOOP API
// client, the vendor token manager, and the shutdown signal.
type ServerContext struct {
	ctx          context.Context
	cancel       context.CancelFunc
	whoopClient  *whoop.Client
	tokenManager *whoop.TokenManager
	mu           sync.RWMutex
	shutdown     bool
}

// NewServerContext creates a new server context. The token manager may be
// nil when tokens come from the OAuth middleware instead of a local file.
func NewServerContext(ctx context.Context, client *whoop.Client, tm *whoop.TokenManager) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		whoopClient:  client,
		tokenManager: tm,
	}
}

// Context returns the server's lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// WhoopClient returns the WHOOP API client.
func (sc *ServerContext) WhoopClient() *whoop.Client {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.whoopClient
}

// SetWhoopClient replaces the WHOOP API client.
func (sc *ServerContext) SetWhoopClient(client *whoop.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.whoopClient = client
}

// TokenManager returns the vendor token manager, or nil if none is
// configured.
func (sc *ServerContext) TokenManager() *whoop.TokenManager {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.tokenManager
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
