package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fitstack/whoop-mcp/internal/instrumentation"
)

// sessionInfo tracks session metadata for cleanup.
type sessionInfo struct {
	lastAccess time.Time
}

// SessionTracker derives a stable session identity from the bearer token
// of each MCP request and keeps the active_sessions gauge in sync. Idle
// sessions are expired by a background goroutine.
type SessionTracker struct {
	sessions       map[string]*sessionInfo
	mu             sync.Mutex
	cleanupTicker  *time.Ticker
	cleanupDone    chan struct{}
	sessionTimeout time.Duration
	metrics        *instrumentation.Metrics
	logger         *slog.Logger
}

// NewSessionTracker creates a session tracker. A nil metrics recorder
// disables gauge updates but tracking still works.
func NewSessionTracker(timeout time.Duration, metrics *instrumentation.Metrics, logger *slog.Logger) *SessionTracker {
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &SessionTracker{
		sessions:       make(map[string]*sessionInfo),
		cleanupTicker:  time.NewTicker(10 * time.Minute),
		cleanupDone:    make(chan struct{}),
		sessionTimeout: timeout,
		metrics:        metrics,
		logger:         logger,
	}

	go t.cleanupLoop()

	return t
}

// Touch records a request for the session derived from its Authorization
// header. Returns the session ID and whether the session is new. Requests
// without an Authorization header are not tracked.
func (t *SessionTracker) Touch(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	sessionID := sessionIDFromToken(authHeader)

	t.mu.Lock()
	defer t.mu.Unlock()

	if info, ok := t.sessions[sessionID]; ok {
		info.lastAccess = time.Now()
		return sessionID, false
	}

	t.sessions[sessionID] = &sessionInfo{lastAccess: time.Now()}
	if t.metrics != nil {
		t.metrics.IncrementActiveSessions(r.Context())
	}
	return sessionID, true
}

// Count returns the number of active sessions.
func (t *SessionTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Remove drops a session.
func (t *SessionTracker) Remove(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[sessionID]; ok {
		delete(t.sessions, sessionID)
		if t.metrics != nil {
			t.metrics.DecrementActiveSessions(context.Background())
		}
	}
}

// sessionIDFromToken creates a stable session ID from the auth token.
func sessionIDFromToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// cleanupLoop periodically removes idle sessions.
func (t *SessionTracker) cleanupLoop() {
	for {
		select {
		case <-t.cleanupTicker.C:
			t.mu.Lock()
			now := time.Now()
			expired := 0
			for sessionID, info := range t.sessions {
				if now.Sub(info.lastAccess) > t.sessionTimeout {
					delete(t.sessions, sessionID)
					expired++
					if t.metrics != nil {
						t.metrics.DecrementActiveSessions(context.Background())
					}
				}
			}
			t.mu.Unlock()
			if expired > 0 {
				t.logger.Info("cleaned up idle sessions", slog.Int("count", expired))
			}
		case <-t.cleanupDone:
			return
		}
	}
}

// Stop stops the session cleanup goroutine.
func (t *SessionTracker) Stop() {
	t.cleanupTicker.Stop()
	close(t.cleanupDone)
}
