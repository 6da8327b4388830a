package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fitstack/whoop-mcp/internal/oauth"
)

func newTestHTTPServer(t *testing.T, serverType string) *OAuthHTTPServer {
	t.Helper()

	mcpSrv := mcpserver.NewMCPServer("whoop-mcp-test", "0.0.1")

	srv, err := NewOAuthHTTPServer(OAuthHTTPServerConfig{
		MCPServer:  mcpSrv,
		ServerType: serverType,
		Version:    "test",
		OAuth: &oauth.Config{
			Resource:  "http://localhost:8080",
			StorePath: filepath.Join(t.TempDir(), "oauth.json"),
		},
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return srv
}

func TestOAuthHTTPServer_DocumentationPage(t *testing.T) {
	srv := newTestHTTPServer(t, TransportStreamableHTTP)

	handler, err := srv.Handler()
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for docs page, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "WHOOP MCP Server") {
		t.Error("docs page missing title")
	}
}

func TestOAuthHTTPServer_MetadataEndpoints(t *testing.T) {
	srv := newTestHTTPServer(t, TransportStreamableHTTP)

	handler, err := srv.Handler()
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	for _, path := range []string{
		"/.well-known/oauth-authorization-server",
		"/.well-known/oauth-protected-resource",
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
			continue
		}

		var metadata map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&metadata); err != nil {
			t.Errorf("%s: invalid JSON: %v", path, err)
		}
	}
}

func TestOAuthHTTPServer_MCPRequiresBearer(t *testing.T) {
	srv := newTestHTTPServer(t, TransportStreamableHTTP)

	handler, err := srv.Handler()
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rec.Code)
	}
	if wwwAuth := rec.Header().Get("WWW-Authenticate"); !strings.Contains(wwwAuth, "resource_metadata") {
		t.Errorf("expected WWW-Authenticate with resource_metadata, got %q", wwwAuth)
	}
}

func TestOAuthHTTPServer_SSERequiresBearer(t *testing.T) {
	srv := newTestHTTPServer(t, TransportSSE)

	handler, err := srv.Handler()
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	for _, path := range []string{"/sse", "/messages/"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without bearer token, got %d", path, rec.Code)
		}
	}
}

func TestOAuthHTTPServer_HealthEndpoints(t *testing.T) {
	srv := newTestHTTPServer(t, TransportStreamableHTTP)
	srv.SetHealthChecker(NewHealthChecker(nil))

	handler, err := srv.Handler()
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestNewOAuthHTTPServer_RejectsUnknownTransport(t *testing.T) {
	mcpSrv := mcpserver.NewMCPServer("whoop-mcp-test", "0.0.1")

	_, err := NewOAuthHTTPServer(OAuthHTTPServerConfig{
		MCPServer:  mcpSrv,
		ServerType: "websocket",
		OAuth: &oauth.Config{
			Resource:  "http://localhost:8080",
			StorePath: filepath.Join(t.TempDir(), "oauth.json"),
		},
	})
	if err == nil {
		t.Fatal("expected error for unknown transport")
	}
}
