package cmd

import (
	"net/url"
	"strings"
	"testing"

	"github.com/fitstack/whoop-mcp/internal/whoop"
)

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		addr    string
		want    string
	}{
		{name: "explicit base URL", baseURL: "https://mcp.example.com", addr: ":8080", want: "https://mcp.example.com"},
		{name: "trailing slash stripped", baseURL: "https://mcp.example.com/", addr: ":8080", want: "https://mcp.example.com"},
		{name: "port-only addr", baseURL: "", addr: ":8080", want: "http://localhost:8080"},
		{name: "host and port addr", baseURL: "", addr: "0.0.0.0:9999", want: "http://0.0.0.0:9999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveBaseURL(tt.baseURL, tt.addr); got != tt.want {
				t.Errorf("resolveBaseURL(%q, %q) = %q, want %q", tt.baseURL, tt.addr, got, tt.want)
			}
		})
	}
}

func TestBuildAuthURL(t *testing.T) {
	raw := buildAuthURL("client-123", "http://localhost:8719/callback", "state-abc")

	if !strings.HasPrefix(raw, whoop.AuthURL+"?") {
		t.Fatalf("auth URL %q does not start with the WHOOP authorize endpoint", raw)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	q := parsed.Query()
	if q.Get("client_id") != "client-123" {
		t.Errorf("client_id = %q, want client-123", q.Get("client_id"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want code", q.Get("response_type"))
	}
	if q.Get("state") != "state-abc" {
		t.Errorf("state = %q, want state-abc", q.Get("state"))
	}
	if q.Get("scope") != whoop.Scopes {
		t.Errorf("scope = %q, want the full scope set", q.Get("scope"))
	}
}

func TestNewWhoopClientWithoutTokenManager(t *testing.T) {
	// stdio without a vendor token has no client; tools report the
	// missing authentication themselves.
	client, err := newWhoopClient("stdio", nil, nil)
	if err != nil {
		t.Fatalf("newWhoopClient: %v", err)
	}
	if client != nil {
		t.Error("expected nil client without a token manager")
	}

	// HTTP transports always get a client: the per-request OAuth
	// context supplies the upstream token.
	client, err = newWhoopClient("sse", nil, nil)
	if err != nil {
		t.Fatalf("newWhoopClient: %v", err)
	}
	if client == nil {
		t.Error("expected a client for the sse transport")
	}
}
