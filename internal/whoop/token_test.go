package whoop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func newTestTokenManager(t *testing.T, tokenURL string) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(TokenManagerConfig{
		Path:         filepath.Join(t.TempDir(), "token.json"),
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     tokenURL,
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return tm
}

func TestTokenManagerSaveLoad(t *testing.T) {
	tm := newTestTokenManager(t, "")

	want := &Token{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-def",
		TokenType:    "bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := tm.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := tm.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil token")
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Errorf("loaded token mismatch: got %+v, want %+v", got, want)
	}
	if !got.Expiry.Equal(want.Expiry) {
		t.Errorf("expiry = %v, want %v", got.Expiry, want.Expiry)
	}
}

func TestTokenManagerFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permissions not enforced on windows")
	}

	tm := newTestTokenManager(t, "")
	if err := tm.Save(&Token{AccessToken: "secret"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(tm.Path())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file permissions = %o, want 600", perm)
	}
}

func TestTokenManagerLoadMissingFile(t *testing.T) {
	tm := newTestTokenManager(t, "")

	token, err := tm.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if token != nil {
		t.Errorf("expected nil token for missing file, got %+v", token)
	}
}

func TestTokenManagerDelete(t *testing.T) {
	tm := newTestTokenManager(t, "")
	if err := tm.Save(&Token{AccessToken: "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := tm.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(tm.Path()); !os.IsNotExist(err) {
		t.Error("token file should be gone after Delete")
	}

	// Deleting again is not an error.
	if err := tm.Delete(); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestTokenIsExpired(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"zero expiry never expires", time.Time{}, false},
		{"far future", time.Now().Add(time.Hour), false},
		{"within buffer", time.Now().Add(time.Minute), true},
		{"already past", time.Now().Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &Token{Expiry: tt.expiry}
			if got := token.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccessTokenRefreshesExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.Form.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q, want old-refresh", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	tm := newTestTokenManager(t, srv.URL)
	expired := &Token{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}
	if err := tm.Save(expired); err != nil {
		t.Fatalf("Save: %v", err)
	}

	access, err := tm.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if access != "new-access" {
		t.Errorf("access token = %q, want new-access", access)
	}

	// The refreshed pair must be persisted.
	stored, err := tm.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stored.RefreshToken != "new-refresh" {
		t.Errorf("stored refresh token = %q, want new-refresh", stored.RefreshToken)
	}
}

func TestAccessTokenWithoutFile(t *testing.T) {
	tm := newTestTokenManager(t, "")
	if _, err := tm.AccessToken(context.Background()); err != ErrNotAuthenticated {
		t.Errorf("got %v, want ErrNotAuthenticated", err)
	}
}

func TestExchangeSavesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want authorization_code", got)
		}
		if got := r.Form.Get("code"); got != "auth-code-123" {
			t.Errorf("code = %q, want auth-code-123", got)
		}
		if got := r.Form.Get("redirect_uri"); got != "http://localhost:8080/callback" {
			t.Errorf("redirect_uri = %q", got)
		}
		if got := r.Form.Get("client_id"); got != "client-id" {
			t.Errorf("client_id = %q, want client-id", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-xyz","refresh_token":"refresh-xyz","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	tm := newTestTokenManager(t, srv.URL)

	token, err := tm.Exchange(context.Background(), "auth-code-123", "http://localhost:8080/callback")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if token.AccessToken != "access-xyz" {
		t.Errorf("access token = %q, want access-xyz", token.AccessToken)
	}

	stored, err := tm.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stored == nil || stored.RefreshToken != "refresh-xyz" {
		t.Errorf("stored token = %+v, want refresh-xyz persisted", stored)
	}
}

func TestExchangeUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tm := newTestTokenManager(t, srv.URL)
	if _, err := tm.Exchange(context.Background(), "bad-code", "http://localhost:8080/callback"); err == nil {
		t.Fatal("expected error for failed exchange")
	}
}
