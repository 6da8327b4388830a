package logging

import (
	"strings"
	"testing"
)

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{
			name:  "empty token",
			token: "",
			want:  "<empty>",
		},
		{
			name:  "short token",
			token: "abc",
			want:  "[token:3 chars]",
		},
		{
			name:  "bearer token",
			token: "wat_1234567890abcdef",
			want:  "[token:20 chars]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeToken(tt.token)
			if got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
			if tt.token != "" && strings.Contains(got, tt.token) {
				t.Errorf("SanitizeToken(%q) leaked token content: %q", tt.token, got)
			}
		})
	}
}

func TestHashSubject(t *testing.T) {
	h := HashSubject("12345")
	if !strings.HasPrefix(h, "user:") {
		t.Errorf("HashSubject should have user: prefix, got %q", h)
	}
	if strings.Contains(h, "12345") {
		t.Errorf("HashSubject leaked subject: %q", h)
	}
	if h != HashSubject("12345") {
		t.Error("HashSubject should be deterministic")
	}
	if h == HashSubject("67890") {
		t.Error("different subjects should hash differently")
	}
	if HashSubject("") != "" {
		t.Error("empty subject should hash to empty string")
	}
}

func TestErrNil(t *testing.T) {
	attr := Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) should return empty group, got key %q", attr.Key)
	}
}
