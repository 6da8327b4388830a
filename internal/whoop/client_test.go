package whoop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		TokenSource: StaticTokenSource("test-token"),
		BaseURL:     srv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientRequiresTokenSource(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error for missing token source")
	}
}

func TestGetCyclesSendsBearerToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"records":[{"id":93845,"user_id":10129,"score_state":"SCORED","score":{"strain":8.2}}]}`))
	}))

	collection, err := client.GetCycles(context.Background(), ListParams{Limit: 5})
	if err != nil {
		t.Fatalf("GetCycles: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer test-token")
	}
	if len(collection.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(collection.Records))
	}
	if collection.Records[0].ID != 93845 {
		t.Errorf("cycle ID = %d, want 93845", collection.Records[0].ID)
	}
	if collection.Records[0].Score == nil || collection.Records[0].Score.Strain != 8.2 {
		t.Errorf("unexpected score: %+v", collection.Records[0].Score)
	}
}

func TestGetCycleByIDRejectsInvalidID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for an invalid ID")
	}))

	if _, err := client.GetCycleByID(context.Background(), 0); err == nil {
		t.Error("expected error for cycle ID 0")
	}
	if _, err := client.GetCycleByID(context.Background(), -5); err == nil {
		t.Error("expected error for negative cycle ID")
	}
}

func TestGetSleepByIDRejectsInvalidUUID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for an invalid UUID")
	}))

	if _, err := client.GetSleepByID(context.Background(), "not-a-uuid"); err == nil {
		t.Error("expected error for invalid sleep UUID")
	}
	if _, err := client.GetWorkoutByID(context.Background(), "12345"); err == nil {
		t.Error("expected error for invalid workout UUID")
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, IsUnauthorized},
		{"not found", http.StatusNotFound, IsNotFound},
		{"rate limited", http.StatusTooManyRequests, IsRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := client.GetProfile(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("error %v not classified as %s", err, tt.name)
			}
		})
	}
}

func TestEmptyTokenReturnsNotAuthenticated(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made without a token")
	}))
	client.tokens = StaticTokenSource("")

	_, err := client.GetProfile(context.Background())
	if err != ErrNotAuthenticated {
		t.Errorf("got %v, want ErrNotAuthenticated", err)
	}
}

func TestCollectionPath(t *testing.T) {
	tests := []struct {
		name   string
		params ListParams
		want   string
	}{
		{
			name:   "no params",
			params: ListParams{},
			want:   "/v2/cycle",
		},
		{
			name:   "limit clamped to max",
			params: ListParams{Limit: 100},
			want:   "/v2/cycle?limit=25",
		},
		{
			name:   "start and end",
			params: ListParams{Start: "2025-01-01T00:00:00Z", End: "2025-01-08T00:00:00Z"},
			want:   "/v2/cycle?end=2025-01-08T00%3A00%3A00Z&start=2025-01-01T00%3A00%3A00Z",
		},
		{
			name:   "next token",
			params: ListParams{Limit: 10, NextToken: "abc"},
			want:   "/v2/cycle?limit=10&nextToken=abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectionPath("/v2/cycle", tt.params)
			if got != tt.want {
				t.Errorf("collectionPath() = %q, want %q", got, tt.want)
			}
		})
	}
}
