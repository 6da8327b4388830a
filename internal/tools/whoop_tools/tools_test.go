package whoop_tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fitstack/whoop-mcp/internal/server"
	"github.com/fitstack/whoop-mcp/internal/whoop"
)

// newTestContext builds a server context backed by a fake WHOOP API.
func newTestContext(t *testing.T, handler http.Handler) *server.ServerContext {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := whoop.NewClient(whoop.ClientConfig{
		TokenSource: whoop.StaticTokenSource("test-token"),
		BaseURL:     srv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return server.NewServerContext(context.Background(), client, nil)
}

func newRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the text payload from a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("tool result content is %T, want mcp.TextContent", result.Content[0])
	}
	return text.Text
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("parsing tool result: %v", err)
	}
	return payload
}

func TestGetLatestCycle(t *testing.T) {
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/cycle" {
			t.Errorf("path = %q, want /v2/cycle", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("limit = %q, want 1", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(`{"records":[{"id":93845,"user_id":10129,"score_state":"SCORED","score":{"strain":14.5}}]}`))
	}))

	result, err := handleGetLatestCycle(context.Background(), newRequest("whoop_get_latest_cycle", nil), sc)
	if err != nil {
		t.Fatalf("handleGetLatestCycle: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	payload := resultJSON(t, result)
	if payload["id"] != float64(93845) {
		t.Errorf("id = %v, want 93845", payload["id"])
	}
	if _, ok := payload["timestamp"]; !ok {
		t.Error("result is missing the timestamp field")
	}
}

func TestGetLatestCycleNoData(t *testing.T) {
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"records":[]}`))
	}))

	result, err := handleGetLatestCycle(context.Background(), newRequest("whoop_get_latest_cycle", nil), sc)
	if err != nil {
		t.Fatalf("handleGetLatestCycle: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for empty collection")
	}
	if got := resultText(t, result); !strings.Contains(got, "No cycle data") {
		t.Errorf("error text = %q, want mention of missing cycle data", got)
	}
}

func TestGetCyclesPassesWindow(t *testing.T) {
	var gotStart, gotEnd string
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")
		w.Write([]byte(`{"records":[]}`))
	}))

	result, err := handleGetCycles(context.Background(), newRequest("whoop_get_cycles", map[string]interface{}{"days": float64(14)}), sc)
	if err != nil {
		t.Fatalf("handleGetCycles: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	start, err := time.Parse(time.RFC3339, gotStart)
	if err != nil {
		t.Fatalf("parsing start %q: %v", gotStart, err)
	}
	end, err := time.Parse(time.RFC3339, gotEnd)
	if err != nil {
		t.Fatalf("parsing end %q: %v", gotEnd, err)
	}
	if window := end.Sub(start); window < 13*24*time.Hour || window > 15*24*time.Hour {
		t.Errorf("window = %v, want about 14 days", window)
	}
}

func TestGetCycleByIDRequiresID(t *testing.T) {
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no API call expected for missing cycle_id")
	}))

	result, err := handleGetCycleByID(context.Background(), newRequest("whoop_get_cycle_by_id", nil), sc)
	if err != nil {
		t.Fatalf("handleGetCycleByID: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing cycle_id")
	}
}

func TestGetAverageStrainPaginates(t *testing.T) {
	var calls int
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.URL.Query().Get("nextToken") {
		case "":
			w.Write([]byte(`{"records":[{"id":1,"score_state":"SCORED","score":{"strain":10}},{"id":2,"score_state":"PENDING_SCORE"}],"next_token":"page2"}`))
		case "page2":
			w.Write([]byte(`{"records":[{"id":3,"score_state":"SCORED","score":{"strain":20}}]}`))
		default:
			t.Errorf("unexpected nextToken %q", r.URL.Query().Get("nextToken"))
		}
	}))

	result, err := handleGetAverageStrain(context.Background(), newRequest("whoop_get_average_strain", nil), sc)
	if err != nil {
		t.Fatalf("handleGetAverageStrain: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if calls != 2 {
		t.Errorf("API calls = %d, want 2", calls)
	}

	payload := resultJSON(t, result)
	if payload["average_strain"] != float64(15) {
		t.Errorf("average_strain = %v, want 15", payload["average_strain"])
	}
	if payload["cycles_counted"] != float64(2) {
		t.Errorf("cycles_counted = %v, want 2", payload["cycles_counted"])
	}
}

func TestGetAverageStrainNoScoredCycles(t *testing.T) {
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"records":[{"id":1,"score_state":"PENDING_SCORE"}]}`))
	}))

	result, err := handleGetAverageStrain(context.Background(), newRequest("whoop_get_average_strain", nil), sc)
	if err != nil {
		t.Fatalf("handleGetAverageStrain: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when no cycles are scored")
	}
}

func TestGetRecoveryForCycle(t *testing.T) {
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/cycle/93845/recovery" {
			t.Errorf("path = %q, want /v2/cycle/93845/recovery", r.URL.Path)
		}
		w.Write([]byte(`{"cycle_id":93845,"score_state":"SCORED","score":{"recovery_score":67}}`))
	}))

	result, err := handleGetRecoveryForCycle(context.Background(), newRequest("whoop_get_recovery_for_cycle", map[string]interface{}{"cycle_id": float64(93845)}), sc)
	if err != nil {
		t.Fatalf("handleGetRecoveryForCycle: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if payload := resultJSON(t, result); payload["cycle_id"] != float64(93845) {
		t.Errorf("cycle_id = %v, want 93845", payload["cycle_id"])
	}
}

func TestGetSleepByID(t *testing.T) {
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/activity/sleep/ecfc6a15-4661-442f-a9a4-f160dd7afae8" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"id":"ecfc6a15-4661-442f-a9a4-f160dd7afae8","nap":false,"score_state":"SCORED"}`))
	}))

	result, err := handleGetSleepByID(context.Background(), newRequest("whoop_get_sleep_by_id", map[string]interface{}{"sleep_id": "ecfc6a15-4661-442f-a9a4-f160dd7afae8"}), sc)
	if err != nil {
		t.Fatalf("handleGetSleepByID: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
}

func TestGetWorkoutByIDRequiresID(t *testing.T) {
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no API call expected for missing workout_id")
	}))

	result, err := handleGetWorkoutByID(context.Background(), newRequest("whoop_get_workout_by_id", nil), sc)
	if err != nil {
		t.Fatalf("handleGetWorkoutByID: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing workout_id")
	}
}

func TestGetBodyMeasurements(t *testing.T) {
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/user/measurement/body" {
			t.Errorf("path = %q, want /v2/user/measurement/body", r.URL.Path)
		}
		w.Write([]byte(`{"height_meter":1.83,"weight_kilogram":80.5,"max_heart_rate":195}`))
	}))

	result, err := handleGetBodyMeasurements(context.Background(), newRequest("whoop_get_body_measurements", nil), sc)
	if err != nil {
		t.Fatalf("handleGetBodyMeasurements: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if payload := resultJSON(t, result); payload["max_heart_rate"] != float64(195) {
		t.Errorf("max_heart_rate = %v, want 195", payload["max_heart_rate"])
	}
}

func TestUpstreamErrorBecomesToolError(t *testing.T) {
	sc := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_token"}`))
	}))

	result, err := handleGetProfile(context.Background(), newRequest("whoop_get_profile", nil), sc)
	if err != nil {
		t.Fatalf("handleGetProfile: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for 401 response")
	}
	if got := resultText(t, result); !strings.Contains(got, "authentication expired") {
		t.Errorf("error text = %q, want authentication hint", got)
	}
}

func TestToolsRequireConfiguredClient(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil, nil)

	result, err := handleGetProfile(context.Background(), newRequest("whoop_get_profile", nil), sc)
	if err != nil {
		t.Fatalf("handleGetProfile: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result without a configured client")
	}
	if got := resultText(t, result); !strings.Contains(got, "whoop-mcp auth") {
		t.Errorf("error text = %q, want authentication instructions", got)
	}
}

func TestCheckAuthStatusUnauthenticated(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil, nil)

	result, err := handleCheckAuthStatus(context.Background(), newRequest("whoop_check_auth_status", nil), sc)
	if err != nil {
		t.Fatalf("handleCheckAuthStatus: %v", err)
	}

	payload := resultJSON(t, result)
	if payload["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", payload["authenticated"])
	}
	if payload["source"] != "none" {
		t.Errorf("source = %v, want none", payload["source"])
	}
}

func TestCheckAuthStatusTokenFile(t *testing.T) {
	tm, err := whoop.NewTokenManager(whoop.TokenManagerConfig{
		Path:         filepath.Join(t.TempDir(), "token.json"),
		ClientID:     "client",
		ClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	if err := tm.Save(&whoop.Token{
		AccessToken: "access-abc",
		TokenType:   "bearer",
		Expiry:      time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	sc := server.NewServerContext(context.Background(), nil, tm)

	result, err := handleCheckAuthStatus(context.Background(), newRequest("whoop_check_auth_status", nil), sc)
	if err != nil {
		t.Fatalf("handleCheckAuthStatus: %v", err)
	}

	payload := resultJSON(t, result)
	if payload["authenticated"] != true {
		t.Errorf("authenticated = %v, want true", payload["authenticated"])
	}
	if payload["source"] != "token_file" {
		t.Errorf("source = %v, want token_file", payload["source"])
	}
	if _, ok := payload["expires_at"]; !ok {
		t.Error("expires_at is missing for a token with an expiry")
	}
}

func TestDaysFromArgs(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		want int
	}{
		{name: "default", args: nil, want: 7},
		{name: "explicit", args: map[string]interface{}{"days": float64(14)}, want: 14},
		{name: "clamped high", args: map[string]interface{}{"days": float64(365)}, want: 30},
		{name: "zero ignored", args: map[string]interface{}{"days": float64(0)}, want: 7},
		{name: "wrong type ignored", args: map[string]interface{}{"days": "ten"}, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := daysFromArgs(tt.args); got != tt.want {
				t.Errorf("daysFromArgs() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRangeParams(t *testing.T) {
	params := rangeParams(7)

	start, err := time.Parse(time.RFC3339, params.Start)
	if err != nil {
		t.Fatalf("parsing Start %q: %v", params.Start, err)
	}
	end, err := time.Parse(time.RFC3339, params.End)
	if err != nil {
		t.Fatalf("parsing End %q: %v", params.End, err)
	}
	if window := end.Sub(start); window < 6*24*time.Hour || window > 8*24*time.Hour {
		t.Errorf("window = %v, want about 7 days", window)
	}
	if params.Limit != whoop.MaxLimit {
		t.Errorf("Limit = %d, want %d", params.Limit, whoop.MaxLimit)
	}
}

func TestRegisterWhoopTools(t *testing.T) {
	s := mcpserver.NewMCPServer("whoop-mcp-test", "0.0.1")
	sc := server.NewServerContext(context.Background(), nil, nil)

	if err := RegisterWhoopTools(s, sc, nil); err != nil {
		t.Fatalf("RegisterWhoopTools: %v", err)
	}
}
