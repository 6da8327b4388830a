package docs

import (
	"html/template"
	"net/http"
	"time"
)

// Tool describes one MCP tool on the documentation page.
type Tool struct {
	Name        string
	Description string
}

// Category groups related tools on the page.
type Category struct {
	Title string
	Tools []Tool
}

// PageData is the template input for the documentation page.
type PageData struct {
	BaseURL    string
	Version    string
	Generated  string
	Categories []Category
}

// DefaultCategories returns the documented tool set grouped by data kind.
func DefaultCategories() []Category {
	return []Category{
		{
			Title: "Cycles & Strain",
			Tools: []Tool{
				{Name: "whoop_get_latest_cycle", Description: "Get the most recent physiological cycle including strain, calories, and heart rate metrics"},
				{Name: "whoop_get_cycles", Description: "Get cycle data over a number of days"},
				{Name: "whoop_get_cycle_by_id", Description: "Get a single cycle by its numeric ID"},
				{Name: "whoop_get_average_strain", Description: "Calculate average strain over a specified number of days"},
			},
		},
		{
			Title: "Recovery",
			Tools: []Tool{
				{Name: "whoop_get_latest_recovery", Description: "Get the most recent recovery including score, HRV, resting heart rate, SpO2, and skin temperature"},
				{Name: "whoop_get_recoveries", Description: "Get recovery data over a number of days"},
				{Name: "whoop_get_recovery_for_cycle", Description: "Get the recovery associated with a specific cycle"},
			},
		},
		{
			Title: "Sleep",
			Tools: []Tool{
				{Name: "whoop_get_sleeps", Description: "Get sleep data including stages, performance, respiratory rate, and efficiency"},
				{Name: "whoop_get_sleep_by_id", Description: "Get a single sleep activity by its UUID"},
			},
		},
		{
			Title: "Workouts",
			Tools: []Tool{
				{Name: "whoop_get_workouts", Description: "Get workout data including sport, strain, heart rate zones, and distance"},
				{Name: "whoop_get_workout_by_id", Description: "Get a single workout by its UUID"},
			},
		},
		{
			Title: "Profile & Account",
			Tools: []Tool{
				{Name: "whoop_get_profile", Description: "Get the authenticated user's profile"},
				{Name: "whoop_get_body_measurements", Description: "Get height, weight, and max heart rate"},
				{Name: "whoop_check_auth_status", Description: "Check whether the server holds a valid WHOOP token"},
			},
		},
	}
}

var pageTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>WHOOP MCP Server</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; max-width: 860px; margin: 0 auto; padding: 2rem; color: #1a1a2e; }
h1 { border-bottom: 2px solid #e94560; padding-bottom: .5rem; }
h2 { margin-top: 2rem; }
.endpoint { font-family: monospace; background: #f4f4f8; padding: .6rem 1rem; border-radius: 6px; display: inline-block; }
.tool { margin: .4rem 0; padding: .6rem 1rem; background: #f4f4f8; border-radius: 6px; }
.tool strong { font-family: monospace; }
.note { background: #fff6e5; border-left: 4px solid #e9a845; padding: .6rem 1rem; margin: 1rem 0; }
footer { margin-top: 3rem; color: #888; font-size: .85rem; }
</style>
</head>
<body>
<h1>WHOOP MCP Server</h1>

<h2>MCP Connection</h2>
<p>Connection URL:</p>
<div class="endpoint">{{.BaseURL}}/mcp</div>
<p>SSE transport is also available at <code>{{.BaseURL}}/sse</code>.</p>

<h2>Authentication</h2>
<p>This server uses OAuth 2.1 with PKCE. MCP clients discover the
authorization server via <code>{{.BaseURL}}/.well-known/oauth-authorization-server</code>,
register dynamically, and are redirected through WHOOP's consent page.</p>
<div class="note">WHOOP tokens expire and are refreshed automatically while
the local refresh token remains valid.</div>

<h2>Available Tools</h2>
{{range .Categories}}
<h3>{{.Title}}</h3>
{{range .Tools}}<div class="tool"><strong>{{.Name}}</strong><br>{{.Description}}</div>
{{end}}{{end}}

<footer>whoop-mcp {{.Version}} &middot; generated {{.Generated}}</footer>
</body>
</html>
`))

// Handler serves the documentation page at the given base URL.
func Handler(baseURL, version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The root pattern matches everything; anything else is a 404.
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		data := PageData{
			BaseURL:    baseURL,
			Version:    version,
			Generated:  time.Now().Format("2006-01-02"),
			Categories: DefaultCategories(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pageTemplate.Execute(w, data); err != nil {
			http.Error(w, "failed to render documentation", http.StatusInternalServerError)
		}
	})
}
