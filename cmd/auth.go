package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitstack/whoop-mcp/internal/whoop"
)

const defaultAuthRedirectURI = "http://localhost:8719/callback"

func newAuthCmd() *cobra.Command {
	var (
		clientID     string
		clientSecret string
		redirectURI  string
		tokenFile    string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with WHOOP and save the token",
		Long: `Run the WHOOP OAuth authorization flow locally and save the resulting
token for the stdio and tcp transports.

Opens a local callback listener, prints the WHOOP consent URL, and
exchanges the returned authorization code for a token. The redirect
URI must be registered with your WHOOP application.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID == "" {
				clientID = os.Getenv("WHOOP_CLIENT_ID")
			}
			if clientSecret == "" {
				clientSecret = os.Getenv("WHOOP_CLIENT_SECRET")
			}
			if clientID == "" || clientSecret == "" {
				return fmt.Errorf("WHOOP credentials are required: set --whoop-client-id and --whoop-client-secret or the WHOOP_CLIENT_ID and WHOOP_CLIENT_SECRET env vars")
			}
			if redirectURI == "" {
				redirectURI = os.Getenv("WHOOP_REDIRECT_URI")
			}
			if redirectURI == "" {
				redirectURI = defaultAuthRedirectURI
			}
			return runAuth(clientID, clientSecret, redirectURI, tokenFile, timeout)
		},
	}

	cmd.Flags().StringVar(&clientID, "whoop-client-id", "", "WHOOP OAuth client ID. Can also use WHOOP_CLIENT_ID env var.")
	cmd.Flags().StringVar(&clientSecret, "whoop-client-secret", "", "WHOOP OAuth client secret. Can also use WHOOP_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "Redirect URI registered with the WHOOP application. Can also use WHOOP_REDIRECT_URI env var. Default: "+defaultAuthRedirectURI)
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Path to save the token (default: ~/.whoop-mcp/token.json)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the browser authorization")

	return cmd
}

func runAuth(clientID, clientSecret, redirectURI, tokenFile string, timeout time.Duration) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	callback, err := url.Parse(redirectURI)
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}
	if callback.Scheme != "http" || callback.Hostname() == "" {
		return fmt.Errorf("redirect URI must be a local http URL, got %q", redirectURI)
	}

	path := tokenFile
	if path == "" {
		path, err = whoop.DefaultTokenPath()
		if err != nil {
			return err
		}
	}

	tm, err := whoop.NewTokenManager(whoop.TokenManagerConfig{
		Path:         path,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		return err
	}

	state, err := randomState()
	if err != nil {
		return err
	}

	authURL := buildAuthURL(clientID, redirectURI, state)

	code, err := waitForCallback(ctx, callback, state, authURL)
	if err != nil {
		return err
	}

	token, err := tm.Exchange(ctx, code, redirectURI)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	fmt.Printf("Authentication successful. Token saved to %s\n", tm.Path())
	if !token.Expiry.IsZero() {
		fmt.Printf("Access token expires at %s\n", token.Expiry.Format(time.RFC3339))
	}
	return nil
}

func buildAuthURL(clientID, redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", whoop.Scopes)
	q.Set("state", state)
	return whoop.AuthURL + "?" + q.Encode()
}

// waitForCallback serves the callback endpoint until WHOOP redirects
// back with an authorization code, the context expires, or the user
// interrupts.
func waitForCallback(ctx context.Context, callback *url.URL, state, authURL string) (string, error) {
	callbackPath := callback.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	type callbackResult struct {
		code string
		err  error
	}
	resultCh := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
			resultCh <- callbackResult{err: fmt.Errorf("authorization denied: %s", errParam)}
			return
		}
		if r.URL.Query().Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			resultCh <- callbackResult{err: fmt.Errorf("state parameter mismatch")}
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code", http.StatusBadRequest)
			resultCh <- callbackResult{err: fmt.Errorf("callback is missing the authorization code")}
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><h1>Authentication complete</h1><p>You can close this window and return to the terminal.</p></body></html>")
		resultCh <- callbackResult{code: code}
	})

	srv := &http.Server{
		Addr:              callback.Host,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Println("Visit this URL in your browser to authorize access to your WHOOP data:")
	fmt.Println()
	fmt.Printf("  %s\n", authURL)
	fmt.Println()
	fmt.Printf("Waiting for the callback on %s ...\n", callback.String())

	select {
	case result := <-resultCh:
		return result.code, result.err
	case err := <-serverErr:
		return "", fmt.Errorf("callback server failed: %w", err)
	case <-ctx.Done():
		return "", fmt.Errorf("authorization timed out or was interrupted")
	}
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
