package oauth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	storeDirPerm  = 0o700
	storeFilePerm = 0o600
)

// Store holds all OAuth server state: registered clients, in-flight
// authorization states, single-use codes, and issued tokens. Every
// mutation is persisted to disk so state survives restarts. All methods
// are safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	path          string
	clients       map[string]*RegisteredClient
	states        map[string]*AuthorizationState
	codes         map[string]*AuthorizationCode
	accessTokens  map[string]*AccessToken
	refreshTokens map[string]*RefreshToken
	done          chan struct{}
	closeOnce     sync.Once
	logger        *slog.Logger
}

// storeSnapshot is the on-disk representation.
type storeSnapshot struct {
	Clients       map[string]*RegisteredClient   `json:"clients"`
	States        map[string]*AuthorizationState `json:"states"`
	Codes         map[string]*AuthorizationCode  `json:"codes"`
	AccessTokens  map[string]*AccessToken        `json:"access_tokens"`
	RefreshTokens map[string]*RefreshToken       `json:"refresh_tokens"`
}

// NewStore creates a store backed by the file at path. Existing state is
// loaded; a missing file starts empty. A background goroutine prunes
// expired entries every cleanupInterval until Close is called.
func NewStore(path string, cleanupInterval time.Duration, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:          path,
		clients:       make(map[string]*RegisteredClient),
		states:        make(map[string]*AuthorizationState),
		codes:         make(map[string]*AuthorizationCode),
		accessTokens:  make(map[string]*AccessToken),
		refreshTokens: make(map[string]*RefreshToken),
		done:          make(chan struct{}),
		logger:        logger,
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	go s.cleanupLoop(cleanupInterval)

	return s, nil
}

// Close stops the background cleanup goroutine.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading store file: %w", err)
	}

	var snap storeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parsing store file: %w", err)
	}

	if snap.Clients != nil {
		s.clients = snap.Clients
	}
	if snap.States != nil {
		s.states = snap.States
	}
	if snap.Codes != nil {
		s.codes = snap.Codes
	}
	if snap.AccessTokens != nil {
		s.accessTokens = snap.AccessTokens
	}
	if snap.RefreshTokens != nil {
		s.refreshTokens = snap.RefreshTokens
	}

	s.logger.Info("loaded oauth store",
		slog.Int("clients", len(s.clients)),
		slog.Int("access_tokens", len(s.accessTokens)),
		slog.Int("refresh_tokens", len(s.refreshTokens)))
	return nil
}

// persistLocked writes the current state to disk. Callers must hold the
// write lock. The write goes through a temp file and rename so a crash
// never leaves a partial file.
func (s *Store) persistLocked() error {
	snap := storeSnapshot{
		Clients:       s.clients,
		States:        s.states,
		Codes:         s.codes,
		AccessTokens:  s.accessTokens,
		RefreshTokens: s.refreshTokens,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, storeDirPerm); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "oauth-*.json")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(storeFilePerm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting store file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}

// SaveClient stores a registered client.
func (s *Store) SaveClient(client *RegisteredClient) error {
	if client == nil || client.ClientID == "" {
		return fmt.Errorf("client with ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[client.ClientID] = client
	return s.persistLocked()
}

// GetClient retrieves a registered client by ID.
func (s *Store) GetClient(clientID string) (*RegisteredClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client not found")
	}
	return client, nil
}

// SaveAuthorizationState stores an in-flight authorization state keyed by
// the upstream state parameter.
func (s *Store) SaveAuthorizationState(state *AuthorizationState) error {
	if state == nil || state.UpstreamState == "" {
		return fmt.Errorf("state with upstream state is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.UpstreamState] = state
	return s.persistLocked()
}

// GetAuthorizationState retrieves an authorization state by the upstream
// state parameter.
func (s *Store) GetAuthorizationState(upstreamState string) (*AuthorizationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[upstreamState]
	if !ok {
		return nil, fmt.Errorf("authorization state not found")
	}
	if time.Now().Unix() > state.ExpiresAt {
		return nil, fmt.Errorf("authorization state expired")
	}
	return state, nil
}

// DeleteAuthorizationState removes an authorization state.
func (s *Store) DeleteAuthorizationState(upstreamState string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, upstreamState)
	if err := s.persistLocked(); err != nil {
		s.logger.Warn("failed to persist store after state deletion", "error", err)
	}
}

// SaveAuthorizationCode stores a minted authorization code.
func (s *Store) SaveAuthorizationCode(code *AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return fmt.Errorf("authorization code is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code.Code] = code
	return s.persistLocked()
}

// ConsumeAuthorizationCode retrieves an authorization code and deletes it
// in the same critical section. Codes are single use; a second call with
// the same code fails.
func (s *Store) ConsumeAuthorizationCode(code string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authCode, ok := s.codes[code]
	if !ok {
		return nil, fmt.Errorf("authorization code not found")
	}
	if time.Now().Unix() > authCode.ExpiresAt {
		delete(s.codes, code)
		if err := s.persistLocked(); err != nil {
			s.logger.Warn("failed to persist store after code expiry", "error", err)
		}
		return nil, fmt.Errorf("authorization code expired")
	}

	delete(s.codes, code)
	if err := s.persistLocked(); err != nil {
		return nil, fmt.Errorf("persisting code consumption: %w", err)
	}

	s.logger.Info("authorization code consumed",
		slog.String("client_id", authCode.ClientID))
	return authCode, nil
}

// SaveAccessToken stores an issued access token.
func (s *Store) SaveAccessToken(token *AccessToken) error {
	if token == nil || token.Token == "" {
		return fmt.Errorf("access token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessTokens[token.Token] = token
	return s.persistLocked()
}

// GetAccessToken retrieves a non-expired access token. An expired token
// is deleted in the same critical section so the embedded upstream token
// does not outlive its lifetime.
func (s *Store) GetAccessToken(token string) (*AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.accessTokens[token]
	if !ok {
		return nil, fmt.Errorf("access token not found")
	}
	if time.Now().Unix() > record.ExpiresAt {
		delete(s.accessTokens, token)
		if err := s.persistLocked(); err != nil {
			s.logger.Warn("failed to persist store after token expiry", "error", err)
		}
		return nil, fmt.Errorf("access token expired")
	}
	return record, nil
}

// DeleteAccessToken removes an access token.
func (s *Store) DeleteAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.accessTokens, token)
	return s.persistLocked()
}

// SaveRefreshToken stores an issued refresh token.
func (s *Store) SaveRefreshToken(token *RefreshToken) error {
	if token == nil || token.Token == "" {
		return fmt.Errorf("refresh token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshTokens[token.Token] = token
	return s.persistLocked()
}

// GetRefreshToken retrieves a non-expired refresh token.
func (s *Store) GetRefreshToken(token string) (*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.refreshTokens[token]
	if !ok {
		return nil, fmt.Errorf("refresh token not found")
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, fmt.Errorf("refresh token expired")
	}
	return record, nil
}

// RotateRefreshToken atomically deletes the old refresh token and stores
// its replacement, so a crash between the two steps cannot leave both
// valid.
func (s *Store) RotateRefreshToken(oldToken string, newToken *RefreshToken) error {
	if newToken == nil || newToken.Token == "" {
		return fmt.Errorf("replacement refresh token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.refreshTokens, oldToken)
	s.refreshTokens[newToken.Token] = newToken
	return s.persistLocked()
}

// DeleteRefreshToken removes a refresh token.
func (s *Store) DeleteRefreshToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.refreshTokens, token)
	return s.persistLocked()
}

// Stats returns entry counts per section, for health reporting.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int{
		"clients":        len(s.clients),
		"states":         len(s.states),
		"codes":          len(s.codes),
		"access_tokens":  len(s.accessTokens),
		"refresh_tokens": len(s.refreshTokens),
	}
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

// cleanupExpired removes expired states, codes, and tokens.
func (s *Store) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	removed := 0

	for key, state := range s.states {
		if now > state.ExpiresAt {
			delete(s.states, key)
			removed++
		}
	}
	for key, code := range s.codes {
		if now > code.ExpiresAt {
			delete(s.codes, key)
			removed++
		}
	}
	for key, token := range s.accessTokens {
		if now > token.ExpiresAt {
			delete(s.accessTokens, key)
			removed++
		}
	}
	for key, token := range s.refreshTokens {
		if now > token.ExpiresAt {
			delete(s.refreshTokens, key)
			removed++
		}
	}

	if removed > 0 {
		if err := s.persistLocked(); err != nil {
			s.logger.Warn("failed to persist store after cleanup", "error", err)
		}
		s.logger.Debug("cleaned up expired oauth state", slog.Int("removed", removed))
	}
}
