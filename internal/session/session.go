// Package session keeps the client-side auth state: the bearer token, its
// on-disk persistence, and the cached user it resolves to.
package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	creetonbizsdk "creetonbiz/sdk/go"
)

// API is the slice of the SDK client the session needs.
type API interface {
	Me(ctx context.Context) (creetonbizsdk.User, error)
	SetBearerToken(token string)
}

// Store holds the current token and user. A token can outlive its user: when
// the API rejects it the cached user is dropped, but the token stays until an
// explicit logout, matching how the web client behaves.
type Store struct {
	mu   sync.Mutex
	path string
	api  API

	token string
	user  *creetonbizsdk.User
}

// Path returns the token file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".creetonbiz", "session")
}

// Load builds a store from the persisted token, if any. The API client is
// wired with the token but the user is not resolved yet; call Refresh for
// that.
func Load(workspace string, api API) (*Store, error) {
	s := &Store{path: Path(workspace), api: api}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	s.token = strings.TrimSpace(string(data))
	api.SetBearerToken(s.token)
	return s, nil
}

// Login stores a new token, persists it, and resolves the user for it.
func (s *Store) Login(ctx context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.api.SetBearerToken(token)
	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// Refresh re-resolves the user for the current token. A rejected token
// clears the cached user but keeps the token; any other failure leaves the
// state untouched.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return nil
	}
	u, err := s.api.Me(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if creetonbizsdk.IsUnauthorized(err) {
			s.user = nil
			return nil
		}
		return err
	}
	s.user = &u
	return nil
}

// Logout drops the token and user and removes the persisted token.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	s.api.SetBearerToken("")
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Token returns the current token, empty when logged out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User returns the cached user, nil when unresolved.
func (s *Store) User() *creetonbizsdk.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// LoggedIn reports whether a token is present.
func (s *Store) LoggedIn() bool {
	return s.Token() != ""
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(s.token+"\n"), 0o600)
}
