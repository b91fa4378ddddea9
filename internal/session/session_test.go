package session

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"

	creetonbizsdk "creetonbiz/sdk/go"
)

// fakeAPI scripts Me responses.
type fakeAPI struct {
	token string
	user  creetonbizsdk.User
	err   error
	calls int
}

func (f *fakeAPI) Me(ctx context.Context) (creetonbizsdk.User, error) {
	f.calls++
	if f.err != nil {
		return creetonbizsdk.User{}, f.err
	}
	return f.user, nil
}

func (f *fakeAPI) SetBearerToken(token string) { f.token = token }

func TestLoginPersistsTokenAndResolvesUser(t *testing.T) {
	workspace := t.TempDir()
	api := &fakeAPI{user: creetonbizsdk.User{ID: "u1", Email: "a@b.c"}}
	s, err := Load(workspace, api)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.LoggedIn() {
		t.Fatal("fresh store should be logged out")
	}

	if err := s.Login(context.Background(), "tok-1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if api.token != "tok-1" {
		t.Fatalf("api token not set: %q", api.token)
	}
	if u := s.User(); u == nil || u.ID != "u1" {
		t.Fatalf("user not resolved: %+v", u)
	}

	// A new store picks the token back up from disk.
	api2 := &fakeAPI{user: creetonbizsdk.User{ID: "u1"}}
	s2, err := Load(workspace, api2)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if s2.Token() != "tok-1" || api2.token != "tok-1" {
		t.Fatalf("token not restored: %q", s2.Token())
	}
}

func TestRefreshKeepsTokenOnUnauthorized(t *testing.T) {
	workspace := t.TempDir()
	api := &fakeAPI{user: creetonbizsdk.User{ID: "u1"}}
	s, err := Load(workspace, api)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Login(context.Background(), "tok-1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// The API starts rejecting the token: user drops, token stays.
	api.err = &creetonbizsdk.APIError{StatusCode: http.StatusUnauthorized, Code: "invalid_credentials"}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh should swallow 401: %v", err)
	}
	if s.User() != nil {
		t.Fatal("user should be cleared on 401")
	}
	if s.Token() != "tok-1" {
		t.Fatal("token should survive a 401")
	}

	// A transport failure leaves everything alone and surfaces.
	api.err = errors.New("connection refused")
	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("transport error should surface")
	}
	if s.Token() != "tok-1" {
		t.Fatal("token should survive a transport error")
	}
}

func TestLogoutRemovesPersistedToken(t *testing.T) {
	workspace := t.TempDir()
	api := &fakeAPI{user: creetonbizsdk.User{ID: "u1"}}
	s, err := Load(workspace, api)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Login(context.Background(), "tok-1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := s.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.LoggedIn() || s.User() != nil {
		t.Fatal("logout should clear state")
	}
	if api.token != "" {
		t.Fatal("logout should clear the client token")
	}
	if _, err := os.Stat(Path(workspace)); !os.IsNotExist(err) {
		t.Fatal("token file should be removed")
	}
}
