// Package checkout drives the return leg of the hosted checkout: parsing
// the redirect, confirming the session with the API, and refreshing the
// account so new entitlements show up.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	creetonbizsdk "creetonbiz/sdk/go"
)

// State of a confirmation flow.
type State string

const (
	StateIdle          State = "idle"
	StateConfirming    State = "confirming"
	StateConfirmed     State = "confirmed"
	StateConfirmFailed State = "confirm_failed"
)

// Level classifies a user-facing notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
)

// API is the slice of the SDK client the flow needs.
type API interface {
	VerifyCheckoutSession(ctx context.Context, sessionID string) (creetonbizsdk.VerifyResult, error)
}

// Refresher re-resolves the account after a confirmation.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Flow confirms checkout sessions exactly once each. Concurrent or repeated
// returns for the same session id trigger a single verify call.
type Flow struct {
	API      API
	Session  Refresher
	Notify   func(level Level, message string)
	Navigate func(path string)

	// NavigateDelay is how long the success notice stays up before moving
	// to the dashboard. Zero means the default 1200ms.
	NavigateDelay time.Duration

	mu      sync.Mutex
	state   State
	handled map[string]bool
}

func New(api API, session Refresher) *Flow {
	return &Flow{
		API:     api,
		Session: session,
		state:   StateIdle,
		handled: map[string]bool{},
	}
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == "" {
		return StateIdle
	}
	return f.state
}

func (f *Flow) notify(level Level, message string) {
	if f.Notify != nil {
		f.Notify(level, message)
	}
}

// HandleReturn processes the query string of a checkout redirect.
// success=1&session_id=... confirms the session; canceled=1 just warns.
func (f *Flow) HandleReturn(ctx context.Context, query url.Values) error {
	if query.Get("canceled") == "1" {
		f.notify(LevelWarning, "Paiement annulé. Vous pouvez réessayer quand vous voulez.")
		return nil
	}
	if query.Get("success") != "1" {
		return nil
	}
	sessionID := query.Get("session_id")
	if sessionID == "" {
		f.notify(LevelWarning, "Retour de paiement invalide: session manquante.")
		return errors.New("success return without session_id")
	}
	return f.Confirm(ctx, sessionID)
}

// Confirm verifies a session and refreshes the account. Each session id is
// confirmed at most once per flow; later calls are no-ops.
//
// A verify rejection from the API is advisory: the webhook may already have
// credited the account, so the flow still refreshes and reports success.
// Only a transport failure or a failed refresh marks the flow failed, and
// that resets the guard so the user can retry.
func (f *Flow) Confirm(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	if f.handled[sessionID] {
		f.mu.Unlock()
		return nil
	}
	f.handled[sessionID] = true
	f.state = StateConfirming
	f.mu.Unlock()

	_, err := f.API.VerifyCheckoutSession(ctx, sessionID)
	if err != nil {
		var apiErr *creetonbizsdk.APIError
		if !errors.As(err, &apiErr) {
			return f.fail(sessionID, fmt.Errorf("verify session %s: %w", sessionID, err))
		}
		f.notify(LevelWarning, "La vérification du paiement a répondu une erreur; vos accès seront mis à jour sous peu.")
	}

	if err := f.Session.Refresh(ctx); err != nil {
		return f.fail(sessionID, fmt.Errorf("refresh after checkout: %w", err))
	}

	f.mu.Lock()
	f.state = StateConfirmed
	f.mu.Unlock()
	f.notify(LevelSuccess, "Paiement confirmé. Bienvenue dans votre espace premium!")
	if f.Navigate != nil {
		delay := f.NavigateDelay
		if delay == 0 {
			delay = 1200 * time.Millisecond
		}
		time.AfterFunc(delay, func() { f.Navigate("/dashboard") })
	}
	return nil
}

func (f *Flow) fail(sessionID string, err error) error {
	f.mu.Lock()
	f.state = StateConfirmFailed
	delete(f.handled, sessionID)
	f.mu.Unlock()
	f.notify(LevelWarning, "Impossible de confirmer le paiement pour le moment. Réessayez dans un instant.")
	return err
}
