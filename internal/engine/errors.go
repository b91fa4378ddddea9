package engine

import (
	"errors"
	"fmt"
)

var (
	ErrEmailTaken       = errors.New("email already registered")
	ErrBadCredentials   = errors.New("invalid email or password")
	ErrPremiumRequired  = errors.New("premium plan or credits required")
	ErrSessionUnpaid    = errors.New("checkout session not paid")
	ErrNoBillingAccount = errors.New("no billing account for user")
	ErrNoSubscription   = errors.New("no active subscription")
	ErrNoLanding        = errors.New("no landing page generated yet")
	ErrPublishDisabled  = errors.New("publishing is not configured")
)

// IdeaLimitError indicates the free-plan idea quota is exhausted.
type IdeaLimitError struct {
	Limit int
}

func (e IdeaLimitError) Error() string {
	return fmt.Sprintf("free plan limited to %d ideas", e.Limit)
}

// AlreadyConvertedError indicates an idea already has a project.
type AlreadyConvertedError struct {
	IdeaID    string
	ProjectID string
}

func (e AlreadyConvertedError) Error() string {
	return fmt.Sprintf("idea %s already converted to project %s", e.IdeaID, e.ProjectID)
}

// UnknownPackError indicates an unrecognized pack name in a checkout request.
type UnknownPackError struct {
	Pack string
}

func (e UnknownPackError) Error() string {
	return fmt.Sprintf("unknown pack %q", e.Pack)
}
