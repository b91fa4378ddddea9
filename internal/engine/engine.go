package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"creetonbiz/internal/config"
	"creetonbiz/internal/domain"
	"creetonbiz/internal/events"
	"creetonbiz/internal/payments"
	"creetonbiz/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     *repo.Repo
	Events   events.Writer
	Config   *config.Config
	Payments payments.Provider
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config, provider payments.Provider) *Engine {
	return &Engine{
		DB:       db,
		Repo:     repo.New(db),
		Events:   events.Writer{DB: db},
		Config:   cfg,
		Payments: provider,
		Now:      time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Register creates a user with a bcrypt password hash.
func (e *Engine) Register(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 {
		return domain.User{}, errors.New("password must be at least 8 characters")
	}
	if _, err := e.Repo.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Plan:         domain.PlanFree,
		CreatedAt:    e.nowRFC3339(),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.CreateUser(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "user.register", u.ID, "user", u.ID, nil); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate checks credentials and returns the user.
func (e *Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, ErrBadCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrBadCredentials
	}
	return u, nil
}

func (e *Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	return e.Repo.GetUser(ctx, id)
}

// ChangePassword verifies the current password before replacing it.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrBadCredentials
	}
	if len(next) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return e.Repo.UpdateUserPassword(ctx, userID, string(hash))
}

// DeleteAccount removes the user and all owned rows. An active subscription
// is canceled at the provider first.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.StripeSubscriptionID != "" && e.Payments != nil {
		if err := e.Payments.CancelSubscription(ctx, u.StripeSubscriptionID); err != nil {
			return err
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "user.delete", userID, "user", userID, nil); err != nil {
		return err
	}
	if err := e.Repo.DeleteUser(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}
