package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"creetonbiz/internal/domain"
	"creetonbiz/internal/events"
)

func validateProfile(p domain.Profile) error {
	if strings.TrimSpace(p.Sector) == "" {
		return errors.New("sector is required")
	}
	if strings.TrimSpace(p.Objective) == "" {
		return errors.New("objective is required")
	}
	return nil
}

// GenerateIdea produces a business idea for the profile. Free accounts are
// capped at the configured idea limit.
func (e *Engine) GenerateIdea(ctx context.Context, userID string, profile domain.Profile) (domain.Idea, error) {
	if err := validateProfile(profile); err != nil {
		return domain.Idea{}, err
	}
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return domain.Idea{}, err
	}
	if u.Plan == domain.PlanFree {
		n, err := e.Repo.CountIdeas(ctx, userID)
		if err != nil {
			return domain.Idea{}, err
		}
		if n >= e.Config.Limits.FreeIdeas {
			return domain.Idea{}, IdeaLimitError{Limit: e.Config.Limits.FreeIdeas}
		}
	}

	idea := buildIdea(profile)
	idea.ID = uuid.NewString()
	idea.UserID = userID
	idea.CreatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Idea{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.CreateIdea(ctx, tx, idea); err != nil {
		return domain.Idea{}, fmt.Errorf("insert idea: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "idea.generate", userID, "idea", idea.ID, events.EventPayload{"sector": profile.Sector}); err != nil {
		return domain.Idea{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Idea{}, err
	}
	return idea, nil
}

func (e *Engine) ListIdeas(ctx context.Context, userID string) ([]domain.Idea, error) {
	return e.Repo.ListIdeas(ctx, userID)
}

func (e *Engine) GetIdea(ctx context.Context, userID, id string) (domain.Idea, error) {
	return e.Repo.GetIdea(ctx, userID, id)
}

func (e *Engine) DeleteIdea(ctx context.Context, userID, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteIdea(ctx, tx, userID, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "idea.delete", userID, "idea", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}
