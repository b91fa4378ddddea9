package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"creetonbiz/internal/domain"
	"creetonbiz/internal/events"
	"creetonbiz/internal/repo"
)

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	Title     string
	Sector    string
	Objective string
	Skills    []string
	IdeaID    string
}

// CreateProject creates a project, optionally linked to the idea it was
// converted from. An idea converts at most once.
func (e *Engine) CreateProject(ctx context.Context, userID string, opts ProjectCreateOptions) (domain.Project, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Project{}, errors.New("title is required")
	}
	var ideaID *string
	if opts.IdeaID != "" {
		if _, err := e.Repo.GetIdea(ctx, userID, opts.IdeaID); err != nil {
			return domain.Project{}, err
		}
		if existing, err := e.Repo.GetProjectByIdea(ctx, userID, opts.IdeaID); err == nil {
			return domain.Project{}, AlreadyConvertedError{IdeaID: opts.IdeaID, ProjectID: existing.ID}
		} else if !errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, err
		}
		id := opts.IdeaID
		ideaID = &id
	}

	p := domain.Project{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     strings.TrimSpace(opts.Title),
		Sector:    opts.Sector,
		Objective: opts.Objective,
		Skills:    opts.Skills,
		IdeaID:    ideaID,
		CreatedAt: e.nowRFC3339(),
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.CreateProject(ctx, tx, p); err != nil {
		// The partial unique index on idea_id catches concurrent converts.
		if ideaID != nil && strings.Contains(err.Error(), "UNIQUE") {
			return domain.Project{}, AlreadyConvertedError{IdeaID: opts.IdeaID}
		}
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	payload := events.EventPayload{"title": p.Title}
	if ideaID != nil {
		payload["idea_id"] = *ideaID
	}
	if err := e.Events.Append(ctx, tx, "project.create", userID, "project", p.ID, payload); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e *Engine) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx, userID)
}

func (e *Engine) GetProject(ctx context.Context, userID, id string) (domain.Project, error) {
	return e.Repo.GetProject(ctx, userID, id)
}

func (e *Engine) RenameProject(ctx context.Context, userID, id, title string) (domain.Project, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Project{}, errors.New("title is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.RenameProject(ctx, tx, userID, id, strings.TrimSpace(title)); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.rename", userID, "project", id, events.EventPayload{"title": title}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, userID, id)
}

func (e *Engine) DeleteProject(ctx context.Context, userID, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteProject(ctx, tx, userID, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "project.delete", userID, "project", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}
