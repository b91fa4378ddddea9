package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"creetonbiz/internal/domain"
	"creetonbiz/internal/events"
	"creetonbiz/internal/repo"
)

func premiumAllowed(u domain.User) bool {
	return u.Plan == domain.PlanInfinity || u.Plan == domain.PlanStartnow || u.StartnowCredits > 0
}

// GeneratePremium generates one deliverable kind for a project. Re-running a
// kind appends a new row; readers take the newest one.
//
// The first deliverable of a project consumes one StartNow credit unless the
// user is on the Infinity plan.
func (e *Engine) GeneratePremium(ctx context.Context, userID string, kind domain.DeliverableKind, projectID string, profile domain.Profile) (domain.Deliverable, error) {
	if _, err := domain.ParseDeliverableKind(string(kind)); err != nil {
		return domain.Deliverable{}, err
	}
	if err := validateProfile(profile); err != nil {
		return domain.Deliverable{}, err
	}
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return domain.Deliverable{}, err
	}
	if !premiumAllowed(u) {
		return domain.Deliverable{}, ErrPremiumRequired
	}
	project, err := e.Repo.GetProject(ctx, userID, projectID)
	if err != nil {
		return domain.Deliverable{}, err
	}

	built := buildDeliverableContent(kind, profile, project)
	d := domain.Deliverable{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProjectID:   project.ID,
		Kind:        kind,
		Title:       built.Title,
		ContentJSON: marshalContent(built.Content),
		CreatedAt:   e.nowRFC3339(),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Deliverable{}, err
	}
	defer tx.Rollback()

	existing, err := e.Repo.CountProjectDeliverables(ctx, tx, project.ID)
	if err != nil {
		return domain.Deliverable{}, err
	}
	if existing == 0 && u.Plan != domain.PlanInfinity {
		if err := e.Repo.ConsumeStartnowCredit(ctx, tx, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.Deliverable{}, ErrPremiumRequired
			}
			return domain.Deliverable{}, err
		}
		if err := e.Events.Append(ctx, tx, "credit.consume", userID, "project", project.ID, nil); err != nil {
			return domain.Deliverable{}, err
		}
	}

	if err := e.Repo.CreateDeliverable(ctx, tx, d); err != nil {
		return domain.Deliverable{}, fmt.Errorf("insert deliverable: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "deliverable.generate", userID, "deliverable", d.ID,
		events.EventPayload{"kind": string(kind), "project_id": project.ID}); err != nil {
		return domain.Deliverable{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Deliverable{}, err
	}
	return d, nil
}

func (e *Engine) ListDeliverables(ctx context.Context, userID, projectID string, kind domain.DeliverableKind) ([]domain.Deliverable, error) {
	return e.Repo.ListDeliverables(ctx, userID, projectID, kind)
}

func (e *Engine) GetDeliverable(ctx context.Context, userID, id string) (domain.Deliverable, error) {
	return e.Repo.GetDeliverable(ctx, userID, id)
}

// ExportDeliverable renders a deliverable for download. With format "auto"
// (or empty) the landing exports as HTML, the action plan as an ICS calendar
// and everything else as JSON; json and md work for any kind.
func (e *Engine) ExportDeliverable(ctx context.Context, userID, id, format string) (filename, contentType string, body []byte, err error) {
	d, err := e.Repo.GetDeliverable(ctx, userID, id)
	if err != nil {
		return "", "", nil, err
	}
	project, err := e.Repo.GetProject(ctx, userID, d.ProjectID)
	if err != nil {
		return "", "", nil, err
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(d.ContentJSON), &content); err != nil {
		return "", "", nil, fmt.Errorf("deliverable %s content: %w", id, err)
	}
	if format == "" || format == "auto" {
		switch d.Kind {
		case domain.KindLanding:
			format = "html"
		case domain.KindPlan:
			format = "ics"
		default:
			format = "json"
		}
	}
	switch format {
	case "html":
		if d.Kind != domain.KindLanding {
			return "", "", nil, fmt.Errorf("invalid format html for a %s deliverable", d.Kind)
		}
		return "landing.html", "text/html; charset=utf-8", []byte(renderLandingHTML(project, content)), nil
	case "ics":
		if d.Kind != domain.KindPlan {
			return "", "", nil, fmt.Errorf("invalid format ics for a %s deliverable", d.Kind)
		}
		created, perr := time.Parse(time.RFC3339, d.CreatedAt)
		if perr != nil {
			created = e.now().UTC()
		}
		return "plan.ics", "text/calendar; charset=utf-8", []byte(renderPlanICS(project, content, created)), nil
	case "md":
		return string(d.Kind) + ".md", "text/markdown; charset=utf-8", []byte(renderMarkdown(d.Title, content)), nil
	case "json":
		pretty, _ := json.MarshalIndent(content, "", "  ")
		return string(d.Kind) + ".json", "application/json", pretty, nil
	default:
		return "", "", nil, fmt.Errorf("invalid format %q", format)
	}
}

// PublishLanding writes the newest landing page under the public web root and
// records the public URL in the deliverable content.
func (e *Engine) PublishLanding(ctx context.Context, userID, projectID string) (string, error) {
	if e.Config.Publish.WebRoot == "" {
		return "", ErrPublishDisabled
	}
	project, err := e.Repo.GetProject(ctx, userID, projectID)
	if err != nil {
		return "", err
	}
	d, err := e.Repo.LatestDeliverable(ctx, userID, projectID, domain.KindLanding)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrNoLanding
	}
	if err != nil {
		return "", err
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(d.ContentJSON), &content); err != nil {
		return "", fmt.Errorf("landing content: %w", err)
	}

	dir := filepath.Join(e.Config.Publish.WebRoot, project.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, []byte(renderLandingHTML(project, content)), 0o644); err != nil {
		return "", err
	}

	publicURL := fmt.Sprintf("%s/%s/", e.Config.Publish.BaseURL, project.ID)
	content["public_url"] = publicURL

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateDeliverableContent(ctx, tx, d.ID, marshalContent(content), &path); err != nil {
		return "", err
	}
	if err := e.Events.Append(ctx, tx, "landing.publish", userID, "deliverable", d.ID,
		events.EventPayload{"project_id": project.ID, "public_url": publicURL}); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return publicURL, nil
}
