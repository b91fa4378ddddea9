package creetonbizsdk

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// GenerationSteps is the fixed order the premium deliverables are produced
// in. Later steps build on earlier ones, so the sequence never changes.
var GenerationSteps = []string{"offer", "model", "brand", "landing", "marketing", "plan"}

// ErrIdeaAlreadyConverted is returned by FindConversion when the idea already
// has a project.
var ErrIdeaAlreadyConverted = errors.New("idea already converted to a project")

// FindConversion returns the project an idea was converted into, if any.
// Callers use it as a local guard before converting, so no request is spent
// on an idea that already has a project.
func FindConversion(projects []Project, ideaID string) (Project, bool) {
	for _, p := range projects {
		if p.IdeaID != nil && *p.IdeaID == ideaID {
			return p, true
		}
	}
	return Project{}, false
}

// GenerateAllPremium runs the full six-step deliverable generation for a
// project, strictly in order. onProgress fires with the step key before each
// network call, so a caller showing progress marks the step active while it
// runs. The first failing step aborts the run and its error comes back
// unchanged; completed deliverables stay on the server.
func (c *Client) GenerateAllPremium(ctx context.Context, profile Profile, projectID string, onProgress func(step string)) ([]Deliverable, error) {
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	if projectID == "" {
		return nil, errors.New("project id is required")
	}

	results := make([]Deliverable, 0, len(GenerationSteps))
	for _, step := range GenerationSteps {
		if onProgress != nil {
			onProgress(step)
		}
		d, err := c.GeneratePremium(ctx, step, profile, projectID)
		if err != nil {
			return results, err
		}
		results = append(results, d)
	}
	return results, nil
}

func validateProfile(p Profile) error {
	if strings.TrimSpace(p.Sector) == "" {
		return fmt.Errorf("profile: sector is required")
	}
	if strings.TrimSpace(p.Objective) == "" {
		return fmt.Errorf("profile: objective is required")
	}
	return nil
}
