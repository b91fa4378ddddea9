package server

import (
	"creetonbiz/internal/domain"
)

type RegisterRequest struct {
	Email    string `json:"email" example:"founder@example.com"`
	Password string `json:"password" minLength:"8"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type" example:"bearer"`
}

type UserResponse struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Plan            string `json:"plan" example:"free"`
	StartnowCredits int    `json:"startnow_credits"`
	IsAdmin         bool   `json:"is_admin"`
	CreatedAt       string `json:"created_at" format:"date-time"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" minLength:"8"`
}

type ProfileRequest struct {
	Sector    string   `json:"secteur" example:"coaching"`
	Objective string   `json:"objectif" example:"2000 EUR/month in 90 days"`
	Skills    []string `json:"competences"`
}

func (p ProfileRequest) domain() domain.Profile {
	return domain.Profile{Sector: p.Sector, Objective: p.Objective, Skills: p.Skills}
}

type IdeaResponse struct {
	ID        string   `json:"id"`
	Sector    string   `json:"secteur"`
	Objective string   `json:"objectif"`
	Skills    []string `json:"competences"`
	Summary   string   `json:"resume"`
	Persona   string   `json:"persona"`
	Name      string   `json:"nom"`
	Slogan    string   `json:"slogan"`
	Rating    float64  `json:"note"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type CreateProjectRequest struct {
	Title     string   `json:"title"`
	Sector    string   `json:"secteur"`
	Objective string   `json:"objectif"`
	Skills    []string `json:"competences,omitempty"`
	IdeaID    string   `json:"idea_id,omitempty"`
}

type RenameProjectRequest struct {
	Title string `json:"title"`
}

type ProjectResponse struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Sector    string   `json:"secteur"`
	Objective string   `json:"objectif"`
	Skills    []string `json:"competences"`
	IdeaID    *string  `json:"idea_id,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type DeliverableResponse struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Kind      string         `json:"kind" enum:"offer,model,brand,landing,marketing,plan"`
	Title     string         `json:"title"`
	Content   map[string]any `json:"content"`
	HasFile   bool           `json:"has_file"`
	CreatedAt string         `json:"created_at" format:"date-time"`
}

type CheckoutRequest struct {
	Pack string `json:"pack" enum:"infinity,startnow"`
	// ReturnURL overrides the frontend redirect base, used by CLI clients
	// that catch the redirect on a loopback listener.
	ReturnURL string `json:"return_url,omitempty" format:"uri"`
}

type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Pack      string `json:"pack"`
}

type VerifyCheckoutRequest struct {
	SessionID string `json:"session_id"`
}

type VerifyCheckoutResponse struct {
	Credited bool         `json:"credited"`
	User     UserResponse `json:"user"`
}

type PortalResponse struct {
	URL string `json:"url"`
}

type PublishResponse struct {
	PublicURL string `json:"public_url"`
}

type AdminUserResponse struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Plan             string `json:"plan"`
	StartnowCredits  int    `json:"startnow_credits"`
	IsAdmin          bool   `json:"is_admin"`
	StripeCustomerID string `json:"stripe_customer_id,omitempty"`
	StripeLink       string `json:"stripe_link,omitempty"`
	CreatedAt        string `json:"created_at" format:"date-time"`
}

type AdminUserPatchRequest struct {
	Plan            *string `json:"plan,omitempty"`
	StartnowCredits *int    `json:"startnow_credits,omitempty" minimum:"0"`
	IsAdmin         *bool   `json:"is_admin,omitempty"`
	// CancelStripe cancels the user's subscription at the provider before
	// the patch is applied.
	CancelStripe bool `json:"cancel_stripe,omitempty"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		Plan:            u.Plan,
		StartnowCredits: u.StartnowCredits,
		IsAdmin:         u.IsAdmin,
		CreatedAt:       u.CreatedAt,
	}
}

func ideaResponse(i domain.Idea) IdeaResponse {
	return IdeaResponse{
		ID:        i.ID,
		Sector:    i.Sector,
		Objective: i.Objective,
		Skills:    i.Skills,
		Summary:   i.Summary,
		Persona:   i.Persona,
		Name:      i.Name,
		Slogan:    i.Slogan,
		Rating:    i.Rating,
		CreatedAt: i.CreatedAt,
	}
}

func mapIdeas(items []domain.Idea) []IdeaResponse {
	out := make([]IdeaResponse, 0, len(items))
	for _, i := range items {
		out = append(out, ideaResponse(i))
	}
	return out
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Title:     p.Title,
		Sector:    p.Sector,
		Objective: p.Objective,
		Skills:    p.Skills,
		IdeaID:    p.IdeaID,
		CreatedAt: p.CreatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

func deliverableResponse(d domain.Deliverable, content map[string]any) DeliverableResponse {
	return DeliverableResponse{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		Kind:      string(d.Kind),
		Title:     d.Title,
		Content:   content,
		HasFile:   d.HasFile(),
		CreatedAt: d.CreatedAt,
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, EventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			UserID:     e.UserID,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			Payload:    e.Payload,
		})
	}
	return out
}
