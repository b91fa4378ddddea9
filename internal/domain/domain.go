package domain

import "fmt"

// Plans a user account can hold.
const (
	PlanFree     = "free"
	PlanInfinity = "infinity"
	PlanStartnow = "startnow"
)

// Purchasable packs.
const (
	PackInfinity = "infinity"
	PackStartnow = "startnow"
	// PackStartnowOneTime is the internal variant used when a user who
	// already pays a subscription buys another StartNow credit: only the
	// one-time setup line is billed.
	PackStartnowOneTime = "startnow-one-time"
)

// DeliverableKind is the closed set of generated artifacts. The server is
// authoritative for the kind of every deliverable; clients must never infer
// it from titles.
type DeliverableKind string

const (
	KindOffer     DeliverableKind = "offer"
	KindModel     DeliverableKind = "model"
	KindBrand     DeliverableKind = "brand"
	KindLanding   DeliverableKind = "landing"
	KindMarketing DeliverableKind = "marketing"
	KindPlan      DeliverableKind = "plan"
)

// GenerationOrder is the fixed sequence in which premium deliverables are
// produced. Later kinds read content generated by earlier ones, so the order
// is a contract, not a convenience.
var GenerationOrder = []DeliverableKind{
	KindOffer, KindModel, KindBrand, KindLanding, KindMarketing, KindPlan,
}

// ParseDeliverableKind validates a wire string against the closed set.
func ParseDeliverableKind(s string) (DeliverableKind, error) {
	k := DeliverableKind(s)
	switch k {
	case KindOffer, KindModel, KindBrand, KindLanding, KindMarketing, KindPlan:
		return k, nil
	}
	return "", fmt.Errorf("unknown deliverable kind %q", s)
}

type User struct {
	ID                    string `json:"id"`
	Email                 string `json:"email"`
	PasswordHash          string `json:"-"`
	Plan                  string `json:"plan" enum:"free,infinity,startnow"`
	StartnowCredits       int    `json:"startnow_credits"`
	IsAdmin               bool   `json:"is_admin"`
	StripeCustomerID      string `json:"-"`
	StripeSubscriptionID  string `json:"-"`
	LastCheckoutSessionID string `json:"-"`
	CreatedAt             string `json:"created_at" format:"date-time"`
}

// Profile is the generation input a user submits. Immutable once handed to
// the generation pipeline.
type Profile struct {
	Sector    string   `json:"sector"`
	Objective string   `json:"objective"`
	Skills    []string `json:"skills"`
}

type Idea struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Sector    string   `json:"sector"`
	Objective string   `json:"objective"`
	Skills    []string `json:"skills"`
	Summary   string   `json:"summary"`
	Persona   string   `json:"persona"`
	Name      string   `json:"name"`
	Slogan    string   `json:"slogan"`
	Rating    float64  `json:"rating"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type Project struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Title     string   `json:"title"`
	Sector    string   `json:"sector"`
	Objective string   `json:"objective"`
	Skills    []string `json:"skills"`
	IdeaID    *string  `json:"idea_id,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type Deliverable struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	ProjectID   string          `json:"project_id"`
	Kind        DeliverableKind `json:"kind"`
	Title       string          `json:"title"`
	ContentJSON string          `json:"content_json"`
	FilePath    *string         `json:"file_path,omitempty"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
}

// HasFile reports whether a standalone file (landing HTML) backs this
// deliverable.
func (d Deliverable) HasFile() bool {
	return d.FilePath != nil && *d.FilePath != ""
}

// CheckoutSession is the backend's record of a hosted-payment transaction.
// The provider owns payment state; this row exists for auditing and for the
// idempotent entitlement step.
type CheckoutSession struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Pack      string `json:"pack" enum:"infinity,startnow,startnow-one-time"`
	Status    string `json:"status" enum:"created,paid"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
