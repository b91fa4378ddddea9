package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DevProvider fakes checkout for local runs and tests. Sessions are held in
// memory and marked paid immediately unless AutoPay is disabled.
type DevProvider struct {
	mu       sync.Mutex
	sessions map[string]Session

	// AutoPay marks new sessions paid on creation.
	AutoPay bool

	canceled []string
}

func NewDev() *DevProvider {
	return &DevProvider{sessions: map[string]Session{}, AutoPay: true}
}

func (p *DevProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Session{
		ID:         "cs_dev_" + uuid.NewString(),
		Pack:       req.Pack,
		UserID:     req.UserID,
		Paid:       p.AutoPay,
		CustomerID: req.CustomerID,
	}
	if s.CustomerID == "" {
		s.CustomerID = "cus_dev_" + uuid.NewString()
	}
	if req.Mode == ModeSubscription {
		s.SubscriptionID = "sub_dev_" + uuid.NewString()
	}
	s.URL = "https://checkout.dev.invalid/" + s.ID
	p.sessions[s.ID] = s
	return s, nil
}

func (p *DevProvider) GetCheckoutSession(ctx context.Context, id string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("unknown checkout session %s", id)
	}
	return s, nil
}

// SettleSession marks an existing session paid, for tests that disable AutoPay.
func (p *DevProvider) SettleSession(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[id]; ok {
		s.Paid = true
		p.sessions[id] = s
	}
}

func (p *DevProvider) PortalURL(ctx context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.dev.invalid/" + customerID, nil
}

func (p *DevProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceled = append(p.canceled, subscriptionID)
	return nil
}

// Canceled lists the subscription ids canceled so far.
func (p *DevProvider) Canceled() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.canceled...)
}
