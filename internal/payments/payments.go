// Package payments abstracts the checkout provider so the engine can run
// against real Stripe or an in-memory stand-in for local development.
package payments

import "context"

// CheckoutMode mirrors the Stripe checkout modes the app uses.
type CheckoutMode string

const (
	ModeSubscription CheckoutMode = "subscription"
	ModePayment      CheckoutMode = "payment"
)

// CheckoutRequest carries everything needed to open a hosted checkout.
type CheckoutRequest struct {
	Mode          CheckoutMode
	PriceID       string
	CustomerEmail string
	CustomerID    string
	UserID        string
	Pack          string
	SuccessURL    string
	CancelURL     string
}

// Session is the provider view of a checkout session.
type Session struct {
	ID             string
	URL            string
	Paid           bool
	Pack           string
	UserID         string
	CustomerID     string
	SubscriptionID string
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error)
	GetCheckoutSession(ctx context.Context, id string) (Session, error)
	PortalURL(ctx context.Context, customerID, returnURL string) (string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
