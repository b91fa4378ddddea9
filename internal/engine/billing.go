package engine

import (
	"context"
	"errors"
	"fmt"

	"creetonbiz/internal/domain"
	"creetonbiz/internal/events"
	"creetonbiz/internal/payments"
	"creetonbiz/internal/repo"
)

// CheckoutResult is what a client needs to send the user to the hosted page.
type CheckoutResult struct {
	SessionID string
	URL       string
	Pack      string
}

// StartCheckout opens a hosted checkout session for a pack.
//
// A user who already has a paid plan and buys StartNow again gets the
// one-time variant: another credit, no plan change.
func (e *Engine) StartCheckout(ctx context.Context, userID, pack, successURL, cancelURL string) (CheckoutResult, error) {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return CheckoutResult{}, err
	}

	req := payments.CheckoutRequest{
		UserID:        userID,
		CustomerEmail: u.Email,
		CustomerID:    u.StripeCustomerID,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	}
	switch pack {
	case domain.PackInfinity:
		req.Mode = payments.ModeSubscription
		req.PriceID = e.Config.Stripe.PriceInfinity
		req.Pack = domain.PackInfinity
	case domain.PackStartnow:
		req.Mode = payments.ModePayment
		req.PriceID = e.Config.Stripe.PriceStartnowSetup
		req.Pack = domain.PackStartnow
		if u.Plan != domain.PlanFree {
			req.Pack = domain.PackStartnowOneTime
		}
	default:
		return CheckoutResult{}, UnknownPackError{Pack: pack}
	}

	s, err := e.Payments.CreateCheckoutSession(ctx, req)
	if err != nil {
		return CheckoutResult{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return CheckoutResult{}, err
	}
	defer tx.Rollback()
	record := domain.CheckoutSession{
		ID:        s.ID,
		UserID:    userID,
		Pack:      req.Pack,
		Status:    "created",
		CreatedAt: e.nowRFC3339(),
	}
	if err := e.Repo.CreateCheckoutSession(ctx, tx, record); err != nil {
		return CheckoutResult{}, fmt.Errorf("insert checkout session: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "checkout.start", userID, "checkout", s.ID,
		events.EventPayload{"pack": req.Pack}); err != nil {
		return CheckoutResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{SessionID: s.ID, URL: s.URL, Pack: req.Pack}, nil
}

// VerifyCheckout confirms a session after the hosted checkout redirect.
// Verifying the same session twice credits at most once.
func (e *Engine) VerifyCheckout(ctx context.Context, userID, sessionID string) (domain.User, bool, error) {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, false, err
	}
	if u.LastCheckoutSessionID == sessionID {
		return u, false, nil
	}
	s, err := e.Payments.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return domain.User{}, false, err
	}
	if !s.Paid {
		return domain.User{}, false, ErrSessionUnpaid
	}
	if s.UserID != "" && s.UserID != userID {
		return domain.User{}, false, fmt.Errorf("session %s belongs to another user", sessionID)
	}
	u, err = e.applyEntitlement(ctx, u, s)
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

// HandlePaidSession applies entitlements from a provider webhook. It shares
// the idempotency rule with VerifyCheckout, so redirect and webhook can both
// fire without double crediting.
func (e *Engine) HandlePaidSession(ctx context.Context, s payments.Session) error {
	userID := s.UserID
	if userID == "" {
		record, err := e.Repo.GetCheckoutSession(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("webhook session %s: %w", s.ID, err)
		}
		userID = record.UserID
	}
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.LastCheckoutSessionID == s.ID {
		return nil
	}
	if !s.Paid {
		return ErrSessionUnpaid
	}
	_, err = e.applyEntitlement(ctx, u, s)
	return err
}

func (e *Engine) applyEntitlement(ctx context.Context, u domain.User, s payments.Session) (domain.User, error) {
	pack := s.Pack
	if pack == "" {
		record, err := e.Repo.GetCheckoutSession(ctx, s.ID)
		if err != nil {
			return domain.User{}, fmt.Errorf("session %s has no pack: %w", s.ID, err)
		}
		pack = record.Pack
	}

	switch pack {
	case domain.PackInfinity:
		u.Plan = domain.PlanInfinity
		u.StripeSubscriptionID = s.SubscriptionID
	case domain.PackStartnow:
		u.Plan = domain.PlanStartnow
		u.StartnowCredits++
	case domain.PackStartnowOneTime:
		u.StartnowCredits++
	default:
		return domain.User{}, UnknownPackError{Pack: pack}
	}
	if s.CustomerID != "" {
		u.StripeCustomerID = s.CustomerID
	}
	u.LastCheckoutSessionID = s.ID

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateUserBilling(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.Repo.MarkCheckoutPaid(ctx, tx, s.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "checkout.paid", u.ID, "checkout", s.ID,
		events.EventPayload{"pack": pack, "plan": u.Plan, "credits": u.StartnowCredits}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// BillingPortalURL returns the provider portal URL for the user.
func (e *Engine) BillingPortalURL(ctx context.Context, userID, returnURL string) (string, error) {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.StripeCustomerID == "" {
		return "", ErrNoBillingAccount
	}
	if returnURL == "" {
		returnURL = e.Config.Frontend.BaseURL + "/dashboard"
	}
	return e.Payments.PortalURL(ctx, u.StripeCustomerID, returnURL)
}
