package engine

import (
	"context"
	"fmt"
	"strings"

	"creetonbiz/internal/domain"
	"creetonbiz/internal/events"
)

// AdminUserPatch carries the fields an operator may change on a user. Nil
// means leave the field alone.
type AdminUserPatch struct {
	Plan            *string
	StartnowCredits *int
	IsAdmin         *bool
	CancelStripe    bool
}

func (e *Engine) AdminListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx)
}

// AdminUpdateUser applies an operator patch to a user's plan, credits and
// admin flag, optionally canceling the Stripe subscription first.
func (e *Engine) AdminUpdateUser(ctx context.Context, adminID, targetID string, patch AdminUserPatch) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, targetID)
	if err != nil {
		return domain.User{}, err
	}

	if patch.CancelStripe && u.StripeSubscriptionID != "" && e.Payments != nil {
		if err := e.Payments.CancelSubscription(ctx, u.StripeSubscriptionID); err != nil {
			return domain.User{}, fmt.Errorf("cancel subscription: %w", err)
		}
	}

	changes := events.EventPayload{}
	if patch.Plan != nil {
		switch *patch.Plan {
		case domain.PlanFree, domain.PlanInfinity, domain.PlanStartnow:
		default:
			return domain.User{}, fmt.Errorf("invalid plan %q", *patch.Plan)
		}
		u.Plan = *patch.Plan
		changes["plan"] = u.Plan
	}
	if patch.StartnowCredits != nil {
		if *patch.StartnowCredits < 0 {
			return domain.User{}, fmt.Errorf("invalid credits %d", *patch.StartnowCredits)
		}
		u.StartnowCredits = *patch.StartnowCredits
		changes["startnow_credits"] = u.StartnowCredits
	}
	if patch.IsAdmin != nil {
		u.IsAdmin = *patch.IsAdmin
		changes["is_admin"] = u.IsAdmin
	}
	if patch.CancelStripe {
		changes["cancel_stripe"] = true
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateUserAccess(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "admin.update_user", adminID, "user", targetID, changes); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// StripeDashboardLink returns the dashboard URL for a customer, or "" when
// the user has no Stripe customer yet. Test keys link into test mode.
func (e *Engine) StripeDashboardLink(u domain.User) string {
	if u.StripeCustomerID == "" {
		return ""
	}
	prefix := ""
	if strings.HasPrefix(e.Config.Stripe.SecretKey, "sk_test_") {
		prefix = "test/"
	}
	return "https://dashboard.stripe.com/" + prefix + "customers/" + u.StripeCustomerID
}
