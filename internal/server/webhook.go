package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"path"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/go-chi/chi/v5"

	"creetonbiz/internal/engine"
	"creetonbiz/internal/payments"
)

// registerStripeWebhook handles checkout.session.completed so entitlements
// land even when the user never comes back from the hosted page. The body
// must stay raw for signature verification, so this is a plain chi route.
func registerStripeWebhook(r chi.Router, basePath string, e *engine.Engine) {
	r.Post(path.Join(basePath, "webhooks", "stripe"), func(w http.ResponseWriter, req *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "unreadable body", nil))
			return
		}

		var event stripe.Event
		if sp, ok := e.Payments.(*payments.StripeProvider); ok {
			event, err = sp.VerifyWebhook(payload, req.Header.Get("Stripe-Signature"))
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusBadRequest, "invalid_signature", "webhook signature verification failed", nil))
				return
			}
		} else if err := json.Unmarshal(payload, &event); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid event body", nil))
			return
		}

		if event.Type != "checkout.session.completed" {
			w.WriteHeader(http.StatusOK)
			return
		}
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid session payload", nil))
			return
		}

		s := payments.Session{
			ID:     session.ID,
			Paid:   session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
			Pack:   session.Metadata["pack"],
			UserID: session.ClientReferenceID,
		}
		if s.UserID == "" {
			s.UserID = session.Metadata["user_id"]
		}
		if session.Customer != nil {
			s.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			s.SubscriptionID = session.Subscription.ID
		}
		if err := e.HandlePaidSession(req.Context(), s); err != nil {
			log.Printf("stripe webhook session %s: %v", s.ID, err)
			respondStatusError(w, handleError(err))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}
