package billing

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/orbitplan/orbit/internal/models"
)

// HandleWebhook verifies a Stripe webhook payload and applies the event to
// the store. Unknown event types are acknowledged without effect.
func (s *Service) HandleWebhook(payload []byte, sigHeader string) error {
	if s.webhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET not set")
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
	if err != nil {
		slog.Warn("Service.HandleWebhook: signature verification failed", "error", err)
		return fmt.Errorf("bad signature: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.applyCheckoutCompleted(event)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		return s.applySubscriptionChange(event)
	default:
		slog.Debug("Service.HandleWebhook: ignoring event", "type", event.Type)
		return nil
	}
}

// applyCheckoutCompleted stores the customer and subscription ids on the
// user named in the session metadata.
func (s *Service) applyCheckoutCompleted(event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to decode checkout session: %w", err)
	}

	userID := session.Metadata["userId"]
	if userID == "" {
		slog.Warn("Service.applyCheckoutCompleted: session has no userId metadata", "session", session.ID)
		return nil
	}

	var customerID, subscriptionID string
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}

	if err := s.st.ApplyCheckoutSession(userID, customerID, subscriptionID); err != nil {
		slog.Error("Service.applyCheckoutCompleted: store update failed", "error", err, "userID", userID)
		return err
	}
	slog.Info("Service.applyCheckoutCompleted: checkout recorded", "userID", userID)
	return nil
}

// applySubscriptionChange mirrors the subscription's state onto the user
// row keyed by customer id. The tier is pro exactly while the subscription
// is active or trialing.
func (s *Service) applySubscriptionChange(event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to decode subscription: %w", err)
	}
	if sub.Customer == nil {
		slog.Warn("Service.applySubscriptionChange: subscription has no customer", "subscription", sub.ID)
		return nil
	}

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	tier := models.TierFree
	if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
		tier = models.TierPro
	}

	err := s.st.UpdateSubscription(sub.Customer.ID, sub.ID, string(sub.Status), periodEnd, tier)
	if err != nil {
		slog.Error("Service.applySubscriptionChange: store update failed", "error", err, "subscription", sub.ID)
		return err
	}
	slog.Info("Service.applySubscriptionChange: subscription applied",
		"subscription", sub.ID, "status", sub.Status, "tier", tier)
	return nil
}
