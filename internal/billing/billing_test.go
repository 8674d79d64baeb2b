package billing

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"

	"github.com/orbitplan/orbit/internal/models"
	"github.com/orbitplan/orbit/internal/store"
)

func TestNewServiceRequiresSecretKey(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")
	if _, err := NewService(store.NewInMemoryStore()); err == nil {
		t.Error("expected error without a secret key")
	}
}

func TestCreateCheckoutSessionRequiresPriceAndURL(t *testing.T) {
	t.Setenv("STRIPE_PRICE_ID_PRO_MONTHLY", "")
	t.Setenv("APP_URL", "")
	st := store.NewInMemoryStore()
	svc, err := NewService(st, WithSecretKey("sk_test_123"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.CreateCheckoutSession("user-1"); err == nil {
		t.Error("expected error without a price id")
	}

	svc, err = NewService(st, WithSecretKey("sk_test_123"), WithPriceID("price_123"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CreateCheckoutSession("user-1"); err == nil {
		t.Error("expected error without an app URL")
	}
}

func TestHandleWebhookRequiresSecret(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	svc, err := NewService(store.NewInMemoryStore(), WithSecretKey("sk_test_123"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.HandleWebhook([]byte(`{}`), "sig"); err == nil {
		t.Error("expected error without a webhook secret")
	}
}

func newTestService(t *testing.T) (*Service, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	svc, err := NewService(st, WithSecretKey("sk_test_123"), WithWebhookSecret("whsec_test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc, st
}

func subscriptionEvent(eventType, customerID, subscriptionID, status string, periodEnd int64) stripe.Event {
	raw := fmt.Sprintf(
		`{"id":%q,"customer":{"id":%q},"status":%q,"current_period_end":%d}`,
		subscriptionID, customerID, status, periodEnd)
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestApplyCheckoutCompleted(t *testing.T) {
	svc, st := newTestService(t)
	user, err := st.GetOrCreateUser("auth-1", "a@example.com", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw := fmt.Sprintf(
		`{"id":"cs_1","metadata":{"userId":%q},"customer":{"id":"cus_1"},"subscription":{"id":"sub_1"}}`,
		user.ID)
	event := stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
	if err := svc.applyCheckoutCompleted(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := st.GetUser(user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StripeCustomerID != "cus_1" || got.StripeSubscriptionID != "sub_1" {
		t.Errorf("checkout ids not stored: %+v", got)
	}
}

func TestApplyCheckoutCompletedWithoutMetadata(t *testing.T) {
	svc, st := newTestService(t)
	user, err := st.GetOrCreateUser("auth-1", "a@example.com", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"cs_1","customer":{"id":"cus_1"}}`)},
	}
	// A session without a userId is acknowledged without effect.
	if err := svc.applyCheckoutCompleted(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := st.GetUser(user.ID)
	if got.StripeCustomerID != "" {
		t.Errorf("user mutated by a session without metadata: %+v", got)
	}
}

func TestApplySubscriptionChangeTierDerivation(t *testing.T) {
	tests := []struct {
		status string
		tier   models.PlanTier
	}{
		{"active", models.TierPro},
		{"trialing", models.TierPro},
		{"past_due", models.TierFree},
		{"canceled", models.TierFree},
		{"unpaid", models.TierFree},
		{"incomplete", models.TierFree},
	}
	for _, tt := range tests {
		svc, st := newTestService(t)
		user, err := st.GetOrCreateUser("auth-1", "a@example.com", "A")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := st.SetStripeCustomerID(user.ID, "cus_1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		event := subscriptionEvent("customer.subscription.updated", "cus_1", "sub_1", tt.status, 1790000000)
		if err := svc.applySubscriptionChange(event); err != nil {
			t.Fatalf("status %q: unexpected error: %v", tt.status, err)
		}

		got, _ := st.GetUser(user.ID)
		if got.Tier != tt.tier {
			t.Errorf("status %q: expected tier %q, got %q", tt.status, tt.tier, got.Tier)
		}
		if got.SubscriptionStatus != tt.status || got.StripeSubscriptionID != "sub_1" {
			t.Errorf("status %q: subscription state not mirrored: %+v", tt.status, got)
		}
		if got.CurrentPeriodEnd == nil || !got.CurrentPeriodEnd.Equal(time.Unix(1790000000, 0).UTC()) {
			t.Errorf("status %q: period end not stored: %v", tt.status, got.CurrentPeriodEnd)
		}
	}
}

func TestApplySubscriptionChangeDowngradesOnDelete(t *testing.T) {
	svc, st := newTestService(t)
	user, err := st.GetOrCreateUser("auth-1", "a@example.com", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.SetStripeCustomerID(user.ID, "cus_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	up := subscriptionEvent("customer.subscription.created", "cus_1", "sub_1", "active", 1790000000)
	if err := svc.applySubscriptionChange(up); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := st.GetUser(user.ID); got.Tier != models.TierPro {
		t.Fatalf("expected pro after activation, got %q", got.Tier)
	}

	down := subscriptionEvent("customer.subscription.deleted", "cus_1", "sub_1", "canceled", 1790000000)
	if err := svc.applySubscriptionChange(down); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := st.GetUser(user.ID); got.Tier != models.TierFree {
		t.Errorf("expected free after deletion, got %q", got.Tier)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc, err := NewService(store.NewInMemoryStore(),
		WithSecretKey("sk_test_123"), WithWebhookSecret("whsec_test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.HandleWebhook([]byte(`{"type":"checkout.session.completed"}`), "t=1,v1=bad"); err == nil {
		t.Error("expected signature verification to fail")
	}
}
