// Package billing integrates Orbit with Stripe subscriptions: customer
// bootstrap, checkout and portal sessions, and webhook event application.
package billing

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/orbitplan/orbit/internal/store"
)

// Opts holds configuration options for the billing service.
type Opts struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	AppURL        string
}

// Option defines a configuration option for the billing service.
type Option func(*Opts)

// WithSecretKey sets the Stripe secret key.
func WithSecretKey(key string) Option {
	return func(o *Opts) { o.SecretKey = key }
}

// WithWebhookSecret sets the Stripe webhook signing secret.
func WithWebhookSecret(secret string) Option {
	return func(o *Opts) { o.WebhookSecret = secret }
}

// WithPriceID sets the Stripe price for the pro monthly subscription.
func WithPriceID(priceID string) Option {
	return func(o *Opts) { o.PriceID = priceID }
}

// WithAppURL sets the public base URL used for checkout/portal redirects.
func WithAppURL(appURL string) Option {
	return func(o *Opts) { o.AppURL = appURL }
}

// Service wraps the Stripe client and the store it writes subscription
// state into. It is constructed once at process start and injected into
// handlers.
type Service struct {
	st            store.Store
	sc            *client.API
	webhookSecret string
	priceID       string
	appURL        string
}

// NewService creates the billing service. All settings fall back to the
// STRIPE_SECRET_KEY, STRIPE_WEBHOOK_SECRET, STRIPE_PRICE_ID_PRO_MONTHLY,
// and APP_URL environment variables.
func NewService(st store.Store, opts ...Option) (*Service, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	}
	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	}
	if cfg.PriceID == "" {
		cfg.PriceID = os.Getenv("STRIPE_PRICE_ID_PRO_MONTHLY")
	}
	if cfg.AppURL == "" {
		cfg.AppURL = os.Getenv("APP_URL")
	}
	slog.Debug("billing.NewService: config loaded",
		"secret_key_set", cfg.SecretKey != "",
		"webhook_secret_set", cfg.WebhookSecret != "",
		"price_id_set", cfg.PriceID != "",
		"app_url", cfg.AppURL)

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY not set")
	}

	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)

	return &Service{
		st:            st,
		sc:            sc,
		webhookSecret: cfg.WebhookSecret,
		priceID:       cfg.PriceID,
		appURL:        cfg.AppURL,
	}, nil
}

// customerExists reports whether the customer id is live in the current
// Stripe account/mode. Deleted customers count as missing, as do ids from
// another account or mode (resource_missing).
func (s *Service) customerExists(customerID string) (bool, error) {
	c, err := s.sc.Customers.Get(customerID, nil)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return false, nil
		}
		return false, err
	}
	if c.Deleted {
		return false, nil
	}
	return true, nil
}

// GetOrCreateCustomer ensures a Stripe customer exists for the user and
// returns its id, replacing a stale stored id if necessary.
func (s *Service) GetOrCreateCustomer(userID string) (string, error) {
	user, err := s.st.GetUser(userID)
	if err != nil {
		return "", err
	}

	if user.StripeCustomerID != "" {
		ok, err := s.customerExists(user.StripeCustomerID)
		if err != nil {
			return "", fmt.Errorf("failed to verify stripe customer: %w", err)
		}
		if ok {
			return user.StripeCustomerID, nil
		}
		slog.Warn("Service.GetOrCreateCustomer: stored customer id is stale, replacing", "userID", userID)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	if user.Name != "" {
		params.Name = stripe.String(user.Name)
	}
	params.AddMetadata("userId", user.ID)

	customer, err := s.sc.Customers.New(params)
	if err != nil {
		slog.Error("Service.GetOrCreateCustomer: customer creation failed", "error", err, "userID", userID)
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}

	if err := s.st.SetStripeCustomerID(user.ID, customer.ID); err != nil {
		return "", err
	}
	slog.Info("Service.GetOrCreateCustomer: customer created", "userID", userID)
	return customer.ID, nil
}

// CreateCheckoutSession starts a subscription checkout for the pro monthly
// price and returns the hosted page URL.
func (s *Service) CreateCheckoutSession(userID string) (string, error) {
	if s.priceID == "" {
		return "", fmt.Errorf("STRIPE_PRICE_ID_PRO_MONTHLY not set")
	}
	if s.appURL == "" {
		return "", fmt.Errorf("APP_URL not set")
	}

	customerID, err := s.GetOrCreateCustomer(userID)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(s.priceID), Quantity: stripe.Int64(1)},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(s.appURL + "/app/settings/billing?success=1"),
		CancelURL:           stripe.String(s.appURL + "/app/settings/billing?canceled=1"),
	}
	params.AddMetadata("userId", userID)

	session, err := s.sc.CheckoutSessions.New(params)
	if err != nil {
		slog.Error("Service.CreateCheckoutSession: session creation failed", "error", err, "userID", userID)
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	slog.Info("Service.CreateCheckoutSession: session created", "userID", userID)
	return session.URL, nil
}

// CreatePortalSession opens the Stripe billing portal for the user and
// returns its URL.
func (s *Service) CreatePortalSession(userID string) (string, error) {
	if s.appURL == "" {
		return "", fmt.Errorf("APP_URL not set")
	}

	customerID, err := s.GetOrCreateCustomer(userID)
	if err != nil {
		return "", err
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.appURL + "/app/settings/billing"),
	}
	portal, err := s.sc.BillingPortalSessions.New(params)
	if err != nil {
		slog.Error("Service.CreatePortalSession: session creation failed", "error", err, "userID", userID)
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return portal.URL, nil
}
