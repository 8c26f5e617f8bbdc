// Package payments wraps the Stripe SDK behind the few calls the checkout
// and reconciliation flows need.
package payments

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
)

// Config controls how the Stripe client reaches the API.
type Config struct {
	SecretKey string
	// APIURL overrides the API base URL, e.g. for stripe-mock. Empty uses Stripe.
	APIURL            string
	Timeout           time.Duration
	MaxNetworkRetries int64
}

// CustomerDetails identifies the person checking out.
type CustomerDetails struct {
	Email      string
	FirstName  string
	LastName   string
	Phone      string
	Company    string
	Experience string
}

// SessionRequest describes a hosted checkout session for a single price.
type SessionRequest struct {
	CustomerID string
	PriceID    string
	Mode       models.CheckoutMode
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Session is a created hosted checkout session.
type Session struct {
	ID  string
	URL string
}

// Client talks to Stripe through an explicitly constructed API handle.
type Client struct {
	api    *client.API
	logger *zap.Logger
}

// NewClient builds a Client with its own backend so no package-level Stripe
// state is touched.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     logger.Named("stripe").Sugar(),
	}
	if cfg.APIURL != "" {
		backendConfig.URL = stripe.String(strings.TrimRight(cfg.APIURL, "/"))
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)
	api := client.New(cfg.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return &Client{api: api, logger: logger}
}

// FindOrCreateCustomer returns the id of the first customer registered under
// the email, creating one when none exists.
func (c *Client) FindOrCreateCustomer(ctx context.Context, d CustomerDetails) (string, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(d.Email)}
	listParams.Limit = stripe.Int64(1)
	listParams.Context = ctx

	iter := c.api.Customers.List(listParams)
	if iter.Next() {
		id := iter.Customer().ID
		c.logger.Debug("found existing customer", zap.String("customer_id", id))
		return id, nil
	}
	if err := iter.Err(); err != nil {
		return "", classify("list customers", err)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(d.Email),
		Name:  stripe.String(strings.TrimSpace(d.FirstName + " " + d.LastName)),
	}
	if d.Phone != "" {
		params.Phone = stripe.String(d.Phone)
	}
	params.Context = ctx
	params.AddMetadata("company", d.Company)
	params.AddMetadata("experience", d.Experience)

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", classify("create customer", err)
	}
	c.logger.Info("created customer", zap.String("customer_id", cust.ID))
	return cust.ID, nil
}

// CreateCheckoutSession creates a hosted checkout session for one unit of the
// requested price, card payments only.
func (c *Client) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	mode := req.Mode
	if mode == "" {
		mode = models.CheckoutModePayment
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(req.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classify("create checkout session", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// LatestSubscription returns the customer's most recent subscription in any
// status, or nil when the customer never subscribed.
func (c *Client) LatestSubscription(ctx context.Context, customerID string) (*models.ProviderSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Limit = stripe.Int64(1)
	params.Context = ctx
	params.AddExpand("data.default_payment_method")

	iter := c.api.Subscriptions.List(params)
	if !iter.Next() {
		if err := iter.Err(); err != nil {
			return nil, classify("list subscriptions", err)
		}
		return nil, nil
	}

	return toProviderSubscription(iter.Subscription()), nil
}

func toProviderSubscription(sub *stripe.Subscription) *models.ProviderSubscription {
	out := &models.ProviderSubscription{
		ID:                sub.ID,
		Status:            models.SubscriptionStatus(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
		out.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
	}

	if pm := sub.DefaultPaymentMethod; pm != nil && pm.Card != nil {
		out.CardBrand = string(pm.Card.Brand)
		out.CardLast4 = pm.Card.Last4
	}

	return out
}
