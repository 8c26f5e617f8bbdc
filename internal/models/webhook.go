package models

import "time"

// WebhookEvent is a verified provider event decoded into one of a closed set
// of payload variants.
type WebhookEvent struct {
	ID      string
	Type    string
	Created time.Time
	Payload EventPayload
}

// EventPayload is implemented by every known event shape.
type EventPayload interface {
	eventPayload()
}

// CheckoutSessionCompleted is the payload of checkout.session.completed.
type CheckoutSessionCompleted struct {
	SessionID       string
	Mode            CheckoutMode
	PaymentStatus   string
	CustomerID      string
	PaymentIntentID string
	AmountSubtotal  int64
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
}

// SubscriptionLifecycle covers customer.subscription.* events and invoices
// raised for a subscription.
type SubscriptionLifecycle struct {
	CustomerID     string
	SubscriptionID string
}

// IgnoredEvent is any event the reconciler acknowledges without acting on.
type IgnoredEvent struct{}

func (CheckoutSessionCompleted) eventPayload() {}
func (SubscriptionLifecycle) eventPayload()    {}
func (IgnoredEvent) eventPayload()             {}

// ProviderSubscription is the provider's view of a customer's latest
// subscription, as needed for a local sync.
type ProviderSubscription struct {
	ID                 string
	Status             SubscriptionStatus
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CardBrand          string
	CardLast4          string
}

// RegistrationCompleted is published after a paid checkout has been recorded.
type RegistrationCompleted struct {
	EventID           string    `json:"event_id"`
	Email             string    `json:"email"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	CustomerID        string    `json:"customer_id"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	AmountTotal       int64     `json:"amount_total"`
	Currency          string    `json:"currency"`
	OccurredAt        time.Time `json:"occurred_at"`
}
