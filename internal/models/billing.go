package models

import "time"

// PaymentStatus tracks where a registrant is in the checkout flow.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Registrant is a prospective or confirmed course attendee, keyed by email.
type Registrant struct {
	ID              int64         `db:"id" json:"id"`
	Email           string        `db:"email" json:"email"`
	FirstName       string        `db:"first_name" json:"first_name"`
	LastName        string        `db:"last_name" json:"last_name"`
	Phone           *string       `db:"phone" json:"phone,omitempty"`
	Company         *string       `db:"company" json:"company,omitempty"`
	ExperienceLevel string        `db:"experience_level" json:"experience_level"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"payment_status"`
	CustomerID      string        `db:"customer_id" json:"customer_id"`
	StripeSessionID *string       `db:"stripe_session_id" json:"stripe_session_id,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// Customer mirrors a payment-provider customer locally. UserID stays nil
// because the registration flow has no authenticated user.
type Customer struct {
	CustomerID string    `db:"customer_id" json:"customer_id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// OrderStatus is the lifecycle state of a recorded order.
type OrderStatus string

const OrderStatusCompleted OrderStatus = "completed"

// Order records one completed checkout session. Orders are written once and
// never updated.
type Order struct {
	ID                int64       `db:"id" json:"id"`
	CheckoutSessionID string      `db:"checkout_session_id" json:"checkout_session_id"`
	PaymentIntentID   string      `db:"payment_intent_id" json:"payment_intent_id"`
	CustomerID        string      `db:"customer_id" json:"customer_id"`
	AmountSubtotal    int64       `db:"amount_subtotal" json:"amount_subtotal"`
	AmountTotal       int64       `db:"amount_total" json:"amount_total"`
	Currency          string      `db:"currency" json:"currency"`
	PaymentStatus     string      `db:"payment_status" json:"payment_status"`
	Status            OrderStatus `db:"status" json:"status"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
}

// SubscriptionStatus mirrors the provider's subscription status, plus
// not_started for customers that never subscribed.
type SubscriptionStatus string

const (
	SubscriptionNotStarted        SubscriptionStatus = "not_started"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionPaused            SubscriptionStatus = "paused"
)

// Subscription is the local copy of a customer's latest subscription. Every
// sync replaces the whole row.
type Subscription struct {
	CustomerID         string             `db:"customer_id" json:"customer_id"`
	SubscriptionID     *string            `db:"subscription_id" json:"subscription_id,omitempty"`
	PriceID            *string            `db:"price_id" json:"price_id,omitempty"`
	CurrentPeriodStart *time.Time         `db:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time         `db:"current_period_end" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  *bool              `db:"cancel_at_period_end" json:"cancel_at_period_end,omitempty"`
	PaymentMethodBrand *string            `db:"payment_method_brand" json:"payment_method_brand,omitempty"`
	PaymentMethodLast4 *string            `db:"payment_method_last4" json:"payment_method_last4,omitempty"`
	Status             SubscriptionStatus `db:"status" json:"status"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}
