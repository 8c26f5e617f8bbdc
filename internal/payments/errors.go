package payments

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v82"
)

// ErrSignatureInvalid is returned when a webhook payload does not match its
// signature header.
var ErrSignatureInvalid = errors.New("payments: webhook signature verification failed")

// Category is a stable, user-facing classification of a provider failure.
type Category string

const (
	CategoryCard               Category = "card_error"
	CategoryRateLimited        Category = "rate_limited"
	CategoryInvalidRequest     Category = "invalid_request"
	CategoryServiceUnavailable Category = "service_unavailable"
	CategoryConnection         Category = "connection_error"
	CategoryConfiguration      Category = "configuration_error"
	CategoryUnknown            Category = "unknown"
)

var userMessages = map[Category]string{
	CategoryCard:               "Card error. Please check your card details and try again.",
	CategoryRateLimited:        "Too many requests. Please try again later.",
	CategoryInvalidRequest:     "Invalid request. Please check the selected course and try again.",
	CategoryServiceUnavailable: "Payment service temporarily unavailable. Please try again.",
	CategoryConnection:         "Network error. Please check your connection and try again.",
	CategoryConfiguration:      "Payment service configuration error.",
	CategoryUnknown:            "Failed to create checkout session",
}

// Error is a failed provider call. The wrapped error keeps the raw provider
// detail for logs; UserMessage never exposes it.
type Error struct {
	Op       string
	Category Category
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("payments: %s (%s): %v", e.Op, e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the message safe to show to the person checking out.
func (e *Error) UserMessage() string {
	if msg, ok := userMessages[e.Category]; ok {
		return msg
	}
	return userMessages[CategoryUnknown]
}

// Retryable reports whether the caller may retry the same request later.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryRateLimited, CategoryServiceUnavailable, CategoryConnection:
		return true
	}
	return false
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Category: categoryOf(err), Err: err}
}

func categoryOf(err error) Category {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return CategoryConnection
	}

	switch {
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		return CategoryRateLimited
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized || stripeErr.HTTPStatusCode == http.StatusForbidden:
		return CategoryConfiguration
	}

	switch stripeErr.Type {
	case stripe.ErrorTypeCard:
		return CategoryCard
	case stripe.ErrorTypeInvalidRequest:
		return CategoryInvalidRequest
	case stripe.ErrorTypeAPI:
		return CategoryServiceUnavailable
	}

	if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
		return CategoryServiceUnavailable
	}
	return CategoryUnknown
}
