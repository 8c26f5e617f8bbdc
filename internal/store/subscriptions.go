package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
)

// UpsertSubscription replaces every column of the customer's subscription
// row. Nil fields are written as NULL.
func (s *Store) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO stripe_subscriptions (customer_id, subscription_id, price_id, current_period_start, current_period_end,
                                  cancel_at_period_end, payment_method_brand, payment_method_last4, status)
VALUES (:customer_id, :subscription_id, :price_id, :current_period_start, :current_period_end,
        :cancel_at_period_end, :payment_method_brand, :payment_method_last4, :status)
ON CONFLICT (customer_id) DO UPDATE
SET subscription_id = EXCLUDED.subscription_id,
    price_id = EXCLUDED.price_id,
    current_period_start = EXCLUDED.current_period_start,
    current_period_end = EXCLUDED.current_period_end,
    cancel_at_period_end = EXCLUDED.cancel_at_period_end,
    payment_method_brand = EXCLUDED.payment_method_brand,
    payment_method_last4 = EXCLUDED.payment_method_last4,
    status = EXCLUDED.status,
    updated_at = now()`, sub)
	if err != nil {
		return &Error{Op: "upsert subscription", Err: err}
	}
	return nil
}

// GetSubscription returns the stored subscription for a customer or ErrNotFound.
func (s *Store) GetSubscription(ctx context.Context, customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.GetContext(ctx, &sub, `
SELECT customer_id, subscription_id, price_id, current_period_start, current_period_end,
       cancel_at_period_end, payment_method_brand, payment_method_last4, status, updated_at
FROM stripe_subscriptions
WHERE customer_id = $1`, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Op: "get subscription", Err: err}
	}
	return &sub, nil
}
