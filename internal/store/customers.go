package store

import (
	"context"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
)

// UpsertCustomer mirrors a provider customer locally.
func (s *Store) UpsertCustomer(ctx context.Context, c models.Customer) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO stripe_customers (customer_id, user_id)
VALUES ($1, $2)
ON CONFLICT (customer_id) DO UPDATE
SET user_id = EXCLUDED.user_id,
    updated_at = now()`, c.CustomerID, c.UserID)
	if err != nil {
		return &Error{Op: "upsert customer", Err: err}
	}
	return nil
}

// EnsureCustomer creates the customer row when it is absent and reports
// whether a row was created. An existing row is left untouched.
func (s *Store) EnsureCustomer(ctx context.Context, customerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO stripe_customers (customer_id, user_id)
VALUES ($1, NULL)
ON CONFLICT (customer_id) DO NOTHING`, customerID)
	if err != nil {
		return false, &Error{Op: "ensure customer", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &Error{Op: "ensure customer", Err: err}
	}
	return n > 0, nil
}
