package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
)

// InsertOrder records a completed checkout session once. It returns false
// without error when an order for the session already exists.
func (s *Store) InsertOrder(ctx context.Context, o *models.Order) (bool, error) {
	res, err := s.db.NamedExecContext(ctx, `
INSERT INTO stripe_orders (checkout_session_id, payment_intent_id, customer_id, amount_subtotal, amount_total, currency, payment_status, status)
VALUES (:checkout_session_id, :payment_intent_id, :customer_id, :amount_subtotal, :amount_total, :currency, :payment_status, :status)
ON CONFLICT (checkout_session_id) DO NOTHING`, o)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, &Error{Op: "insert order", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &Error{Op: "insert order", Err: err}
	}
	return n > 0, nil
}

// GetOrderBySessionID returns the order recorded for a checkout session or ErrNotFound.
func (s *Store) GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var o models.Order
	err := s.db.GetContext(ctx, &o, `
SELECT id, checkout_session_id, payment_intent_id, customer_id, amount_subtotal,
       amount_total, currency, payment_status, status, created_at
FROM stripe_orders
WHERE checkout_session_id = $1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Op: "get order", Err: err}
	}
	return &o, nil
}
