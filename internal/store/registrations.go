package store

import (
	"context"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
)

// UpsertRegistrant inserts or replaces the registrant keyed by email. The last
// write wins, except that a known checkout session id is never cleared.
func (s *Store) UpsertRegistrant(ctx context.Context, r *models.Registrant) error {
	args := map[string]any{
		"email":             r.Email,
		"first_name":        r.FirstName,
		"last_name":         r.LastName,
		"phone":             r.Phone,
		"company":           r.Company,
		"experience_level":  r.ExperienceLevel,
		"customer_id":       nullIfEmpty(r.CustomerID),
		"stripe_session_id": r.StripeSessionID,
		"payment_status":    string(r.PaymentStatus),
	}

	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO registrations (email, first_name, last_name, phone, company, experience_level, customer_id, stripe_session_id, payment_status)
VALUES (:email, :first_name, :last_name, :phone, :company, :experience_level, :customer_id, :stripe_session_id, :payment_status)
ON CONFLICT (email) DO UPDATE
SET first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    phone = EXCLUDED.phone,
    company = EXCLUDED.company,
    experience_level = EXCLUDED.experience_level,
    customer_id = EXCLUDED.customer_id,
    stripe_session_id = COALESCE(EXCLUDED.stripe_session_id, registrations.stripe_session_id),
    payment_status = EXCLUDED.payment_status,
    updated_at = now()`, args)
	if err != nil {
		return &Error{Op: "upsert registrant", Err: err}
	}
	return nil
}
