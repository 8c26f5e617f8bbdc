package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db)
	require.NoError(t, err)
	return s, mock
}

func strPtr(s string) *string { return &s }

func TestNewRejectsNilDB(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestUpsertRegistrant(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WithArgs("ada@example.com", "Ada", "Lovelace", "555-0100", nil, "beginner", nil, nil, "pending").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.UpsertRegistrant(context.Background(), &models.Registrant{
		Email:           "ada@example.com",
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Phone:           strPtr("555-0100"),
		ExperienceLevel: "beginner",
		PaymentStatus:   models.PaymentStatusPending,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRegistrantKeepsSessionOnConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`ON CONFLICT \(email\) DO UPDATE[\s\S]*COALESCE\(EXCLUDED.stripe_session_id, registrations.stripe_session_id\)`).
		WithArgs("ada@example.com", "Ada", "Lovelace", nil, nil, "", "cus_1", "cs_1", "completed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertRegistrant(context.Background(), &models.Registrant{
		Email:           "ada@example.com",
		FirstName:       "Ada",
		LastName:        "Lovelace",
		CustomerID:      "cus_1",
		StripeSessionID: strPtr("cs_1"),
		PaymentStatus:   models.PaymentStatusCompleted,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRegistrantWrapsError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO registrations").WillReturnError(errors.New("boom"))

	err := s.UpsertRegistrant(context.Background(), &models.Registrant{Email: "x@example.com"})
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "upsert registrant", storeErr.Op)
}

func TestUpsertCustomer(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO stripe_customers[\s\S]*DO UPDATE`).
		WithArgs("cus_1", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpsertCustomer(context.Background(), models.Customer{CustomerID: "cus_1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureCustomer(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO stripe_customers[\s\S]*DO NOTHING`).
		WithArgs("cus_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO stripe_customers[\s\S]*DO NOTHING`).
		WithArgs("cus_1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := s.EnsureCustomer(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureCustomer(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func testOrder() *models.Order {
	return &models.Order{
		CheckoutSessionID: "cs_1",
		PaymentIntentID:   "pi_1",
		CustomerID:        "cus_1",
		AmountSubtotal:    29700,
		AmountTotal:       29700,
		Currency:          "usd",
		PaymentStatus:     "paid",
		Status:            models.OrderStatusCompleted,
	}
}

func TestInsertOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO stripe_orders[\s\S]*ON CONFLICT \(checkout_session_id\) DO NOTHING`).
		WithArgs("cs_1", "pi_1", "cus_1", int64(29700), int64(29700), "usd", "paid", "completed").
		WillReturnResult(sqlmock.NewResult(1, 1))

	inserted, err := s.InsertOrder(context.Background(), testOrder())
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOrderDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO stripe_orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO stripe_orders").WillReturnError(&pq.Error{Code: "23505"})

	inserted, err := s.InsertOrder(context.Background(), testOrder())
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = s.InsertOrder(context.Background(), testOrder())
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestInsertOrderFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO stripe_orders").WillReturnError(errors.New("connection reset"))

	_, err := s.InsertOrder(context.Background(), testOrder())
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "insert order", storeErr.Op)
}

func TestGetOrderBySessionID(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "checkout_session_id", "payment_intent_id", "customer_id", "amount_subtotal",
		"amount_total", "currency", "payment_status", "status", "created_at"}).
		AddRow(int64(3), "cs_1", "pi_1", "cus_1", int64(29700), int64(29700), "usd", "paid", "completed", now)
	mock.ExpectQuery("FROM stripe_orders").WithArgs("cs_1").WillReturnRows(rows)

	o, err := s.GetOrderBySessionID(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), o.ID)
	assert.Equal(t, "paid", o.PaymentStatus)
	assert.Equal(t, models.OrderStatusCompleted, o.Status)
	assert.Equal(t, int64(29700), o.AmountTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderBySessionIDNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM stripe_orders").WithArgs("cs_missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetOrderBySessionID(context.Background(), "cs_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertSubscriptionNotStartedClearsColumns(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO stripe_subscriptions[\s\S]*ON CONFLICT \(customer_id\) DO UPDATE`).
		WithArgs("cus_1", nil, nil, nil, nil, nil, nil, nil, "not_started").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertSubscription(context.Background(), &models.Subscription{
		CustomerID: "cus_1",
		Status:     models.SubscriptionNotStarted,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubscriptionNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM stripe_subscriptions").WithArgs("cus_404").
		WillReturnRows(sqlmock.NewRows([]string{"customer_id"}))

	_, err := s.GetSubscription(context.Background(), "cus_404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}
