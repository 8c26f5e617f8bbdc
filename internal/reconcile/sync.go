package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/telemetry"
)

// SubscriptionSource returns the provider's latest subscription for a
// customer, or nil when there is none.
type SubscriptionSource interface {
	LatestSubscription(ctx context.Context, customerID string) (*models.ProviderSubscription, error)
}

// SubscriptionStore persists the local subscription mirror.
type SubscriptionStore interface {
	EnsureCustomer(ctx context.Context, customerID string) (bool, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
}

// Synchronizer copies a customer's provider subscription state into the store.
type Synchronizer struct {
	source SubscriptionSource
	store  SubscriptionStore
	logger *zap.Logger
}

func NewSynchronizer(source SubscriptionSource, store SubscriptionStore, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{source: source, store: store, logger: logger}
}

// Sync replaces the stored subscription row for customerID with the
// provider's latest subscription. Every failure is returned.
func (s *Synchronizer) Sync(ctx context.Context, customerID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "reconcile.Sync")
	span.SetAttributes(attribute.String("customer.id", customerID))
	defer func() {
		outcome := "synced"
		if err != nil {
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, "subscription sync failed")
		}
		telemetry.SubscriptionSyncsTotal.WithLabelValues(outcome).Inc()
		span.End()
	}()

	if customerID == "" {
		return errors.New("sync subscription: customer id is required")
	}
	log := s.logger.With(zap.String("customer_id", customerID))

	created, err := s.store.EnsureCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("sync subscription: ensure customer: %w", err)
	}
	if created {
		log.Info("created customer for subscription")
	}

	sub, err := s.source.LatestSubscription(ctx, customerID)
	if err != nil {
		return fmt.Errorf("sync subscription: fetch: %w", err)
	}

	row := subscriptionRow(customerID, sub)
	if err := s.store.UpsertSubscription(ctx, row); err != nil {
		return fmt.Errorf("sync subscription: store: %w", err)
	}

	log.Info("synced subscription", zap.String("status", string(row.Status)))
	return nil
}

func subscriptionRow(customerID string, sub *models.ProviderSubscription) *models.Subscription {
	row := &models.Subscription{CustomerID: customerID, Status: models.SubscriptionNotStarted}
	if sub == nil {
		return row
	}

	row.Status = sub.Status
	row.SubscriptionID = optional(sub.ID)
	row.PriceID = optional(sub.PriceID)
	if !sub.CurrentPeriodStart.IsZero() {
		start := sub.CurrentPeriodStart
		row.CurrentPeriodStart = &start
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		row.CurrentPeriodEnd = &end
	}
	cancel := sub.CancelAtPeriodEnd
	row.CancelAtPeriodEnd = &cancel
	row.PaymentMethodBrand = optional(sub.CardBrand)
	row.PaymentMethodLast4 = optional(sub.CardLast4)
	return row
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
