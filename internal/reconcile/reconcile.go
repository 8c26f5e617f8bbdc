// Package reconcile applies verified payment-provider events to the local
// registration, customer, order and subscription records.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/checkout"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/logging"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/telemetry"
)

const (
	paymentStatusPaid = "paid"
	defaultCurrency   = "usd"
)

// Store is the persistence the reconciler writes to.
type Store interface {
	UpsertRegistrant(ctx context.Context, r *models.Registrant) error
	EnsureCustomer(ctx context.Context, customerID string) (bool, error)
	InsertOrder(ctx context.Context, o *models.Order) (bool, error)
}

// Syncer refreshes a customer's subscription mirror.
type Syncer interface {
	Sync(ctx context.Context, customerID string) error
}

// Publisher announces completed registrations to downstream consumers.
type Publisher interface {
	PublishRegistrationCompleted(ctx context.Context, evt models.RegistrationCompleted) error
}

// Reconciler handles one verified event at a time. It holds no per-event
// state, so concurrent calls are safe.
type Reconciler struct {
	store     Store
	syncer    Syncer
	publisher Publisher
	logger    *zap.Logger
}

// NewReconciler wires a Reconciler. publisher may be nil.
func NewReconciler(store Store, syncer Syncer, publisher Publisher, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, syncer: syncer, publisher: publisher, logger: logger}
}

// Handle applies ev. Each step runs even when an earlier one failed; the
// returned error joins every step failure and is meant for logging only.
func (r *Reconciler) Handle(ctx context.Context, ev models.WebhookEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "reconcile.Handle")
	span.SetAttributes(attribute.String("event.id", ev.ID), attribute.String("event.type", ev.Type))
	defer span.End()

	log := r.logger.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	var err error
	switch p := ev.Payload.(type) {
	case models.CheckoutSessionCompleted:
		err = r.handleCheckout(ctx, log, ev, p)
	case models.SubscriptionLifecycle:
		err = r.sync(ctx, p.CustomerID)
	default:
		log.Debug("ignoring event")
		telemetry.WebhookEventsTotal.WithLabelValues(ev.Type, "ignored").Inc()
		return nil
	}

	outcome := "processed"
	if err != nil {
		outcome = "failed"
		span.RecordError(err)
	}
	telemetry.WebhookEventsTotal.WithLabelValues(ev.Type, outcome).Inc()
	return err
}

func (r *Reconciler) sync(ctx context.Context, customerID string) error {
	if customerID == "" || r.syncer == nil {
		return nil
	}
	return r.syncer.Sync(ctx, customerID)
}

func (r *Reconciler) handleCheckout(ctx context.Context, log *zap.Logger, ev models.WebhookEvent, p models.CheckoutSessionCompleted) error {
	log = log.With(zap.String("session_id", p.SessionID), zap.String("customer_id", p.CustomerID))

	if p.Mode == models.CheckoutModeSubscription {
		return r.sync(ctx, p.CustomerID)
	}
	if p.Mode != models.CheckoutModePayment || p.PaymentStatus != paymentStatusPaid {
		log.Info("checkout session not paid, nothing to record",
			zap.String("mode", string(p.Mode)), zap.String("payment_status", p.PaymentStatus))
		return nil
	}

	var errs []error

	if p.CustomerID != "" {
		created, err := r.store.EnsureCustomer(ctx, p.CustomerID)
		if err != nil {
			errs = append(errs, r.stepFailed(log, "customer", err))
		} else if created {
			log.Info("created customer")
		}
	}

	reg, hasIdentity := registrantFromMetadata(p)
	if hasIdentity {
		if err := r.store.UpsertRegistrant(ctx, reg); err != nil {
			errs = append(errs, r.stepFailed(log, "registrant", err))
		} else {
			log.Info("registration completed", zap.String("email", logging.RedactEmail(reg.Email)))
		}
	} else {
		log.Warn("missing required metadata in session, skipping registration update")
	}

	if p.CustomerID == "" {
		log.Warn("session has no customer, skipping order")
		return errors.Join(errs...)
	}

	inserted, err := r.store.InsertOrder(ctx, orderFromSession(p))
	switch {
	case err != nil:
		errs = append(errs, r.stepFailed(log, "order", err))
	case !inserted:
		telemetry.OrdersRecordedTotal.WithLabelValues("duplicate").Inc()
		log.Info("order already recorded")
	default:
		telemetry.OrdersRecordedTotal.WithLabelValues("inserted").Inc()
		log.Info("order recorded")
		if hasIdentity {
			r.publish(ctx, log, ev, p, reg)
		}
	}

	return errors.Join(errs...)
}

func (r *Reconciler) publish(ctx context.Context, log *zap.Logger, ev models.WebhookEvent, p models.CheckoutSessionCompleted, reg *models.Registrant) {
	if r.publisher == nil {
		return
	}

	occurred := ev.Created
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	err := r.publisher.PublishRegistrationCompleted(ctx, models.RegistrationCompleted{
		EventID:           ev.ID,
		Email:             reg.Email,
		FirstName:         reg.FirstName,
		LastName:          reg.LastName,
		CustomerID:        p.CustomerID,
		CheckoutSessionID: p.SessionID,
		AmountTotal:       p.AmountTotal,
		Currency:          orDefault(p.Currency, defaultCurrency),
		OccurredAt:        occurred,
	})
	if err != nil {
		r.stepFailed(log, "publish", err)
	}
}

func (r *Reconciler) stepFailed(log *zap.Logger, step string, err error) error {
	telemetry.ReconcileStepFailuresTotal.WithLabelValues(step).Inc()
	log.Error("reconcile step failed", zap.String("step", step), zap.Error(err))
	return fmt.Errorf("%s: %w", step, err)
}

func registrantFromMetadata(p models.CheckoutSessionCompleted) (*models.Registrant, bool) {
	md := p.Metadata
	first, last := md[models.MetadataFirstName], md[models.MetadataLastName]
	email := checkout.NormalizeEmail(md[models.MetadataEmail])
	if first == "" || last == "" || email == "" {
		return nil, false
	}

	sessionID := p.SessionID
	return &models.Registrant{
		Email:           email,
		FirstName:       first,
		LastName:        last,
		Phone:           optional(md[models.MetadataPhone]),
		Company:         optional(md[models.MetadataCompany]),
		ExperienceLevel: md[models.MetadataExperience],
		PaymentStatus:   models.PaymentStatusCompleted,
		CustomerID:      p.CustomerID,
		StripeSessionID: &sessionID,
	}, true
}

func orderFromSession(p models.CheckoutSessionCompleted) *models.Order {
	return &models.Order{
		CheckoutSessionID: p.SessionID,
		PaymentIntentID:   p.PaymentIntentID,
		CustomerID:        p.CustomerID,
		AmountSubtotal:    p.AmountSubtotal,
		AmountTotal:       p.AmountTotal,
		Currency:          orDefault(p.Currency, defaultCurrency),
		PaymentStatus:     orDefault(p.PaymentStatus, paymentStatusPaid),
		Status:            models.OrderStatusCompleted,
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
