package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/dedup"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/payments"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/telemetry"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/worker"
)

const (
	maxWebhookBody  = 1 << 20
	signatureHeader = "Stripe-Signature"
)

// EventVerifier authenticates and decodes a raw webhook delivery.
type EventVerifier func(payload []byte, signature string) (models.WebhookEvent, error)

// EventHandler applies a verified event.
type EventHandler interface {
	Handle(ctx context.Context, ev models.WebhookEvent) error
}

// Dispatcher runs work after the response has been written.
type Dispatcher interface {
	Submit(name string, fn worker.TaskFunc) (string, error)
	RunInline(ctx context.Context, name string, fn worker.TaskFunc) error
}

// WebhookDeps are the collaborators of the webhook receiver. Dedup may be nil.
type WebhookDeps struct {
	Verify     EventVerifier
	Handler    EventHandler
	Dispatcher Dispatcher
	Dedup      dedup.Deduper
	Logger     *zap.Logger
}

// StripeWebhook verifies provider events, acknowledges them and hands them
// to the background dispatcher. Once a signature checks out the provider
// always gets a 200.
func StripeWebhook(deps WebhookDeps) http.HandlerFunc {
	if deps.Dedup == nil {
		deps.Dedup = dedup.Noop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodPost:
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		signature := r.Header.Get(signatureHeader)
		if signature == "" {
			writeError(w, http.StatusBadRequest, "No signature found")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}

		ev, err := deps.Verify(body, signature)
		if err != nil {
			if errors.Is(err, payments.ErrSignatureInvalid) {
				telemetry.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
				logger.Warn("webhook signature verification failed", zap.Error(err))
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			telemetry.WebhookEventsTotal.WithLabelValues("unknown", "undecodable").Inc()
			logger.Error("verified webhook could not be decoded", zap.Error(err))
			writeJSON(w, http.StatusOK, map[string]any{"received": true})
			return
		}

		log := logger.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

		first, err := deps.Dedup.MarkSeen(r.Context(), ev.ID)
		if err != nil {
			log.Warn("event dedup unavailable, processing anyway", zap.Error(err))
			first = true
		}
		if !first {
			telemetry.WebhookEventsTotal.WithLabelValues(ev.Type, "duplicate").Inc()
			log.Info("duplicate webhook event acknowledged")
			writeJSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
			return
		}

		task := func(ctx context.Context) error {
			return deps.Handler.Handle(ctx, ev)
		}
		taskName := "webhook:" + ev.Type

		if _, err := deps.Dispatcher.Submit(taskName, task); err != nil {
			log.Warn("background queue unavailable, processing inline", zap.Error(err))
			_ = deps.Dispatcher.RunInline(r.Context(), taskName, task)
		}

		log.Info("webhook event accepted")
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
	}
}
