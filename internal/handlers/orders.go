package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/store"
)

// OrderLookup finds the order recorded for a checkout session.
type OrderLookup interface {
	GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
}

// OrderStatus reports whether the checkout session the thank-you page was
// redirected from has been recorded as paid. The session id is only known
// to the browser that completed checkout.
func OrderStatus(lookup OrderLookup, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id query parameter is required")
			return
		}

		order, err := lookup.GetOrderBySessionID(r.Context(), sessionID)
		if errors.Is(err, store.ErrNotFound) {
			// the webhook may not have landed yet
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		if err != nil {
			logger.Error("order lookup failed", zap.String("session_id", sessionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load order")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId":     order.CheckoutSessionID,
			"paymentStatus": order.PaymentStatus,
			"status":        order.Status,
		})
	}
}
