package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
)

// SubscriptionSyncer refreshes the local subscription mirror for a customer.
type SubscriptionSyncer interface {
	Sync(ctx context.Context, customerID string) error
}

// SubscriptionReader loads the local subscription mirror.
type SubscriptionReader interface {
	GetSubscription(ctx context.Context, customerID string) (*models.Subscription, error)
}

type syncRequest struct {
	CustomerID string `json:"customerId"`
}

// SyncSubscription lets an operator force a subscription sync. Unlike the
// webhook path, failures are returned to the caller.
func SyncSubscription(syncer SubscriptionSyncer, reader SubscriptionReader, adminToken string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !bearerMatches(r, adminToken) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req syncRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckoutBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		req.CustomerID = strings.TrimSpace(req.CustomerID)
		if req.CustomerID == "" {
			writeError(w, http.StatusBadRequest, "customerId is required")
			return
		}

		log := logger.With(zap.String("customer_id", req.CustomerID))
		if err := syncer.Sync(r.Context(), req.CustomerID); err != nil {
			log.Error("manual subscription sync failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "subscription sync failed")
			return
		}

		sub, err := reader.GetSubscription(r.Context(), req.CustomerID)
		if err != nil {
			log.Error("failed to read synced subscription", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load subscription")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subscription": sub})
	}
}

func bearerMatches(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}
