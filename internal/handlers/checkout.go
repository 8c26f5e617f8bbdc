package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/checkout"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/payments"
)

const maxCheckoutBody = 64 << 10

// CheckoutInitiator starts a hosted checkout.
type CheckoutInitiator interface {
	Initiate(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error)
}

func setCheckoutCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// CreateCheckoutSession handles the registration form submission.
func CreateCheckoutSession(initiator CheckoutInitiator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCheckoutCORS(w)

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
			return
		case http.MethodPost:
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var req models.CheckoutRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckoutBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}

		resp, err := initiator.Initiate(r.Context(), req)
		if err != nil {
			var verr *checkout.ValidationError
			var perr *payments.Error
			switch {
			case errors.As(err, &verr):
				writeError(w, http.StatusBadRequest, verr.Error())
			case errors.As(err, &perr):
				writeError(w, http.StatusInternalServerError, perr.UserMessage())
			default:
				logger.Error("checkout failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
