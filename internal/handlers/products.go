package handlers

import (
	"net/http"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
)

// Products returns the course catalog.
func Products() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"products": models.Products})
	}
}
