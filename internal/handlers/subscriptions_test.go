package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
)

type stubSyncer struct {
	customers []string
	err       error
}

func (s *stubSyncer) Sync(_ context.Context, customerID string) error {
	s.customers = append(s.customers, customerID)
	return s.err
}

type stubSubReader struct{}

func (stubSubReader) GetSubscription(_ context.Context, customerID string) (*models.Subscription, error) {
	return &models.Subscription{CustomerID: customerID, Status: models.SubscriptionNotStarted}, nil
}

func syncRequestWith(token, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/billing/subscriptions/sync", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestSyncSubscription(t *testing.T) {
	syncer := &stubSyncer{}
	rr := httptest.NewRecorder()

	SyncSubscription(syncer, stubSubReader{}, "s3cret", zap.NewNop()).ServeHTTP(rr, syncRequestWith("s3cret", `{"customerId":"cus_1"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"cus_1"}, syncer.customers)
	assert.Contains(t, rr.Body.String(), `"status":"not_started"`)
}

func TestSyncSubscriptionRejects(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		body      string
		syncErr   error
		status    int
		wantCalls int
	}{
		{"no token", "", `{"customerId":"cus_1"}`, nil, http.StatusUnauthorized, 0},
		{"wrong token", "nope", `{"customerId":"cus_1"}`, nil, http.StatusUnauthorized, 0},
		{"missing customer", "s3cret", `{}`, nil, http.StatusBadRequest, 0},
		{"bad json", "s3cret", `{`, nil, http.StatusBadRequest, 0},
		{"sync failure", "s3cret", `{"customerId":"cus_1"}`, errors.New("db down"), http.StatusInternalServerError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &stubSyncer{err: tt.syncErr}
			rr := httptest.NewRecorder()
			SyncSubscription(syncer, stubSubReader{}, "s3cret", zap.NewNop()).ServeHTTP(rr, syncRequestWith(tt.token, tt.body))

			assert.Equal(t, tt.status, rr.Code)
			assert.Len(t, syncer.customers, tt.wantCalls)
		})
	}
}

func TestBearerMatchesRequiresConfiguredToken(t *testing.T) {
	assert.False(t, bearerMatches(syncRequestWith("", ""), ""))
	assert.False(t, bearerMatches(syncRequestWith("anything", ""), ""))
}
