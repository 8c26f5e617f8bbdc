package payments

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"card", &stripe.Error{Type: stripe.ErrorTypeCard, HTTPStatusCode: http.StatusPaymentRequired}, CategoryCard},
		{"rate limit", &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: http.StatusTooManyRequests}, CategoryRateLimited},
		{"invalid request", &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: http.StatusBadRequest}, CategoryInvalidRequest},
		{"api", &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusInternalServerError}, CategoryServiceUnavailable},
		{"auth", &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: http.StatusUnauthorized}, CategoryConfiguration},
		{"wrapped", fmt.Errorf("outer: %w", &stripe.Error{Type: stripe.ErrorTypeCard}), CategoryCard},
		{"network", errors.New("dial tcp: connection refused"), CategoryConnection},
		{"other", &stripe.Error{Type: stripe.ErrorTypeIdempotency, HTTPStatusCode: http.StatusConflict}, CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.want, perr.Category)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, classify("op", nil))
}

func TestUserMessageHidesProviderText(t *testing.T) {
	err := &Error{
		Op:       "create checkout session",
		Category: CategoryInvalidRequest,
		Err:      &stripe.Error{Msg: "No such price: 'price_secret_internal'"},
	}

	assert.NotContains(t, err.UserMessage(), "price_secret_internal")
	assert.Equal(t, userMessages[CategoryInvalidRequest], err.UserMessage())
	assert.Equal(t, userMessages[CategoryUnknown], (&Error{Category: "bogus"}).UserMessage())
}

func TestRetryable(t *testing.T) {
	assert.True(t, (&Error{Category: CategoryConnection}).Retryable())
	assert.True(t, (&Error{Category: CategoryServiceUnavailable}).Retryable())
	assert.True(t, (&Error{Category: CategoryRateLimited}).Retryable())
	assert.False(t, (&Error{Category: CategoryCard}).Retryable())
	assert.False(t, (&Error{Category: CategoryConfiguration}).Retryable())
}
