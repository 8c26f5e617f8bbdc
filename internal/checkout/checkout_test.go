package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/payments"
)

type fakeProvider struct {
	customerErr error
	sessionErr  error
	customers   map[string]string
	sessions    []payments.SessionRequest
}

func (f *fakeProvider) FindOrCreateCustomer(_ context.Context, d payments.CustomerDetails) (string, error) {
	if f.customerErr != nil {
		return "", f.customerErr
	}
	if f.customers == nil {
		f.customers = map[string]string{}
	}
	if id, ok := f.customers[d.Email]; ok {
		return id, nil
	}
	id := "cus_" + d.FirstName
	f.customers[d.Email] = id
	return id, nil
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (*payments.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	f.sessions = append(f.sessions, req)
	return &payments.Session{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

// memStore keys registrants by email the way the unique index does.
type memStore struct {
	mu          sync.Mutex
	customers   map[string]models.Customer
	registrants map[string]models.Registrant
	err         error
}

func newMemStore() *memStore {
	return &memStore{customers: map[string]models.Customer{}, registrants: map[string]models.Registrant{}}
}

func (m *memStore) UpsertCustomer(_ context.Context, c models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.customers[c.CustomerID] = c
	return nil
}

func (m *memStore) UpsertRegistrant(_ context.Context, r *models.Registrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.registrants[r.Email] = *r
	return nil
}

func validRequest() models.CheckoutRequest {
	return models.CheckoutRequest{
		FirstName:  "A",
		LastName:   "B",
		Email:      "a@b.com",
		PriceID:    "price_x",
		SuccessURL: "https://x/?success=true",
		CancelURL:  "https://x/?canceled=true",
		Experience: "beginner",
	}
}

func TestInitiateCreatesSession(t *testing.T) {
	provider := &fakeProvider{}
	store := newMemStore()
	in := NewInitiator(provider, store, Defaults{}, zap.NewNop())

	resp, err := in.Initiate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", resp.SessionID)
	assert.Contains(t, resp.URL, "checkout.stripe.com")

	require.Len(t, provider.sessions, 1)
	sess := provider.sessions[0]
	assert.Equal(t, "cus_A", sess.CustomerID)
	assert.Equal(t, models.CheckoutModePayment, sess.Mode)
	assert.Equal(t, "a@b.com", sess.Metadata[models.MetadataEmail])
	assert.Equal(t, "A", sess.Metadata[models.MetadataFirstName])
	assert.Equal(t, "beginner", sess.Metadata[models.MetadataExperience])
	assert.Equal(t, "", sess.Metadata[models.MetadataPhone])

	reg := store.registrants["a@b.com"]
	assert.Equal(t, models.PaymentStatusPending, reg.PaymentStatus)
	assert.Equal(t, "cus_A", reg.CustomerID)
	assert.Nil(t, reg.Phone)
	assert.Contains(t, store.customers, "cus_A")
}

func TestInitiateTwiceKeepsOneRegistrant(t *testing.T) {
	store := newMemStore()
	in := NewInitiator(&fakeProvider{}, store, Defaults{}, zap.NewNop())

	_, err := in.Initiate(context.Background(), validRequest())
	require.NoError(t, err)

	again := validRequest()
	again.Email = "  A@B.com "
	again.Company = "Acme"
	_, err = in.Initiate(context.Background(), again)
	require.NoError(t, err)

	require.Len(t, store.registrants, 1)
	require.NotNil(t, store.registrants["a@b.com"].Company)
	assert.Equal(t, "Acme", *store.registrants["a@b.com"].Company)
	assert.Len(t, store.customers, 1)
}

func TestInitiateValidation(t *testing.T) {
	provider := &fakeProvider{}
	in := NewInitiator(provider, newMemStore(), Defaults{}, zap.NewNop())

	_, err := in.Initiate(context.Background(), models.CheckoutRequest{Email: "a@b.com"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"firstName", "lastName", "priceId"}, verr.Missing)
	assert.Equal(t, "Missing required fields: firstName, lastName, priceId", verr.Error())
	assert.Empty(t, provider.sessions)

	bad := validRequest()
	bad.Email = "not-an-email"
	_, err = in.Initiate(context.Background(), bad)
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, verr.Missing)
	assert.Equal(t, []string{"email"}, verr.Invalid)
}

func TestInitiateAppliesDefaultURLs(t *testing.T) {
	provider := &fakeProvider{}
	in := NewInitiator(provider, nil, Defaults{SuccessURL: "https://site/?success=true", CancelURL: "https://site/?canceled=true"}, zap.NewNop())

	req := validRequest()
	req.SuccessURL = ""
	req.CancelURL = ""
	_, err := in.Initiate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, provider.sessions, 1)
	assert.Equal(t, "https://site/?success=true&session_id={CHECKOUT_SESSION_ID}", provider.sessions[0].SuccessURL)
	assert.Equal(t, "https://site/?canceled=true", provider.sessions[0].CancelURL)
}

func TestWithSessionID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x/thanks", "https://x/thanks?session_id={CHECKOUT_SESSION_ID}"},
		{"https://x/?success=true", "https://x/?success=true&session_id={CHECKOUT_SESSION_ID}"},
		{"https://x/?sid={CHECKOUT_SESSION_ID}", "https://x/?sid={CHECKOUT_SESSION_ID}"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withSessionID(tt.in), tt.in)
	}
}

func TestInitiateContinuesWhenPersistenceFails(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("database unavailable")
	in := NewInitiator(&fakeProvider{}, store, Defaults{}, zap.NewNop())

	resp, err := in.Initiate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", resp.SessionID)
}

func TestInitiateProviderErrors(t *testing.T) {
	rejected := &payments.Error{Op: "create checkout session", Category: payments.CategoryInvalidRequest, Err: errors.New("no such price")}

	in := NewInitiator(&fakeProvider{sessionErr: rejected}, newMemStore(), Defaults{}, zap.NewNop())
	_, err := in.Initiate(context.Background(), validRequest())
	var perr *payments.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, payments.CategoryInvalidRequest, perr.Category)

	store := newMemStore()
	unavailable := &payments.Error{Op: "list customers", Category: payments.CategoryConnection, Err: errors.New("dial tcp")}
	in = NewInitiator(&fakeProvider{customerErr: unavailable}, store, Defaults{}, zap.NewNop())
	_, err = in.Initiate(context.Background(), validRequest())
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Retryable())
	assert.Empty(t, store.registrants)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM\n"))
}
