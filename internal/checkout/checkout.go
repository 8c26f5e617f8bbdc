// Package checkout turns a registration form into a hosted checkout session.
package checkout

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/logging"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/payments"
	"github.com/PortNumber53/n8n-masterclass/backend/internal/telemetry"
)

// sessionIDPlaceholder is replaced by the provider with the checkout session id.
const sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// Provider is the subset of the payment provider the initiator uses.
type Provider interface {
	FindOrCreateCustomer(ctx context.Context, d payments.CustomerDetails) (string, error)
	CreateCheckoutSession(ctx context.Context, req payments.SessionRequest) (*payments.Session, error)
}

// Store records the customer and the pending registrant.
type Store interface {
	UpsertCustomer(ctx context.Context, c models.Customer) error
	UpsertRegistrant(ctx context.Context, r *models.Registrant) error
}

// Defaults fill in redirect targets a request leaves empty.
type Defaults struct {
	SuccessURL string
	CancelURL  string
}

// ValidationError lists the request fields that are missing or malformed,
// by their JSON names.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "Missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "Invalid fields: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// Initiator creates checkout sessions.
type Initiator struct {
	provider Provider
	store    Store
	defaults Defaults
	validate *validator.Validate
	logger   *zap.Logger
}

// NewInitiator wires an Initiator. store may be nil, in which case local
// bookkeeping is skipped.
func NewInitiator(provider Provider, store Store, defaults Defaults, logger *zap.Logger) *Initiator {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Initiator{
		provider: provider,
		store:    store,
		defaults: defaults,
		validate: v,
		logger:   logger,
	}
}

// Initiate validates req, makes sure the provider knows the customer, records
// the pending registration and opens a checkout session. Local persistence
// failures are logged and do not stop the checkout.
func (i *Initiator) Initiate(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout.Initiate")
	defer span.End()

	req = i.normalize(req)
	log := i.logger.With(zap.String("email", logging.RedactEmail(req.Email)), zap.String("price_id", req.PriceID))

	if err := i.check(req); err != nil {
		telemetry.CheckoutSessionsTotal.WithLabelValues("invalid").Inc()
		log.Warn("rejected checkout request", zap.Error(err))
		return nil, err
	}

	if p, ok := models.ProductByPriceID(req.PriceID); ok {
		span.SetAttributes(attribute.String("product.id", p.ID))
	} else {
		log.Warn("price is not in the local catalog")
	}

	customerID, err := i.provider.FindOrCreateCustomer(ctx, payments.CustomerDetails{
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Company:    req.Company,
		Experience: req.Experience,
	})
	if err != nil {
		return nil, i.fail(span, log, "customer lookup failed", err)
	}
	log = log.With(zap.String("customer_id", customerID))

	i.record(ctx, log, req, customerID)

	sess, err := i.provider.CreateCheckoutSession(ctx, payments.SessionRequest{
		CustomerID: customerID,
		PriceID:    req.PriceID,
		Mode:       models.CheckoutModePayment,
		SuccessURL: withSessionID(req.SuccessURL),
		CancelURL:  req.CancelURL,
		Metadata: map[string]string{
			models.MetadataFirstName:  req.FirstName,
			models.MetadataLastName:   req.LastName,
			models.MetadataEmail:      req.Email,
			models.MetadataPhone:      req.Phone,
			models.MetadataCompany:    req.Company,
			models.MetadataExperience: req.Experience,
		},
	})
	if err != nil {
		return nil, i.fail(span, log, "checkout session creation failed", err)
	}

	telemetry.CheckoutSessionsTotal.WithLabelValues("created").Inc()
	log.Info("created checkout session", zap.String("session_id", sess.ID))
	return &models.CheckoutResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

func (i *Initiator) normalize(req models.CheckoutRequest) models.CheckoutRequest {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = NormalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Company = strings.TrimSpace(req.Company)
	req.PriceID = strings.TrimSpace(req.PriceID)
	if req.SuccessURL == "" {
		req.SuccessURL = i.defaults.SuccessURL
	}
	if req.CancelURL == "" {
		req.CancelURL = i.defaults.CancelURL
	}
	return req
}

// withSessionID makes the provider append the session id to the success
// redirect so the thank-you page can look up the order.
func withSessionID(successURL string) string {
	if successURL == "" || strings.Contains(successURL, sessionIDPlaceholder) {
		return successURL
	}
	sep := "?"
	if strings.Contains(successURL, "?") {
		sep = "&"
	}
	return successURL + sep + "session_id=" + sessionIDPlaceholder
}

func (i *Initiator) check(req models.CheckoutRequest) error {
	err := i.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			verr.Missing = append(verr.Missing, fe.Field())
		} else {
			verr.Invalid = append(verr.Invalid, fe.Field())
		}
	}
	return verr
}

func (i *Initiator) record(ctx context.Context, log *zap.Logger, req models.CheckoutRequest, customerID string) {
	if i.store == nil {
		return
	}

	if err := i.store.UpsertCustomer(ctx, models.Customer{CustomerID: customerID}); err != nil {
		log.Error("failed to save customer, continuing with checkout", zap.Error(err))
	}

	err := i.store.UpsertRegistrant(ctx, &models.Registrant{
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           optional(req.Phone),
		Company:         optional(req.Company),
		ExperienceLevel: req.Experience,
		PaymentStatus:   models.PaymentStatusPending,
		CustomerID:      customerID,
	})
	if err != nil {
		log.Error("failed to save registration, continuing with checkout", zap.Error(err))
	}
}

func (i *Initiator) fail(span trace.Span, log *zap.Logger, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	outcome := "error"
	var perr *payments.Error
	if errors.As(err, &perr) {
		outcome = string(perr.Category)
	}
	telemetry.CheckoutSessionsTotal.WithLabelValues(outcome).Inc()
	log.Error(msg, zap.Error(err))
	return err
}

// NormalizeEmail trims and lower-cases an email so both the checkout and
// webhook paths key registrants identically.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
