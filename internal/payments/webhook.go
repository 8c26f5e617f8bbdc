package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/PortNumber53/n8n-masterclass/backend/internal/models"
)

// Event types the reconciler acts on.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	subscriptionEventPrefix       = "customer.subscription."
	invoiceEventPrefix            = "invoice."
)

// VerifyEvent checks the signature header against the raw payload and decodes
// the event into one of the known payload variants. Signature failures return
// an error wrapping ErrSignatureInvalid.
func VerifyEvent(payload []byte, signature, secret string) (models.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return models.WebhookEvent{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	out := models.WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
		Payload: models.IgnoredEvent{},
	}
	if event.Data == nil {
		return out, nil
	}

	p, err := decodePayload(out.Type, event.Data.Raw)
	if err != nil {
		return models.WebhookEvent{}, fmt.Errorf("decode %s event %s: %w", out.Type, out.ID, err)
	}
	out.Payload = p
	return out, nil
}

// expandableID accepts either a bare object id or an expanded object.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type checkoutSessionObject struct {
	ID             string            `json:"id"`
	Mode           string            `json:"mode"`
	PaymentStatus  string            `json:"payment_status"`
	Customer       expandableID      `json:"customer"`
	PaymentIntent  expandableID      `json:"payment_intent"`
	AmountSubtotal int64             `json:"amount_subtotal"`
	AmountTotal    int64             `json:"amount_total"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID       string       `json:"id"`
	Customer expandableID `json:"customer"`
}

type invoiceObject struct {
	Customer     expandableID `json:"customer"`
	Subscription expandableID `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (inv invoiceObject) subscriptionID() string {
	if inv.Subscription != "" {
		return string(inv.Subscription)
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		return string(inv.Parent.SubscriptionDetails.Subscription)
	}
	return ""
}

func decodePayload(eventType string, raw json.RawMessage) (models.EventPayload, error) {
	switch {
	case eventType == EventCheckoutSessionCompleted:
		var obj checkoutSessionObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		return models.CheckoutSessionCompleted{
			SessionID:       obj.ID,
			Mode:            models.CheckoutMode(obj.Mode),
			PaymentStatus:   obj.PaymentStatus,
			CustomerID:      string(obj.Customer),
			PaymentIntentID: string(obj.PaymentIntent),
			AmountSubtotal:  obj.AmountSubtotal,
			AmountTotal:     obj.AmountTotal,
			Currency:        obj.Currency,
			Metadata:        obj.Metadata,
		}, nil

	case strings.HasPrefix(eventType, subscriptionEventPrefix):
		var obj subscriptionObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		if obj.Customer == "" {
			return models.IgnoredEvent{}, nil
		}
		return models.SubscriptionLifecycle{CustomerID: string(obj.Customer), SubscriptionID: obj.ID}, nil

	case strings.HasPrefix(eventType, invoiceEventPrefix):
		var obj invoiceObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		subID := obj.subscriptionID()
		if obj.Customer == "" || subID == "" {
			return models.IgnoredEvent{}, nil
		}
		return models.SubscriptionLifecycle{CustomerID: string(obj.Customer), SubscriptionID: subID}, nil
	}

	return models.IgnoredEvent{}, nil
}
