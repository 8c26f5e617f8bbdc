package models

// CheckoutRequest is the registration form submitted by the landing page.
type CheckoutRequest struct {
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone,omitempty"`
	Company    string `json:"company,omitempty"`
	Experience string `json:"experience"`
	PriceID    string `json:"priceId" validate:"required"`
	SuccessURL string `json:"successUrl" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl" validate:"omitempty,url"`
}

// CheckoutResponse carries the hosted checkout session back to the browser.
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Checkout session metadata keys. The metadata is the only way the webhook
// path learns who paid.
const (
	MetadataFirstName  = "firstName"
	MetadataLastName   = "lastName"
	MetadataEmail      = "email"
	MetadataPhone      = "phone"
	MetadataCompany    = "company"
	MetadataExperience = "experience"
)
