package models

// CheckoutMode is the provider checkout mode a product is sold with.
type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

// Product is a sellable item and its provider price.
type Product struct {
	ID          string       `json:"id"`
	PriceID     string       `json:"priceId"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Mode        CheckoutMode `json:"mode"`
	PriceCents  int64        `json:"priceCents"`
	Currency    string       `json:"currency"`
}

// Products is the catalog offered on the landing page.
var Products = []Product{
	{
		ID:          "prod_SYe4KR3Cc2nbir",
		PriceID:     "price_1RdWmNKsSe9AMVPFcox1OLHf",
		Name:        "n8n MasterClass - Creating Agents and Automations",
		Description: "Master workflow automation from beginner to advanced user. Build powerful agents and connect your entire tech stack.",
		Mode:        CheckoutModePayment,
		PriceCents:  29700,
		Currency:    "usd",
	},
}

// ProductByPriceID returns the catalog product sold at priceID.
func ProductByPriceID(priceID string) (Product, bool) {
	for _, p := range Products {
		if p.PriceID == priceID {
			return p, true
		}
	}
	return Product{}, false
}
