package payment

import (
	"context"
	"math"
)

// Order is the gateway's descriptor for one payment attempt
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // minor units (paise)
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Gateway is the narrow contract the booking engine needs from a payment provider
type Gateway interface {
	// CreateOrder registers an order for amount (major units) and returns its descriptor
	CreateOrder(ctx context.Context, amount float64, currency, receipt string) (*Order, error)

	// VerifyPaymentSignature checks a client callback signature over orderID and paymentID
	VerifyPaymentSignature(orderID, paymentID, signature string) bool

	// VerifyWebhookSignature checks a server-to-server webhook body signature
	VerifyWebhookSignature(body []byte, signature string) bool

	// KeyID is the public key the client checkout is opened with
	KeyID() string

	// GetName returns the gateway name
	GetName() string
}

// ToMinorUnits converts a major-unit amount to paise, rounding to the nearest unit
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts paise back to a major-unit amount
func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}
