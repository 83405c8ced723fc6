package payment

import (
	"context"
	"fmt"
	"sync/atomic"
)

// SandboxGateway issues orders locally and signs with a shared secret.
// It lets the full reserve/pay/verify flow run without network access.
type SandboxGateway struct {
	keyID   string
	signer  *Signer
	webhook *Signer
	seq     atomic.Int64
}

// NewSandboxGateway creates a sandbox gateway
func NewSandboxGateway(keyID, keySecret, webhookSecret string) *SandboxGateway {
	if keyID == "" {
		keyID = "rzp_test_sandbox"
	}
	if webhookSecret == "" {
		webhookSecret = keySecret
	}
	return &SandboxGateway{
		keyID:   keyID,
		signer:  NewSigner(keySecret),
		webhook: NewSigner(webhookSecret),
	}
}

// CreateOrder returns a sequential sandbox order
func (g *SandboxGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}

	n := g.seq.Add(1)
	return &Order{
		ID:       fmt.Sprintf("order_sandbox_%06d", n),
		Amount:   ToMinorUnits(amount),
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

// SignPayment produces the signature the real checkout would send back
func (g *SandboxGateway) SignPayment(orderID, paymentID string) string {
	return g.signer.PaymentSignature(orderID, paymentID)
}

// SignWebhook produces the signature of a webhook body
func (g *SandboxGateway) SignWebhook(body []byte) string {
	return g.webhook.Sign(body)
}

// VerifyPaymentSignature checks a callback signature
func (g *SandboxGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return g.signer.VerifyPayment(orderID, paymentID, signature)
}

// VerifyWebhookSignature checks a webhook body signature
func (g *SandboxGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return g.webhook.Verify(body, signature)
}

// KeyID returns the sandbox key id
func (g *SandboxGateway) KeyID() string {
	return g.keyID
}

// GetName returns the gateway name
func (g *SandboxGateway) GetName() string {
	return "sandbox"
}
