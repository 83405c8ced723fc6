package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RazorpayGateway creates orders against a Razorpay-compatible REST API
type RazorpayGateway struct {
	apiURL    string
	keyID     string
	keySecret string
	signer    *Signer
	webhook   *Signer
	client    *http.Client
}

// RazorpayConfig holds configuration for the Razorpay gateway
type RazorpayConfig struct {
	APIURL        string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

// NewRazorpayGateway creates a new Razorpay gateway client
func NewRazorpayGateway(config RazorpayConfig) *RazorpayGateway {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RazorpayGateway{
		apiURL:    strings.TrimRight(config.APIURL, "/"),
		keyID:     config.KeyID,
		keySecret: config.KeySecret,
		signer:    NewSigner(config.KeySecret),
		webhook:   NewSigner(config.WebhookSecret),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// createOrderRequest is the body of POST /orders
type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// apiError is the error envelope returned by the gateway
type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder registers a new order with the gateway
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (*Order, error) {
	if g.keyID == "" || g.keySecret == "" {
		return nil, fmt.Errorf("payment gateway not configured: missing key credentials")
	}

	body, err := json.Marshal(createOrderRequest{
		Amount:   ToMinorUnits(amount),
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("payment gateway returned status %d: %s: %s",
				resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var order Order
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("payment gateway returned an order without id")
	}

	return &order, nil
}

// VerifyPaymentSignature checks a checkout callback signature
func (g *RazorpayGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return g.signer.VerifyPayment(orderID, paymentID, signature)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature of a webhook body
func (g *RazorpayGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return g.webhook.Verify(body, signature)
}

// KeyID returns the public key id
func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

// GetName returns the gateway name
func (g *RazorpayGateway) GetName() string {
	return "razorpay"
}
