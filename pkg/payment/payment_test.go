package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOrderID   = "order_IluGWxBm9U8zJ8"
	testPaymentID = "pay_IluGZB5XrR1b1X"
	testSignature = "26e0c147455b8f320b3a886c7b90d99e31acc641d3eb8334b8be321a5d45ffef"
)

func TestSigner_PaymentSignature(t *testing.T) {
	s := NewSigner("test_secret")

	assert.Equal(t, testSignature, s.PaymentSignature(testOrderID, testPaymentID))
	assert.True(t, s.VerifyPayment(testOrderID, testPaymentID, testSignature))
}

func TestSigner_RejectsTampering(t *testing.T) {
	s := NewSigner("test_secret")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
	}{
		{"flipped signature char", testOrderID, testPaymentID, "36e0c147455b8f320b3a886c7b90d99e31acc641d3eb8334b8be321a5d45ffef"},
		{"other payment id", testOrderID, "pay_other", testSignature},
		{"other order id", "order_other", testPaymentID, testSignature},
		{"empty signature", testOrderID, testPaymentID, ""},
		{"truncated signature", testOrderID, testPaymentID, testSignature[:10]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, s.VerifyPayment(tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func TestSigner_EmptySecretNeverVerifies(t *testing.T) {
	s := NewSigner("")
	assert.False(t, s.VerifyPayment(testOrderID, testPaymentID, s.PaymentSignature(testOrderID, testPaymentID)))
}

func TestSigner_Webhook(t *testing.T) {
	s := NewSigner("whsec")
	body := []byte(`{"event":"payment.captured"}`)

	assert.Equal(t, "4673dd707ef4c41b987cb7fefe1583142dc702388c93145b7814b9ad3d3c183e", s.Sign(body))
	assert.True(t, s.Verify(body, s.Sign(body)))
	assert.False(t, s.Verify([]byte(`{"event":"payment.failed"}`), s.Sign(body)))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(150000), ToMinorUnits(1500))
	assert.Equal(t, int64(1999), ToMinorUnits(19.99))
	assert.Equal(t, int64(0), ToMinorUnits(0))
	assert.Equal(t, 19.99, FromMinorUnits(1999))
}

func TestRazorpayGateway_CreateOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/orders", r.URL.Path)

			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "rzp_test_key", user)
			assert.Equal(t, "test_secret", pass)

			var body createOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, int64(150000), body.Amount)
			assert.Equal(t, "INR", body.Currency)
			assert.Equal(t, "booking-1", body.Receipt)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"order_abc","amount":150000,"currency":"INR","receipt":"booking-1","status":"created"}`))
		}))
		defer server.Close()

		gw := NewRazorpayGateway(RazorpayConfig{
			APIURL:    server.URL + "/v1/",
			KeyID:     "rzp_test_key",
			KeySecret: "test_secret",
		})

		order, err := gw.CreateOrder(context.Background(), 1500, "INR", "booking-1")
		require.NoError(t, err)
		assert.Equal(t, "order_abc", order.ID)
		assert.Equal(t, int64(150000), order.Amount)
		assert.Equal(t, "created", order.Status)
	})

	t.Run("Gateway Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
		}))
		defer server.Close()

		gw := NewRazorpayGateway(RazorpayConfig{APIURL: server.URL, KeyID: "k", KeySecret: "s"})

		order, err := gw.CreateOrder(context.Background(), 0, "INR", "booking-1")
		assert.Nil(t, order)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BAD_REQUEST_ERROR")
	})

	t.Run("Missing Credentials", func(t *testing.T) {
		gw := NewRazorpayGateway(RazorpayConfig{APIURL: "http://unused"})

		_, err := gw.CreateOrder(context.Background(), 10, "INR", "booking-1")
		assert.Error(t, err)
	})
}

func TestSandboxGateway(t *testing.T) {
	gw := NewSandboxGateway("", "test_secret", "")

	first, err := gw.CreateOrder(context.Background(), 1500, "INR", "booking-1")
	require.NoError(t, err)
	second, err := gw.CreateOrder(context.Background(), 1500, "INR", "booking-2")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(150000), first.Amount)
	assert.Equal(t, "rzp_test_sandbox", gw.KeyID())

	sig := gw.SignPayment(first.ID, "pay_1")
	assert.True(t, gw.VerifyPaymentSignature(first.ID, "pay_1", sig))
	assert.False(t, gw.VerifyPaymentSignature(second.ID, "pay_1", sig))

	body := []byte(`{"event":"payment.captured"}`)
	assert.True(t, gw.VerifyWebhookSignature(body, gw.SignWebhook(body)))
}
