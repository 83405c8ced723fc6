package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/schoolhub/booking-backend/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCaller = models.CallerInfo{IPAddress: "203.0.113.7", UserAgent: "test", Device: "desktop / Linux / test"}

func (e *testEnv) verifyRequest(b *models.Booking, orderID, paymentID string) models.VerifyPaymentRequest {
	return models.VerifyPaymentRequest{
		BookingID:         b.ID,
		RazorpayOrderID:   orderID,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: e.gateway.SignPayment(orderID, paymentID),
	}
}

func auditTypes(t *testing.T, env *testEnv, bookingID string) []models.PaymentEventType {
	t.Helper()
	audits, err := env.store.ListByBooking(context.Background(), bookingID)
	require.NoError(t, err)
	out := make([]models.PaymentEventType, 0, len(audits))
	for _, a := range audits {
		out = append(out, a.EventType)
	}
	return out
}

func TestReconciliation_CreatePaymentOrder(t *testing.T) {
	env := newTestEnv(t)
	bus := env.createBus(t, "KA-01", 10)

	b, order := env.reserveAndOrder(t, bus, "student-a", 5)

	assert.Equal(t, "order_sandbox_000001", order.OrderID)
	assert.Equal(t, 1200.0, order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "rzp_test_sandbox", order.KeyID)

	stored, err := env.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.GatewayOrderID)
	assert.Equal(t, order.OrderID, *stored.GatewayOrderID)
	assert.Equal(t, []models.PaymentEventType{models.PaymentEventOrderCreated}, auditTypes(t, env, b.ID))
}

type failingGateway struct {
	payment.Gateway
}

func (failingGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (*payment.Order, error) {
	return nil, errors.New("gateway unavailable")
}

func (failingGateway) GetName() string { return "failing" }

func TestReconciliation_CreatePaymentOrderFailureReleasesSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)
	b := env.reserveSeat(t, bus, "student-a", 5)

	env.recon.gateway = failingGateway{Gateway: env.gateway}

	_, err := env.recon.CreatePaymentOrder(ctx, b)
	require.Error(t, err)

	stored, err := env.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)

	slots, err := env.booking.ListAvailable(ctx, bus.ID)
	require.NoError(t, err)
	assert.Contains(t, slots, 5)
	assert.Equal(t, []models.PaymentEventType{models.PaymentEventOrderFailed}, auditTypes(t, env, b.ID))
}

type orderStoreFailure struct {
	BookingStore
}

func (orderStoreFailure) SetGatewayOrder(ctx context.Context, bookingID, orderID string, at time.Time) error {
	return errors.New("connection reset")
}

func TestReconciliation_StoreOrderFailureReleasesSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)
	b := env.reserveSeat(t, bus, "student-a", 5)

	env.recon.bookings = orderStoreFailure{BookingStore: env.store}

	_, err := env.recon.CreatePaymentOrder(ctx, b)
	require.Error(t, err)

	stored, err := env.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)

	slots, err := env.booking.ListAvailable(ctx, bus.ID)
	require.NoError(t, err)
	assert.Contains(t, slots, 5)
	assert.Equal(t, []models.PaymentEventType{models.PaymentEventOrderFailed}, auditTypes(t, env, b.ID))

	// The student is free to try again
	env.recon.bookings = env.store
	_, order := env.reserveAndOrder(t, bus, "student-a", 5)
	assert.NotEmpty(t, order.OrderID)
}

func TestReconciliation_VerifyAndCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)
	b, order := env.reserveAndOrder(t, bus, "student-a", 5)

	paid, err := env.recon.VerifyAndCommit(ctx, env.verifyRequest(b, order.OrderID, "pay_1"), testCaller)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, "pay_1", *paid.PaymentRef)

	// Repeat callback succeeds without touching paymentRef
	again, err := env.recon.VerifyAndCommit(ctx, env.verifyRequest(b, order.OrderID, "pay_1"), testCaller)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, again.PaymentStatus)
	assert.Equal(t, "pay_1", *again.PaymentRef)
	assert.Equal(t, *paid.PaidAt, *again.PaidAt)

	assert.Equal(t, []models.PaymentEventType{
		models.PaymentEventOrderCreated,
		models.PaymentEventBookingPaid,
		models.PaymentEventDuplicateCallback,
	}, auditTypes(t, env, b.ID))

	audits, err := env.store.ListByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, audits[2].IsDuplicate)
	assert.Equal(t, "203.0.113.7", *audits[1].IPAddress)
}

func TestReconciliation_TamperedSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)
	b, order := env.reserveAndOrder(t, bus, "student-a", 5)

	req := env.verifyRequest(b, order.OrderID, "pay_1")
	req.RazorpaySignature = req.RazorpaySignature[:len(req.RazorpaySignature)-1] + "0"
	if req.RazorpaySignature == env.gateway.SignPayment(order.OrderID, "pay_1") {
		req.RazorpaySignature = req.RazorpaySignature[:len(req.RazorpaySignature)-1] + "1"
	}

	_, err := env.recon.VerifyAndCommit(ctx, req, testCaller)
	assert.ErrorIs(t, err, models.ErrSignatureInvalid)

	stored, err := env.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)

	slots, err := env.booking.ListAvailable(ctx, bus.ID)
	require.NoError(t, err)
	assert.NotContains(t, slots, 5)

	// A legitimate retry still succeeds
	paid, err := env.recon.VerifyAndCommit(ctx, env.verifyRequest(b, order.OrderID, "pay_1"), testCaller)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
}

func TestReconciliation_SignatureForAnotherOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)
	b, _ := env.reserveAndOrder(t, bus, "student-a", 5)
	_, otherOrder := env.reserveAndOrder(t, bus, "student-b", 6)

	// Validly signed, but for student-b's order
	_, err := env.recon.VerifyAndCommit(ctx, env.verifyRequest(b, otherOrder.OrderID, "pay_1"), testCaller)
	assert.ErrorIs(t, err, models.ErrSignatureInvalid)

	stored, err := env.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
	assert.Contains(t, auditTypes(t, env, b.ID), models.PaymentEventOrderMismatch)
}

func TestReconciliation_BookingNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.recon.VerifyAndCommit(context.Background(), models.VerifyPaymentRequest{
		BookingID:         "missing",
		RazorpayOrderID:   "order_x",
		RazorpayPaymentID: "pay_x",
		RazorpaySignature: env.gateway.SignPayment("order_x", "pay_x"),
	}, testCaller)
	assert.ErrorIs(t, err, models.ErrBookingNotFound)
}

func TestReconciliation_LapsedHoldCannotBePaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)
	b, order := env.reserveAndOrder(t, bus, "student-a", 5)

	env.clock.Advance(16 * time.Minute)

	_, err := env.recon.VerifyAndCommit(ctx, env.verifyRequest(b, order.OrderID, "pay_1"), testCaller)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Contains(t, auditTypes(t, env, b.ID), models.PaymentEventCommitRejected)
}

func webhookBody(t *testing.T, event, orderID, paymentID string, amount int64) []byte {
	t.Helper()
	return webhookBodyIn(t, event, orderID, paymentID, amount, "INR")
}

func webhookBodyIn(t *testing.T, event, orderID, paymentID string, amount int64, currency string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": event,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":                paymentID,
					"order_id":          orderID,
					"amount":            amount,
					"currency":          currency,
					"status":            "captured",
					"error_description": "",
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestReconciliation_WebhookCaptured(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)
	b, order := env.reserveAndOrder(t, bus, "student-a", 5)

	body := webhookBody(t, WebhookPaymentCaptured, order.OrderID, "pay_w1", 120000)

	result, err := env.recon.HandleWebhook(ctx, body, env.gateway.SignWebhook(body), testCaller)
	require.NoError(t, err)
	assert.False(t, result.Ignored)
	assert.Equal(t, b.ID, result.BookingID)
	assert.Equal(t, models.PaymentStatusPaid, result.Status)

	// Client callback arriving afterwards is a duplicate
	_, err = env.recon.VerifyAndCommit(ctx, env.verifyRequest(b, order.OrderID, "pay_w1"), testCaller)
	require.NoError(t, err)

	stored, err := env.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay_w1", *stored.PaymentRef)
}

func TestReconciliation_WebhookRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)
	b, order := env.reserveAndOrder(t, bus, "student-a", 5)

	t.Run("bad signature", func(t *testing.T) {
		body := webhookBody(t, WebhookPaymentCaptured, order.OrderID, "pay_1", 120000)
		_, err := env.recon.HandleWebhook(ctx, body, "deadbeef", testCaller)
		assert.ErrorIs(t, err, models.ErrSignatureInvalid)
	})

	t.Run("malformed body", func(t *testing.T) {
		body := []byte("{not json")
		_, err := env.recon.HandleWebhook(ctx, body, env.gateway.SignWebhook(body), testCaller)
		assert.ErrorIs(t, err, models.ErrMalformedPayload)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		body := webhookBody(t, WebhookPaymentCaptured, order.OrderID, "pay_1", 100)
		result, err := env.recon.HandleWebhook(ctx, body, env.gateway.SignWebhook(body), testCaller)
		require.NoError(t, err)
		assert.True(t, result.Ignored)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		body := webhookBodyIn(t, WebhookPaymentCaptured, order.OrderID, "pay_1", 120000, "USD")
		result, err := env.recon.HandleWebhook(ctx, body, env.gateway.SignWebhook(body), testCaller)
		require.NoError(t, err)
		assert.True(t, result.Ignored)
		assert.Equal(t, models.PaymentStatusPending, result.Status)
		assert.Contains(t, auditTypes(t, env, b.ID), models.PaymentEventCommitRejected)
	})

	t.Run("unknown order", func(t *testing.T) {
		body := webhookBody(t, WebhookPaymentCaptured, "order_unknown", "pay_1", 120000)
		result, err := env.recon.HandleWebhook(ctx, body, env.gateway.SignWebhook(body), testCaller)
		require.NoError(t, err)
		assert.True(t, result.Ignored)
	})

	t.Run("payment failed keeps the hold", func(t *testing.T) {
		body := webhookBody(t, WebhookPaymentFailed, order.OrderID, "pay_2", 120000)
		result, err := env.recon.HandleWebhook(ctx, body, env.gateway.SignWebhook(body), testCaller)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPending, result.Status)
	})

	stored, err := env.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
}
