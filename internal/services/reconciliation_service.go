package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolhub/booking-backend/internal/metrics"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/schoolhub/booking-backend/pkg/payment"
	"github.com/sirupsen/logrus"
)

// Gateway webhook events handled by HandleWebhook
const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookOrderPaid       = "order.paid"
	WebhookPaymentFailed   = "payment.failed"
)

// ReconciliationService matches gateway callbacks to PENDING bookings and
// commits them. Every callback leaves a payment_audits row.
type ReconciliationService struct {
	bookings  BookingStore
	lifecycle *BookingService
	gateway   payment.Gateway
	audits    PaymentAuditStore
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	currency  string
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	bookings BookingStore,
	lifecycle *BookingService,
	gateway payment.Gateway,
	audits PaymentAuditStore,
	logger *logrus.Logger,
	m *metrics.Metrics,
	currency string,
) *ReconciliationService {
	if currency == "" {
		currency = "INR"
	}
	return &ReconciliationService{
		bookings:  bookings,
		lifecycle: lifecycle,
		gateway:   gateway,
		audits:    audits,
		logger:    logger,
		metrics:   m,
		currency:  currency,
	}
}

// CreatePaymentOrder opens a gateway order for a freshly reserved booking.
// If the gateway refuses, the booking is marked FAILED so the slot is freed.
func (s *ReconciliationService) CreatePaymentOrder(ctx context.Context, booking *models.Booking) (*models.PaymentOrder, error) {
	start := time.Now()
	audit := models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceGatewayAPI).SetBooking(booking)
	defer func() { s.record(ctx, audit.SetProcessingTime(start)) }()

	order, err := s.gateway.CreateOrder(ctx, booking.Amount, s.currency, booking.ID)
	s.metrics.GatewayCall(time.Since(start))
	if err != nil {
		audit.EventType = models.PaymentEventOrderFailed
		audit.SetError(err)

		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"gateway":    s.gateway.GetName(),
		}).Error("Gateway order creation failed, releasing slot")

		if _, ferr := s.lifecycle.MarkFailed(ctx, booking.ID, models.ReasonPaymentFailed); ferr != nil {
			s.logger.WithError(ferr).WithField("booking_id", booking.ID).Error("Failed to release slot after gateway error")
		}
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	audit.SetGatewayIDs(order.ID, "")
	audit.SetAmounts(booking.Amount, payment.FromMinorUnits(order.Amount), order.Currency)

	if err := s.bookings.SetGatewayOrder(ctx, booking.ID, order.ID, s.lifecycle.Now()); err != nil {
		audit.EventType = models.PaymentEventOrderFailed
		audit.SetError(err)

		// Without a stored order id no callback can commit this booking
		if _, ferr := s.lifecycle.MarkFailed(ctx, booking.ID, models.ReasonPaymentFailed); ferr != nil {
			s.logger.WithError(ferr).WithField("booking_id", booking.ID).Error("Failed to release slot after order store error")
		}
		return nil, fmt.Errorf("store gateway order: %w", err)
	}
	booking.GatewayOrderID = &order.ID

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"order_id":   order.ID,
		"amount":     booking.Amount,
	}).Info("Gateway order created")

	return &models.PaymentOrder{
		OrderID:  order.ID,
		Amount:   booking.Amount,
		Currency: order.Currency,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

// VerifyAndCommit checks the client-side gateway callback and commits the
// booking as PAID. A booking that is already PAID is a successful no-op.
// On any signature problem the booking is left PENDING for a legitimate retry.
func (s *ReconciliationService) VerifyAndCommit(ctx context.Context, req models.VerifyPaymentRequest, caller models.CallerInfo) (*models.Booking, error) {
	start := time.Now()
	audit := models.NewPaymentAudit(models.PaymentEventCallbackReceived, models.PaymentSourceClientCallback).
		SetBookingID(req.BookingID).
		SetGatewayIDs(req.RazorpayOrderID, req.RazorpayPaymentID).
		SetCaller(caller)
	defer func() { s.record(ctx, audit.SetProcessingTime(start)) }()

	logger := s.logger.WithFields(logrus.Fields{
		"booking_id": req.BookingID,
		"order_id":   req.RazorpayOrderID,
		"payment_id": req.RazorpayPaymentID,
	})

	// 1. Load booking
	booking, err := s.bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		audit.SetError(err)
		s.metrics.Callback(string(models.PaymentSourceClientCallback), "not_found")
		return nil, err
	}
	audit.SetBooking(booking)

	// 2. Verify signature
	if !s.gateway.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		audit.EventType = models.PaymentEventSignatureInvalid
		audit.SetError(models.ErrSignatureInvalid)
		s.metrics.Callback(string(models.PaymentSourceClientCallback), "signature_invalid")
		logger.WithField("ip", caller.IPAddress).Warn("Payment signature mismatch")
		return nil, models.ErrSignatureInvalid
	}

	// 3. The signed order must be the one issued for this booking
	if booking.GatewayOrderID == nil || *booking.GatewayOrderID != req.RazorpayOrderID {
		audit.EventType = models.PaymentEventOrderMismatch
		audit.SetError(models.ErrSignatureInvalid)
		s.metrics.Callback(string(models.PaymentSourceClientCallback), "order_mismatch")
		logger.Warn("Signed order does not belong to booking")
		return nil, models.ErrSignatureInvalid
	}

	// 4. Duplicate callback
	if booking.PaymentStatus == models.PaymentStatusPaid {
		audit.EventType = models.PaymentEventDuplicateCallback
		audit.MarkAsDuplicate()
		s.metrics.Callback(string(models.PaymentSourceClientCallback), "duplicate")
		logger.Info("Duplicate payment callback ignored")
		return booking, nil
	}

	// 5. Commit
	committed, err := s.commit(ctx, booking.ID, req.RazorpayPaymentID, audit)
	if err != nil {
		s.metrics.Callback(string(models.PaymentSourceClientCallback), "rejected")
		logger.WithError(err).Warn("Payment commit rejected")
		return nil, err
	}

	result := "paid"
	if audit.IsDuplicate {
		result = "duplicate"
	}
	s.metrics.Callback(string(models.PaymentSourceClientCallback), result)
	return committed, nil
}

// commit marks the booking PAID, treating a concurrent commit of the same
// booking as success
func (s *ReconciliationService) commit(ctx context.Context, bookingID, paymentRef string, audit *models.PaymentAudit) (*models.Booking, error) {
	booking, err := s.lifecycle.MarkPaid(ctx, bookingID, paymentRef)
	if err == nil {
		audit.EventType = models.PaymentEventBookingPaid
		audit.SetBooking(booking)
		return booking, nil
	}

	if errors.Is(err, models.ErrInvalidTransition) {
		if current, gerr := s.bookings.GetBooking(ctx, bookingID); gerr == nil && current.PaymentStatus == models.PaymentStatusPaid {
			audit.EventType = models.PaymentEventDuplicateCallback
			audit.MarkAsDuplicate()
			audit.SetBooking(current)
			return current, nil
		}
	}

	audit.EventType = models.PaymentEventCommitRejected
	audit.SetError(err)
	return nil, err
}

// ============================================================================
// WEBHOOK
// ============================================================================

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity webhookPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type webhookPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
}

// WebhookResult tells the gateway what happened to its delivery
type WebhookResult struct {
	Event     string               `json:"event"`
	BookingID string               `json:"bookingId,omitempty"`
	Status    models.PaymentStatus `json:"paymentStatus,omitempty"`
	Ignored   bool                 `json:"ignored"`
}

// HandleWebhook processes a server-to-server gateway notification. The raw
// body must be signed with the webhook secret.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, body []byte, signature string, caller models.CallerInfo) (*WebhookResult, error) {
	start := time.Now()
	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceGatewayWebhook).SetCaller(caller)
	defer func() { s.record(ctx, audit.SetProcessingTime(start)) }()

	source := string(models.PaymentSourceGatewayWebhook)

	if !s.gateway.VerifyWebhookSignature(body, signature) {
		audit.EventType = models.PaymentEventSignatureInvalid
		audit.SetError(models.ErrSignatureInvalid)
		s.metrics.Callback(source, "signature_invalid")
		s.logger.WithField("ip", caller.IPAddress).Warn("Webhook signature mismatch")
		return nil, models.ErrSignatureInvalid
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		audit.SetError(err)
		s.metrics.Callback(source, "malformed")
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}

	entity := envelope.Payload.Payment.Entity
	audit.SetGatewayIDs(entity.OrderID, entity.ID)
	audit.SetPayload(map[string]interface{}{
		"event":  envelope.Event,
		"status": entity.Status,
		"amount": entity.Amount,
	})

	result := &WebhookResult{Event: envelope.Event, Ignored: true}

	if entity.OrderID == "" {
		s.metrics.Callback(source, "ignored")
		return result, nil
	}

	booking, err := s.bookings.GetBookingByOrderID(ctx, entity.OrderID)
	if err != nil {
		audit.SetError(err)
		if errors.Is(err, models.ErrBookingNotFound) {
			// Not ours; acknowledge so the gateway stops retrying
			s.metrics.Callback(source, "not_found")
			return result, nil
		}
		return nil, err
	}
	audit.SetBooking(booking)
	result.BookingID = booking.ID
	result.Status = booking.PaymentStatus

	logger := s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"order_id":   entity.OrderID,
		"payment_id": entity.ID,
		"event":      envelope.Event,
	})

	switch envelope.Event {
	case WebhookPaymentCaptured, WebhookOrderPaid:
		if !audit.SetAmounts(booking.Amount, payment.FromMinorUnits(entity.Amount), entity.Currency) {
			audit.EventType = models.PaymentEventCommitRejected
			audit.SetError(fmt.Errorf("amount mismatch: expected %.2f", booking.Amount))
			s.metrics.Callback(source, "amount_mismatch")
			logger.Warn("Webhook amount does not match booking")
			return result, nil
		}
		if !strings.EqualFold(entity.Currency, s.currency) {
			audit.EventType = models.PaymentEventCommitRejected
			audit.SetError(fmt.Errorf("currency mismatch: expected %s, got %s", s.currency, entity.Currency))
			s.metrics.Callback(source, "currency_mismatch")
			logger.WithField("currency", entity.Currency).Warn("Webhook currency does not match booking")
			return result, nil
		}

		if booking.PaymentStatus == models.PaymentStatusPaid {
			audit.EventType = models.PaymentEventDuplicateCallback
			audit.MarkAsDuplicate()
			s.metrics.Callback(source, "duplicate")
			result.Ignored = false
			return result, nil
		}

		committed, err := s.commit(ctx, booking.ID, entity.ID, audit)
		if err != nil {
			s.metrics.Callback(source, "rejected")
			logger.WithError(err).Warn("Webhook commit rejected")
			// A lapsed or closed booking will never accept this payment
			if errors.Is(err, models.ErrInvalidTransition) {
				return result, nil
			}
			return nil, err
		}
		s.metrics.Callback(source, "paid")
		result.Status = committed.PaymentStatus
		result.Ignored = false
		return result, nil

	case WebhookPaymentFailed:
		// The student may still retry inside the hold window, so the
		// booking stays PENDING and only the attempt is recorded
		if entity.ErrorDescription != "" {
			audit.SetError(errors.New(entity.ErrorDescription))
		}
		s.metrics.Callback(source, "payment_failed")
		logger.Info("Gateway reported failed payment attempt")
		return result, nil
	}

	s.metrics.Callback(source, "ignored")
	return result, nil
}

// record persists an audit row. Audit failures are logged, never returned.
func (s *ReconciliationService) record(ctx context.Context, audit *models.PaymentAudit) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"source":     audit.EventSource,
		}).Error("Failed to record payment audit")
	}
}
