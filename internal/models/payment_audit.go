package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the kind of reconciliation event recorded
type PaymentEventType string

const (
	PaymentEventOrderCreated      PaymentEventType = "order_created"
	PaymentEventOrderFailed       PaymentEventType = "order_failed"
	PaymentEventCallbackReceived  PaymentEventType = "callback_received"
	PaymentEventWebhookReceived   PaymentEventType = "webhook_received"
	PaymentEventSignatureInvalid  PaymentEventType = "signature_invalid"
	PaymentEventOrderMismatch     PaymentEventType = "order_mismatch"
	PaymentEventBookingPaid       PaymentEventType = "booking_paid"
	PaymentEventDuplicateCallback PaymentEventType = "duplicate_callback"
	PaymentEventBookingFailed     PaymentEventType = "booking_failed"
	PaymentEventCommitRejected    PaymentEventType = "commit_rejected"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceClientCallback PaymentEventSource = "client_callback"
	PaymentSourceGatewayWebhook PaymentEventSource = "gateway_webhook"
	PaymentSourceGatewayAPI     PaymentEventSource = "gateway_api"
	PaymentSourceSystem         PaymentEventSource = "system"
)

// PaymentAudit is an immutable record of one reconciliation event.
// Rows are only ever inserted.
type PaymentAudit struct {
	ID             uuid.UUID          `json:"id" db:"id"`
	BookingID      *string            `json:"bookingId,omitempty" db:"booking_id"`
	GatewayOrderID *string            `json:"gatewayOrderId,omitempty" db:"gateway_order_id"`
	PaymentID      *string            `json:"paymentId,omitempty" db:"payment_id"`
	EventType      PaymentEventType   `json:"eventType" db:"event_type"`
	EventSource    PaymentEventSource `json:"eventSource" db:"event_source"`

	ExpectedAmount *float64 `json:"expectedAmount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"receivedAmount,omitempty" db:"received_amount"`
	Currency       *string  `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool    `json:"amountsMatch,omitempty" db:"amounts_match"`

	BookingStatus *PaymentStatus `json:"bookingStatus,omitempty" db:"booking_status"`
	Payload       JSONB          `json:"payload,omitempty" db:"payload"`
	ErrorMessage  *string        `json:"errorMessage,omitempty" db:"error_message"`
	IsDuplicate   bool           `json:"isDuplicate" db:"is_duplicate"`

	IPAddress *string `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent *string `json:"userAgent,omitempty" db:"user_agent"`
	Device    *string `json:"device,omitempty" db:"device"`

	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	ProcessingTimeMs *int      `json:"processingTimeMs,omitempty" db:"processing_time_ms"`
}

// CallerInfo describes who delivered a callback
type CallerInfo struct {
	IPAddress string
	UserAgent string
	Device    string
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the booking the event concerns
func (pa *PaymentAudit) SetBooking(b *Booking) *PaymentAudit {
	if b == nil {
		return pa
	}
	id := b.ID
	status := b.PaymentStatus
	pa.BookingID = &id
	pa.BookingStatus = &status
	return pa
}

// SetBookingID sets the booking id when no booking was loaded
func (pa *PaymentAudit) SetBookingID(id string) *PaymentAudit {
	if id != "" {
		pa.BookingID = &id
	}
	return pa
}

// SetGatewayIDs sets the gateway order and payment ids
func (pa *PaymentAudit) SetGatewayIDs(orderID, paymentID string) *PaymentAudit {
	if orderID != "" {
		pa.GatewayOrderID = &orderID
	}
	if paymentID != "" {
		pa.PaymentID = &paymentID
	}
	return pa
}

// SetAmounts sets and compares amounts, returning whether they match
func (pa *PaymentAudit) SetAmounts(expected, received float64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	const tolerance = 0.01
	diff := expected - received
	if diff < 0 {
		diff = -diff
	}
	match := diff < tolerance
	pa.AmountsMatch = &match
	return match
}

// SetError sets error information
func (pa *PaymentAudit) SetError(err error) *PaymentAudit {
	if err != nil {
		msg := err.Error()
		pa.ErrorMessage = &msg
	}
	return pa
}

// SetPayload stores the parsed callback payload
func (pa *PaymentAudit) SetPayload(payload map[string]interface{}) *PaymentAudit {
	pa.Payload = JSONB(payload)
	return pa
}

// SetCaller sets request metadata
func (pa *PaymentAudit) SetCaller(caller CallerInfo) *PaymentAudit {
	if caller.IPAddress != "" {
		pa.IPAddress = &caller.IPAddress
	}
	if caller.UserAgent != "" {
		pa.UserAgent = &caller.UserAgent
	}
	if caller.Device != "" {
		pa.Device = &caller.Device
	}
	return pa
}

// SetProcessingTime records the time elapsed since start
func (pa *PaymentAudit) SetProcessingTime(start time.Time) *PaymentAudit {
	ms := int(time.Since(start).Milliseconds())
	pa.ProcessingTimeMs = &ms
	return pa
}

// MarkAsDuplicate marks this event as a duplicate callback
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}
