package models

import (
	"time"
)

// PaymentStatus is the lifecycle state of a booking
// Stored as TEXT, constrained by CHECK on bookings.payment_status
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Reasons recorded on bookings closed without payment
const (
	ReasonExpired         = "expired"
	ReasonCancelledByUser = "cancelled_by_student"
	ReasonCancelled       = "cancelled"
	ReasonPaymentFailed   = "payment_failed"
)

// IsTerminal reports whether no further transition is possible
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// Only PENDING has outgoing edges.
func CanTransition(from, to PaymentStatus) bool {
	if from != PaymentStatusPending {
		return false
	}
	switch to {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// ActiveStatuses are the statuses that hold a slot
var ActiveStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusPaid}

// Booking is a claim on one numbered slot of one resource by one student
type Booking struct {
	ID             string        `json:"id" db:"id"`
	ResourceID     string        `json:"resourceId" db:"resource_id"`
	ResourceKind   ResourceKind  `json:"resourceKind" db:"resource_kind"`
	SlotNumber     int           `json:"slotNumber" db:"slot_number"`
	StudentID      string        `json:"studentId" db:"student_id"`
	PriceOptionID  string        `json:"priceOptionId" db:"price_option_id"`
	Amount         float64       `json:"amount" db:"amount"`
	PaymentStatus  PaymentStatus `json:"paymentStatus" db:"payment_status"`
	GatewayOrderID *string       `json:"gatewayOrderId,omitempty" db:"gateway_order_id"`
	PaymentRef     *string       `json:"paymentRef,omitempty" db:"payment_ref"`
	FailureReason  *string       `json:"failureReason,omitempty" db:"failure_reason"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
	ExpiresAt      time.Time     `json:"expiresAt" db:"expires_at"`
	UpdatedAt      time.Time     `json:"updatedAt" db:"updated_at"`
	PaidAt         *time.Time    `json:"paidAt,omitempty" db:"paid_at"`
	ClosedAt       *time.Time    `json:"closedAt,omitempty" db:"closed_at"`
}

// IsLapsed reports whether a PENDING booking has outlived its hold window
func (b *Booking) IsLapsed(now time.Time) bool {
	return b.PaymentStatus == PaymentStatusPending && !now.Before(b.ExpiresAt)
}

// IsActive reports whether the booking holds its slot at now:
// PAID, or PENDING inside the hold window
func (b *Booking) IsActive(now time.Time) bool {
	switch b.PaymentStatus {
	case PaymentStatusPaid:
		return true
	case PaymentStatusPending:
		return now.Before(b.ExpiresAt)
	}
	return false
}

// NewBooking is the input to the store's atomic reserve
type NewBooking struct {
	ID            string
	ResourceID    string
	ResourceKind  ResourceKind
	SlotNumber    int
	StudentID     string
	PriceOptionID string
	Amount        float64
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Booking materialises the PENDING booking that a successful reserve stores
func (n NewBooking) Booking() *Booking {
	return &Booking{
		ID:            n.ID,
		ResourceID:    n.ResourceID,
		ResourceKind:  n.ResourceKind,
		SlotNumber:    n.SlotNumber,
		StudentID:     n.StudentID,
		PriceOptionID: n.PriceOptionID,
		Amount:        n.Amount,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     n.CreatedAt,
		ExpiresAt:     n.ExpiresAt,
		UpdatedAt:     n.CreatedAt,
	}
}

// HoldGuard restricts a status change by the booking's hold window
type HoldGuard int

const (
	HoldAny       HoldGuard = iota
	HoldUnexpired           // At < expires_at
	HoldLapsed              // At >= expires_at
)

// Allows reports whether b satisfies the guard at t
func (g HoldGuard) Allows(b *Booking, t time.Time) bool {
	switch g {
	case HoldUnexpired:
		return t.Before(b.ExpiresAt)
	case HoldLapsed:
		return !t.Before(b.ExpiresAt)
	}
	return true
}

// StatusChange describes a conditional PENDING -> To transition
type StatusChange struct {
	BookingID  string
	To         PaymentStatus
	PaymentRef *string
	Reason     *string
	At         time.Time
	Guard      HoldGuard
}

// ============================================================================
// REQUESTS
// ============================================================================

// BusBookingRequest represents a student's request for a bus seat
type BusBookingRequest struct {
	BusID      string `json:"busId" binding:"required"`
	RouteID    string `json:"routeId" binding:"required"`
	SeatNumber int    `json:"seatNumber" binding:"required"`
}

// HostelBookingRequest represents a student's request for a hostel cot
type HostelBookingRequest struct {
	RoomID    string `json:"roomId" binding:"required"`
	CotNumber int    `json:"cotNumber" binding:"required"`
}

// VerifyPaymentRequest is the client-side gateway callback
type VerifyPaymentRequest struct {
	BookingID         string `json:"bookingId" binding:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// PaymentOrder is what the client needs to open the gateway checkout
type PaymentOrder struct {
	OrderID  string  `json:"id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	KeyID    string  `json:"keyId"`
}

// BookingWithOrder is returned by the booking endpoints
type BookingWithOrder struct {
	Booking       *Booking      `json:"booking"`
	RazorpayOrder *PaymentOrder `json:"razorpayOrder"`
}
