package services

import (
	"context"
	"time"

	"github.com/schoolhub/booking-backend/internal/models"
)

// ResourceStore persists inventory
type ResourceStore interface {
	CreateResource(ctx context.Context, res *models.Resource) error
	CreateHostel(ctx context.Context, h *models.Hostel) error
	GetResource(ctx context.Context, id string) (*models.Resource, error)
	ListResources(ctx context.Context, schoolID string, kind models.ResourceKind) ([]*models.Resource, error)
	ListHostels(ctx context.Context, schoolID string) ([]*models.Hostel, error)
	DeleteResource(ctx context.Context, id string, at time.Time) error
	UpdateCapacity(ctx context.Context, id string, capacity int, at time.Time) error
}

// BookingStore persists bookings. ReserveSlot and TransitionStatus must be
// atomic with respect to each other across processes.
type BookingStore interface {
	ReserveSlot(ctx context.Context, nb models.NewBooking) (*models.Booking, error)
	TransitionStatus(ctx context.Context, change models.StatusChange) (*models.Booking, error)
	SetGatewayOrder(ctx context.Context, bookingID, orderID string, at time.Time) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByOrderID(ctx context.Context, orderID string) (*models.Booking, error)
	ListActiveSlots(ctx context.Context, resourceID string, now time.Time) ([]int, error)
	FindActiveBooking(ctx context.Context, studentID string, kind models.ResourceKind, now time.Time) (*models.Booking, error)
	ListLapsedPending(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.BookingListItem, error)
}

// PaymentAuditStore appends reconciliation audit entries
type PaymentAuditStore interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	ListByBooking(ctx context.Context, bookingID string) ([]*models.PaymentAudit, error)
}

// SummaryCache holds display-only availability summaries
type SummaryCache interface {
	GetSummary(ctx context.Context, resourceID string) (*models.SlotSummary, bool)
	SetSummary(ctx context.Context, summary *models.SlotSummary)
	Invalidate(ctx context.Context, resourceID string)
}

// nopSummaryCache is used when no cache is configured
type nopSummaryCache struct{}

func (nopSummaryCache) GetSummary(ctx context.Context, resourceID string) (*models.SlotSummary, bool) {
	return nil, false
}
func (nopSummaryCache) SetSummary(ctx context.Context, summary *models.SlotSummary) {}
func (nopSummaryCache) Invalidate(ctx context.Context, resourceID string)           {}
