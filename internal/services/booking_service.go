package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/schoolhub/booking-backend/internal/metrics"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/schoolhub/booking-backend/pkg/events"
	"github.com/sirupsen/logrus"
)

// DefaultHoldWindow is how long a PENDING booking holds its slot
const DefaultHoldWindow = 15 * time.Minute

// BookingService allocates slots and drives the booking lifecycle.
// It holds no allocation state of its own: every decision is made by the
// BookingStore against committed rows.
type BookingService struct {
	resources  ResourceStore
	bookings   BookingStore
	logger     *logrus.Logger
	holdWindow time.Duration
	now        func() time.Time
	publisher  events.Publisher
	metrics    *metrics.Metrics
	cache      SummaryCache
}

// BookingServiceOption configures a BookingService
type BookingServiceOption func(*BookingService)

// WithHoldWindow sets the PENDING hold window
func WithHoldWindow(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d > 0 {
			s.holdWindow = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

// WithPublisher sets where lifecycle events are sent
func WithPublisher(p events.Publisher) BookingServiceOption {
	return func(s *BookingService) {
		s.publisher = p
	}
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(m *metrics.Metrics) BookingServiceOption {
	return func(s *BookingService) {
		s.metrics = m
	}
}

// WithSummaryCache sets the cache invalidated on every write
func WithSummaryCache(c SummaryCache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = c
	}
}

// NewBookingService creates a new BookingService
func NewBookingService(resources ResourceStore, bookings BookingStore, logger *logrus.Logger, opts ...BookingServiceOption) *BookingService {
	s := &BookingService{
		resources:  resources,
		bookings:   bookings,
		logger:     logger,
		holdWindow: DefaultHoldWindow,
		now:        time.Now,
		publisher:  events.NopPublisher{},
		cache:      nopSummaryCache{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HoldWindow returns the configured hold window
func (s *BookingService) HoldWindow() time.Duration {
	return s.holdWindow
}

// Now returns the service clock's current time
func (s *BookingService) Now() time.Time {
	return s.now()
}

// ============================================================================
// SLOT ALLOCATOR
// ============================================================================

// ListAvailable returns the free slot numbers of a resource in ascending order.
// Always computed from committed state; never served from the cache.
func (s *BookingService) ListAvailable(ctx context.Context, resourceID string) ([]int, error) {
	res, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(ctx, res)
	if err != nil {
		return nil, err
	}
	return summary.AvailableSlots, nil
}

func (s *BookingService) summarize(ctx context.Context, res *models.Resource) (*models.SlotSummary, error) {
	taken, err := s.bookings.ListActiveSlots(ctx, res.ID, s.now())
	if err != nil {
		return nil, err
	}
	return buildSummary(res, taken), nil
}

func buildSummary(res *models.Resource, taken []int) *models.SlotSummary {
	held := make(map[int]bool, len(taken))
	for _, slot := range taken {
		if res.SlotInRange(slot) {
			held[slot] = true
		}
	}

	available := make([]int, 0, res.Capacity-len(held))
	for slot := 1; slot <= res.Capacity; slot++ {
		if !held[slot] {
			available = append(available, slot)
		}
	}

	return &models.SlotSummary{
		ResourceID:     res.ID,
		Capacity:       res.Capacity,
		AvailableSlots: available,
		BookedCount:    len(held),
		AvailableCount: len(available),
	}
}

// Reserve claims slotNumber of a resource for the calling student. The amount
// comes from the resource's own price option, never from the client.
func (s *BookingService) Reserve(ctx context.Context, caller models.Caller, resourceID string, slotNumber int, priceOptionID string) (*models.Booking, error) {
	if !caller.HasRole(models.RoleStudent) {
		return nil, models.ErrForbidden
	}

	res, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if res.SchoolID != caller.SchoolID {
		return nil, models.ErrResourceNotFound
	}
	if !res.SlotInRange(slotNumber) {
		s.metrics.Reservation(string(res.Kind), outcomeOf(models.ErrSlotOutOfRange))
		return nil, models.ErrSlotOutOfRange
	}

	price, ok := res.Price(priceOptionID)
	if !ok && priceOptionID == "" && res.Kind == models.ResourceKindHostelCot {
		price, ok = res.DefaultPrice()
	}
	if !ok {
		return nil, models.ErrPriceOptionNotFound
	}

	now := s.now()
	booking, err := s.bookings.ReserveSlot(ctx, models.NewBooking{
		ID:            uuid.New().String(),
		ResourceID:    res.ID,
		ResourceKind:  res.Kind,
		SlotNumber:    slotNumber,
		StudentID:     caller.UserID,
		PriceOptionID: price.ID,
		Amount:        price.Amount,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.holdWindow),
	})
	s.metrics.Reservation(string(res.Kind), outcomeOf(err))
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"resource_id": res.ID,
			"slot":        slotNumber,
			"student_id":  caller.UserID,
		}).WithError(err).Info("Reservation rejected")
		return nil, err
	}

	s.cache.Invalidate(ctx, res.ID)

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"resource_id": res.ID,
		"kind":        res.Kind,
		"slot":        slotNumber,
		"student_id":  caller.UserID,
		"amount":      booking.Amount,
		"expires_at":  booking.ExpiresAt,
	}).Info("Slot reserved")

	return booking, nil
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// MarkPaid moves a PENDING booking inside its hold window to PAID. A booking
// that is already PAID yields ErrInvalidTransition; idempotency for gateway
// retries is handled by the reconciliation layer.
func (s *BookingService) MarkPaid(ctx context.Context, bookingID, paymentRef string) (*models.Booking, error) {
	return s.transition(ctx, models.StatusChange{
		BookingID:  bookingID,
		To:         models.PaymentStatusPaid,
		PaymentRef: &paymentRef,
		Guard:      models.HoldUnexpired,
	}, events.BookingPaid)
}

// MarkFailed closes a PENDING booking as FAILED and frees its slot
func (s *BookingService) MarkFailed(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	if reason == "" {
		reason = models.ReasonPaymentFailed
	}
	return s.transition(ctx, models.StatusChange{
		BookingID: bookingID,
		To:        models.PaymentStatusFailed,
		Reason:    &reason,
		Guard:     models.HoldAny,
	}, events.BookingFailed)
}

// Cancel closes a PENDING booking as CANCELLED and frees its slot
func (s *BookingService) Cancel(ctx context.Context, bookingID string) (*models.Booking, error) {
	reason := models.ReasonCancelled
	return s.transition(ctx, models.StatusChange{
		BookingID: bookingID,
		To:        models.PaymentStatusCancelled,
		Reason:    &reason,
		Guard:     models.HoldAny,
	}, events.BookingCancelled)
}

// Expire cancels a PENDING booking whose hold window has lapsed
func (s *BookingService) Expire(ctx context.Context, bookingID string) (*models.Booking, error) {
	reason := models.ReasonExpired
	return s.transition(ctx, models.StatusChange{
		BookingID: bookingID,
		To:        models.PaymentStatusCancelled,
		Reason:    &reason,
		Guard:     models.HoldLapsed,
	}, events.BookingExpired)
}

// CancelMyBooking lets a student abandon their own PENDING booking
func (s *BookingService) CancelMyBooking(ctx context.Context, caller models.Caller, bookingID string) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.StudentID != caller.UserID {
		return nil, models.ErrForbidden
	}

	reason := models.ReasonCancelledByUser
	return s.transition(ctx, models.StatusChange{
		BookingID: bookingID,
		To:        models.PaymentStatusCancelled,
		Reason:    &reason,
		Guard:     models.HoldAny,
	}, events.BookingCancelled)
}

// CancelForSchool lets a school admin cancel a PENDING booking on their inventory
func (s *BookingService) CancelForSchool(ctx context.Context, caller models.Caller, bookingID string) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	res, err := s.resources.GetResource(ctx, booking.ResourceID)
	if err != nil && !errors.Is(err, models.ErrResourceNotFound) {
		return nil, err
	}
	if res == nil || !caller.CanAdminister(res.SchoolID) {
		return nil, models.ErrForbidden
	}
	return s.Cancel(ctx, bookingID)
}

// GetBooking returns a booking to its student or to an administrator
func (s *BookingService) GetBooking(ctx context.Context, caller models.Caller, bookingID string) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.StudentID == caller.UserID || caller.HasRole(models.RoleSchoolAdmin) || caller.HasRole(models.RoleSuperAdmin) {
		return booking, nil
	}
	return nil, models.ErrForbidden
}

func (s *BookingService) transition(ctx context.Context, change models.StatusChange, routingKey string) (*models.Booking, error) {
	change.At = s.now()

	booking, err := s.bookings.TransitionStatus(ctx, change)
	s.metrics.Transition(string(change.To), outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, booking.ResourceID)

	fields := logrus.Fields{
		"booking_id":  booking.ID,
		"resource_id": booking.ResourceID,
		"slot":        booking.SlotNumber,
		"status":      booking.PaymentStatus,
	}
	if change.Reason != nil {
		fields["reason"] = *change.Reason
	}
	s.logger.WithFields(fields).Info("Booking status changed")

	s.publish(ctx, routingKey, booking)
	return booking, nil
}

// publish failures never undo a committed transition
func (s *BookingService) publish(ctx context.Context, routingKey string, b *models.Booking) {
	event := events.BookingEvent{
		BookingID:    b.ID,
		ResourceID:   b.ResourceID,
		ResourceKind: string(b.ResourceKind),
		SlotNumber:   b.SlotNumber,
		StudentID:    b.StudentID,
		Amount:       b.Amount,
		Status:       string(b.PaymentStatus),
		OccurredAt:   b.UpdatedAt,
	}
	if b.PaymentRef != nil {
		event.PaymentRef = *b.PaymentRef
	}
	if b.FailureReason != nil {
		event.Reason = *b.FailureReason
	}

	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id":  b.ID,
			"routing_key": routingKey,
		}).Warn("Failed to publish booking event")
	}
}

// outcomeOf turns an error into a metrics label
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, models.ErrStudentAlreadyBooked):
		return "student_already_booked"
	case errors.Is(err, models.ErrInvalidTransition):
		return "invalid_transition"
	case models.IsNotFoundError(err):
		return "not_found"
	case models.IsValidationError(err):
		return "invalid"
	}
	return "error"
}
