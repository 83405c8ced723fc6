package services

import (
	"context"

	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ProjectionService builds read-only views for the portal. Count summaries
// may come from the cache; nothing here feeds an allocation decision.
type ProjectionService struct {
	resources ResourceStore
	bookings  BookingStore
	audits    PaymentAuditStore
	lifecycle *BookingService
	cache     SummaryCache
	logger    *logrus.Logger
}

// NewProjectionService creates a new ProjectionService
func NewProjectionService(
	resources ResourceStore,
	bookings BookingStore,
	audits PaymentAuditStore,
	lifecycle *BookingService,
	cache SummaryCache,
	logger *logrus.Logger,
) *ProjectionService {
	if cache == nil {
		cache = nopSummaryCache{}
	}
	return &ProjectionService{
		resources: resources,
		bookings:  bookings,
		audits:    audits,
		lifecycle: lifecycle,
		cache:     cache,
		logger:    logger,
	}
}

// Summary returns the availability summary of a resource
func (s *ProjectionService) Summary(ctx context.Context, res *models.Resource) (*models.SlotSummary, error) {
	if cached, ok := s.cache.GetSummary(ctx, res.ID); ok && cached.Capacity == res.Capacity {
		return cached, nil
	}

	summary, err := s.lifecycle.summarize(ctx, res)
	if err != nil {
		return nil, err
	}
	s.cache.SetSummary(ctx, summary)
	return summary, nil
}

func (s *ProjectionService) summaryFor(ctx context.Context, resourceID string) (*models.SlotSummary, error) {
	res, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return s.Summary(ctx, res)
}

// AvailableSeats lists the free slot numbers of a resource
func (s *ProjectionService) AvailableSeats(ctx context.Context, resourceID string) ([]int, error) {
	summary, err := s.summaryFor(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return summary.AvailableSlots, nil
}

// BookedSeatsCount counts PAID and unexpired PENDING bookings of a resource
func (s *ProjectionService) BookedSeatsCount(ctx context.Context, resourceID string) (int, error) {
	summary, err := s.summaryFor(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	return summary.BookedCount, nil
}

// AvailableSeatsCount counts the free slots of a resource
func (s *ProjectionService) AvailableSeatsCount(ctx context.Context, resourceID string) (int, error) {
	summary, err := s.summaryFor(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	return summary.AvailableCount, nil
}

// MyActiveBooking returns the student's active booking of kind, or nil
func (s *ProjectionService) MyActiveBooking(ctx context.Context, studentID string, kind models.ResourceKind) (*models.Booking, error) {
	return s.bookings.FindActiveBooking(ctx, studentID, kind, s.lifecycle.Now())
}

// BusList builds the bus list of the caller's school with seat availability
func (s *ProjectionService) BusList(ctx context.Context, caller models.Caller) (*models.BusListResponse, error) {
	buses, err := s.resources.ListResources(ctx, caller.SchoolID, models.ResourceKindBusSeat)
	if err != nil {
		return nil, err
	}

	resp := &models.BusListResponse{Buses: make([]models.BusView, 0, len(buses))}
	for _, bus := range buses {
		summary, err := s.Summary(ctx, bus)
		if err != nil {
			return nil, err
		}
		resp.Buses = append(resp.Buses, models.NewBusView(bus, summary))
	}

	if caller.HasRole(models.RoleStudent) {
		resp.MyBooking, err = s.MyActiveBooking(ctx, caller.UserID, models.ResourceKindBusSeat)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// HostelList builds the hostel list of the caller's school with cot availability per room
func (s *ProjectionService) HostelList(ctx context.Context, caller models.Caller) (*models.HostelListResponse, error) {
	hostels, err := s.resources.ListHostels(ctx, caller.SchoolID)
	if err != nil {
		return nil, err
	}

	resp := &models.HostelListResponse{Hostels: make([]models.HostelView, 0, len(hostels))}
	for _, h := range hostels {
		view := models.HostelView{
			ID:      h.ID,
			Name:    h.Name,
			Address: h.Address,
			Gender:  h.Gender,
			Rooms:   make([]models.RoomView, 0, len(h.Rooms)),
		}
		for _, room := range h.Rooms {
			summary, err := s.Summary(ctx, room)
			if err != nil {
				return nil, err
			}
			view.Rooms = append(view.Rooms, models.NewRoomView(room, summary))
		}
		resp.Hostels = append(resp.Hostels, view)
	}

	if caller.HasRole(models.RoleStudent) {
		resp.MyBooking, err = s.MyActiveBooking(ctx, caller.UserID, models.ResourceKindHostelCot)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// ListBookings returns the school's bookings of one kind for administrators
func (s *ProjectionService) ListBookings(ctx context.Context, caller models.Caller, filter models.BookingFilter) ([]*models.BookingListItem, error) {
	if !caller.CanAdminister(caller.SchoolID) {
		return nil, models.ErrForbidden
	}
	filter.SchoolID = caller.SchoolID
	return s.bookings.ListBookings(ctx, filter)
}

// ListAudits returns the payment audit trail of one booking
func (s *ProjectionService) ListAudits(ctx context.Context, caller models.Caller, bookingID string) ([]*models.PaymentAudit, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	res, err := s.resources.GetResource(ctx, booking.ResourceID)
	switch {
	case err == nil:
		if !caller.CanAdminister(res.SchoolID) {
			return nil, models.ErrForbidden
		}
	case models.IsNotFoundError(err):
		// Deleted resources keep their history; only superadmins see it
		if !caller.HasRole(models.RoleSuperAdmin) {
			return nil, models.ErrForbidden
		}
	default:
		return nil, err
	}
	return s.audits.ListByBooking(ctx, bookingID)
}
