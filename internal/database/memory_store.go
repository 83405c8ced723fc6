package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/schoolhub/booking-backend/internal/models"
)

// MemoryStore keeps inventory, bookings and audits in process memory.
// Every operation runs under one mutex, which gives it the same atomicity
// the Postgres repositories get from row locks. Used for tests and
// STORAGE_DRIVER=memory development runs.
type MemoryStore struct {
	mu        sync.Mutex
	resources map[string]*models.Resource
	hostels   map[string]*models.Hostel
	bookings  map[string]*models.Booking
	audits    []*models.PaymentAudit
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources: make(map[string]*models.Resource),
		hostels:   make(map[string]*models.Hostel),
		bookings:  make(map[string]*models.Booking),
	}
}

// PingContext always succeeds
func (m *MemoryStore) PingContext(ctx context.Context) error {
	return nil
}

// ============================================================================
// INVENTORY
// ============================================================================

// CreateResource stores a resource
func (m *MemoryStore) CreateResource(ctx context.Context, res *models.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keyTaken(res) {
		return models.ErrDuplicateResource
	}
	m.resources[res.ID] = cloneResource(res)
	return nil
}

// CreateHostel stores a hostel and its rooms
func (m *MemoryStore) CreateHostel(ctx context.Context, h *models.Hostel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.hostels {
		if existing.SchoolID == h.SchoolID && strings.EqualFold(existing.Name, h.Name) {
			return models.ErrDuplicateResource
		}
	}
	for _, room := range h.Rooms {
		if m.keyTaken(room) {
			return models.ErrDuplicateResource
		}
	}

	stored := *h
	stored.Rooms = nil
	m.hostels[h.ID] = &stored
	for _, room := range h.Rooms {
		m.resources[room.ID] = cloneResource(room)
	}
	return nil
}

func (m *MemoryStore) keyTaken(res *models.Resource) bool {
	for _, existing := range m.resources {
		if existing.DeletedAt == nil &&
			existing.SchoolID == res.SchoolID &&
			existing.Kind == res.Kind &&
			existing.ResourceKey == res.ResourceKey {
			return true
		}
	}
	return false
}

// GetResource returns a live resource
func (m *MemoryStore) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.liveResource(id)
	if !ok {
		return nil, models.ErrResourceNotFound
	}
	return cloneResource(res), nil
}

func (m *MemoryStore) liveResource(id string) (*models.Resource, bool) {
	res, ok := m.resources[id]
	if !ok || res.DeletedAt != nil {
		return nil, false
	}
	return res, true
}

// ListResources returns live resources of a kind, ordered by label
func (m *MemoryStore) ListResources(ctx context.Context, schoolID string, kind models.ResourceKind) ([]*models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.listResources(schoolID, kind), nil
}

func (m *MemoryStore) listResources(schoolID string, kind models.ResourceKind) []*models.Resource {
	var out []*models.Resource
	for _, res := range m.resources {
		if res.DeletedAt == nil && res.SchoolID == schoolID && res.Kind == kind {
			out = append(out, cloneResource(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// ListHostels returns a school's hostels with their live rooms
func (m *MemoryStore) ListHostels(ctx context.Context, schoolID string) ([]*models.Hostel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var hostels []*models.Hostel
	byID := make(map[string]*models.Hostel)
	for _, h := range m.hostels {
		if h.SchoolID != schoolID {
			continue
		}
		copied := *h
		hostels = append(hostels, &copied)
		byID[h.ID] = &copied
	}
	sort.Slice(hostels, func(i, j int) bool { return hostels[i].Name < hostels[j].Name })

	for _, room := range m.listResources(schoolID, models.ResourceKindHostelCot) {
		if room.ParentID == nil {
			continue
		}
		if h, ok := byID[*room.ParentID]; ok {
			h.Rooms = append(h.Rooms, room)
		}
	}
	return hostels, nil
}

// DeleteResource soft-deletes a resource with no active bookings
func (m *MemoryStore) DeleteResource(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.liveResource(id)
	if !ok {
		return models.ErrResourceNotFound
	}
	for _, b := range m.bookings {
		if b.ResourceID == id && b.IsActive(at) {
			return models.ErrResourceInUse
		}
	}

	deleted := at
	res.DeletedAt = &deleted
	res.UpdatedAt = at
	return nil
}

// UpdateCapacity resizes a resource that has never been booked
func (m *MemoryStore) UpdateCapacity(ctx context.Context, id string, capacity int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.liveResource(id)
	if !ok {
		return models.ErrResourceNotFound
	}
	for _, b := range m.bookings {
		if b.ResourceID == id {
			return models.ErrResourceInUse
		}
	}

	res.Capacity = capacity
	res.UpdatedAt = at
	return nil
}

// ============================================================================
// BOOKINGS
// ============================================================================

// ReserveSlot checks both active-booking invariants and stores a PENDING booking
func (m *MemoryStore) ReserveSlot(ctx context.Context, nb models.NewBooking) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := nb.CreatedAt

	res, ok := m.liveResource(nb.ResourceID)
	if !ok {
		return nil, models.ErrResourceNotFound
	}
	if !res.SlotInRange(nb.SlotNumber) {
		return nil, models.ErrSlotOutOfRange
	}
	nb.ResourceKind = res.Kind

	reason := models.ReasonExpired
	for _, b := range m.bookings {
		sameSlot := b.ResourceID == nb.ResourceID && b.SlotNumber == nb.SlotNumber
		sameStudent := b.StudentID == nb.StudentID && b.ResourceKind == nb.ResourceKind
		if !sameSlot && !sameStudent {
			continue
		}
		if b.IsLapsed(now) {
			closeBooking(b, models.PaymentStatusCancelled, &reason, now)
			continue
		}
		if b.IsActive(now) && sameSlot {
			return nil, models.ErrSlotUnavailable
		}
	}
	for _, b := range m.bookings {
		if b.StudentID == nb.StudentID && b.ResourceKind == nb.ResourceKind && b.IsActive(now) {
			return nil, models.ErrStudentAlreadyBooked
		}
	}

	booking := nb.Booking()
	m.bookings[booking.ID] = booking
	return cloneBooking(booking), nil
}

// TransitionStatus applies a guarded PENDING -> change.To transition
func (m *MemoryStore) TransitionStatus(ctx context.Context, change models.StatusChange) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[change.BookingID]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	if !models.CanTransition(b.PaymentStatus, change.To) || !change.Guard.Allows(b, change.At) {
		return nil, models.ErrInvalidTransition
	}

	if change.To == models.PaymentStatusPaid {
		paidAt := change.At
		b.PaymentStatus = models.PaymentStatusPaid
		if change.PaymentRef != nil {
			ref := *change.PaymentRef
			b.PaymentRef = &ref
		}
		b.PaidAt = &paidAt
		b.UpdatedAt = change.At
	} else {
		closeBooking(b, change.To, change.Reason, change.At)
	}

	return cloneBooking(b), nil
}

func closeBooking(b *models.Booking, to models.PaymentStatus, reason *string, at time.Time) {
	closedAt := at
	b.PaymentStatus = to
	if reason != nil {
		r := *reason
		b.FailureReason = &r
	}
	b.ClosedAt = &closedAt
	b.UpdatedAt = at
}

// SetGatewayOrder records the gateway order of a PENDING booking
func (m *MemoryStore) SetGatewayOrder(ctx context.Context, bookingID, orderID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return models.ErrBookingNotFound
	}
	if b.PaymentStatus != models.PaymentStatusPending {
		return models.ErrInvalidTransition
	}

	order := orderID
	b.GatewayOrderID = &order
	b.UpdatedAt = at
	return nil
}

// GetBooking returns a booking by id
func (m *MemoryStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

// GetBookingByOrderID returns the booking a gateway order belongs to
func (m *MemoryStore) GetBookingByOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.bookings {
		if b.GatewayOrderID != nil && *b.GatewayOrderID == orderID {
			return cloneBooking(b), nil
		}
	}
	return nil, models.ErrBookingNotFound
}

// ListActiveSlots returns the held slot numbers of a resource at now
func (m *MemoryStore) ListActiveSlots(ctx context.Context, resourceID string, now time.Time) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var slots []int
	for _, b := range m.bookings {
		if b.ResourceID == resourceID && b.IsActive(now) {
			slots = append(slots, b.SlotNumber)
		}
	}
	sort.Ints(slots)
	return slots, nil
}

// FindActiveBooking returns the student's active booking of a kind, or nil
func (m *MemoryStore) FindActiveBooking(ctx context.Context, studentID string, kind models.ResourceKind, now time.Time) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.bookings {
		if b.StudentID == studentID && b.ResourceKind == kind && b.IsActive(now) {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

// ListLapsedPending returns PENDING bookings past their hold window, oldest first
func (m *MemoryStore) ListLapsedPending(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Booking
	for _, b := range m.bookings {
		if b.IsLapsed(now) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListBookings returns bookings for the admin lists, newest first
func (m *MemoryStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.BookingListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []*models.BookingListItem
	for _, b := range m.bookings {
		res, ok := m.resources[b.ResourceID]
		if !ok || res.SchoolID != filter.SchoolID || b.ResourceKind != filter.Kind {
			continue
		}
		if filter.Status != "" && b.PaymentStatus != filter.Status {
			continue
		}
		item := &models.BookingListItem{Booking: *cloneBooking(b), ResourceLabel: res.Label}
		if res.ParentID != nil {
			if h, ok := m.hostels[*res.ParentID]; ok {
				item.ParentLabel = h.Name
			}
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if filter.Offset >= len(items) {
		return nil, nil
	}
	items = items[filter.Offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ============================================================================
// AUDIT
// ============================================================================

// Log appends an audit entry
func (m *MemoryStore) Log(ctx context.Context, audit *models.PaymentAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *audit
	m.audits = append(m.audits, &copied)
	return nil
}

// ListByBooking returns a booking's audit entries, oldest first
func (m *MemoryStore) ListByBooking(ctx context.Context, bookingID string) ([]*models.PaymentAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.PaymentAudit
	for _, a := range m.audits {
		if a.BookingID != nil && *a.BookingID == bookingID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func cloneResource(res *models.Resource) *models.Resource {
	copied := *res
	copied.Prices = append([]models.PriceOption(nil), res.Prices...)
	if res.Details != nil {
		copied.Details = make(models.JSONB, len(res.Details))
		for k, v := range res.Details {
			copied.Details[k] = v
		}
	}
	return &copied
}

func cloneBooking(b *models.Booking) *models.Booking {
	copied := *b
	return &copied
}
