package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache is an in-process SummaryCache for tests
type mapCache struct {
	mu      sync.Mutex
	entries map[string]*models.SlotSummary
	hits    int
}

func (c *mapCache) GetSummary(ctx context.Context, resourceID string) (*models.SlotSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[resourceID]
	if ok {
		c.hits++
	}
	return s, ok
}

func (c *mapCache) SetSummary(ctx context.Context, summary *models.SlotSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]*models.SlotSummary)
	}
	c.entries[summary.ResourceID] = summary
}

func (c *mapCache) Invalidate(ctx context.Context, resourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, resourceID)
}

func TestProjection_Counts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)

	b, order := env.reserveAndOrder(t, bus, "student-a", 5)
	env.reserveSeat(t, bus, "student-b", 6)

	_, err := env.recon.VerifyAndCommit(ctx, env.verifyRequest(b, order.OrderID, "pay_1"), testCaller)
	require.NoError(t, err)

	booked, err := env.projection.BookedSeatsCount(ctx, bus.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, booked, "PAID and PENDING both hold")

	available, err := env.projection.AvailableSeatsCount(ctx, bus.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, available)

	seats, err := env.projection.AvailableSeats(ctx, bus.ID)
	require.NoError(t, err)
	assert.NotContains(t, seats, 5)
	assert.NotContains(t, seats, 6)

	env.clock.Advance(time.Hour)
	available, err = env.projection.AvailableSeatsCount(ctx, bus.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, available, "lapsed PENDING no longer held")
}

func TestProjection_BusList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 4)
	env.createBus(t, "KA-02", 3)

	mine := env.reserveSeat(t, bus, "student-a", 2)

	resp, err := env.projection.BusList(ctx, studentCaller("student-a"))
	require.NoError(t, err)
	require.Len(t, resp.Buses, 2)

	first := resp.Buses[0]
	assert.Equal(t, "KA-01", first.BusNumber)
	assert.Equal(t, "Ravi", first.DriverName)
	assert.Equal(t, "07:30", first.Time)
	assert.Equal(t, []int{1, 3, 4}, first.AvailableSeats)
	assert.Equal(t, 1, first.BookedSeatsCount)
	assert.Equal(t, 3, first.AvailableSeatsCount)
	require.Len(t, first.Routes, 2)
	assert.Equal(t, "Central", first.Routes[0].Location)

	require.NotNil(t, resp.MyBooking)
	assert.Equal(t, mine.ID, resp.MyBooking.ID)

	other, err := env.projection.BusList(ctx, studentCaller("student-b"))
	require.NoError(t, err)
	assert.Nil(t, other.MyBooking)
}

func TestProjection_HostelList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hostel := env.createHostel(t)

	_, err := env.booking.Reserve(ctx, studentCaller("student-a"), hostel.Rooms[1].ID, 2, "")
	require.NoError(t, err)

	resp, err := env.projection.HostelList(ctx, studentCaller("student-a"))
	require.NoError(t, err)
	require.Len(t, resp.Hostels, 1)

	h := resp.Hostels[0]
	assert.Equal(t, "North Wing", h.Name)
	assert.Equal(t, models.HostelGenderFemale, h.Gender)
	require.Len(t, h.Rooms, 2)

	rooms := map[string]models.RoomView{}
	for _, r := range h.Rooms {
		rooms[r.RoomNumber] = r
	}
	assert.Equal(t, []int{1, 2, 3, 4}, rooms["101"].AvailableCots)
	assert.Equal(t, 8000.0, rooms["101"].Amount)
	assert.Equal(t, []int{1}, rooms["102"].AvailableCots)
	assert.Equal(t, 1, rooms["102"].BookedCotsCount)
	assert.Equal(t, 1, rooms["102"].AvailableCotsCount)

	require.NotNil(t, resp.MyBooking)
	assert.Equal(t, 9000.0, resp.MyBooking.Amount)
}

func TestProjection_CacheIsInvalidatedOnWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cache := &mapCache{}
	env.booking.cache = cache
	env.projection.cache = cache

	bus := env.createBus(t, "KA-01", 4)

	count, err := env.projection.AvailableSeatsCount(ctx, bus.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count, err = env.projection.AvailableSeatsCount(ctx, bus.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 1, cache.hits)

	env.reserveSeat(t, bus, "student-a", 1)

	count, err = env.projection.AvailableSeatsCount(ctx, bus.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Allocation never reads the cache
	cache.SetSummary(ctx, &models.SlotSummary{ResourceID: bus.ID, Capacity: 4, AvailableSlots: []int{1, 2, 3, 4}})
	_, err = env.booking.Reserve(ctx, studentCaller("student-b"), bus.ID, 1, bus.Prices[0].ID)
	assert.ErrorIs(t, err, models.ErrSlotUnavailable)

	slots, err := env.booking.ListAvailable(ctx, bus.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, slots)
}

func TestProjection_ListBookingsAndAudits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 4)
	b, order := env.reserveAndOrder(t, bus, "student-a", 1)
	env.reserveSeat(t, bus, "student-b", 2)

	_, err := env.recon.VerifyAndCommit(ctx, env.verifyRequest(b, order.OrderID, "pay_1"), testCaller)
	require.NoError(t, err)

	items, err := env.projection.ListBookings(ctx, adminCaller(), models.BookingFilter{Kind: models.ResourceKindBusSeat})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "KA-01", items[0].ResourceLabel)

	paid, err := env.projection.ListBookings(ctx, adminCaller(), models.BookingFilter{
		Kind:   models.ResourceKindBusSeat,
		Status: models.PaymentStatusPaid,
	})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, b.ID, paid[0].ID)

	_, err = env.projection.ListBookings(ctx, studentCaller("student-a"), models.BookingFilter{Kind: models.ResourceKindBusSeat})
	assert.ErrorIs(t, err, models.ErrForbidden)

	audits, err := env.projection.ListAudits(ctx, adminCaller(), b.ID)
	require.NoError(t, err)
	assert.Len(t, audits, 2)

	_, err = env.projection.ListAudits(ctx, studentCaller("student-a"), b.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}
