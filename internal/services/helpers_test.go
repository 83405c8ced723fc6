package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/schoolhub/booking-backend/internal/database"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/schoolhub/booking-backend/pkg/events"
	"github.com/schoolhub/booking-backend/pkg/payment"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testSchool = "school-1"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]events.BookingEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]events.BookingEvent)
	}
	p.events[routingKey] = append(p.events[routingKey], payload.(events.BookingEvent))
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[routingKey])
}

type testEnv struct {
	store      *database.MemoryStore
	clock      *testClock
	publisher  *recordingPublisher
	gateway    *payment.SandboxGateway
	inventory  *InventoryService
	booking    *BookingService
	recon      *ReconciliationService
	projection *ProjectionService
	expiration *ExpirationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := database.NewMemoryStore()
	clock := newTestClock()
	publisher := &recordingPublisher{}
	gateway := payment.NewSandboxGateway("", "test_secret", "whsec")

	booking := NewBookingService(store, store, logger,
		WithClock(clock.Now),
		WithHoldWindow(15*time.Minute),
		WithPublisher(publisher),
	)
	inventory := NewInventoryService(store, nil, logger)
	inventory.now = clock.Now

	return &testEnv{
		store:      store,
		clock:      clock,
		publisher:  publisher,
		gateway:    gateway,
		inventory:  inventory,
		booking:    booking,
		recon:      NewReconciliationService(store, booking, gateway, store, logger, nil, "INR"),
		projection: NewProjectionService(store, store, store, booking, nil, logger),
		expiration: NewExpirationService(store, booking, logger, nil, "", 2),
	}
}

func adminCaller() models.Caller {
	return models.Caller{UserID: "admin-1", SchoolID: testSchool, Roles: []string{models.RoleSchoolAdmin}}
}

func studentCaller(id string) models.Caller {
	return models.Caller{UserID: id, SchoolID: testSchool, Roles: []string{models.RoleStudent}}
}

// createBus defines a bus with two routes priced 1200 and 1500
func (e *testEnv) createBus(t *testing.T, number string, seats int) *models.Resource {
	t.Helper()
	bus, err := e.inventory.CreateBus(context.Background(), adminCaller(), &models.CreateBusRequest{
		BusNumber:  number,
		DriverName: "Ravi",
		TotalSeats: seats,
		Time:       "07:30",
		Routes: []models.BusRouteInput{
			{Location: "Central", Amount: 1200},
			{Location: "Harbour", Amount: 1500},
		},
	})
	require.NoError(t, err)
	return bus
}

func (e *testEnv) createHostel(t *testing.T) *models.Hostel {
	t.Helper()
	hostel, err := e.inventory.CreateHostel(context.Background(), adminCaller(), &models.CreateHostelRequest{
		Name:   "North Wing",
		Gender: models.HostelGenderFemale,
		Rooms: []models.RoomInput{
			{RoomNumber: "101", Floor: "1", CotCount: 4, Amount: 8000},
			{RoomNumber: "102", Floor: "1", CotCount: 2, Amount: 9000},
		},
	})
	require.NoError(t, err)
	return hostel
}

// reserveSeat reserves a bus seat on the first route
func (e *testEnv) reserveSeat(t *testing.T, bus *models.Resource, studentID string, seat int) *models.Booking {
	t.Helper()
	b, err := e.booking.Reserve(context.Background(), studentCaller(studentID), bus.ID, seat, bus.Prices[0].ID)
	require.NoError(t, err)
	return b
}

// reserveAndOrder reserves a seat and opens its gateway order
func (e *testEnv) reserveAndOrder(t *testing.T, bus *models.Resource, studentID string, seat int) (*models.Booking, *models.PaymentOrder) {
	t.Helper()
	b := e.reserveSeat(t, bus, studentID, seat)
	order, err := e.recon.CreatePaymentOrder(context.Background(), b)
	require.NoError(t, err)
	return b, order
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func without(slots []int, drop int) []int {
	out := make([]int, 0, len(slots))
	for _, s := range slots {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
