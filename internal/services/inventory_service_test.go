package services

import (
	"context"
	"testing"

	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventory_DefineResource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	def := models.ResourceDefinition{
		SchoolID:      testSchool,
		Kind:          models.ResourceKindBusSeat,
		ResourceKey:   "KA-09",
		Label:         "KA-09",
		Capacity:      12,
		PriceSchedule: []models.PriceDefinition{{Label: "Central", Amount: 900}},
	}

	res, err := env.inventory.DefineResource(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Capacity)
	require.Len(t, res.Prices, 1)
	assert.Equal(t, res.ID, res.Prices[0].ResourceID)

	_, err = env.inventory.DefineResource(ctx, def)
	assert.ErrorIs(t, err, models.ErrDuplicateResource)

	zero := def
	zero.ResourceKey = "KA-10"
	zero.Capacity = 0
	_, err = env.inventory.DefineResource(ctx, zero)
	assert.ErrorIs(t, err, models.ErrInvalidCapacity)

	noPrices := def
	noPrices.ResourceKey = "KA-11"
	noPrices.PriceSchedule = nil
	_, err = env.inventory.DefineResource(ctx, noPrices)
	assert.ErrorIs(t, err, models.ErrInvalidPriceSchedule)
}

func TestInventory_CreateBus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createBus(t, "KA-01", 10)

	_, err := env.inventory.CreateBus(ctx, adminCaller(), &models.CreateBusRequest{
		BusNumber:  " ka-01 ",
		TotalSeats: 20,
		Routes:     []models.BusRouteInput{{Location: "Central", Amount: 100}},
	})
	assert.ErrorIs(t, err, models.ErrDuplicateResource)

	_, err = env.inventory.CreateBus(ctx, studentCaller("s1"), &models.CreateBusRequest{BusNumber: "KA-05"})
	assert.ErrorIs(t, err, models.ErrForbidden)

	// Another school may reuse the number
	other := models.Caller{UserID: "admin-2", SchoolID: "school-2", Roles: []string{models.RoleSchoolAdmin}}
	_, err = env.inventory.CreateBus(ctx, other, &models.CreateBusRequest{
		BusNumber:  "KA-01",
		TotalSeats: 20,
		Routes:     []models.BusRouteInput{{Location: "Central", Amount: 100}},
	})
	assert.NoError(t, err)

	buses, err := env.inventory.ListBuses(ctx, adminCaller())
	require.NoError(t, err)
	assert.Len(t, buses, 1)
}

func TestInventory_CreateHostel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hostel := env.createHostel(t)

	require.Len(t, hostel.Rooms, 2)
	assert.Equal(t, models.ResourceKindHostelCot, hostel.Rooms[0].Kind)
	assert.Equal(t, hostel.ID, *hostel.Rooms[0].ParentID)

	_, err := env.inventory.CreateHostel(ctx, adminCaller(), &models.CreateHostelRequest{
		Name:  "north wing",
		Rooms: []models.RoomInput{{RoomNumber: "1", CotCount: 1}},
	})
	assert.ErrorIs(t, err, models.ErrDuplicateResource)

	_, err = env.inventory.CreateHostel(ctx, adminCaller(), &models.CreateHostelRequest{
		Name:  "South Wing",
		Rooms: []models.RoomInput{{RoomNumber: "1", CotCount: 0}},
	})
	assert.ErrorIs(t, err, models.ErrInvalidCapacity)

	hostels, err := env.inventory.ListHostels(ctx, adminCaller())
	require.NoError(t, err)
	require.Len(t, hostels, 1)
	assert.Len(t, hostels[0].Rooms, 2)
}

func TestInventory_DeleteResource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)
	b := env.reserveSeat(t, bus, "student-a", 1)

	err := env.inventory.DeleteResource(ctx, adminCaller(), bus.ID)
	assert.ErrorIs(t, err, models.ErrResourceInUse)

	outsider := models.Caller{UserID: "admin-2", SchoolID: "school-2", Roles: []string{models.RoleSchoolAdmin}}
	err = env.inventory.DeleteResource(ctx, outsider, bus.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.booking.Cancel(ctx, b.ID)
	require.NoError(t, err)

	require.NoError(t, env.inventory.DeleteResource(ctx, adminCaller(), bus.ID))

	_, err = env.inventory.GetResource(ctx, adminCaller(), bus.ID)
	assert.ErrorIs(t, err, models.ErrResourceNotFound)

	// The number is free again
	env.createBus(t, "KA-01", 10)
}

func TestInventory_UpdateCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bus := env.createBus(t, "KA-01", 10)

	_, err := env.inventory.UpdateCapacity(ctx, adminCaller(), bus.ID, 0)
	assert.ErrorIs(t, err, models.ErrInvalidCapacity)

	updated, err := env.inventory.UpdateCapacity(ctx, adminCaller(), bus.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, updated.Capacity)

	b := env.reserveSeat(t, bus, "student-a", 1)
	_, err = env.booking.Cancel(ctx, b.ID)
	require.NoError(t, err)

	_, err = env.inventory.UpdateCapacity(ctx, adminCaller(), bus.ID, 14)
	assert.ErrorIs(t, err, models.ErrResourceInUse, "capacity is fixed once a booking exists")
}
