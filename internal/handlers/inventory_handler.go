package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/schoolhub/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// InventoryHandler serves bus and hostel inventory
type InventoryHandler struct {
	inventory  *services.InventoryService
	projection *services.ProjectionService
	booking    *services.BookingService
	logger     *logrus.Logger
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(
	inventory *services.InventoryService,
	projection *services.ProjectionService,
	booking *services.BookingService,
	logger *logrus.Logger,
) *InventoryHandler {
	return &InventoryHandler{
		inventory:  inventory,
		projection: projection,
		booking:    booking,
		logger:     logger,
	}
}

// CreateBus registers a bus
// POST /api/v1/bus/create
func (h *InventoryHandler) CreateBus(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req models.CreateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	bus, err := h.inventory.CreateBus(c.Request.Context(), caller, &req)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	summary, err := h.projection.Summary(c.Request.Context(), bus)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Bus created successfully",
		"bus":     models.NewBusView(bus, summary),
	})
}

// CreateHostel registers a hostel and its rooms
// POST /api/v1/hostel/create
func (h *InventoryHandler) CreateHostel(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req models.CreateHostelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	hostel, err := h.inventory.CreateHostel(c.Request.Context(), caller, &req)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Hostel created successfully",
		"hostel":  hostel,
	})
}

// ListBuses returns the school's buses with seat availability and the caller's booking
// GET /api/v1/bus/list
func (h *InventoryHandler) ListBuses(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	resp, err := h.projection.BusList(c.Request.Context(), caller)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListHostels returns the school's hostels with cot availability and the caller's booking
// GET /api/v1/hostel/list
func (h *InventoryHandler) ListHostels(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	resp, err := h.projection.HostelList(c.Request.Context(), caller)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Availability returns the free slots of one resource, computed live
// GET /api/v1/resources/:id/availability
func (h *InventoryHandler) Availability(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	resourceID, ok := parseID(c, h.logger, c.Param("id"), models.ErrResourceNotFound)
	if !ok {
		return
	}

	res, err := h.inventory.GetResource(c.Request.Context(), caller, resourceID)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	slots, err := h.booking.ListAvailable(c.Request.Context(), res.ID)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resourceId":     res.ID,
		"kind":           res.Kind,
		"capacity":       res.Capacity,
		"availableSlots": slots,
	})
}

// DeleteResource removes a bus or room without active bookings
// DELETE /api/v1/resources/:id
func (h *InventoryHandler) DeleteResource(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	resourceID, ok := parseID(c, h.logger, c.Param("id"), models.ErrResourceNotFound)
	if !ok {
		return
	}

	if err := h.inventory.DeleteResource(c.Request.Context(), caller, resourceID); err != nil {
		respondBookingError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Resource deleted successfully"})
}

// UpdateCapacity resizes a resource that has never been booked
// PATCH /api/v1/resources/:id/capacity
func (h *InventoryHandler) UpdateCapacity(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req models.UpdateCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resourceID, ok := parseID(c, h.logger, c.Param("id"), models.ErrResourceNotFound)
	if !ok {
		return
	}

	res, err := h.inventory.UpdateCapacity(c.Request.Context(), caller, resourceID, req.Capacity)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
