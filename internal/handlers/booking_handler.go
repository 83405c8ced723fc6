package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/schoolhub/booking-backend/internal/services"
	"github.com/schoolhub/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// BookingHandler serves student bookings and client-side payment callbacks
type BookingHandler struct {
	booking *services.BookingService
	recon   *services.ReconciliationService
	logger  *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(booking *services.BookingService, recon *services.ReconciliationService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		booking: booking,
		recon:   recon,
		logger:  logger,
	}
}

// BookBus reserves a seat and opens the gateway order
// POST /api/v1/bus/booking
func (h *BookingHandler) BookBus(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req models.BusBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	h.reserveAndOrder(c, caller, req.BusID, req.SeatNumber, req.RouteID)
}

// BookHostel reserves a cot and opens the gateway order
// POST /api/v1/hostel/booking
func (h *BookingHandler) BookHostel(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req models.HostelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	h.reserveAndOrder(c, caller, req.RoomID, req.CotNumber, "")
}

func (h *BookingHandler) reserveAndOrder(c *gin.Context, caller models.Caller, resourceID string, slot int, priceOptionID string) {
	ctx := c.Request.Context()

	resourceID, ok := parseID(c, h.logger, resourceID, models.ErrResourceNotFound)
	if !ok {
		return
	}

	// 1. Reserve the slot
	booking, err := h.booking.Reserve(ctx, caller, resourceID, slot, priceOptionID)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	// 2. Open the gateway order; on failure the slot has already been released
	order, err := h.recon.CreatePaymentOrder(ctx, booking)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Payment gateway unavailable, please try again",
			"code":  "GATEWAY_UNAVAILABLE",
		})
		return
	}

	c.JSON(http.StatusCreated, models.BookingWithOrder{
		Booking:       booking,
		RazorpayOrder: order,
	})
}

// VerifyPayment commits a booking after the checkout's success handler fires
// POST /api/v1/bus/booking/verify, POST /api/v1/hostel/booking/verify
func (h *BookingHandler) VerifyPayment(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()

	bookingID, ok := parseID(c, h.logger, req.BookingID, models.ErrBookingNotFound)
	if !ok {
		return
	}
	req.BookingID = bookingID

	// Students may only verify their own bookings
	if _, err := h.booking.GetBooking(ctx, caller, req.BookingID); err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	booking, err := h.recon.VerifyAndCommit(ctx, req, utils.CallerInfo(c))
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment verified",
		"booking": booking,
	})
}

// CancelMyBooking abandons the caller's PENDING booking
// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelMyBooking(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	bookingID, ok := parseID(c, h.logger, c.Param("id"), models.ErrBookingNotFound)
	if !ok {
		return
	}

	booking, err := h.booking.CancelMyBooking(c.Request.Context(), caller, bookingID)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled",
		"booking": booking,
	})
}

// GetBooking returns one booking
// GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	bookingID, ok := parseID(c, h.logger, c.Param("id"), models.ErrBookingNotFound)
	if !ok {
		return
	}

	booking, err := h.booking.GetBooking(c.Request.Context(), caller, bookingID)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
