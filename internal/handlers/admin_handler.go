package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/schoolhub/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AdminHandler handles school and platform administration requests
type AdminHandler struct {
	projection *services.ProjectionService
	booking    *services.BookingService
	expiration *services.ExpirationService
	logger     *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	projection *services.ProjectionService,
	booking *services.BookingService,
	expiration *services.ExpirationService,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		projection: projection,
		booking:    booking,
		expiration: expiration,
		logger:     logger,
	}
}

// ListBusBookings returns the school's seat bookings
// GET /api/v1/bus/bookings?status=PAID&limit=50&offset=0
func (h *AdminHandler) ListBusBookings(c *gin.Context) {
	h.listBookings(c, models.ResourceKindBusSeat)
}

// ListHostelBookings returns the school's cot bookings
// GET /api/v1/hostel/bookings?status=PENDING
func (h *AdminHandler) ListHostelBookings(c *gin.Context) {
	h.listBookings(c, models.ResourceKindHostelCot)
}

func (h *AdminHandler) listBookings(c *gin.Context, kind models.ResourceKind) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	filter, err := parseBookingFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}
	filter.Kind = kind

	items, err := h.projection.ListBookings(c.Request.Context(), caller, filter)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": items,
		"count":    len(items),
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func parseBookingFilter(c *gin.Context) (models.BookingFilter, error) {
	filter := models.BookingFilter{Limit: defaultListLimit}

	if status := strings.ToUpper(c.Query("status")); status != "" {
		switch models.PaymentStatus(status) {
		case models.PaymentStatusPending, models.PaymentStatusPaid,
			models.PaymentStatusFailed, models.PaymentStatusCancelled:
			filter.Status = models.PaymentStatus(status)
		default:
			return filter, errInvalidQuery("status")
		}
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, errInvalidQuery("limit")
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errInvalidQuery("offset")
		}
		filter.Offset = offset
	}

	return filter, nil
}

type errInvalidQuery string

func (e errInvalidQuery) Error() string {
	return "invalid " + string(e)
}

// BookingAudits returns the payment audit trail of a booking
// GET /api/v1/admin/bookings/:id/audits
func (h *AdminHandler) BookingAudits(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	bookingID, ok := parseID(c, h.logger, c.Param("id"), models.ErrBookingNotFound)
	if !ok {
		return
	}

	audits, err := h.projection.ListAudits(c.Request.Context(), caller, bookingID)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookingId": bookingID,
		"audits":    audits,
	})
}

// CancelBooking cancels a PENDING booking on the admin's inventory
// POST /api/v1/admin/bookings/:id/cancel
func (h *AdminHandler) CancelBooking(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	bookingID, ok := parseID(c, h.logger, c.Param("id"), models.ErrBookingNotFound)
	if !ok {
		return
	}

	booking, err := h.booking.CancelForSchool(c.Request.Context(), caller, bookingID)
	if err != nil {
		respondBookingError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled",
		"booking": booking,
	})
}

// RunExpiry triggers an expiration sweep immediately
// POST /api/v1/admin/expiry/run
func (h *AdminHandler) RunExpiry(c *gin.Context) {
	result := h.expiration.RunOnce(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"message":     "Expiry sweep completed",
		"expired":     result.Expired,
		"errors":      result.Errors,
		"duration_ms": result.Duration.Milliseconds(),
		"ran_at":      result.RanAt,
	})
}

// ExpiryStatus reports the expiration scheduler state
// GET /api/v1/admin/expiry/status
func (h *AdminHandler) ExpiryStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.expiration.Status())
}
