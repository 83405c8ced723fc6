package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/schoolhub/booking-backend/internal/middleware"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// domainError maps a sentinel to its HTTP status and machine-readable code
type domainError struct {
	err    error
	status int
	code   string
}

var domainErrors = []domainError{
	{models.ErrSlotUnavailable, http.StatusConflict, "SLOT_UNAVAILABLE"},
	{models.ErrStudentAlreadyBooked, http.StatusConflict, "STUDENT_ALREADY_BOOKED"},
	{models.ErrDuplicateResource, http.StatusConflict, "DUPLICATE_RESOURCE"},
	{models.ErrResourceInUse, http.StatusConflict, "RESOURCE_IN_USE"},
	{models.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{models.ErrInvalidCapacity, http.StatusBadRequest, "INVALID_CAPACITY"},
	{models.ErrInvalidPriceSchedule, http.StatusBadRequest, "INVALID_PRICE_SCHEDULE"},
	{models.ErrInvalidDefinition, http.StatusBadRequest, "INVALID_DEFINITION"},
	{models.ErrSlotOutOfRange, http.StatusBadRequest, "SLOT_OUT_OF_RANGE"},
	{models.ErrPriceOptionNotFound, http.StatusBadRequest, "PRICE_OPTION_NOT_FOUND"},
	{models.ErrSignatureInvalid, http.StatusBadRequest, "SIGNATURE_INVALID"},
	{models.ErrMalformedPayload, http.StatusBadRequest, "MALFORMED_PAYLOAD"},
	{models.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{models.ErrResourceNotFound, http.StatusNotFound, "RESOURCE_NOT_FOUND"},
	{models.ErrBookingNotFound, http.StatusNotFound, "BOOKING_NOT_FOUND"},
}

// respondBookingError writes the JSON error for err. Unknown errors are
// logged and hidden behind a 500.
func respondBookingError(c *gin.Context, logger *logrus.Logger, err error) {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			c.JSON(de.status, gin.H{
				"error": de.err.Error(),
				"code":  de.code,
			})
			return
		}
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error("Request failed")

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal server error",
		"code":  "INTERNAL_ERROR",
	})
}

// respondBindError reports a request body that failed validation
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"code":    "INVALID_REQUEST",
		"details": err.Error(),
	})
}

// callerFrom returns the authenticated caller or writes a 401
func callerFrom(c *gin.Context) (models.Caller, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "MISSING_USER_CONTEXT"})
		return models.Caller{}, false
	}
	return userCtx.Caller(), true
}

// parseID checks that raw is a UUID before it reaches the store. A malformed
// id cannot name a stored record, so it is answered with notFound.
func parseID(c *gin.Context, logger *logrus.Logger, raw string, notFound error) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		respondBookingError(c, logger, notFound)
		return "", false
	}
	return id.String(), true
}
