package models

import "errors"

// Setup-time errors
var (
	ErrInvalidCapacity      = errors.New("capacity must be at least 1")
	ErrDuplicateResource    = errors.New("resource already exists")
	ErrInvalidPriceSchedule = errors.New("price schedule must contain at least one non-negative price")
	ErrResourceNotFound     = errors.New("resource not found")
	ErrResourceInUse        = errors.New("resource has bookings")
	ErrInvalidDefinition    = errors.New("invalid resource definition")
)

// Reservation-time errors. Both are recoverable: the caller should re-query
// availability and pick another slot.
var (
	ErrSlotUnavailable      = errors.New("slot unavailable, please choose another")
	ErrStudentAlreadyBooked = errors.New("you already have an active booking")
	ErrSlotOutOfRange       = errors.New("slot number is outside the resource capacity")
	ErrPriceOptionNotFound  = errors.New("price option not found for resource")
)

// Lifecycle and reconciliation errors
var (
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrSignatureInvalid  = errors.New("payment signature verification failed")
	ErrForbidden         = errors.New("not allowed to act on this booking")
	ErrMalformedPayload  = errors.New("malformed payment payload")
)

// IsValidationError reports whether err is caused by bad caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidDefinition) ||
		errors.Is(err, ErrInvalidPriceSchedule) ||
		errors.Is(err, ErrSlotOutOfRange) ||
		errors.Is(err, ErrPriceOptionNotFound) ||
		errors.Is(err, ErrMalformedPayload)
}

// IsConflictError reports whether err is a recoverable state conflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSlotUnavailable) ||
		errors.Is(err, ErrStudentAlreadyBooked) ||
		errors.Is(err, ErrDuplicateResource) ||
		errors.Is(err, ErrResourceInUse) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFoundError reports whether err means the addressed record does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrBookingNotFound)
}
