package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/schoolhub/booking-backend/internal/models"
)

// BookingRepository handles booking database operations.
// Slot invariants are enforced here: the resource row is locked for the
// duration of a reservation and the partial unique indexes on active
// bookings reject anything that gets past the lock.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, resource_id, resource_kind, slot_number, student_id, price_option_id, amount,
	payment_status, gateway_order_id, payment_ref, failure_reason,
	created_at, expires_at, updated_at, paid_at, closed_at`

// activeAt matches bookings holding their slot at the time bound to the given placeholder
const activeAt = `(payment_status = 'PAID' OR (payment_status = 'PENDING' AND expires_at > %s))`

// ============================================================================
// RESERVE
// ============================================================================

// ReserveSlot atomically checks both active-booking invariants and inserts a
// PENDING booking. nb.CreatedAt is used as the current time.
func (r *BookingRepository) ReserveSlot(ctx context.Context, nb models.NewBooking) (*models.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := nb.CreatedAt

	// 1. Lock the resource; concurrent reserves on it queue here
	res, err := lockResourceRow(ctx, tx, nb.ResourceID)
	if err != nil {
		return nil, err
	}
	if nb.SlotNumber < 1 || nb.SlotNumber > res.Capacity {
		return nil, models.ErrSlotOutOfRange
	}
	nb.ResourceKind = res.Kind

	// 2. Close lapsed holds standing in the way so the unique indexes only see live claims
	_, err = tx.ExecContext(ctx, `
		UPDATE bookings
		SET payment_status = 'CANCELLED', failure_reason = $5, closed_at = $4, updated_at = $4
		WHERE payment_status = 'PENDING'
		  AND expires_at <= $4
		  AND ((resource_id = $1 AND slot_number = $2) OR (student_id = $3 AND resource_kind = $6))`,
		nb.ResourceID, nb.SlotNumber, nb.StudentID, now, models.ReasonExpired, nb.ResourceKind,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to release lapsed holds: %w", err)
	}

	// 3. Invariant A: slot free
	var slotTaken bool
	err = tx.GetContext(ctx, &slotTaken, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE resource_id = $1 AND slot_number = $2 AND payment_status IN ('PENDING', 'PAID')
		)`, nb.ResourceID, nb.SlotNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check slot: %w", err)
	}
	if slotTaken {
		return nil, models.ErrSlotUnavailable
	}

	// 4. Invariant B: student has nothing active of this kind
	var studentBooked bool
	err = tx.GetContext(ctx, &studentBooked, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE student_id = $1 AND resource_kind = $2 AND payment_status IN ('PENDING', 'PAID')
		)`, nb.StudentID, nb.ResourceKind)
	if err != nil {
		return nil, fmt.Errorf("failed to check student bookings: %w", err)
	}
	if studentBooked {
		return nil, models.ErrStudentAlreadyBooked
	}

	// 5. Insert
	booking := nb.Booking()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, resource_id, resource_kind, slot_number, student_id, price_option_id, amount,
			payment_status, created_at, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		booking.ID, booking.ResourceID, booking.ResourceKind, booking.SlotNumber, booking.StudentID,
		booking.PriceOptionID, booking.Amount, booking.PaymentStatus,
		booking.CreatedAt, booking.ExpiresAt, booking.UpdatedAt,
	)
	if err != nil {
		return nil, mapReserveConflict(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapReserveConflict(err)
	}

	return booking, nil
}

// mapReserveConflict turns index violations from racing transactions into
// the same errors the in-transaction checks return
func mapReserveConflict(err error) error {
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case activeSlotIndex:
			return models.ErrSlotUnavailable
		case activeStudentIndex:
			return models.ErrStudentAlreadyBooked
		}
	}
	return fmt.Errorf("failed to insert booking: %w", err)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// TransitionStatus applies a PENDING -> change.To transition if, and only if,
// the booking is still PENDING and satisfies change.Guard at change.At
func (r *BookingRepository) TransitionStatus(ctx context.Context, change models.StatusChange) (*models.Booking, error) {
	if !models.CanTransition(models.PaymentStatusPending, change.To) {
		return nil, models.ErrInvalidTransition
	}

	guard := ""
	switch change.Guard {
	case models.HoldUnexpired:
		guard = " AND expires_at > $5"
	case models.HoldLapsed:
		guard = " AND expires_at <= $5"
	}

	var paidAt, closedAt *time.Time
	if change.To == models.PaymentStatusPaid {
		paidAt = &change.At
	} else {
		closedAt = &change.At
	}

	query := `
		UPDATE bookings
		SET payment_status = $2,
		    payment_ref = COALESCE($3, payment_ref),
		    failure_reason = COALESCE($4, failure_reason),
		    updated_at = $5,
		    paid_at = COALESCE($6, paid_at),
		    closed_at = COALESCE($7, closed_at)
		WHERE id = $1 AND payment_status = 'PENDING'` + guard + `
		RETURNING ` + bookingColumns

	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, query,
		change.BookingID, change.To, change.PaymentRef, change.Reason, change.At, paidAt, closedAt,
	)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	// Nothing matched: tell a missing booking apart from one in the wrong state
	if _, err := r.GetBooking(ctx, change.BookingID); err != nil {
		return nil, err
	}
	return nil, models.ErrInvalidTransition
}

// SetGatewayOrder records the gateway order created for a PENDING booking
func (r *BookingRepository) SetGatewayOrder(ctx context.Context, bookingID, orderID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET gateway_order_id = $2, updated_at = $3
		WHERE id = $1 AND payment_status = 'PENDING'`,
		bookingID, orderID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to set gateway order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetBooking(ctx, bookingID); err != nil {
			return err
		}
		return models.ErrInvalidTransition
	}

	return nil
}

// ============================================================================
// READ
// ============================================================================

// GetBooking returns a booking by id
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &booking, nil
}

// GetBookingByOrderID returns the booking a gateway order was created for
func (r *BookingRepository) GetBookingByOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE gateway_order_id = $1`

	if err := r.db.GetContext(ctx, &booking, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking by order: %w", err)
	}

	return &booking, nil
}

// ListActiveSlots returns the slot numbers held on a resource at now.
// Lapsed PENDING rows are excluded even if no sweep has closed them.
func (r *BookingRepository) ListActiveSlots(ctx context.Context, resourceID string, now time.Time) ([]int, error) {
	var slots []int
	query := `
		SELECT slot_number FROM bookings
		WHERE resource_id = $1 AND ` + fmt.Sprintf(activeAt, "$2") + `
		ORDER BY slot_number ASC`

	if err := r.db.SelectContext(ctx, &slots, query, resourceID, now); err != nil {
		return nil, fmt.Errorf("failed to list active slots: %w", err)
	}

	return slots, nil
}

// FindActiveBooking returns the student's active booking of a kind, or nil
func (r *BookingRepository) FindActiveBooking(ctx context.Context, studentID string, kind models.ResourceKind, now time.Time) (*models.Booking, error) {
	var booking models.Booking
	query := `
		SELECT ` + bookingColumns + ` FROM bookings
		WHERE student_id = $1 AND resource_kind = $2 AND ` + fmt.Sprintf(activeAt, "$3") + `
		ORDER BY created_at DESC
		LIMIT 1`

	if err := r.db.GetContext(ctx, &booking, query, studentID, kind, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active booking: %w", err)
	}

	return &booking, nil
}

// ListLapsedPending returns PENDING bookings whose hold window ended before now
func (r *BookingRepository) ListLapsedPending(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := `
		SELECT ` + bookingColumns + ` FROM bookings
		WHERE payment_status = 'PENDING' AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &bookings, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list lapsed bookings: %w", err)
	}

	return bookings, nil
}

// ListBookings returns bookings for the admin lists, newest first
func (r *BookingRepository) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.BookingListItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT b.id, b.resource_id, b.resource_kind, b.slot_number, b.student_id, b.price_option_id, b.amount,
		       b.payment_status, b.gateway_order_id, b.payment_ref, b.failure_reason,
		       b.created_at, b.expires_at, b.updated_at, b.paid_at, b.closed_at,
		       r.label AS resource_label,
		       COALESCE(h.name, '') AS parent_label
		FROM bookings b
		JOIN resources r ON r.id = b.resource_id
		LEFT JOIN hostels h ON h.id = r.parent_id
		WHERE r.school_id = $1 AND b.resource_kind = $2
		  AND ($3 = '' OR b.payment_status = $3)
		ORDER BY b.created_at DESC
		LIMIT $4 OFFSET $5`

	var items []*models.BookingListItem
	err := r.db.SelectContext(ctx, &items, query,
		filter.SchoolID, filter.Kind, string(filter.Status), limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return items, nil
}
