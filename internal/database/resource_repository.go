package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/schoolhub/booking-backend/internal/models"
)

// ResourceRepository handles inventory database operations
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository creates a new ResourceRepository
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

const resourceColumns = `id, school_id, kind, resource_key, label, capacity, parent_id, details, created_at, updated_at, deleted_at`

// ============================================================================
// CREATE
// ============================================================================

// CreateResource inserts a resource and its price options
func (r *ResourceRepository) CreateResource(ctx context.Context, res *models.Resource) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertResource(ctx, tx, res); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateHostel inserts a hostel with all of its rooms in one transaction
func (r *ResourceRepository) CreateHostel(ctx context.Context, h *models.Hostel) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Hostel row
	_, err = tx.ExecContext(ctx, `
		INSERT INTO hostels (id, school_id, name, address, gender, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		h.ID, h.SchoolID, h.Name, h.Address, h.Gender, h.CreatedAt,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return models.ErrDuplicateResource
		}
		return fmt.Errorf("failed to insert hostel: %w", err)
	}

	// 2. Rooms
	for _, room := range h.Rooms {
		if err := insertResource(ctx, tx, room); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertResource(ctx context.Context, tx *sqlx.Tx, res *models.Resource) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO resources (id, school_id, kind, resource_key, label, capacity, parent_id, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		res.ID, res.SchoolID, res.Kind, res.ResourceKey, res.Label, res.Capacity,
		res.ParentID, res.Details, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == resourceKeyIndex {
			return models.ErrDuplicateResource
		}
		return fmt.Errorf("failed to insert resource: %w", err)
	}

	for _, p := range res.Prices {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO resource_prices (id, resource_id, label, amount, position)
			VALUES ($1, $2, $3, $4, $5)`,
			p.ID, res.ID, p.Label, p.Amount, p.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to insert price option: %w", err)
		}
	}

	return nil
}

// ============================================================================
// READ
// ============================================================================

// GetResource returns a live resource with its prices
func (r *ResourceRepository) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	var res models.Resource
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1 AND deleted_at IS NULL`

	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	if err := r.attachPrices(ctx, []*models.Resource{&res}); err != nil {
		return nil, err
	}

	return &res, nil
}

// ListResources returns the live resources of one kind for a school
func (r *ResourceRepository) ListResources(ctx context.Context, schoolID string, kind models.ResourceKind) ([]*models.Resource, error) {
	var resources []*models.Resource
	query := `
		SELECT ` + resourceColumns + `
		FROM resources
		WHERE school_id = $1 AND kind = $2 AND deleted_at IS NULL
		ORDER BY label ASC`

	if err := r.db.SelectContext(ctx, &resources, query, schoolID, kind); err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	if err := r.attachPrices(ctx, resources); err != nil {
		return nil, err
	}

	return resources, nil
}

// ListHostels returns a school's hostels with their live rooms
func (r *ResourceRepository) ListHostels(ctx context.Context, schoolID string) ([]*models.Hostel, error) {
	var hostels []*models.Hostel
	query := `
		SELECT id, school_id, name, address, gender, created_at
		FROM hostels
		WHERE school_id = $1
		ORDER BY name ASC`

	if err := r.db.SelectContext(ctx, &hostels, query, schoolID); err != nil {
		return nil, fmt.Errorf("failed to list hostels: %w", err)
	}

	rooms, err := r.ListResources(ctx, schoolID, models.ResourceKindHostelCot)
	if err != nil {
		return nil, err
	}

	byHostel := make(map[string]*models.Hostel, len(hostels))
	for _, h := range hostels {
		byHostel[h.ID] = h
	}
	for _, room := range rooms {
		if room.ParentID == nil {
			continue
		}
		if h, ok := byHostel[*room.ParentID]; ok {
			h.Rooms = append(h.Rooms, room)
		}
	}

	return hostels, nil
}

func (r *ResourceRepository) attachPrices(ctx context.Context, resources []*models.Resource) error {
	if len(resources) == 0 {
		return nil
	}

	ids := make([]string, len(resources))
	byID := make(map[string]*models.Resource, len(resources))
	for i, res := range resources {
		ids[i] = res.ID
		byID[res.ID] = res
	}

	var prices []models.PriceOption
	query := `
		SELECT id, resource_id, label, amount, position
		FROM resource_prices
		WHERE resource_id = ANY($1)
		ORDER BY resource_id, position ASC`

	if err := r.db.SelectContext(ctx, &prices, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to load price options: %w", err)
	}

	for _, p := range prices {
		if res, ok := byID[p.ResourceID]; ok {
			res.Prices = append(res.Prices, p)
		}
	}

	return nil
}

// ============================================================================
// UPDATE / DELETE
// ============================================================================

// DeleteResource soft-deletes a resource that has no active bookings.
// Bookings are kept for history.
func (r *ResourceRepository) DeleteResource(ctx context.Context, id string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Lock the resource so no reservation can slip in
	if err := lockResource(ctx, tx, id); err != nil {
		return err
	}

	// 2. Refuse while anything holds a slot
	var active int
	err = tx.GetContext(ctx, &active, `
		SELECT COUNT(*) FROM bookings
		WHERE resource_id = $1
		  AND (payment_status = 'PAID' OR (payment_status = 'PENDING' AND expires_at > $2))`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to count active bookings: %w", err)
	}
	if active > 0 {
		return models.ErrResourceInUse
	}

	// 3. Soft delete
	_, err = tx.ExecContext(ctx, `
		UPDATE resources SET deleted_at = $2, updated_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}

	return tx.Commit()
}

// UpdateCapacity resizes a resource that has never been booked
func (r *ResourceRepository) UpdateCapacity(ctx context.Context, id string, capacity int, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockResource(ctx, tx, id); err != nil {
		return err
	}

	var bookings int
	if err := tx.GetContext(ctx, &bookings, `SELECT COUNT(*) FROM bookings WHERE resource_id = $1`, id); err != nil {
		return fmt.Errorf("failed to count bookings: %w", err)
	}
	if bookings > 0 {
		return models.ErrResourceInUse
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE resources SET capacity = $2, updated_at = $3 WHERE id = $1`,
		id, capacity, at,
	)
	if err != nil {
		return fmt.Errorf("failed to update capacity: %w", err)
	}

	return tx.Commit()
}

// lockedResource is the slice of a resource row the allocator needs under lock
type lockedResource struct {
	Kind     models.ResourceKind `db:"kind"`
	Capacity int                 `db:"capacity"`
}

func lockResourceRow(ctx context.Context, tx *sqlx.Tx, id string) (*lockedResource, error) {
	var res lockedResource
	err := tx.GetContext(ctx, &res, `
		SELECT kind, capacity FROM resources
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to lock resource: %w", err)
	}
	return &res, nil
}

func lockResource(ctx context.Context, tx *sqlx.Tx, id string) error {
	_, err := lockResourceRow(ctx, tx, id)
	return err
}
