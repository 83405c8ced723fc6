package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// InventoryService defines and maintains bookable resources
type InventoryService struct {
	resources ResourceStore
	cache     SummaryCache
	logger    *logrus.Logger
	now       func() time.Time
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(resources ResourceStore, cache SummaryCache, logger *logrus.Logger) *InventoryService {
	if cache == nil {
		cache = nopSummaryCache{}
	}
	return &InventoryService{
		resources: resources,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// DefineResource creates a resource with capacity slots and its price schedule
func (s *InventoryService) DefineResource(ctx context.Context, def models.ResourceDefinition) (*models.Resource, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	res := s.buildResource(def)
	if err := s.resources.CreateResource(ctx, res); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"resource_id": res.ID,
		"kind":        res.Kind,
		"key":         res.ResourceKey,
		"capacity":    res.Capacity,
	}).Info("Resource defined")

	return res, nil
}

// CreateBus registers a bus with route-priced seats
func (s *InventoryService) CreateBus(ctx context.Context, caller models.Caller, req *models.CreateBusRequest) (*models.Resource, error) {
	if !caller.CanAdminister(caller.SchoolID) {
		return nil, models.ErrForbidden
	}
	return s.DefineResource(ctx, req.Definition(caller.SchoolID))
}

// CreateHostel registers a hostel and one resource per room
func (s *InventoryService) CreateHostel(ctx context.Context, caller models.Caller, req *models.CreateHostelRequest) (*models.Hostel, error) {
	if !caller.CanAdminister(caller.SchoolID) {
		return nil, models.ErrForbidden
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: hostel name is required", models.ErrInvalidDefinition)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	hostel := &models.Hostel{
		ID:        uuid.New().String(),
		SchoolID:  caller.SchoolID,
		Name:      strings.TrimSpace(req.Name),
		Address:   req.Address,
		Gender:    req.Gender,
		CreatedAt: now,
	}

	// Validate every room before anything is written
	for _, room := range req.Rooms {
		def := req.RoomDefinition(caller.SchoolID, hostel.ID, room)
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("room %s: %w", room.RoomNumber, err)
		}
		hostel.Rooms = append(hostel.Rooms, s.buildResource(def))
	}

	if err := s.resources.CreateHostel(ctx, hostel); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"hostel_id": hostel.ID,
		"school_id": hostel.SchoolID,
		"rooms":     len(hostel.Rooms),
	}).Info("Hostel created")

	return hostel, nil
}

func (s *InventoryService) buildResource(def models.ResourceDefinition) *models.Resource {
	now := s.now()
	res := &models.Resource{
		ID:          uuid.New().String(),
		SchoolID:    def.SchoolID,
		Kind:        def.Kind,
		ResourceKey: def.ResourceKey,
		Label:       def.Label,
		Capacity:    def.Capacity,
		ParentID:    def.ParentID,
		Details:     def.Details,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, p := range def.PriceSchedule {
		res.Prices = append(res.Prices, models.PriceOption{
			ID:         uuid.New().String(),
			ResourceID: res.ID,
			Label:      p.Label,
			Amount:     p.Amount,
			Position:   i,
		})
	}
	return res
}

// GetResource loads a resource visible to the caller's school
func (s *InventoryService) GetResource(ctx context.Context, caller models.Caller, id string) (*models.Resource, error) {
	res, err := s.resources.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.HasRole(models.RoleSuperAdmin) && res.SchoolID != caller.SchoolID {
		return nil, models.ErrResourceNotFound
	}
	return res, nil
}

// ListBuses returns the buses of the caller's school
func (s *InventoryService) ListBuses(ctx context.Context, caller models.Caller) ([]*models.Resource, error) {
	return s.resources.ListResources(ctx, caller.SchoolID, models.ResourceKindBusSeat)
}

// ListHostels returns the hostels of the caller's school with their rooms
func (s *InventoryService) ListHostels(ctx context.Context, caller models.Caller) ([]*models.Hostel, error) {
	return s.resources.ListHostels(ctx, caller.SchoolID)
}

// DeleteResource removes a resource that has no active bookings
func (s *InventoryService) DeleteResource(ctx context.Context, caller models.Caller, id string) error {
	res, err := s.resources.GetResource(ctx, id)
	if err != nil {
		return err
	}
	if !caller.CanAdminister(res.SchoolID) {
		return models.ErrForbidden
	}

	if err := s.resources.DeleteResource(ctx, id, s.now()); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)

	s.logger.WithFields(logrus.Fields{
		"resource_id": id,
		"user_id":     caller.UserID,
	}).Info("Resource deleted")

	return nil
}

// UpdateCapacity resizes a resource that has never been booked
func (s *InventoryService) UpdateCapacity(ctx context.Context, caller models.Caller, id string, capacity int) (*models.Resource, error) {
	if capacity < 1 {
		return nil, models.ErrInvalidCapacity
	}

	res, err := s.resources.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAdminister(res.SchoolID) {
		return nil, models.ErrForbidden
	}

	if err := s.resources.UpdateCapacity(ctx, id, capacity, s.now()); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, id)

	s.logger.WithFields(logrus.Fields{
		"resource_id": id,
		"from":        res.Capacity,
		"to":          capacity,
	}).Info("Resource capacity updated")

	return s.resources.GetResource(ctx, id)
}
