package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// RESOURCE KINDS
// ============================================================================

// ResourceKind identifies what a resource's slots are
// Stored as TEXT, constrained by CHECK on resources.kind
type ResourceKind string

const (
	ResourceKindBusSeat   ResourceKind = "BUS_SEAT"
	ResourceKindHostelCot ResourceKind = "HOSTEL_COT"
)

// IsValid checks the kind against the known values
func (k ResourceKind) IsValid() bool {
	return k == ResourceKindBusSeat || k == ResourceKindHostelCot
}

// HostelGender restricts who a hostel accepts
type HostelGender string

const (
	HostelGenderMale   HostelGender = "MALE"
	HostelGenderFemale HostelGender = "FEMALE"
	HostelGenderMixed  HostelGender = "MIXED"
)

// ============================================================================
// JSONB
// ============================================================================

// JSONB represents a PostgreSQL JSONB column
type JSONB map[string]interface{}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, j)
}

// String returns the value stored under key, or "" when absent
func (j JSONB) String(key string) string {
	if j == nil {
		return ""
	}
	if s, ok := j[key].(string); ok {
		return s
	}
	return ""
}

// ============================================================================
// RESOURCE
// ============================================================================

// Resource is a bounded pool of numbered slots: a bus or a hostel room.
// Slot numbers are the dense range [1, Capacity].
type Resource struct {
	ID          string       `json:"id" db:"id"`
	SchoolID    string       `json:"schoolId" db:"school_id"`
	Kind        ResourceKind `json:"kind" db:"kind"`
	ResourceKey string       `json:"resourceKey" db:"resource_key"`
	Label       string       `json:"label" db:"label"`
	Capacity    int          `json:"capacity" db:"capacity"`
	ParentID    *string      `json:"parentId,omitempty" db:"parent_id"`
	Details     JSONB        `json:"details,omitempty" db:"details"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
	DeletedAt   *time.Time   `json:"-" db:"deleted_at"`

	Prices []PriceOption `json:"prices,omitempty" db:"-"`
}

// PriceOption is one price category of a resource. A bus has one per route,
// a hostel room has exactly one.
type PriceOption struct {
	ID         string  `json:"id" db:"id"`
	ResourceID string  `json:"resourceId" db:"resource_id"`
	Label      string  `json:"label" db:"label"`
	Amount     float64 `json:"amount" db:"amount"`
	Position   int     `json:"-" db:"position"`
}

// Price returns the option with the given id
func (r *Resource) Price(optionID string) (*PriceOption, bool) {
	for i := range r.Prices {
		if r.Prices[i].ID == optionID {
			return &r.Prices[i], true
		}
	}
	return nil, false
}

// DefaultPrice returns the first price option
func (r *Resource) DefaultPrice() (*PriceOption, bool) {
	if len(r.Prices) == 0 {
		return nil, false
	}
	return &r.Prices[0], true
}

// SlotInRange checks slot against [1, Capacity]
func (r *Resource) SlotInRange(slot int) bool {
	return slot >= 1 && slot <= r.Capacity
}

// ResourceDefinition is the input to DefineResource
type ResourceDefinition struct {
	SchoolID      string
	Kind          ResourceKind
	ResourceKey   string
	Label         string
	Capacity      int
	ParentID      *string
	Details       JSONB
	PriceSchedule []PriceDefinition
}

// PriceDefinition is one entry of a price schedule
type PriceDefinition struct {
	Label  string  `json:"label" yaml:"label"`
	Amount float64 `json:"amount" yaml:"amount"`
}

// Validate checks the definition's capacity and price schedule
func (d *ResourceDefinition) Validate() error {
	if !d.Kind.IsValid() {
		return fmt.Errorf("%w: unknown resource kind", ErrInvalidDefinition)
	}
	if d.Capacity < 1 {
		return ErrInvalidCapacity
	}
	if strings.TrimSpace(d.ResourceKey) == "" {
		return fmt.Errorf("%w: resource key is required", ErrInvalidDefinition)
	}
	if len(d.PriceSchedule) == 0 {
		return ErrInvalidPriceSchedule
	}
	for _, p := range d.PriceSchedule {
		if p.Amount < 0 {
			return ErrInvalidPriceSchedule
		}
	}
	return nil
}

// Hostel groups rooms. It is not itself bookable.
type Hostel struct {
	ID        string       `json:"id" db:"id"`
	SchoolID  string       `json:"schoolId" db:"school_id"`
	Name      string       `json:"name" db:"name"`
	Address   string       `json:"address" db:"address"`
	Gender    HostelGender `json:"gender" db:"gender"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at"`

	Rooms []*Resource `json:"rooms,omitempty" db:"-"`
}

// RoomKey builds the resource key of a hostel room
func RoomKey(hostelID, roomNumber string) string {
	return hostelID + "/" + roomNumber
}

// ============================================================================
// REQUESTS
// ============================================================================

// BusRouteInput is one route-priced stop of a bus
type BusRouteInput struct {
	Location string  `json:"location" yaml:"location" binding:"required"`
	Amount   float64 `json:"amount" yaml:"amount" binding:"min=0"`
}

// CreateBusRequest represents the request to register a bus
type CreateBusRequest struct {
	BusNumber    string          `json:"busNumber" yaml:"busNumber" binding:"required"`
	DriverName   string          `json:"driverName" yaml:"driverName"`
	DriverNumber string          `json:"driverNumber" yaml:"driverNumber"`
	TotalSeats   int             `json:"totalSeats" yaml:"totalSeats"`
	Time         string          `json:"time" yaml:"time"`
	Routes       []BusRouteInput `json:"routes" yaml:"routes"`
}

// Definition converts the request into a resource definition
func (r *CreateBusRequest) Definition(schoolID string) ResourceDefinition {
	prices := make([]PriceDefinition, 0, len(r.Routes))
	for _, route := range r.Routes {
		prices = append(prices, PriceDefinition{Label: route.Location, Amount: route.Amount})
	}

	return ResourceDefinition{
		SchoolID:    schoolID,
		Kind:        ResourceKindBusSeat,
		ResourceKey: strings.ToUpper(strings.TrimSpace(r.BusNumber)),
		Label:       strings.TrimSpace(r.BusNumber),
		Capacity:    r.TotalSeats,
		Details: JSONB{
			"driverName":   r.DriverName,
			"driverNumber": r.DriverNumber,
			"time":         r.Time,
		},
		PriceSchedule: prices,
	}
}

// RoomInput is one room of a hostel
type RoomInput struct {
	RoomNumber string  `json:"roomNumber" yaml:"roomNumber" binding:"required"`
	Floor      string  `json:"floor" yaml:"floor"`
	CotCount   int     `json:"cotCount" yaml:"cotCount"`
	Amount     float64 `json:"amount" yaml:"amount"`
}

// CreateHostelRequest represents the request to register a hostel with its rooms
type CreateHostelRequest struct {
	Name    string       `json:"name" yaml:"name" binding:"required"`
	Address string       `json:"address" yaml:"address"`
	Gender  HostelGender `json:"gender" yaml:"gender"`
	Rooms   []RoomInput  `json:"rooms" yaml:"rooms"`
}

// Validate validates the hostel request
func (r *CreateHostelRequest) Validate() error {
	switch r.Gender {
	case HostelGenderMale, HostelGenderFemale, HostelGenderMixed:
	case "":
		r.Gender = HostelGenderMixed
	default:
		return fmt.Errorf("%w: gender must be MALE, FEMALE or MIXED", ErrInvalidDefinition)
	}
	if len(r.Rooms) == 0 {
		return fmt.Errorf("%w: at least one room is required", ErrInvalidDefinition)
	}
	seen := make(map[string]bool, len(r.Rooms))
	for _, room := range r.Rooms {
		if seen[room.RoomNumber] {
			return ErrDuplicateResource
		}
		seen[room.RoomNumber] = true
	}
	return nil
}

// RoomDefinition converts one room into a resource definition under hostel
func (r *CreateHostelRequest) RoomDefinition(schoolID, hostelID string, room RoomInput) ResourceDefinition {
	parent := hostelID
	return ResourceDefinition{
		SchoolID:    schoolID,
		Kind:        ResourceKindHostelCot,
		ResourceKey: RoomKey(hostelID, room.RoomNumber),
		Label:       room.RoomNumber,
		Capacity:    room.CotCount,
		ParentID:    &parent,
		Details:     JSONB{"floor": room.Floor},
		PriceSchedule: []PriceDefinition{
			{Label: "standard", Amount: room.Amount},
		},
	}
}

// UpdateCapacityRequest represents the request to resize a resource
type UpdateCapacityRequest struct {
	Capacity int `json:"capacity" binding:"required"`
}
