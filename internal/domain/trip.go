// Package domain contains the core data types for the school transit backend.
// This package has zero external dependencies beyond uuid and is imported by
// every other internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripType is the direction of a trip: picking children up or dropping them off.
type TripType string

const (
	TripTypePickup  TripType = "pickup"
	TripTypeDropoff TripType = "dropoff"
)

// Valid reports whether t is one of the known trip types.
func (t TripType) Valid() bool {
	return t == TripTypePickup || t == TripTypeDropoff
}

// TripStatus is the lifecycle state of a trip. The only transition is
// active → completed; completed is terminal.
type TripStatus string

const (
	TripStatusActive    TripStatus = "active"
	TripStatusCompleted TripStatus = "completed"
)

// Location is a point-in-time position report.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Trip represents one directional run of a bus along a route.
// ChildrenIDs is fixed at creation (the route's active children at start
// time); CheckedInChildren is append-only in arrival order and is always a
// duplicate-free subset of ChildrenIDs — the repo layer enforces this with
// an append-if-absent conditional write.
type Trip struct {
	ID                uuid.UUID   `json:"id"`
	BusID             uuid.UUID   `json:"bus_id"`
	RouteID           uuid.UUID   `json:"route_id"`
	DriverID          uuid.UUID   `json:"driver_id"`
	BusNumber         string      `json:"bus_number"`
	RouteName         string      `json:"route_name"`
	Type              TripType    `json:"type"`
	Status            TripStatus  `json:"status"`
	ChildrenIDs       []uuid.UUID `json:"children_ids"`
	CheckedInChildren []uuid.UUID `json:"checked_in_children"`
	CurrentLocation   Location    `json:"current_location"`
	StartTime         time.Time   `json:"start_time"`
	EndTime           *time.Time  `json:"end_time,omitempty"` // nil while the trip is active
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// HasChild reports whether the child is expected on this trip.
func (t Trip) HasChild(childID uuid.UUID) bool {
	for _, id := range t.ChildrenIDs {
		if id == childID {
			return true
		}
	}
	return false
}

// IsCheckedIn reports whether the child has already been checked in.
func (t Trip) IsCheckedIn(childID uuid.UUID) bool {
	for _, id := range t.CheckedInChildren {
		if id == childID {
			return true
		}
	}
	return false
}

// HistoryParams carries driver-scoped trip history pagination from the HTTP
// layer to the repo layer. Cursor is the id of the last trip of the previous
// page (keyset pagination on created_at desc); uuid.Nil means first page.
type HistoryParams struct {
	DriverID uuid.UUID
	Limit    int
	Cursor   uuid.UUID
}

// NewHistoryParams applies the default and maximum page size.
// Limits outside [1, 100] fall back to 20.
func NewHistoryParams(driverID uuid.UUID, limit int, cursor uuid.UUID) HistoryParams {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return HistoryParams{DriverID: driverID, Limit: limit, Cursor: cursor}
}
