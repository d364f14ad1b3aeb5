package domain

import (
	"time"

	"github.com/google/uuid"
)

// BusStatus is the live fleet state of a bus.
type BusStatus string

const (
	BusStatusActive    BusStatus = "active"     // available, no trip running
	BusStatusInTransit BusStatus = "in_transit" // currently running a trip
)

// Bus is the mutable projection of a vehicle's live state. While a trip is
// active the trip state machine is the sole writer of Status, CurrentTripID,
// and the location fields; fleet management must treat them as read-only in
// that window.
type Bus struct {
	ID                 uuid.UUID  `json:"id"`
	BusNumber          string     `json:"bus_number"`
	DriverID           uuid.UUID  `json:"driver_id"`
	Status             BusStatus  `json:"status"`
	CurrentTripID      *uuid.UUID `json:"current_trip_id,omitempty"` // nil when no trip is running
	CurrentLatitude    float64    `json:"current_latitude"`
	CurrentLongitude   float64    `json:"current_longitude"`
	LastLocationUpdate *time.Time `json:"last_location_update,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
