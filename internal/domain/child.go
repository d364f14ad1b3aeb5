package domain

import (
	"time"

	"github.com/google/uuid"
)

// Child is a rider assigned to a route. Inactive children are excluded from
// the snapshot taken when a trip starts.
type Child struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ParentID  uuid.UUID `json:"parent_id"`
	RouteID   uuid.UUID `json:"route_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Route is a named bus route. Stops and scheduling live with fleet
// management; the trip engine only needs the route's identity and name.
type Route struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SchoolID  uuid.UUID `json:"school_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
