package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckInMethod is how the driver confirmed the child's boarding/alighting.
type CheckInMethod string

const (
	CheckInMethodManual CheckInMethod = "manual"
	CheckInMethodQR     CheckInMethod = "qr"
	CheckInMethodFaceID CheckInMethod = "face_id"
)

// Valid reports whether m is one of the known check-in methods.
func (m CheckInMethod) Valid() bool {
	return m == CheckInMethodManual || m == CheckInMethodQR || m == CheckInMethodFaceID
}

// CheckIn is the immutable record of one child boarding or alighting at a
// stop during a trip. At most one exists per (TripID, ChildID) pair — the
// checkins table carries a unique index on that pair.
type CheckIn struct {
	ID        uuid.UUID     `json:"id"`
	TripID    uuid.UUID     `json:"trip_id"`
	ChildID   uuid.UUID     `json:"child_id"`
	ChildName string        `json:"child_name"`
	StopID    uuid.UUID     `json:"stop_id"`
	DriverID  uuid.UUID     `json:"driver_id"`
	BusID     uuid.UUID     `json:"bus_id"`
	RouteID   uuid.UUID     `json:"route_id"`
	Method    CheckInMethod `json:"method"`
	PhotoURL  string        `json:"photo_url,omitempty"`
	Location  Location      `json:"location"` // trip's position when the check-in was recorded
	CreatedAt time.Time     `json:"created_at"`
}
