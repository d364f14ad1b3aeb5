package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType tags a stored notification with the event that produced it.
type NotificationType string

const (
	NotificationTripStarted     NotificationType = "trip_started"
	NotificationChildPickedUp   NotificationType = "child_picked_up"
	NotificationChildDroppedOff NotificationType = "child_dropped_off"
	NotificationChildMissed     NotificationType = "child_missed"
)

// Notification is one per-recipient record produced by fan-out. Data carries
// the machine-readable payload; it is serialized to jsonb at the store
// boundary only.
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data"`
	IsRead    bool              `json:"is_read"`
	CreatedAt time.Time         `json:"created_at"`
}
