package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a closed union of the things the trip state machine can announce.
// Each variant carries exactly the fields needed to build its notifications;
// the generic data map exists only in the expanded Notification records, at
// the store boundary. The unexported method keeps the union closed to this
// package.
type Event interface {
	// Notifications expands the event into one record per recipient.
	// now becomes the CreatedAt of each record.
	Notifications(now time.Time) []Notification

	isEvent()
}

// TripStarted is emitted once per trip start, fanning out to the parent of
// every child expected on the trip.
type TripStarted struct {
	Trip     Trip
	Children []Child // the route snapshot taken at start
}

// ChildCheckedIn is emitted when a check-in is recorded, to that child's
// parent only.
type ChildCheckedIn struct {
	Trip      Trip
	Child     Child
	CheckInID uuid.UUID
}

// ChildMissed is emitted at trip end for every expected child who was never
// checked in, to that child's parent.
type ChildMissed struct {
	Trip  Trip
	Child Child
}

func (TripStarted) isEvent()    {}
func (ChildCheckedIn) isEvent() {}
func (ChildMissed) isEvent()    {}

// Notifications builds one trip_started record per child's parent.
func (e TripStarted) Notifications(now time.Time) []Notification {
	out := make([]Notification, 0, len(e.Children))
	for _, child := range e.Children {
		out = append(out, Notification{
			UserID: child.ParentID,
			Type:   NotificationTripStarted,
			Title:  fmt.Sprintf("%s Trip Started", directionTitle(e.Trip.Type)),
			Body: fmt.Sprintf("Bus %s has started the %s route for %s.",
				e.Trip.BusNumber, e.Trip.Type, child.Name),
			Data: map[string]string{
				"trip_id":    e.Trip.ID.String(),
				"bus_id":     e.Trip.BusID.String(),
				"route_id":   e.Trip.RouteID.String(),
				"child_id":   child.ID.String(),
				"child_name": child.Name,
				"type":       string(e.Trip.Type),
			},
			CreatedAt: now,
		})
	}
	return out
}

// Notifications builds the single picked-up / dropped-off record for the
// child's parent. The type tag follows the trip direction.
func (e ChildCheckedIn) Notifications(now time.Time) []Notification {
	typ := NotificationChildPickedUp
	verb := "picked up"
	title := fmt.Sprintf("%s Picked Up", e.Child.Name)
	if e.Trip.Type == TripTypeDropoff {
		typ = NotificationChildDroppedOff
		verb = "dropped off"
		title = fmt.Sprintf("%s Dropped Off", e.Child.Name)
	}
	return []Notification{{
		UserID: e.Child.ParentID,
		Type:   typ,
		Title:  title,
		Body: fmt.Sprintf("%s has been %s by bus %s.",
			e.Child.Name, verb, e.Trip.BusNumber),
		Data: map[string]string{
			"trip_id":     e.Trip.ID.String(),
			"child_id":    e.Child.ID.String(),
			"child_name":  e.Child.Name,
			"bus_id":      e.Trip.BusID.String(),
			"bus_number":  e.Trip.BusNumber,
			"check_in_id": e.CheckInID.String(),
			"timestamp":   now.UTC().Format(time.RFC3339),
		},
		CreatedAt: now,
	}}
}

// Notifications builds the single missed-child record for the child's parent.
func (e ChildMissed) Notifications(now time.Time) []Notification {
	verb := "picked up"
	if e.Trip.Type == TripTypeDropoff {
		verb = "dropped off"
	}
	return []Notification{{
		UserID: e.Child.ParentID,
		Type:   NotificationChildMissed,
		Title:  fmt.Sprintf("%s Missed %s", e.Child.Name, directionTitle(e.Trip.Type)),
		Body: fmt.Sprintf("%s was not %s during the scheduled trip.",
			e.Child.Name, verb),
		Data: map[string]string{
			"trip_id":    e.Trip.ID.String(),
			"child_id":   e.Child.ID.String(),
			"child_name": e.Child.Name,
			"bus_id":     e.Trip.BusID.String(),
			"bus_number": e.Trip.BusNumber,
			"type":       string(e.Trip.Type),
		},
		CreatedAt: now,
	}}
}

// directionTitle is the human-readable form of a trip type for titles.
func directionTitle(t TripType) string {
	if t == TripTypeDropoff {
		return "Drop-off"
	}
	return "Pickup"
}
