// Package handler implements the HTTP handlers for the school transit API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, notification.go) but all share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/schooltransit/backend/internal/domain"
	"github.com/schooltransit/backend/internal/push"
	"github.com/schooltransit/backend/internal/service"
)

// TripServicer defines the business operations the trip handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type TripServicer interface {
	StartTrip(ctx context.Context, caller domain.Identity, in service.StartTripInput) (domain.Trip, error)
	UpdateLocation(ctx context.Context, caller domain.Identity, tripID uuid.UUID, lat, lng float64) (domain.Trip, error)
	CompleteCheckIn(ctx context.Context, caller domain.Identity, in service.CheckInInput) (domain.CheckIn, error)
	EndTrip(ctx context.Context, caller domain.Identity, tripID uuid.UUID) (service.EndTripResult, error)
	ActiveTrips(ctx context.Context, caller domain.Identity, driverID uuid.UUID) ([]domain.Trip, error)
	History(ctx context.Context, caller domain.Identity, p domain.HistoryParams) ([]domain.Trip, error)
}

// NotificationServicer defines the notification operations the handlers
// depend on.
type NotificationServicer interface {
	Send(ctx context.Context, caller domain.Identity, in service.SendInput) ([]domain.Notification, error)
	ListForCaller(ctx context.Context, caller domain.Identity, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, caller domain.Identity, id uuid.UUID) error
}

// Server implements all API endpoints. Wire it with Routes.
type Server struct {
	trips         TripServicer
	notifications NotificationServicer
	pushStats     func() push.Stats
}

// NewServer constructs the Server with all its dependencies. pushStats may
// be nil when no dispatcher is running (tests); the health endpoint then
// reports zero counters.
func NewServer(trips TripServicer, notifications NotificationServicer, pushStats func() push.Stats) *Server {
	return &Server{trips: trips, notifications: notifications, pushStats: pushStats}
}

// Routes builds the HTTP surface. Everything except the health check sits
// behind the supplied auth middleware, so an unauthenticated caller is
// rejected uniformly before any handler runs.
func (s *Server) Routes(auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/trips/start", s.StartTrip)
		r.Post("/trips/{tripID}/location", s.UpdateTripLocation)
		r.Post("/trips/{tripID}/checkins", s.CompleteCheckIn)
		r.Post("/trips/{tripID}/end", s.EndTrip)
		r.Get("/trips/active", s.GetActiveTrips)
		r.Get("/trips/history", s.GetTripHistory)

		r.Post("/notifications/send", s.SendNotification)
		r.Get("/notifications", s.ListNotifications)
		r.Post("/notifications/{notificationID}/read", s.MarkNotificationRead)
	})

	return r
}
