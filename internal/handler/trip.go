package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/schooltransit/backend/internal/domain"
	"github.com/schooltransit/backend/internal/middleware"
	"github.com/schooltransit/backend/internal/service"
)

type startTripRequest struct {
	BusID    uuid.UUID `json:"bus_id"`
	RouteID  uuid.UUID `json:"route_id"`
	DriverID uuid.UUID `json:"driver_id"`
	Type     string    `json:"type"`
}

type startTripResponse struct {
	TripID uuid.UUID         `json:"trip_id"`
	Status domain.TripStatus `json:"status"`
}

// StartTrip handles POST /trips/start.
func (s *Server) StartTrip(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	var req startTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	trip, err := s.trips.StartTrip(r.Context(), caller, service.StartTripInput{
		BusID:    req.BusID,
		RouteID:  req.RouteID,
		DriverID: req.DriverID,
		Type:     domain.TripType(req.Type),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, startTripResponse{TripID: trip.ID, Status: trip.Status})
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UpdateTripLocation handles POST /trips/{tripID}/location.
func (s *Server) UpdateTripLocation(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		badRequest(w, "invalid trip id")
		return
	}

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if _, err := s.trips.UpdateLocation(r.Context(), caller, tripID, req.Latitude, req.Longitude); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type checkInRequest struct {
	ChildID  uuid.UUID `json:"child_id"`
	StopID   uuid.UUID `json:"stop_id"`
	Method   string    `json:"method"`
	PhotoURL string    `json:"photo_url,omitempty"`
}

type checkInResponse struct {
	CheckInID uuid.UUID `json:"check_in_id"`
	Status    string    `json:"status"`
}

// CompleteCheckIn handles POST /trips/{tripID}/checkins.
func (s *Server) CompleteCheckIn(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		badRequest(w, "invalid trip id")
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	checkIn, err := s.trips.CompleteCheckIn(r.Context(), caller, service.CheckInInput{
		TripID:   tripID,
		ChildID:  req.ChildID,
		StopID:   req.StopID,
		Method:   domain.CheckInMethod(req.Method),
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkInResponse{CheckInID: checkIn.ID, Status: "completed"})
}

type endTripResponse struct {
	Status     domain.TripStatus     `json:"status"`
	Statistics domain.TripStatistics `json:"statistics"`
}

// EndTrip handles POST /trips/{tripID}/end.
func (s *Server) EndTrip(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		badRequest(w, "invalid trip id")
		return
	}

	result, err := s.trips.EndTrip(r.Context(), caller, tripID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, endTripResponse{
		Status:     result.Trip.Status,
		Statistics: result.Statistics,
	})
}

type tripsResponse struct {
	Trips []domain.Trip `json:"trips"`
}

// GetActiveTrips handles GET /trips/active?driver_id=...
func (s *Server) GetActiveTrips(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	driverID, err := uuid.Parse(r.URL.Query().Get("driver_id"))
	if err != nil {
		badRequest(w, "invalid driver id")
		return
	}

	trips, err := s.trips.ActiveTrips(r.Context(), caller, driverID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tripsResponse{Trips: trips})
}

// GetTripHistory handles GET /trips/history?driver_id=...&limit=...&cursor=...
// The cursor is the id of the last trip of the previous page; omit it for the
// first page.
func (s *Server) GetTripHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	q := r.URL.Query()

	driverID, err := uuid.Parse(q.Get("driver_id"))
	if err != nil {
		badRequest(w, "invalid driver id")
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			badRequest(w, "invalid limit")
			return
		}
	}

	cursor := uuid.Nil
	if raw := q.Get("cursor"); raw != "" {
		cursor, err = uuid.Parse(raw)
		if err != nil {
			badRequest(w, "invalid cursor")
			return
		}
	}

	trips, err := s.trips.History(r.Context(), caller, domain.NewHistoryParams(driverID, limit, cursor))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tripsResponse{Trips: trips})
}
