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

type sendNotificationRequest struct {
	UserIDs []uuid.UUID       `json:"user_ids,omitempty"`
	Topics  []string          `json:"topics,omitempty"`
	Type    string            `json:"type"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}

type sendNotificationResponse struct {
	Created int `json:"created"`
}

// SendNotification handles POST /notifications/send. Admin only; used by
// school staff for announcements and emergency-style topic broadcasts.
func (s *Server) SendNotification(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	var req sendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	created, err := s.notifications.Send(r.Context(), caller, service.SendInput{
		UserIDs: req.UserIDs,
		Topics:  req.Topics,
		Type:    req.Type,
		Title:   req.Title,
		Body:    req.Body,
		Data:    req.Data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sendNotificationResponse{Created: len(created)})
}

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

// ListNotifications handles GET /notifications?limit=... for the caller's
// own inbox.
func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil {
			badRequest(w, "invalid limit")
			return
		}
	}

	notifications, err := s.notifications.ListForCaller(r.Context(), caller, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: notifications})
}

// MarkNotificationRead handles POST /notifications/{notificationID}/read.
func (s *Server) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		badRequest(w, "invalid notification id")
		return
	}

	if err := s.notifications.MarkRead(r.Context(), caller, id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
