package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/schooltransit/backend/internal/domain"
)

// ErrorResponse is the uniform JSON error body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the stable machine-readable code and the
// human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorMapping ties a domain sentinel to its HTTP status and wire code.
type errorMapping struct {
	sentinel error
	status   int
	code     string
}

// Order matters only for readability; sentinels are disjoint.
var errorMappings = []errorMapping{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{domain.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrInvalidArgument, http.StatusUnprocessableEntity, "invalid_argument"},
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
}

// writeError maps a service error onto the HTTP response. Known sentinels
// surface their wrapped message; anything else is a 500 with a generic body,
// logged here so internal detail stays out of responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			writeJSON(w, m.status, ErrorResponse{Error: ErrorDetail{
				Code:    m.code,
				Message: sentinelMessage(err, m.sentinel),
			}})
			return
		}
	}

	slog.ErrorContext(r.Context(), "internal error", "error", err, "path", r.URL.Path)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
		Code:    "internal",
		Message: "internal error",
	}})
}

// sentinelMessage extracts the human-readable part from a wrapped sentinel
// error, e.g. "service.TripService.StartTrip: permission denied: driver not
// assigned to this bus" → "driver not assigned to this bus". Falls back to
// the sentinel's own text when no detail was attached.
func sentinelMessage(err, sentinel error) string {
	if _, after, ok := strings.Cut(err.Error(), sentinel.Error()+": "); ok {
		return after
	}
	return sentinel.Error()
}

// writeJSON writes a JSON response with the given status. Encoding failures
// are ignored — the status line is already committed.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// badRequest rejects a request before it reaches the service layer (missing
// or malformed body, bad path parameter).
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
		Code:    "bad_request",
		Message: message,
	}})
}
