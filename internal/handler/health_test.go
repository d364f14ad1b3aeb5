package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schooltransit/backend/internal/push"
)

// TestGetHealth_returns200WithOKStatus verifies that GET /healthz returns
// HTTP 200 with the push counters, without requiring authentication.
func TestGetHealth_returns200WithOKStatus(t *testing.T) {
	h := newHTTPHandler(&mockTripServicer{}, &mockNotificationServicer{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string     `json:"status"`
		Push   push.Stats `json:"push"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Zero(t, body.Push.Sent, "no dispatcher wired, counters stay zero")
}
