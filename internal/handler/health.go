package handler

import (
	"net/http"

	"github.com/schooltransit/backend/internal/push"
)

type healthResponse struct {
	Status string     `json:"status"`
	Push   push.Stats `json:"push"`
}

// GetHealth handles GET /healthz.
// It returns HTTP 200 with the push delivery counters; the status field is
// always "ok" when the server is running.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.pushStats != nil {
		resp.Push = s.pushStats()
	}
	writeJSON(w, http.StatusOK, resp)
}
