package api

import (
	"net/http"

	"github.com/taskhive/taskhive-backend/internal/api/respond"
	"github.com/taskhive/taskhive-backend/internal/health"
)

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	checker *health.ServiceHealthChecker
}

func NewHealthHandler(checker *health.ServiceHealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Live handles GET /api/health and reports that the process is up.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /api/health/ready and reports dependency reachability.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil && !h.checker.IsHealthy() {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
