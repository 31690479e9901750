package handlers

import (
	"net/http"

	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/sdk"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Items   int    `json:"items"`
	Error   string `json:"error,omitempty"`
}

// HealthHandler reports whether the item store answers
type HealthHandler struct {
	BaseHandler
	m *sdk.Mirage
}

func NewHealthHandler(m *sdk.Mirage) *HealthHandler {
	return &HealthHandler{m: m}
}

// HealthCheck answers 503 when the item store cannot be queried
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, req *http.Request) {
	stats, err := h.m.Stats(req.Context())
	if err != nil {
		logger.Warn("health check failed: err=%v", err)
		h.sendJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Service: "mirage", Error: err.Error()})
		return
	}
	h.sendJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: "mirage", Items: stats.Total})
}
