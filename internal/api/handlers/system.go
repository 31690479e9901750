package handlers

import (
	"maps"
	"net/http"

	"github.com/Project-Sylos/Mirage/sdk"
)

// secretKeys are blob option keys never echoed by GetConfig
var secretKeys = []string{"secret_access_key", "access_key_id"}

// SystemHandler handles the emulator control endpoints
type SystemHandler struct {
	BaseHandler
	m *sdk.Mirage
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(m *sdk.Mirage) *SystemHandler {
	return &SystemHandler{m: m}
}

// Reset drops all content and sessions, then seeds again
func (h *SystemHandler) Reset(w http.ResponseWriter, req *http.Request) {
	stats, err := h.m.Reset(req.Context())
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, stats)
}

// GetConfig returns the effective configuration with credentials redacted
func (h *SystemHandler) GetConfig(w http.ResponseWriter, req *http.Request) {
	cfg := *h.m.Config()
	cfg.Blobs.S3 = redact(cfg.Blobs.S3)
	h.sendJSON(w, http.StatusOK, cfg)
}

func (h *SystemHandler) GetStats(w http.ResponseWriter, req *http.Request) {
	stats, err := h.m.Stats(req.Context())
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, stats)
}

func redact(options map[string]any) map[string]any {
	out := maps.Clone(options)
	for _, key := range secretKeys {
		if _, ok := out[key]; ok {
			out[key] = "REDACTED"
		}
	}
	return out
}
