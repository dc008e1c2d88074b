package handlers

import (
	"net/http"
	"time"
)

// HealthHandlers exposes liveness and readiness probes.
type HealthHandlers struct {
	started time.Time
	ready   func() bool
}

// NewHealthHandlers constructs health handlers. The readiness probe reports
// ready until a check function is supplied via WithReadinessCheck.
func NewHealthHandlers() *HealthHandlers {
	return &HealthHandlers{started: time.Now()}
}

// WithReadinessCheck installs the readiness probe used by Readyz.
func (h *HealthHandlers) WithReadinessCheck(check func() bool) *HealthHandlers {
	if h != nil {
		h.ready = check
	}
	return h
}

// Healthz responds with a simple status payload for monitoring.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.started).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports whether the service is ready to accept traffic.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, _ *http.Request) {
	if h.ready != nil && !h.ready() {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
}
