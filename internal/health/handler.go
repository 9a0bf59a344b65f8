package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// LivenessResponse is the body of GET /health.
type LivenessResponse struct {
	Status        string    `json:"status"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Version       string    `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
}

// Handler exposes the liveness and readiness endpoints.
type Handler struct {
	monitor   *Monitor
	log       *slog.Logger
	version   string
	startTime time.Time
}

// NewHandler returns a Handler backed by the given monitor.
func NewHandler(m *Monitor, log *slog.Logger, version string) *Handler {
	return &Handler{
		monitor:   m,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health. It answers 200 whenever the process can
// respond at all, independent of dependency health; infrastructure uses it
// to detect a hung or crashed process.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Version:       h.version,
		Timestamp:     time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Readiness handles GET /ready: 200 when every dependency is healthy, 503
// otherwise with the failing dependency names in the body.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	readiness := h.monitor.CheckReadiness(r.Context())
	if !readiness.Ready {
		h.log.Debug("readiness check failed",
			"draining", readiness.Draining, "failing", readiness.Failing)
	}

	w.Header().Set("Content-Type", "application/json")
	if readiness.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(readiness)
}
