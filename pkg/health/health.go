package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// staleTicks is how many tick intervals may pass without a tick before the rig counts as stalled
const staleTicks = 3

// Snapshot is the loop state exposed to health checks
type Snapshot struct {
	Driver       string
	TickInterval time.Duration
	Ticked       bool
	Seq          uint64
	Hour         float64
	Intensity    float64
	Levels       map[string]int
	At           time.Time
	LastError    string
}

// Source provides loop snapshots
type Source interface {
	HealthSnapshot() Snapshot
}

// Checker provides health check functionality for the agent
type Checker struct {
	source  Source
	session string
	logger  *slog.Logger
	now     func() time.Time
}

// NewChecker creates a new health checker with the given dependencies
func NewChecker(source Source, session string, logger *slog.Logger) *Checker {
	return &Checker{
		source:  source,
		session: session,
		logger:  logger,
		now:     time.Now,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Session   string    `json:"session,omitempty"`
	Rig       *RigState `json:"rig,omitempty"`
}

// RigState represents the latest loop iteration
type RigState struct {
	Driver    string         `json:"driver"`
	Seq       uint64         `json:"seq"`
	Hour      float64        `json:"hour"`
	Intensity float64        `json:"intensity"`
	Levels    map[string]int `json:"levels"`
	TickedAt  string         `json:"ticked_at,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// HandlerFunc returns an HTTP handler function for health checks.
// Returns 200 if the process is alive without inspecting the loop.
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		}
		h.write(w, http.StatusOK, response)
	}
}

// DetailedHandlerFunc returns a handler that reports the latest tick.
// It answers 503 when the last write failed or the loop has stalled.
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := h.source.HealthSnapshot()
		now := h.now()

		status := "healthy"
		statusCode := http.StatusOK

		state := &RigState{
			Driver:    snap.Driver,
			Seq:       snap.Seq,
			Hour:      snap.Hour,
			Intensity: snap.Intensity,
			Levels:    snap.Levels,
			LastError: snap.LastError,
		}

		switch {
		case !snap.Ticked:
			status = "starting"
			statusCode = http.StatusServiceUnavailable
		case snap.LastError != "":
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		case snap.TickInterval > 0 && now.Sub(snap.At) > staleTicks*snap.TickInterval:
			status = "stalled"
			statusCode = http.StatusServiceUnavailable
		}
		if snap.Ticked {
			state.TickedAt = snap.At.UTC().Format(time.RFC3339Nano)
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: now.UTC().Format(time.RFC3339Nano),
			Session:   h.session,
			Rig:       state,
		}
		h.write(w, statusCode, response)
	}
}

func (h *Checker) write(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
