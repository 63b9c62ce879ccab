package health

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	snap Snapshot
}

func (s staticSource) HealthSnapshot() Snapshot { return s.snap }

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestChecker(snap Snapshot) *Checker {
	c := NewChecker(staticSource{snap}, "session-1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time { return fixedNow }
	return c
}

func get(t *testing.T, h http.HandlerFunc) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, resp
}

func TestHandlerFunc_AlwaysOK(t *testing.T) {
	code, resp := get(t, newTestChecker(Snapshot{}).HandlerFunc())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Rig)
}

func TestDetailedHandlerFunc(t *testing.T) {
	healthy := Snapshot{
		Driver:       "pigpio",
		TickInterval: 5 * time.Second,
		Ticked:       true,
		Seq:          12,
		Hour:         12,
		Intensity:    1,
		Levels:       map[string]int{"white": 255},
		At:           fixedNow.Add(-2 * time.Second),
	}

	failed := healthy
	failed.LastError = "failed to write white (gpio 27): i/o timeout"

	stalled := healthy
	stalled.At = fixedNow.Add(-time.Minute)

	tests := []struct {
		name   string
		snap   Snapshot
		code   int
		status string
	}{
		{"healthy", healthy, http.StatusOK, "healthy"},
		{"not started", Snapshot{Driver: "pigpio", TickInterval: 5 * time.Second}, http.StatusServiceUnavailable, "starting"},
		{"last write failed", failed, http.StatusServiceUnavailable, "degraded"},
		{"stalled loop", stalled, http.StatusServiceUnavailable, "stalled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := get(t, newTestChecker(tt.snap).DetailedHandlerFunc())
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, "session-1", resp.Session)
			require.NotNil(t, resp.Rig)
			assert.Equal(t, "pigpio", resp.Rig.Driver)
		})
	}
}

func TestDetailedHandlerFunc_ReportsLevels(t *testing.T) {
	snap := Snapshot{
		Driver:       "log",
		TickInterval: time.Second,
		Ticked:       true,
		Seq:          3,
		Hour:         9.5,
		Intensity:    0.75,
		Levels:       map[string]int{"red": 19, "white": 191},
		At:           fixedNow,
	}

	_, resp := get(t, newTestChecker(snap).DetailedHandlerFunc())
	require.NotNil(t, resp.Rig)
	assert.Equal(t, uint64(3), resp.Rig.Seq)
	assert.Equal(t, 9.5, resp.Rig.Hour)
	assert.Equal(t, 0.75, resp.Rig.Intensity)
	assert.Equal(t, 191, resp.Rig.Levels["white"])
	assert.Equal(t, "2024-06-01T12:00:00Z", resp.Rig.TickedAt)
}
