package daylight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/daylight-rig/internal/rig"
	"github.com/saaga0h/daylight-rig/pkg/health"
	"github.com/saaga0h/daylight-rig/pkg/pwm"
)

const (
	statusTimeout        = 2 * time.Second
	shutdownWriteTimeout = 3 * time.Second
)

// Settings is the immutable session configuration of the control loop
type Settings struct {
	Schedule      Schedule
	Profile       rig.Profile
	Pins          rig.PinMap
	SimulatedStep float64 // hours per tick, 0 = wall clock
	TickInterval  time.Duration
	SettleDelay   time.Duration
}

// Validate checks the session settings independently of where they were loaded from
func (s Settings) Validate() error {
	if err := s.Schedule.Validate(); err != nil {
		return err
	}
	if err := s.Profile.Validate(); err != nil {
		return err
	}
	if s.SimulatedStep < 0 {
		return fmt.Errorf("simulated step %g must not be negative", s.SimulatedStep)
	}
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick interval %s must be positive", s.TickInterval)
	}
	return nil
}

// LoopState is the value threaded from one iteration to the next
type LoopState struct {
	Hour float64
	Seq  uint64
}

// Advance returns the state of the next iteration.
// The simulated hour resets to exactly 0 once it reaches 24; any overshoot is dropped.
func (s LoopState) Advance(step float64) LoopState {
	next := s.Hour + step
	if next >= 24 {
		next = 0
	}
	return LoopState{Hour: next, Seq: s.Seq + 1}
}

// Tick is the outcome of one loop iteration
type Tick struct {
	Seq       uint64
	Hour      float64
	Intensity float64
	Levels    rig.Levels
	At        time.Time
	Err       error
}

// Clock supplies wall-clock time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Agent runs the illumination control loop
type Agent struct {
	settings Settings
	driver   *rig.Driver
	hw       pwm.Writer
	status   StatusReporter
	logger   *slog.Logger

	clock Clock
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.RWMutex
	last    Tick
	hasTick bool
	done    chan struct{}
}

// NewAgent creates a control loop driving hw. status may be nil.
func NewAgent(settings Settings, hw pwm.Writer, status StatusReporter, logger *slog.Logger) *Agent {
	return &Agent{
		settings: settings,
		driver:   rig.NewDriver(hw, settings.Pins),
		hw:       hw,
		status:   status,
		logger:   logger,
		clock:    systemClock{},
		sleep:    sleepContext,
	}
}

// Start switches the rig off, waits for it to settle, then ticks until ctx is cancelled.
// It returns nil on cancellation and an error when the hardware is unavailable.
func (a *Agent) Start(ctx context.Context) error {
	done := make(chan struct{})
	a.mu.Lock()
	a.done = done
	a.mu.Unlock()
	defer close(done)

	a.logger.Info("Starting daylight agent",
		"driver", a.hw.Name(),
		"sunrise", a.settings.Schedule.Sunrise,
		"sunset", a.settings.Schedule.Sunset,
		"day_length_h", a.settings.Schedule.DayLength(),
		"sinusoidal", a.settings.Schedule.Sinusoidal,
		"simulated_step", a.settings.SimulatedStep,
		"tick_interval", a.settings.TickInterval.String())

	if err := a.driver.Off(ctx); err != nil {
		return fmt.Errorf("failed to switch rig off at startup: %w", err)
	}
	if err := a.sleep(ctx, a.settings.SettleDelay); err != nil {
		a.logger.Info("Daylight agent stopping")
		return nil
	}

	a.logger.Info("Daylight agent started and ready")

	state := LoopState{}
	for {
		t := a.Step(ctx, a.hourFor(state), state.Seq)
		if t.Err != nil {
			if errors.Is(t.Err, pwm.ErrUnavailable) {
				a.logger.Error("PWM capability unavailable, stopping", "error", t.Err)
				return t.Err
			}
			a.logger.Warn("Skipping tick after failed write", "seq", t.Seq, "error", t.Err)
		}

		state = state.Advance(a.settings.SimulatedStep)

		if err := a.sleep(ctx, a.settings.TickInterval); err != nil {
			a.logger.Info("Daylight agent stopping")
			return nil
		}
	}
}

// hourFor returns the time of day the iteration should render
func (a *Agent) hourFor(state LoopState) float64 {
	if a.settings.SimulatedStep == 0 {
		return HourOf(a.clock.Now())
	}
	return state.Hour
}

// Step renders one hour: curve, drive levels, observability line, status
func (a *Agent) Step(ctx context.Context, hour float64, seq uint64) Tick {
	intensity := Illumination(hour, a.settings.Schedule)
	levels, err := a.driver.Apply(ctx, a.settings.Profile, intensity)

	t := Tick{
		Seq:       seq,
		Hour:      hour,
		Intensity: intensity,
		Levels:    levels,
		At:        a.clock.Now(),
		Err:       err,
	}

	a.logger.Info("Illumination applied",
		"time", fmt.Sprintf("%.2fh", hour),
		"intensity", fmt.Sprintf("%.3f", intensity))
	a.logger.Debug("Drive levels", "seq", seq, "levels", levels.Map())

	a.mu.Lock()
	a.last = t
	a.hasTick = true
	a.mu.Unlock()

	if a.status != nil {
		statusCtx, cancel := context.WithTimeout(ctx, statusTimeout)
		if err := a.status.Report(statusCtx, t); err != nil {
			a.logger.Debug("Failed to report status", "error", err)
		}
		cancel()
	}

	return t
}

// Stop waits for the loop to exit, switches the rig off and releases the hardware.
// The rig is switched off even when the loop does not exit before ctx ends.
func (a *Agent) Stop(ctx context.Context) error {
	a.logger.Info("Stopping daylight agent")

	var errs []error

	a.mu.RLock()
	done := a.done
	a.mu.RUnlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			a.logger.Warn("Loop did not exit, switching rig off anyway", "error", ctx.Err())
			errs = append(errs, fmt.Errorf("loop did not exit: %w", ctx.Err()))
		}
	}

	offCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownWriteTimeout)
	defer cancel()

	if err := a.driver.Off(offCtx); err != nil {
		a.logger.Error("Failed to switch rig off", "error", err)
		errs = append(errs, err)
	}
	if a.status != nil {
		if err := a.status.Clear(offCtx); err != nil {
			a.logger.Debug("Failed to clear status", "error", err)
		}
	}
	if err := a.hw.Close(); err != nil {
		a.logger.Error("Error closing PWM driver", "error", err)
		errs = append(errs, err)
	}

	a.logger.Info("Daylight agent stopped")
	return errors.Join(errs...)
}

// LastTick returns the most recent iteration, if any
func (a *Agent) LastTick() (Tick, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last, a.hasTick
}

// HealthSnapshot reports the latest tick for the health endpoint
func (a *Agent) HealthSnapshot() health.Snapshot {
	t, ok := a.LastTick()
	snap := health.Snapshot{
		Driver:       a.hw.Name(),
		TickInterval: a.settings.TickInterval,
	}
	if !ok {
		return snap
	}
	snap.Ticked = true
	snap.Seq = t.Seq
	snap.Hour = t.Hour
	snap.Intensity = t.Intensity
	snap.Levels = t.Levels.Map()
	snap.At = t.At
	if t.Err != nil {
		snap.LastError = t.Err.Error()
	}
	return snap
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
