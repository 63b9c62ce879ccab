package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/saaga0h/daylight-rig/internal/daylight"
	"github.com/saaga0h/daylight-rig/internal/rig"
	"github.com/saaga0h/daylight-rig/pkg/config"
	"github.com/saaga0h/daylight-rig/pkg/health"
	"github.com/saaga0h/daylight-rig/pkg/pwm"
	"github.com/saaga0h/daylight-rig/pkg/redis"
)

func main() {
	// Load configuration with hierarchy: defaults → file → env → flags
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration before anything touches the rig
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	sessionID := uuid.NewString()

	schedule, err := resolveSchedule(cfg, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	settings := daylight.Settings{
		Schedule:      schedule,
		Profile:       rig.Profile(cfg.Profile),
		Pins:          rig.PinMap(cfg.Pins),
		SimulatedStep: cfg.SimulatedStep,
		TickInterval:  cfg.TickInterval(),
		SettleDelay:   cfg.SettleDelay(),
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting daylight rig agent",
		"service_name", cfg.ServiceName,
		"session", sessionID,
		"rig", cfg.RigName,
		"schedule_source", cfg.ScheduleSource,
		"sunrise", fmt.Sprintf("%.2fh", schedule.Sunrise),
		"sunset", fmt.Sprintf("%.2fh", schedule.Sunset),
		"sinusoidal", schedule.Sinusoidal,
		"profile", cfg.Profile,
		"pins", cfg.Pins,
		"simulated_step", cfg.SimulatedStep,
		"log_level", cfg.LogLevel)

	// Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Acquire the PWM capability for the process lifetime
	hw, err := pwm.Open(ctx, cfg, sessionID, logger)
	if err != nil {
		logger.Error("Cannot reach PWM capability", "driver", cfg.Driver, "error", err)
		os.Exit(1)
	}

	// Optional status reporting
	var status daylight.StatusReporter
	var redisClient redis.Client
	if cfg.EnableRedisStatus {
		redisClient = redis.NewClient(cfg, logger)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx); err != nil {
			logger.Warn("Redis unreachable, status reporting may lag", "error", err)
		}
		pingCancel()
		status = daylight.NewRedisStatus(redisClient, cfg.RigName, sessionID, 3*cfg.TickInterval())
	}

	agent := daylight.NewAgent(settings, hw, status, logger)

	// Start health check server
	healthChecker := health.NewChecker(agent, sessionID, logger)
	httpServer := startHealthServer(cfg.HealthPort, healthChecker, logger)

	// Start agent in a goroutine
	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			logger.Error("Agent error", "error", err)
			agentErr <- err
		}
	}()

	// Wait for shutdown signal or agent error
	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
		exitCode = 1
	}

	// Graceful shutdown: rig dark before the hardware is released
	logger.Info("Initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := agent.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", "error", err)
		}
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	logger.Info("Daylight rig agent shutdown complete")
	os.Exit(exitCode)
}

// resolveSchedule builds the session's daylight window from config
func resolveSchedule(cfg *config.Config, now time.Time) (daylight.Schedule, error) {
	if cfg.ScheduleSource == "sun" {
		return daylight.FromSun(now, cfg.Latitude, cfg.Longitude, cfg.Sinusoidal)
	}
	s := daylight.Schedule{
		Sunrise:    cfg.Sunrise,
		Sunset:     cfg.Sunset,
		Sinusoidal: cfg.Sinusoidal,
	}
	return s, s.Validate()
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
