package pwm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/daylight-rig/pkg/config"
	"github.com/saaga0h/daylight-rig/pkg/mqtt"
)

const openTimeout = 10 * time.Second

// Open acquires the backend named by cfg.Driver.
// A backend that cannot be reached returns an error wrapping ErrUnavailable.
func Open(ctx context.Context, cfg *config.Config, sessionID string, logger *slog.Logger) (Writer, error) {
	ctx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	logger = logger.With("driver", cfg.Driver)

	var (
		w   Writer
		err error
	)
	switch cfg.Driver {
	case "pigpio":
		w, err = NewPigpioWriter(ctx, cfg.PigpioAddress(), logger)
	case "rpio":
		w, err = NewRpioWriter(cfg.Pins[:], cfg.PWMFrequency, logger)
	case "mqtt":
		client := mqtt.NewClient(cfg, sessionID, logger)
		w, err = NewMQTTWriter(ctx, client, cfg.RigName, logger)
	case "log":
		w = NewLogWriter(logger)
	default:
		err = fmt.Errorf("unknown pwm driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}
