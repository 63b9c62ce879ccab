package pwm

import (
	"context"
	"log/slog"
)

// LogWriter is a dry-run backend that only logs what it would write
type LogWriter struct {
	logger *slog.Logger
}

// NewLogWriter creates a dry-run writer
func NewLogWriter(logger *slog.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) SetLevel(ctx context.Context, pin int, level uint8) error {
	w.logger.Debug("PWM write (dry run)", "gpio", pin, "level", level)
	return nil
}

func (w *LogWriter) Name() string {
	return "log"
}

func (w *LogWriter) Close() error {
	return nil
}
