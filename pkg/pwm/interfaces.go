// Package pwm provides the hardware capability that sets a GPIO pin's PWM duty.
// Backends talk to pigpiod, the SoC PWM block, an MQTT-attached node, or just log.
package pwm

import (
	"context"
	"errors"
)

// MaxLevel is the full-scale drive level understood by every backend
const MaxLevel = 255

// ErrUnavailable marks a capability that cannot be reached at all.
// Callers treat it as permanent; any other write error is a single failed write.
var ErrUnavailable = errors.New("pwm capability unavailable")

// Writer represents the hardware capability for testing and abstraction
type Writer interface {
	// SetLevel sets the duty of pin to level/255. It is synchronous and idempotent.
	SetLevel(ctx context.Context, pin int, level uint8) error

	// Name identifies the backend in logs
	Name() string

	// Close releases the capability
	Close() error
}
