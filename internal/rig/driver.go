package rig

import (
	"context"
	"fmt"
	"math"

	"github.com/saaga0h/daylight-rig/pkg/pwm"
)

// percentToLevel converts a 0-100 percent scale into 0-255 drive units
const percentToLevel = 2.55

// Scale converts a profile at the given illumination factor into drive levels.
// Each level is round(2.55 * intensity * percent), half away from zero, clamped to [0, 255].
func Scale(profile Profile, intensity float64) Levels {
	var levels Levels
	for _, ch := range Channels {
		v := math.Round(percentToLevel * intensity * profile[ch])
		switch {
		case math.IsNaN(v) || v < 0:
			v = 0
		case v > pwm.MaxLevel:
			v = pwm.MaxLevel
		}
		levels[ch] = uint8(v)
	}
	return levels
}

// Driver applies drive levels to the hardware. It holds no state between calls.
type Driver struct {
	hw   pwm.Writer
	pins PinMap
}

// NewDriver binds the rig's pins to a hardware writer
func NewDriver(hw pwm.Writer, pins PinMap) *Driver {
	return &Driver{hw: hw, pins: pins}
}

// Apply scales profile by intensity and writes every channel, changed or not.
// The first failed write aborts the call; the returned levels are the ones computed.
func (d *Driver) Apply(ctx context.Context, profile Profile, intensity float64) (Levels, error) {
	levels := Scale(profile, intensity)
	return levels, d.Write(ctx, levels)
}

// Write pushes levels to the hardware in channel order
func (d *Driver) Write(ctx context.Context, levels Levels) error {
	for _, ch := range Channels {
		if err := d.hw.SetLevel(ctx, d.pins[ch], levels[ch]); err != nil {
			return fmt.Errorf("failed to write %s (gpio %d): %w", ch, d.pins[ch], err)
		}
	}
	return nil
}

// Off writes a zero level to every channel
func (d *Driver) Off(ctx context.Context) error {
	return d.Write(ctx, Levels{})
}
