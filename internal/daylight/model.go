package daylight

import (
	"fmt"
	"math"
	"time"
)

// Schedule is the daylight window of one session
type Schedule struct {
	Sunrise    float64 // fractional hour, [0, 24)
	Sunset     float64 // fractional hour, after Sunrise
	Sinusoidal bool    // curve-shaped output instead of flat day/night
}

// Noon returns the midpoint of the daylight window
func (s Schedule) Noon() float64 {
	return (s.Sunrise + s.Sunset) / 2
}

// DayLength returns the length of the daylight window in hours
func (s Schedule) DayLength() float64 {
	return s.Sunset - s.Sunrise
}

// Validate rejects windows the model cannot normalise.
// A zero-length day would make the curve divide by zero.
func (s Schedule) Validate() error {
	if s.Sunrise < 0 || s.Sunrise >= 24 || s.Sunset < 0 || s.Sunset >= 24 {
		return fmt.Errorf("sunrise %g and sunset %g must lie in [0, 24)", s.Sunrise, s.Sunset)
	}
	if s.Sunrise >= s.Sunset {
		return fmt.Errorf("sunrise %g must be before sunset %g", s.Sunrise, s.Sunset)
	}
	return nil
}

// Illumination maps a time of day to a normalised intensity in [0, 1].
//
// The cosine has a fixed 24 hour period. Subtracting its value at sunrise and
// dividing by the remaining headroom pins the curve to 0 at sunrise and sunset
// and to 1 at noon, whatever the window length. Hours outside the window give 0;
// with Sinusoidal off the result is the bare day flag.
func Illumination(hour float64, s Schedule) float64 {
	noon := s.Noon()

	baseline := math.Cos(math.Pi * (s.Sunrise - noon) / 12)
	raw := math.Cos(math.Pi*(hour-noon)/12) - baseline
	normalized := raw / (1 - baseline)

	day := 0.0
	if s.Sunrise <= hour && hour <= s.Sunset {
		day = 1
	}

	// Outside the window the curve is forced to zero, which also keeps
	// non-finite hours from leaking NaN.
	if !s.Sinusoidal || day == 0 {
		return day
	}
	return math.Max(0, day*normalized)
}

// HourOf returns t's local time of day as a fractional hour
func HourOf(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}
