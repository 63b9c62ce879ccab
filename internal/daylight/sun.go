package daylight

import (
	"fmt"
	"time"

	"github.com/sixdouglas/suncalc"
)

// FromSun derives today's window from the sun's rise and set at a location.
// It is evaluated once at startup; the session keeps the result.
func FromSun(date time.Time, lat, lon float64, sinusoidal bool) (Schedule, error) {
	times := suncalc.GetTimes(date, lat, lon)

	rise, okRise := times[suncalc.Sunrise]
	set, okSet := times[suncalc.Sunset]
	if !okRise || !okSet {
		return Schedule{}, fmt.Errorf("no sunrise/sunset at %.4f,%.4f on %s", lat, lon, date.Format("2006-01-02"))
	}

	loc := date.Location()
	riseLocal := rise.Value.In(loc)
	setLocal := set.Value.In(loc)

	// Polar day or night yields times that are not on the requested date
	y, m, d := date.Date()
	if ry, rm, rd := riseLocal.Date(); ry != y || rm != m || rd != d {
		return Schedule{}, fmt.Errorf("sun does not rise at %.4f,%.4f on %s", lat, lon, date.Format("2006-01-02"))
	}
	if sy, sm, sd := setLocal.Date(); sy != y || sm != m || sd != d {
		return Schedule{}, fmt.Errorf("sun does not set at %.4f,%.4f on %s", lat, lon, date.Format("2006-01-02"))
	}

	s := Schedule{
		Sunrise:    HourOf(riseLocal),
		Sunset:     HourOf(setLocal),
		Sinusoidal: sinusoidal,
	}
	if err := s.Validate(); err != nil {
		return Schedule{}, fmt.Errorf("sun schedule at %.4f,%.4f: %w", lat, lon, err)
	}
	return s, nil
}
