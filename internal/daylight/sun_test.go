package daylight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSun_Equator(t *testing.T) {
	date := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	s, err := FromSun(date, 0, 0, true)
	require.NoError(t, err)

	// Equinox on the equator at Greenwich: roughly 06:00 to 18:00 UTC
	assert.InDelta(t, 6.0, s.Sunrise, 0.5)
	assert.InDelta(t, 18.0, s.Sunset, 0.5)
	assert.InDelta(t, 12.0, s.DayLength(), 0.5)
	assert.True(t, s.Sinusoidal)
	assert.NoError(t, s.Validate())
}

func TestFromSun_HelsinkiSummerDayIsLong(t *testing.T) {
	helsinki := time.FixedZone("EEST", 3*60*60)
	date := time.Date(2024, 6, 21, 12, 0, 0, 0, helsinki)

	s, err := FromSun(date, 60.1695, 24.9354, false)
	require.NoError(t, err)

	assert.Greater(t, s.DayLength(), 18.0)
	assert.Less(t, s.Sunrise, 5.0)
	assert.Greater(t, s.Sunset, 22.0)
	assert.False(t, s.Sinusoidal)
}

func TestFromSun_PolarNight(t *testing.T) {
	date := time.Date(2024, 12, 21, 12, 0, 0, 0, time.UTC)

	_, err := FromSun(date, 78.22, 15.65, true)
	assert.Error(t, err)
}
