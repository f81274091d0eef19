package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClockDayBoundaries(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	c := New(loc)

	start := c.TodayStart()
	end := c.TodayEnd()
	now := c.Now()

	assert.Equal(t, loc, c.Location())
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 0, start.Minute())
	assert.True(t, !now.Before(start))
	assert.True(t, now.Before(end.Add(time.Nanosecond)))
	assert.Equal(t, 24*time.Hour, end.Add(time.Nanosecond).Sub(start))
}

func TestNewNilLocationDefaultsUTC(t *testing.T) {
	c := New(nil)
	assert.Equal(t, time.UTC, c.Location())
}

func TestFixedClock(t *testing.T) {
	f := &Fixed{T: time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)}
	assert.Equal(t, f.T, f.Now())
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), f.TodayStart())
	assert.Equal(t, time.Date(2025, 6, 2, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), f.TodayEnd())
}

func TestDayBoundariesAcrossLocations(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	instant := time.Date(2025, 6, 2, 1, 30, 0, 0, manila)

	f := &Fixed{T: instant}
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, manila), f.TodayStart())

	// The same instant in UTC still belongs to the previous calendar day.
	utc := &Fixed{T: instant.In(time.UTC)}
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), utc.TodayStart())
}
