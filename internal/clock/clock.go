// Package clock owns time for the dispatcher: the configured local timezone
// and the calendar-day boundaries used by numbering and rollover.
package clock

import (
	"time"
)

// Clock provides the current instant and local-day boundaries.
type Clock interface {
	Now() time.Time
	TodayStart() time.Time
	TodayEnd() time.Time
	Location() *time.Location
}

type realClock struct {
	loc *time.Location
}

// New returns a clock bound to the given location.
func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &realClock{loc: loc}
}

func (c *realClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c *realClock) Location() *time.Location { return c.loc }

func (c *realClock) TodayStart() time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
}

func (c *realClock) TodayEnd() time.Time {
	return c.TodayStart().AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Fixed is a test clock pinned to one instant.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time           { return f.T }
func (f *Fixed) Location() *time.Location { return f.T.Location() }

func (f *Fixed) TodayStart() time.Time {
	return time.Date(f.T.Year(), f.T.Month(), f.T.Day(), 0, 0, 0, 0, f.T.Location())
}

func (f *Fixed) TodayEnd() time.Time {
	return f.TodayStart().AddDate(0, 0, 1).Add(-time.Nanosecond)
}

