package scene

import (
	"time"

	"github.com/loov/hrtime"
)

// Clock measures animation time with the high resolution timer.
type Clock struct {
	now   func() time.Duration
	start time.Duration
	last  time.Duration
}

func NewClock() *Clock {
	return newClock(hrtime.Now)
}

func newClock(now func() time.Duration) *Clock {
	t := now()
	return &Clock{now: now, start: t, last: t}
}

// Tick returns the seconds since the previous Tick.
func (c *Clock) Tick() float32 {
	t := c.now()
	dt := t - c.last
	c.last = t
	return float32(dt.Seconds())
}

// Elapsed returns the seconds since the clock was created.
func (c *Clock) Elapsed() float64 {
	return (c.now() - c.start).Seconds()
}
