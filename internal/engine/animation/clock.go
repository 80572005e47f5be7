package animation

import "time"

// Clock measures wall-clock time between frames.
type Clock struct {
	now  func() time.Time
	last time.Time
}

// NewClock creates a clock reading now. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Delta returns the seconds elapsed since the previous call. The first
// call returns 0.
func (c *Clock) Delta() float32 {
	t := c.now()
	if c.last.IsZero() {
		c.last = t
		return 0
	}
	d := t.Sub(c.last)
	c.last = t
	return float32(d.Seconds())
}
