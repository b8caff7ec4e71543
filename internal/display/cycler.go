package display

import "time"

// DefaultCycleInterval is how long each card is shown.
const DefaultCycleInterval = 3 * time.Second

// Cycler rotates through a list whose length may change between calls.
// It is owned by one consumer loop and not safe for concurrent use.
type Cycler struct {
	interval  time.Duration
	index     int
	lastCycle time.Time
	shown     int
}

// NewCycler creates a cycler. A non-positive interval uses DefaultCycleInterval.
func NewCycler(interval time.Duration) *Cycler {
	if interval <= 0 {
		interval = DefaultCycleInterval
	}
	return &Cycler{interval: interval, shown: -1}
}

// Interval returns the rotation interval.
func (c *Cycler) Interval() time.Duration {
	return c.interval
}

// Next returns the index to show for a list of n items at now, and whether it
// differs from the index returned by the previous call. For n == 0 it returns -1.
func (c *Cycler) Next(n int, now time.Time) (index int, changed bool) {
	if c.lastCycle.IsZero() {
		c.lastCycle = now
	}

	switch {
	case n <= 0:
		c.index = 0
		c.shown = -1
		return -1, false
	case n == 1:
		c.index = 0
	default:
		if now.Sub(c.lastCycle) >= c.interval {
			c.lastCycle = now
			c.index = (c.index + 1) % n
		}
	}

	index = c.index % n
	changed = c.shown >= 0 && c.shown != index
	c.shown = index
	return index, changed
}

// Reset restarts the rotation at the first item.
func (c *Cycler) Reset(now time.Time) {
	c.index = 0
	c.shown = -1
	c.lastCycle = now
}
