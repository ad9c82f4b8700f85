package governor

import "time"

// Clock supplies monotonic time in milliseconds. The governor never reads
// wall-clock time directly; all interval and decay decisions go through a
// Clock so tests can drive time explicitly.
type Clock interface {
	Now() int64
}

// monotonicClock measures milliseconds since its creation using the runtime
// monotonic clock. This is the production Clock.
type monotonicClock struct {
	start time.Time
}

// NewClock returns a Clock backed by the runtime monotonic clock.
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() int64 {
	return time.Since(c.start).Milliseconds()
}

// ManualClock is a Clock advanced explicitly by the caller.
// Used in tests to make interval, decay, and coalescing-delay behavior
// deterministic.
type ManualClock struct {
	now int64
}

// NewManualClock returns a ManualClock starting at the given time.
func NewManualClock(startMs int64) *ManualClock {
	return &ManualClock{now: startMs}
}

func (c *ManualClock) Now() int64 {
	return c.now
}

// Advance moves the clock forward by ms milliseconds.
func (c *ManualClock) Advance(ms int64) {
	c.now += ms
}

// Set jumps the clock to an absolute time. It never moves backward.
func (c *ManualClock) Set(ms int64) {
	if ms > c.now {
		c.now = ms
	}
}
