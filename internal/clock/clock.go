// Package clock is the simulated time source of a session. Nothing in it reads
// the wall clock after construction, so tests drive time by calling Advance.
package clock

import (
	"math"
	"time"
)

const (
	// MaxDelta caps a single step, in seconds.
	MaxDelta = 0.1
	// NominalDelta replaces zero, negative or NaN deltas.
	NominalDelta = 1.0 / 60
)

// Clamp maps a raw frame delta into (0, MaxDelta].
func Clamp(delta float64) float64 {
	if delta > MaxDelta {
		return MaxDelta
	}
	if !(delta > 0) {
		return NominalDelta
	}
	return delta
}

// Duration converts seconds to a Duration, rounded to the nanosecond.
func Duration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

// Clock tracks simulated elapsed time with pause and stop gating.
type Clock struct {
	start   time.Time
	elapsed time.Duration
	ticks   uint64
	paused  bool
	stopped bool
}

// New creates a clock whose simulated epoch is start.
func New(start time.Time) *Clock {
	return &Clock{start: start}
}

// Advance clamps raw and moves simulated time forward by it. It returns false
// and does not advance while paused or stopped.
func (c *Clock) Advance(raw float64) (float64, bool) {
	if c.paused || c.stopped {
		return 0, false
	}
	delta := Clamp(raw)
	c.elapsed += Duration(delta)
	c.ticks++
	return delta, true
}

// Start is the simulated epoch.
func (c *Clock) Start() time.Time { return c.start }

// Elapsed is the simulated time since start.
func (c *Clock) Elapsed() time.Duration { return c.elapsed }

// ElapsedMS is Elapsed in whole milliseconds.
func (c *Clock) ElapsedMS() int64 { return c.elapsed.Milliseconds() }

// ElapsedSeconds is Elapsed as fractional seconds.
func (c *Clock) ElapsedSeconds() float64 { return c.elapsed.Seconds() }

// Now is the simulated wall time: start plus elapsed.
func (c *Clock) Now() time.Time { return c.start.Add(c.elapsed) }

// Ticks counts the steps that advanced time.
func (c *Clock) Ticks() uint64 { return c.ticks }

// Pause stops time. It reports whether the state changed.
func (c *Clock) Pause() bool {
	if c.paused || c.stopped {
		return false
	}
	c.paused = true
	return true
}

// Resume restarts time after Pause. It reports whether the state changed.
func (c *Clock) Resume() bool {
	if !c.paused || c.stopped {
		return false
	}
	c.paused = false
	return true
}

// Paused reports whether the clock is paused.
func (c *Clock) Paused() bool { return c.paused }

// Stop ends time permanently. It reports whether this call stopped it.
func (c *Clock) Stop() bool {
	if c.stopped {
		return false
	}
	c.stopped = true
	return true
}

// Stopped reports whether Stop was called.
func (c *Clock) Stopped() bool { return c.stopped }
