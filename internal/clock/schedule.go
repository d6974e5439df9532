package clock

import "time"

// Periodic fires once per period of simulated time fed to Advance. Fractional
// periods carry over between calls.
type Periodic struct {
	period    time.Duration
	acc       time.Duration
	fired     uint64
	cancelled bool
}

// NewPeriodic creates a schedule with the given period. A non-positive period panics.
func NewPeriodic(period time.Duration) *Periodic {
	if period <= 0 {
		panic("clock: non-positive period")
	}
	return &Periodic{period: period}
}

// Advance feeds d of simulated time and returns how many firings became due.
// A cancelled schedule never fires.
func (p *Periodic) Advance(d time.Duration) int {
	if p.cancelled {
		return 0
	}
	p.acc += d
	n := 0
	for p.acc >= p.period {
		p.acc -= p.period
		n++
	}
	p.fired += uint64(n)
	return n
}

// Period returns the firing period.
func (p *Periodic) Period() time.Duration { return p.period }

// Fired counts all firings so far.
func (p *Periodic) Fired() uint64 { return p.fired }

// Cancel stops the schedule. Only the first call returns true.
func (p *Periodic) Cancel() bool {
	if p.cancelled {
		return false
	}
	p.cancelled = true
	return true
}

// Cancelled reports whether Cancel was called.
func (p *Periodic) Cancelled() bool { return p.cancelled }

// Timer is a one-shot countdown in simulated time.
type Timer struct {
	remaining time.Duration
	active    bool
}

// Start arms the timer. It reports false, leaving the timer untouched, if it is already running.
func (t *Timer) Start(d time.Duration) bool {
	if t.active {
		return false
	}
	t.remaining = d
	t.active = true
	return true
}

// Advance counts down by d and reports whether the timer expired during this call.
func (t *Timer) Advance(d time.Duration) bool {
	if !t.active {
		return false
	}
	t.remaining -= d
	if t.remaining <= 0 {
		t.active = false
		t.remaining = 0
		return true
	}
	return false
}

// Active reports whether the timer is running.
func (t *Timer) Active() bool { return t.active }

// Remaining is the time left before expiry.
func (t *Timer) Remaining() time.Duration { return t.remaining }
