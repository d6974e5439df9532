// Package telemetry records what happened during a session: fixed-rate state
// samples, event samples appended as they occur, and downsampled frames.
package telemetry

import (
	"cmp"
	"slices"
	"sync"

	"github.com/reacture/engine/pkg/core"
)

// Log is the append-only session log. Periodic and event samples are appended
// in arrival order; Samples merges them by timestamp.
type Log struct {
	mu          sync.RWMutex
	samples     []core.TelemetrySample
	periodic    int
	subscribers []func(core.TelemetrySample)
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Subscribe registers fn to be called with every sample as it is appended.
func (l *Log) Subscribe(fn func(core.TelemetrySample)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// Append adds a sample. Samples are never modified after this call.
func (l *Log) Append(s core.TelemetrySample) {
	l.mu.Lock()
	l.samples = append(l.samples, s)
	if s.Periodic() {
		l.periodic++
	}
	subs := l.subscribers
	l.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// Len is the number of samples of any kind.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}

// PeriodicCount is the number of fixed-rate samples.
func (l *Log) PeriodicCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.periodic
}

// Samples returns a copy of the log ordered by timestamp. Samples with equal
// timestamps keep their arrival order.
func (l *Log) Samples() []core.TelemetrySample {
	l.mu.RLock()
	out := slices.Clone(l.samples)
	l.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b core.TelemetrySample) int {
		return cmp.Compare(a.TimestampMS, b.TimestampMS)
	})
	return out
}

// Named returns the samples carrying the given event or action tag, in
// timestamp order.
func (l *Log) Named(name string) []core.TelemetrySample {
	var out []core.TelemetrySample
	for _, s := range l.Samples() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}
