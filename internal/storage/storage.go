// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/reacture/engine/internal/session"
	"github.com/reacture/engine/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session output, in the order the session produces it
	session.Recorder
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a dataset collector.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Multi fans every call out to several backends. Every backend is called even
// when an earlier one fails; the errors are joined.
type Multi []Backend

func (m Multi) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range m {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Init initializes every backend.
func (m Multi) Init() error {
	return m.each(Backend.Init)
}

// Close closes every backend.
func (m Multi) Close() error {
	return m.each(Backend.Close)
}

// StartSession forwards the session info.
func (m Multi) StartSession(info *core.SessionInfo) error {
	return m.each(func(b Backend) error { return b.StartSession(info) })
}

// RecordSample forwards a sample.
func (m Multi) RecordSample(s *core.TelemetrySample) error {
	return m.each(func(b Backend) error { return b.RecordSample(s) })
}

// RecordFrame forwards a frame.
func (m Multi) RecordFrame(f *core.FrameRecord) error {
	return m.each(func(b Backend) error { return b.RecordFrame(f) })
}

// RecordDecision forwards a decision.
func (m Multi) RecordDecision(d *core.Decision) error {
	return m.each(func(b Backend) error { return b.RecordDecision(d) })
}

// EndSession forwards the result.
func (m Multi) EndSession(res *core.SessionResult) error {
	return m.each(func(b Backend) error { return b.EndSession(res) })
}

// Uploadable returns the first backend that produced an uploadable export.
func (m Multi) Uploadable() (Uploadable, bool) {
	for _, b := range m {
		if u, ok := b.(Uploadable); ok && u.GetExportedFilePath() != "" {
			return u, true
		}
	}
	return nil, false
}

// Queued is an optional interface for backends that buffer rows before
// writing them.
type Queued interface {
	Pending() int
}

// Pending is the number of rows still buffered by b, summed over a Multi.
func Pending(b Backend) int {
	switch b := b.(type) {
	case Multi:
		n := 0
		for _, inner := range b {
			n += Pending(inner)
		}
		return n
	case Queued:
		return b.Pending()
	}
	return 0
}
