// internal/storage/memory/memory.go
package memory

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/reacture/engine/internal/config"
	"github.com/reacture/engine/pkg/core"
)

// ErrNoSession is returned when output arrives before StartSession.
var ErrNoSession = errors.New("memory: no session started")

// Backend keeps a session's output in memory and exports it as a dataset
// directory when the session ends.
type Backend struct {
	cfg    config.MemoryConfig
	logger *slog.Logger

	info      *core.SessionInfo
	samples   []core.TelemetrySample
	frames    []core.FrameRecord
	decisions []core.Decision
	result    *core.SessionResult

	lastExportPath string
	lastExportMeta *Metadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:    cfg,
		logger: logger.With("backend", "memory"),
	}
}

// Init makes sure the output directory exists
func (b *Backend) Init() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session, discarding anything held
// from a previous one.
func (b *Backend) StartSession(info *core.SessionInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := *info
	b.info = &i
	b.samples = nil
	b.frames = nil
	b.decisions = nil
	b.result = nil
	return nil
}

// RecordSample appends a log line
func (b *Backend) RecordSample(s *core.TelemetrySample) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.info == nil {
		return ErrNoSession
	}
	b.samples = append(b.samples, *s)
	return nil
}

// RecordFrame appends a captured frame
func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.info == nil {
		return ErrNoSession
	}
	b.frames = append(b.frames, *f)
	return nil
}

// RecordDecision appends a decision attempt
func (b *Backend) RecordDecision(d *core.Decision) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.info == nil {
		return ErrNoSession
	}
	b.decisions = append(b.decisions, *d)
	return nil
}

// EndSession stores the result and exports the dataset
func (b *Backend) EndSession(res *core.SessionResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.info == nil {
		return ErrNoSession
	}
	r := *res
	b.result = &r
	return b.export()
}

// Samples returns the log ordered by timestamp. Samples with equal
// timestamps keep the order they were recorded in.
func (b *Backend) Samples() []core.TelemetrySample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sortedSamples()
}

func (b *Backend) sortedSamples() []core.TelemetrySample {
	out := slices.Clone(b.samples)
	slices.SortStableFunc(out, func(a, c core.TelemetrySample) int {
		return cmp.Compare(a.TimestampMS, c.TimestampMS)
	})
	return out
}

// Frames returns the captured frames in capture order.
func (b *Backend) Frames() []core.FrameRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.frames)
}

// Decisions returns the recorded decision attempts.
func (b *Backend) Decisions() []core.Decision {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.decisions)
}

// GetExportedFilePath returns the directory of the last exported dataset.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last exported dataset for upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m := b.lastExportMeta
	if m == nil {
		return core.UploadMetadata{}
	}
	return core.UploadMetadata{
		SessionID:    m.SessionID,
		PlayerID:     m.PlayerID,
		Environment:  m.Environment,
		DurationS:    m.DurationS,
		FinalScore:   m.GameResult.FinalScore,
		VictimsSaved: m.GameResult.VictimsSaved,
		VictimsTotal: m.GameResult.VictimsTotal,
		Tag:          m.Environment,
	}
}
