package telemetry

import (
	"log/slog"
	"time"

	"github.com/reacture/engine/internal/clock"
	"github.com/reacture/engine/pkg/core"
)

// SamplePeriod is the fixed sampling period (10 Hz).
const SamplePeriod = time.Second / core.SamplingRateHz

// Sampler takes a state sample and a frame on every firing of its schedule.
// It is fed simulated time only while the session is running, so pauses
// record nothing.
type Sampler struct {
	schedule *clock.Periodic
	log      *Log
	source   FrameSource
	size     int
	frames   []core.FrameRecord
	onFrame  func(core.FrameRecord)
	logger   *slog.Logger
}

// NewSampler creates a sampler appending to log. source may be nil, in which
// case no frames are captured.
func NewSampler(period time.Duration, log *Log, source FrameSource, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		schedule: clock.NewPeriodic(period),
		log:      log,
		source:   source,
		size:     FrameSize,
		logger:   logger,
	}
}

// SetFrameSize overrides the stored frame edge length.
func (s *Sampler) SetFrameSize(n int) {
	if n > 0 {
		s.size = n
	}
}

// OnFrame registers fn to be called with every captured frame.
func (s *Sampler) OnFrame(fn func(core.FrameRecord)) {
	s.onFrame = fn
}

// Advance feeds d of simulated time. For each firing, snap is called with the
// scheduled sample time in milliseconds and the result is appended to the log
// as a periodic sample. It returns the number of samples taken.
func (s *Sampler) Advance(d time.Duration, snap func(ms int64) core.TelemetrySample) int {
	n := s.schedule.Advance(d)
	first := s.schedule.Fired() - uint64(n) + 1
	for i := range n {
		ms := (time.Duration(first+uint64(i)) * s.schedule.Period()).Milliseconds()
		sample := Event(snap(ms), core.EventPeriodic, nil)
		if f, ok := s.capture(ms); ok {
			sample.VisualFramePath = f.Path()
		}
		s.log.Append(sample)
	}
	return n
}

func (s *Sampler) capture(ms int64) (core.FrameRecord, bool) {
	if s.source == nil {
		return core.FrameRecord{}, false
	}
	img, err := s.source.Capture()
	if err != nil {
		s.logger.Warn("Frame capture failed", "error", err, "timestamp_ms", ms)
		return core.FrameRecord{}, false
	}
	f, err := Downsample(img, s.size)
	if err != nil {
		s.logger.Warn("Frame downsample failed", "error", err, "timestamp_ms", ms)
		return core.FrameRecord{}, false
	}
	f.Index = len(s.frames)
	f.TimestampMS = ms
	s.frames = append(s.frames, f)
	if s.onFrame != nil {
		s.onFrame(f)
	}
	return f, true
}

// Stop cancels the schedule. Only the first call returns true.
func (s *Sampler) Stop() bool {
	return s.schedule.Cancel()
}

// Stopped reports whether Stop was called.
func (s *Sampler) Stopped() bool {
	return s.schedule.Cancelled()
}

// Taken is the number of periodic samples so far.
func (s *Sampler) Taken() uint64 {
	return s.schedule.Fired()
}

// Frames returns the captured frames in capture order.
func (s *Sampler) Frames() []core.FrameRecord {
	return s.frames
}
