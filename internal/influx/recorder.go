package influx

import (
	"time"

	"github.com/reacture/engine/pkg/core"
)

// Recorder streams a session into a Manager. Frames are not sent.
type Recorder struct {
	m    *Manager
	info core.SessionInfo
}

// NewRecorder wraps m.
func NewRecorder(m *Manager) *Recorder {
	return &Recorder{m: m}
}

// StartSession remembers the session tags.
func (r *Recorder) StartSession(info *core.SessionInfo) error {
	r.info = *info
	return nil
}

// RecordSample writes a robot_state or player_action point.
func (r *Recorder) RecordSample(s *core.TelemetrySample) error {
	return r.m.WritePoint(r.m.cfg.Bucket, SamplePoint(r.info, *s))
}

// RecordFrame is a no-op; pixels do not belong in a time series.
func (r *Recorder) RecordFrame(*core.FrameRecord) error {
	return nil
}

// RecordDecision writes a decision point.
func (r *Recorder) RecordDecision(d *core.Decision) error {
	return r.m.WritePoint(r.m.cfg.Bucket, DecisionPoint(r.info, *d))
}

// EndSession writes the result point.
func (r *Recorder) EndSession(res *core.SessionResult) error {
	return r.m.WritePoint(ResultsBucket, ResultPoint(r.info, *res))
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
