// Package session runs one rescue session: it owns the world, advances it tick
// by tick, applies player actions, records telemetry and computes the result.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reacture/engine/internal/clock"
	"github.com/reacture/engine/internal/sensor"
	"github.com/reacture/engine/internal/telemetry"
	"github.com/reacture/engine/internal/victim"
	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
)

// Final score bonuses.
const (
	TimeBonusLimit    = 300.0
	TimeBonusFactor   = 2.0
	HealthBonusFactor = 5.0
	FuelBonusFactor   = 2.0
)

var (
	ErrNotAccessible      = victim.ErrNotAccessible
	ErrTooFar             = errors.New("too far from the fuel station")
	ErrAlreadyInspecting  = errors.New("already inspecting")
	ErrNoTarget           = errors.New("no rubble in reach")
	ErrEnded              = errors.New("session has ended")
	ErrPaused             = errors.New("session is paused")
	ErrUnknownEnvironment = world.ErrUnknownEnvironment
)

// Config selects the arena and the player of a session.
type Config struct {
	Environment   string
	Seed          int64 // 0 derives a seed from Start
	PlayerID      string
	PlayerName    string
	Start         time.Time
	SamplePeriod  time.Duration
	CaptureFrames bool
	FrameSize     int
}

// Recorder receives the session's output as it is produced. Every storage
// backend satisfies it.
type Recorder interface {
	StartSession(info *core.SessionInfo) error
	RecordSample(s *core.TelemetrySample) error
	RecordFrame(f *core.FrameRecord) error
	RecordDecision(d *core.Decision) error
	EndSession(result *core.SessionResult) error
}

// Option customizes a session.
type Option func(*Session)

// WithRecorder adds a recorder. Recorder errors are logged, never returned.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorders = append(s.recorders, r) }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithFrameSource replaces the default frame source.
func WithFrameSource(f telemetry.FrameSource) Option {
	return func(s *Session) { s.source = f }
}

// WithWorld runs the session in w instead of a generated arena.
func WithWorld(w *world.World) Option {
	return func(s *Session) { s.world = w }
}

// Session is safe for concurrent use; all methods serialize on one lock so
// the world only ever advances on a single timeline.
type Session struct {
	mu sync.Mutex

	info      core.SessionInfo
	world     *world.World
	clock     *clock.Clock
	victims   *victim.Engine
	log       *telemetry.Log
	sampler   *telemetry.Sampler
	source    telemetry.FrameSource
	inspect   clock.Timer
	recorders []Recorder
	logger    *slog.Logger

	input           core.InputState
	moving          bool
	score           int
	rubbleDestroyed int
	decisions       []core.Decision
	result          *core.SessionResult
}

// New generates the arena, records game_start and notifies the recorders.
func New(cfg Config, opts ...Option) (*Session, error) {
	if cfg.Start.IsZero() {
		cfg.Start = time.Now()
	}
	if cfg.Seed == 0 {
		cfg.Seed = cfg.Start.UnixNano()
	}
	if cfg.SamplePeriod <= 0 {
		cfg.SamplePeriod = telemetry.SamplePeriod
	}
	if cfg.PlayerID == "" {
		cfg.PlayerID = "anonymous"
		cfg.PlayerName = "Anonymous"
	}

	s := &Session{
		clock:   clock.New(cfg.Start),
		victims: victim.NewEngine(),
		log:     telemetry.NewLog(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.world == nil {
		w, err := world.GenerateFor(cfg.Environment, uint64(cfg.Seed))
		if err != nil {
			return nil, err
		}
		s.world = w
	}
	if s.source == nil && cfg.CaptureFrames {
		s.source = telemetry.NewTopDown(s.world)
	}

	env := s.world.Env
	s.info = core.SessionInfo{
		ID:              fmt.Sprintf("reacture_%d_%s", cfg.Start.UnixMilli(), uuid.NewString()[:8]),
		PlayerID:        cfg.PlayerID,
		PlayerName:      cfg.PlayerName,
		Environment:     env.Key,
		EnvironmentName: env.Name,
		VictimsTotal:    len(s.world.Victims),
		RubbleTotal:     len(s.world.Rubble),
		HazardZones:     len(s.world.Zones),
		FuelStation:     core.NewPosition3D(s.world.Station.Position),
		Seed:            cfg.Seed,
		StartTime:       cfg.Start,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session_id", s.info.ID)

	s.sampler = telemetry.NewSampler(cfg.SamplePeriod, s.log, s.source, s.logger)
	s.sampler.SetFrameSize(cfg.FrameSize)
	s.log.Subscribe(func(sample core.TelemetrySample) {
		s.record("sample", func(r Recorder) error { return r.RecordSample(&sample) })
	})
	s.sampler.OnFrame(func(f core.FrameRecord) {
		s.record("frame", func(r Recorder) error { return r.RecordFrame(&f) })
	})

	info := s.info
	s.record("start", func(r Recorder) error { return r.StartSession(&info) })
	s.event(core.EventGameStart, map[string]any{
		"environment":   env.Key,
		"victims_total": s.info.VictimsTotal,
		"seed":          cfg.Seed,
	})
	s.logger.Info("Session started",
		"environment", env.Key,
		"victims", s.info.VictimsTotal,
		"rubble", s.info.RubbleTotal,
		"seed", cfg.Seed)
	return s, nil
}

func (s *Session) record(what string, fn func(Recorder) error) {
	for _, r := range s.recorders {
		if err := fn(r); err != nil {
			s.logger.Warn("Recorder failed", "record", what, "error", err)
		}
	}
}

func (s *Session) snapshot() core.TelemetrySample {
	return s.snapshotAt(s.clock.ElapsedMS())
}

func (s *Session) snapshotAt(ms int64) core.TelemetrySample {
	return telemetry.Snapshot(s.world, s.input, sensor.Synthesize(s.world), telemetry.Stamp{Start: s.clock.Start(), MS: ms})
}

func (s *Session) event(name string, data map[string]any) {
	s.log.Append(telemetry.Event(s.snapshot(), name, data))
}

func (s *Session) action(name string, data map[string]any) {
	s.log.Append(telemetry.Action(s.snapshot(), name, data))
}

func (s *Session) decide(kind string, success bool, meta map[string]any) {
	d := core.Decision{
		Type:        kind,
		Position:    core.NewPosition3D(s.world.Robot.Position),
		TimestampMS: s.clock.ElapsedMS(),
		Success:     success,
		Metadata:    meta,
	}
	s.decisions = append(s.decisions, d)
	s.record("decision", func(r Recorder) error { return r.RecordDecision(&d) })
}

// elapsedSeconds is the whole number of simulated seconds used for scoring.
func (s *Session) elapsedSeconds() int {
	return int(math.Floor(s.clock.ElapsedSeconds()))
}

// Info returns the start-of-session description.
func (s *Session) Info() core.SessionInfo {
	return s.info
}

// World returns the simulation state. Callers must not mutate it while the
// session is running.
func (s *Session) World() *world.World {
	return s.world
}

// Robot returns a copy of the robot state.
func (s *Session) Robot() core.Robot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Robot
}

// Log returns the session log.
func (s *Session) Log() *telemetry.Log {
	return s.log
}

// Frames returns the captured frames.
func (s *Session) Frames() []core.FrameRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampler.Frames()
}

// Score is the running score before end-of-session bonuses.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// Elapsed is the simulated time since start, excluding pauses.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Elapsed()
}

// Decisions returns the decisions made so far.
func (s *Session) Decisions() []core.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Decision(nil), s.decisions...)
}

// Paused reports whether the session is paused.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Paused()
}

// Ended reports whether the session is over.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result != nil
}

// Result returns the result once the session has ended.
func (s *Session) Result() (core.SessionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return core.SessionResult{}, false
	}
	return *s.result, true
}

// End finishes the session. Only the first call has an effect; later calls
// return the same result.
func (s *Session) End(reason core.EndReason) core.SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end(reason)
}

func (s *Session) end(reason core.EndReason) core.SessionResult {
	if s.result != nil {
		return *s.result
	}
	s.sampler.Stop()
	s.victims.Stop()
	s.clock.Stop()

	r := s.world.Robot
	elapsed := s.elapsedSeconds()
	_, saved, died := s.world.VictimCounts()
	res := core.SessionResult{
		EndTime:         s.clock.Now(),
		Elapsed:         s.clock.Elapsed(),
		DurationS:       s.clock.ElapsedSeconds(),
		Reason:          reason,
		BaseScore:       s.score,
		TimeBonus:       int(math.Floor(max(0, (TimeBonusLimit-float64(elapsed))*TimeBonusFactor))),
		HealthBonus:     int(math.Floor(r.Health * HealthBonusFactor)),
		FuelBonus:       int(math.Floor(r.Fuel * FuelBonusFactor)),
		VictimsTotal:    len(s.world.Victims),
		VictimsSaved:    saved,
		VictimsDied:     died,
		RubbleDestroyed: s.rubbleDestroyed,
		FinalHealth:     r.Health,
		FinalFuel:       r.Fuel,
		Decisions:       append([]core.Decision(nil), s.decisions...),
	}
	for _, v := range s.world.Victims {
		res.Victims = append(res.Victims, core.VictimOutcome{
			ID:       v.ID,
			PileID:   v.PileID,
			Position: core.NewPosition3D(v.Position),
			State:    v.State,
			Health:   v.Health,
		})
	}
	res.Score = res.BaseScore + res.TimeBonus + res.HealthBonus + res.FuelBonus
	res.CompletionStatus = core.StatusFailed
	if r.Health > 0 {
		res.CompletionStatus = core.StatusSuccess
	}
	s.score = res.Score
	s.result = &res

	s.event(core.EventGameEnd, map[string]any{
		"reason":        string(reason),
		"time_elapsed":  elapsed,
		"victims_saved": saved,
		"victims_died":  died,
		"victims_total": res.VictimsTotal,
		"robot_health":  r.Health,
		"robot_fuel":    r.Fuel,
		"final_score":   res.Score,
	})
	s.record("end", func(rec Recorder) error { return rec.EndSession(&res) })
	s.logger.Info("Session ended",
		"reason", reason,
		"score", res.Score,
		"saved", saved,
		"died", died,
		"total", res.VictimsTotal,
		"elapsed", res.Elapsed)
	return res
}

// checkOver ends the session when the robot is destroyed or every victim
// has been rescued or has died.
func (s *Session) checkOver() bool {
	switch {
	case s.world.Robot.Health <= 0:
		s.end(core.EndRobotDestroyed)
	case victim.Exhausted(s.world):
		s.end(core.EndVictimsExhausted)
	default:
		return false
	}
	return true
}
