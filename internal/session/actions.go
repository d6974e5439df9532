package session

import (
	"errors"
	"math"
	"time"

	"github.com/reacture/engine/internal/physics"
	"github.com/reacture/engine/internal/sensor"
	"github.com/reacture/engine/internal/victim"
	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
)

const (
	MouseSensitivity = 0.002
	PitchLimit       = math.Pi / 2 * 0.95

	RefuelRange = 3.0

	InspectDuration = 3 * time.Second
	InspectRange    = 30.0
	InspectAngle    = math.Pi * 0.6

	DestroyRayRange = 10.0
	DestroyReach    = 5.0
	DestroyScore    = 5
)

func (s *Session) available() error {
	switch {
	case s.result != nil:
		return ErrEnded
	case s.clock.Paused():
		return ErrPaused
	}
	return nil
}

// Look turns the camera by a pointer delta.
func (s *Session) Look(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.available() == nil {
		s.look(dx, dy)
	}
}

func (s *Session) look(dx, dy float64) {
	r := &s.world.Robot
	r.Yaw -= dx * MouseSensitivity
	r.Pitch = max(-PitchLimit, min(PitchLimit, r.Pitch-dy*MouseSensitivity))
}

// Jump starts a jump. It reports false when already airborne.
func (s *Session) Jump() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.available() != nil {
		return false
	}
	return s.jump()
}

func (s *Session) jump() bool {
	if !physics.Jump(&s.world.Robot) {
		return false
	}
	s.action(core.ActionJump, nil)
	return true
}

// Rescue rescues the closest accessible victim.
func (s *Session) Rescue() (victim.Rescued, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return victim.Rescued{}, err
	}
	return s.rescue()
}

func (s *Session) rescue() (victim.Rescued, error) {
	res, err := victim.Rescue(s.world, s.elapsedSeconds())
	if err != nil {
		s.decide(core.DecisionRescue, false, nil)
		return res, err
	}
	s.score += res.Score
	s.decide(core.DecisionRescue, true, map[string]any{
		"victim_id": res.Victim.ID,
		"health":    res.Victim.Health,
		"bonus":     res.Score,
	})
	s.action(core.ActionRescue, map[string]any{
		"victim_id": res.Victim.ID,
		"health":    res.Victim.Health,
		"distance":  res.Distance,
		"bonus":     res.Score,
	})
	s.logger.Info("Victim rescued", "victim_id", res.Victim.ID, "bonus", res.Score)
	s.checkOver()
	return res, nil
}

// Refuel fills the tank when the robot is at the fuel station.
func (s *Session) Refuel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return err
	}
	return s.refuel()
}

func (s *Session) refuel() error {
	dist := s.world.FuelStationDistance()
	if dist >= RefuelRange {
		s.decide(core.DecisionRefuel, false, map[string]any{"distance": dist})
		return ErrTooFar
	}
	s.world.Robot.Fuel = core.MaxFuel
	s.decide(core.DecisionRefuel, true, map[string]any{"distance": dist})
	s.action(core.ActionRefuel, map[string]any{"fuel_level": core.MaxFuel})
	return nil
}

// Inspect enters inspect mode for a few seconds and returns the number of
// living victims within range inside the view cone, occlusion ignored.
func (s *Session) Inspect() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return 0, err
	}
	return s.inspectVictims()
}

func (s *Session) inspectVictims() (int, error) {
	if !s.inspect.Start(InspectDuration) {
		return 0, ErrAlreadyInspecting
	}
	r := s.world.Robot
	eye := r.Eye()
	view := sensor.ViewDirection(r.Yaw, r.Pitch)
	var ids []int
	for _, v := range s.world.Victims {
		if v.State != core.VictimAlive {
			continue
		}
		to := v.Position.Sub(eye)
		dist := to.Len()
		if dist >= InspectRange || dist == 0 {
			continue
		}
		cos := max(-1, min(1, view.Dot(to.Normalize())))
		if math.Acos(cos) < InspectAngle {
			ids = append(ids, v.ID)
		}
	}
	s.decide(core.DecisionInspect, true, map[string]any{"victims_detected": len(ids)})
	s.action(core.ActionInspectStart, map[string]any{"victims_detected": len(ids), "victim_ids": ids})
	return len(ids), nil
}

// Inspecting reports whether inspect mode is active.
func (s *Session) Inspecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inspect.Active()
}

// DestroyRubble destroys the piece the camera looks at if it is within reach.
func (s *Session) DestroyRubble() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return 0, err
	}
	return s.destroyRubble()
}

func (s *Session) destroyRubble() (int, error) {
	r := s.world.Robot
	hit, ok := s.world.Raycast(r.Eye(), sensor.ViewDirection(r.Yaw, r.Pitch), DestroyRayRange, world.QueryRubble)
	if !ok || hit.Distance >= DestroyReach {
		s.decide(core.DecisionDestroy, false, nil)
		return 0, ErrNoTarget
	}
	p := s.world.Rubble[hit.RubbleID]
	if !s.world.Destroy(p) {
		return 0, ErrNoTarget
	}
	s.score += DestroyScore
	s.rubbleDestroyed++
	s.decide(core.DecisionDestroy, true, map[string]any{"rubble_id": p.ID, "distance": hit.Distance})
	s.action(core.ActionDestroyRubble, map[string]any{
		"rubble_id": p.ID,
		"pile_id":   p.PileID,
		"position":  core.NewPosition3D(p.Position),
		"distance":  hit.Distance,
	})
	victim.UpdateAccessibility(s.world)
	return p.ID, nil
}

// Pause suspends ticks, sampling and victim decay.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return ErrEnded
	}
	if s.clock.Pause() {
		s.action(core.ActionPaused, nil)
	}
	return nil
}

// Resume continues a paused session.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return ErrEnded
	}
	if s.clock.Resume() {
		s.action(core.ActionResumed, nil)
	}
	return nil
}

// Outcome classifies an action error: nil and informational precondition
// failures are not faults.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotAccessible), errors.Is(err, ErrTooFar),
		errors.Is(err, ErrAlreadyInspecting), errors.Is(err, ErrNoTarget):
		return "unavailable"
	case errors.Is(err, ErrEnded), errors.Is(err, ErrPaused):
		return "inactive"
	}
	return "error"
}
