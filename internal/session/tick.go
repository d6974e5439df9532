package session

import (
	"github.com/reacture/engine/internal/clock"
	"github.com/reacture/engine/internal/hazard"
	"github.com/reacture/engine/internal/physics"
	"github.com/reacture/engine/internal/victim"
	"github.com/reacture/engine/pkg/core"
)

// Report describes what one tick did.
type Report struct {
	Advanced  bool
	Delta     float64
	Step      physics.StepResult
	Collision physics.CollisionResult
	Support   physics.SupportResult
	Hazard    hazard.Result
	Died      []int
	Samples   int
	Ended     bool
}

// Tick advances the session by one frame of raw seconds with the given input.
// Nothing happens while paused or after the end.
//
// Order within a tick: momentary input, integration, collisions, rubble
// support, hazard zones, victim accessibility, then the simulated-time
// schedules (victim decay, inspect timeout, sampling).
func (s *Session) Tick(raw float64, in core.InputState) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rep Report
	if s.result != nil {
		rep.Ended = true
		return rep
	}
	delta, ok := s.clock.Advance(raw)
	if !ok {
		return rep
	}
	rep.Advanced, rep.Delta = true, delta
	s.input = in
	w := s.world

	s.look(in.MouseDX, in.MouseDY)
	s.momentary(in)
	if s.result != nil {
		rep.Ended = true
		return rep
	}

	rep.Step = physics.Integrate(&w.Robot, in, delta)
	if rep.Step.Moving != s.moving {
		s.moving = rep.Step.Moving
		if s.moving {
			s.event(core.EventMovementStart, nil)
		} else {
			s.event(core.EventMovementStop, nil)
		}
	}

	pos := w.Robot.Position
	rep.Collision = physics.ResolveCollisions(&w.Robot, w.RubbleNear(pos[0], pos[2], physics.RobotRadius+w.MaxRubbleRadius()))
	if rep.Collision.Damage > 0 {
		s.event(core.EventCollisionDamage, map[string]any{
			"damage":   rep.Collision.Damage,
			"speed":    rep.Collision.Speed,
			"contacts": rep.Collision.Contacts,
		})
	}

	rep.Support = physics.SolveSupport(w)

	rep.Hazard = hazard.Evaluate(&w.Robot, w.Zones, w.Env)
	if rep.Hazard.Changed {
		s.event(core.EventZoneChange, map[string]any{
			"from": rep.Hazard.Previous.String(),
			"to":   rep.Hazard.Class.String(),
		})
	}
	if rep.Hazard.Damage > 0 {
		s.event(core.EventZoneDamage, map[string]any{
			"damage": rep.Hazard.Damage,
			"zones":  rep.Hazard.Zones,
		})
	}

	victim.UpdateAccessibility(w)

	d := clock.Duration(delta)
	for _, v := range s.victims.Advance(w, d) {
		rep.Died = append(rep.Died, v.ID)
		s.action(core.ActionVictimDied, map[string]any{"victim_id": v.ID, "pile_id": v.PileID})
		s.logger.Info("Victim died", "victim_id", v.ID)
	}

	if s.inspect.Advance(d) {
		s.action(core.ActionInspectEnd, nil)
	}

	rep.Samples = s.sampler.Advance(d, s.snapshotAt)

	rep.Ended = s.checkOver()
	return rep
}

// momentary applies the edge-triggered parts of the input. Jump while
// stationary or airborne clears rubble instead.
func (s *Session) momentary(in core.InputState) {
	if in.Jump {
		if in.Moving() && !s.world.Robot.Jumping {
			s.jump()
		} else {
			_, _ = s.destroyRubble()
		}
	}
	if in.Destroy {
		_, _ = s.destroyRubble()
	}
	if in.Refuel {
		_ = s.refuel()
	}
	if in.Inspect {
		_, _ = s.inspectVictims()
	}
	if in.Rescue {
		_, _ = s.rescue()
	}
}
