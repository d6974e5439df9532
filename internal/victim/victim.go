// Package victim runs the victim lifecycle: health decay, accessibility and rescue.
//
// A victim starts Alive and ends either Rescued or Died. Both are terminal;
// health and state are frozen once reached.
package victim

import (
	"errors"
	"math"
	"time"

	"github.com/reacture/engine/internal/clock"
	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
)

const (
	DecayPeriod     = time.Second
	ProximityRange  = 5.0
	RescueRange     = 3.0
	SightlineMargin = 0.5

	RescueBase         = 100
	RescueHealthFactor = 2.0
	RescueTimeLimit    = 180.0 // seconds
	RescueTimeFactor   = 0.5
)

// ErrNotAccessible is returned by Rescue when no alive victim can be reached.
var ErrNotAccessible = errors.New("no accessible victim in range")

// Engine owns the decay schedule of one session.
type Engine struct {
	decay *clock.Periodic
}

// NewEngine creates an engine with a fresh decay schedule.
func NewEngine() *Engine {
	return &Engine{decay: clock.NewPeriodic(DecayPeriod)}
}

// Advance feeds d of simulated time and runs one decay step per elapsed
// period. It returns the victims that died, in the order they died.
func (e *Engine) Advance(w *world.World, d time.Duration) []*core.Victim {
	var died []*core.Victim
	for range e.decay.Advance(d) {
		died = append(died, Decay(w)...)
	}
	return died
}

// Stop cancels the decay schedule.
func (e *Engine) Stop() {
	e.decay.Cancel()
}

// Decay applies one decay step to every Alive victim. A victim dies on the
// step its health first reaches zero from a positive value, never again.
func Decay(w *world.World) []*core.Victim {
	var died []*core.Victim
	for _, v := range w.Victims {
		if v.State != core.VictimAlive {
			continue
		}
		prev := v.Health
		v.Health = max(0, v.Health-v.DecayRate)
		if prev > 0 && v.Health == 0 {
			v.State = core.VictimDied
			v.Accessible = false
			died = append(died, v)
		}
	}
	return died
}

// Accessible reports whether v can be rescued from the robot's position: it
// is Alive, within range, and no live rubble lies on the line between them.
func Accessible(w *world.World, v *core.Victim) bool {
	if v.State != core.VictimAlive {
		return false
	}
	from := w.Robot.Position
	to := v.Position.Sub(from)
	dist := to.Len()
	if dist >= ProximityRange {
		return false
	}
	if dist > 0 {
		if hit, ok := w.Raycast(from, to, dist+SightlineMargin, world.QueryRubble); ok && hit.Distance < dist {
			return false
		}
	}
	return dist < RescueRange
}

// UpdateAccessibility recomputes the accessibility flag of every victim and
// returns the ids of the accessible ones.
func UpdateAccessibility(w *world.World) []int {
	var ids []int
	for _, v := range w.Victims {
		v.Accessible = Accessible(w, v)
		if v.Accessible {
			ids = append(ids, v.ID)
		}
	}
	return ids
}

// RescueScore is the bonus for rescuing a victim with the given health after
// elapsed whole seconds.
func RescueScore(health float64, elapsed int) int {
	return RescueBase +
		int(math.Floor(health*RescueHealthFactor)) +
		int(math.Floor(max(0, (RescueTimeLimit-float64(elapsed))*RescueTimeFactor)))
}

// Rescued describes a successful rescue.
type Rescued struct {
	Victim   *core.Victim
	Distance float64
	Score    int
}

// Rescue rescues the closest accessible victim. Accessibility is re-evaluated
// against the current world first, so the decision reflects this instant.
func Rescue(w *world.World, elapsed int) (Rescued, error) {
	UpdateAccessibility(w)
	v, dist := w.NearestVictim(w.Robot.Position, RescueRange, func(v *core.Victim) bool {
		return v.State == core.VictimAlive && v.Accessible
	})
	if v == nil {
		return Rescued{}, ErrNotAccessible
	}
	score, ok := rescue(v, elapsed)
	if !ok {
		return Rescued{}, ErrNotAccessible
	}
	return Rescued{Victim: v, Distance: dist, Score: score}, nil
}

func rescue(v *core.Victim, elapsed int) (int, bool) {
	if v.State != core.VictimAlive || !v.Accessible {
		return 0, false
	}
	v.State = core.VictimRescued
	v.Accessible = false
	return RescueScore(v.Health, elapsed), true
}

// Exhausted reports whether every victim has reached a terminal state.
func Exhausted(w *world.World) bool {
	_, rescued, died := w.VictimCounts()
	return len(w.Victims) > 0 && rescued+died >= len(w.Victims)
}
