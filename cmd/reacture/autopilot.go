package main

import (
	"math"
	"time"

	"github.com/reacture/engine/internal/dispatcher"
	"github.com/reacture/engine/internal/session"
	"github.com/reacture/engine/internal/victim"
	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
)

// Autopilot tuning.
const (
	lowFuel          = 25.0
	inspectInterval  = 20 * time.Second
	headingTolerance = 0.4 // radians
	stuckAfter       = 90  // ticks without progress
	stuckEpsilon     = 0.05
)

// Plan is what the autopilot wants for the next tick: commands to dispatch
// before it, then the held input.
type Plan struct {
	Commands []string
	Input    core.InputState
}

// autopilot drives a session headlessly. It heads for the fuel station when
// low, otherwise for the closest alive victim, rescuing when in range and
// clearing rubble when the victim is buried or the robot is stuck.
type autopilot struct {
	lastInspect time.Duration
	lastPos     core.Vec3
	stuckTicks  int
	failed      map[string]int
}

func newAutopilot() *autopilot {
	return &autopilot{failed: make(map[string]int)}
}

// headingTo is the yaw that makes forward point from a to b on the ground plane.
func headingTo(a, b core.Vec3) float64 {
	return math.Atan2(-(b[0] - a[0]), -(b[2] - a[2]))
}

// wrapAngle maps a to (-π, π].
func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// pitchTo is the pitch that points the camera from eye at b.
func pitchTo(eye, b core.Vec3) float64 {
	return math.Atan2(b[1]-eye[1], core.HorizontalDistance(eye, b))
}

// steer turns toward target and to the given pitch through the pointer delta,
// and walks forward once roughly aligned.
func steer(r core.Robot, target core.Vec3, pitch float64) core.InputState {
	diff := wrapAngle(headingTo(r.Position, target) - r.Yaw)
	// look subtracts delta * sensitivity from both yaw and pitch
	in := core.InputState{
		MouseDX: -diff / session.MouseSensitivity,
		MouseDY: -(pitch - r.Pitch) / session.MouseSensitivity,
	}
	in.Forward = math.Abs(diff) < headingTolerance
	return in
}

// Plan decides the next tick from the current world.
func (a *autopilot) Plan(w *world.World, elapsed time.Duration) Plan {
	var p Plan
	r := w.Robot

	if core.HorizontalDistance(r.Position, a.lastPos) < stuckEpsilon {
		a.stuckTicks++
	} else {
		a.stuckTicks = 0
	}
	a.lastPos = r.Position

	if elapsed-a.lastInspect >= inspectInterval {
		a.lastInspect = elapsed
		p.Commands = append(p.Commands, dispatcher.CmdInspect)
	}

	station := w.Station.Position
	if r.Fuel < lowFuel {
		if core.HorizontalDistance(r.Position, station) < session.RefuelRange {
			p.Commands = append(p.Commands, dispatcher.CmdRefuel)
			return p
		}
		p.Input = steer(r, station, 0)
		return a.unstick(p)
	}

	v, dist := w.NearestVictim(r.Position, math.Inf(1), (*core.Victim).Active)
	if v == nil {
		return p
	}
	switch {
	case dist < victim.RescueRange && v.Accessible:
		p.Commands = append(p.Commands, dispatcher.CmdRescue)
	case dist < victim.ProximityRange && !v.Accessible:
		// aim down at the victim so the first piece covering it is in view
		p.Commands = append(p.Commands, dispatcher.CmdDestroy)
		p.Input = steer(r, v.Position, pitchTo(r.Eye(), v.Position))
		p.Input.Forward = false
	default:
		p.Input = steer(r, v.Position, 0)
	}
	return a.unstick(p)
}

func (a *autopilot) unstick(p Plan) Plan {
	if a.stuckTicks < stuckAfter {
		return p
	}
	a.stuckTicks = 0
	p.Commands = append(p.Commands, dispatcher.CmdDestroy, dispatcher.CmdJump)
	return p
}

// Observe records the outcome of a dispatched command.
func (a *autopilot) Observe(res dispatcher.Result) {
	if res.Outcome != "ok" {
		a.failed[res.Command]++
	}
}
