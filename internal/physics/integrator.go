// Package physics advances the robot and the rubble. It is deliberately not a
// rigid-body engine: motion is point-mass integration with friction, and
// contact is resolved by push-back rather than continuous collision.
package physics

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/reacture/engine/internal/clock"
	"github.com/reacture/engine/pkg/core"
)

const (
	Gravity                = -20.0
	MoveSpeed              = 10.0
	SpeedScale             = 20.0
	CautionSpeedMultiplier = 0.5
	Friction               = 0.8
	JumpVelocity           = 8.0
	FuelDrainRate          = 2.0 // per second while a direction is held
	EmptyTankDamping       = 0.95
)

// StepResult reports what happened to the robot during one integration step.
type StepResult struct {
	Delta  float64
	Moving bool
	Landed bool
}

// Jump starts a jump unless one is in progress. It reports whether a jump began.
func Jump(r *core.Robot) bool {
	if r.Jumping {
		return false
	}
	r.Jumping = true
	r.JumpVelocity = JumpVelocity
	return true
}

// Integrate advances r by one step. delta is clamped first, so any raw frame
// delta is accepted.
func Integrate(r *core.Robot, in core.InputState, delta float64) StepResult {
	delta = clock.Clamp(delta)
	res := StepResult{Delta: delta, Moving: in.Moving()}

	r.Velocity[0] *= Friction
	r.Velocity[2] *= Friction

	dir := intentDirection(in)
	if dir.Len() > 0 {
		dir = mgl64.Rotate3DY(r.Yaw).Mul3x1(dir.Normalize())
		speed := MoveSpeed * SpeedScale
		if r.Zone == core.ZoneCaution {
			speed *= CautionSpeedMultiplier
		}
		prevX, prevZ := r.Velocity[0], r.Velocity[2]
		r.Velocity[0] += dir[0] * speed * delta
		r.Velocity[2] += dir[2] * speed * delta
		r.Acceleration[0] = (r.Velocity[0] - prevX) / delta
		r.Acceleration[2] = (r.Velocity[2] - prevZ) / delta
	} else {
		r.Acceleration[0] = 0
		r.Acceleration[2] = 0
	}

	if r.Jumping {
		r.JumpVelocity += Gravity * delta
		r.Velocity[1] = r.JumpVelocity
	} else {
		r.Velocity[1] += Gravity * delta
	}

	r.Position = r.Position.Add(r.Velocity.Mul(delta))

	if r.Position[1] <= core.RobotHeight {
		res.Landed = r.Jumping
		r.Position[1] = core.RobotHeight
		r.Velocity[1] = 0
		r.JumpVelocity = 0
		r.Jumping = false
	}

	if res.Moving {
		r.Fuel = max(0, r.Fuel-delta*FuelDrainRate)
		if r.Fuel <= 0 {
			r.Velocity[0] *= EmptyTankDamping
			r.Velocity[2] *= EmptyTankDamping
		}
	}

	if r.DamageCooldown > 0 {
		r.DamageCooldown -= delta
	}
	return res
}

// intentDirection is the unrotated movement intent; forward is -z.
func intentDirection(in core.InputState) core.Vec3 {
	var d core.Vec3
	if in.Forward {
		d[2]--
	}
	if in.Backward {
		d[2]++
	}
	if in.Left {
		d[0]--
	}
	if in.Right {
		d[0]++
	}
	return d
}
