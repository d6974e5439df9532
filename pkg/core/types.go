// pkg/core/types.go
package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a point or direction in arena space. +Y is up, the ground plane is XZ.
type Vec3 = mgl64.Vec3

// Position3D is the JSON form of a Vec3
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewPosition3D converts a vector to its JSON form.
func NewPosition3D(v Vec3) Position3D {
	return Position3D{X: v[0], Y: v[1], Z: v[2]}
}

// Vec returns the position as a vector.
func (p Position3D) Vec() Vec3 {
	return Vec3{p.X, p.Y, p.Z}
}

// HorizontalDistance is the planar distance between two points, ignoring elevation.
func HorizontalDistance(a, b Vec3) float64 {
	return mgl64.Vec2{a[0] - b[0], a[2] - b[2]}.Len()
}

// ZoneClass is the hazard classification of a point on the ground plane.
// Higher values are more severe.
type ZoneClass uint8

const (
	ZoneSafe ZoneClass = iota
	ZoneCaution
	ZoneDanger
)

// String returns the dataset label of the class
func (z ZoneClass) String() string {
	switch z {
	case ZoneCaution:
		return "yellow"
	case ZoneDanger:
		return "red"
	default:
		return "safe"
	}
}

// MarshalText encodes the class as its dataset label.
func (z ZoneClass) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// UnmarshalText parses a dataset label.
func (z *ZoneClass) UnmarshalText(text []byte) error {
	switch string(text) {
	case "safe", "":
		*z = ZoneSafe
	case "yellow":
		*z = ZoneCaution
	case "red":
		*z = ZoneDanger
	default:
		return fmt.Errorf("unknown zone class %q", text)
	}
	return nil
}

// VictimState is the lifecycle state of a victim. Rescued and Died are terminal.
type VictimState uint8

const (
	VictimAlive VictimState = iota
	VictimRescued
	VictimDied
)

func (s VictimState) String() string {
	switch s {
	case VictimRescued:
		return "rescued"
	case VictimDied:
		return "died"
	default:
		return "alive"
	}
}

// MarshalText encodes the state as its label.
func (s VictimState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state label.
func (s *VictimState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "alive", "":
		*s = VictimAlive
	case "rescued":
		*s = VictimRescued
	case "died":
		*s = VictimDied
	default:
		return fmt.Errorf("unknown victim state %q", text)
	}
	return nil
}

const (
	MaxHealth = 100.0
	MaxFuel   = 100.0

	// RobotHeight is the resting elevation of the robot's origin above ground.
	RobotHeight = 1.0
	// EyeHeight is the camera offset above the robot's origin.
	EyeHeight = 1.5
)

// Robot is the single player-controlled entity of a session.
type Robot struct {
	Position     Vec3
	Velocity     Vec3
	Acceleration Vec3 // accelerometer signal, not used by dynamics
	Yaw          float64
	Pitch        float64

	Health float64
	Fuel   float64

	Jumping      bool
	JumpVelocity float64

	DamageCooldown float64 // seconds until damage may apply again
	Zone           ZoneClass
}

// NewRobot returns a robot at the origin with full health and fuel.
func NewRobot() Robot {
	return Robot{
		Position: Vec3{0, RobotHeight, 0},
		Health:   MaxHealth,
		Fuel:     MaxFuel,
	}
}

// Eye is the camera position.
func (r Robot) Eye() Vec3 {
	return r.Position.Add(Vec3{0, EyeHeight, 0})
}

// Speed is the magnitude of the full velocity vector.
func (r Robot) Speed() float64 {
	return r.Velocity.Len()
}

// Damage applies health loss, floored at 0.
func (r *Robot) Damage(amount float64) {
	r.Health = max(0, r.Health-amount)
}

// RubblePiece is one box of debris belonging to a pile.
type RubblePiece struct {
	ID       int
	PileID   int
	Position Vec3
	Rotation Vec3 // XYZ euler angles
	Width    float64
	Height   float64
	Depth    float64

	Destroyed       bool
	Grounded        bool
	FallingVelocity float64
}

// Radius is half the largest horizontal extent.
func (p *RubblePiece) Radius() float64 {
	return max(p.Width, p.Depth) / 2
}

// Victim is a trapped person under a pile.
type Victim struct {
	ID         int
	PileID     int
	Position   Vec3
	Health     float64
	DecayRate  float64 // health lost per simulated second while alive
	State      VictimState
	Accessible bool
}

// Active reports whether the victim still takes part in the simulation.
func (v *Victim) Active() bool {
	return v.State == VictimAlive
}

// HazardZone is a ground-plane disc, immutable after generation.
type HazardZone struct {
	ID         int
	Center     mgl64.Vec2 // x, z
	Radius     float64
	Class      ZoneClass
	HazardType string
}

// Contains reports whether p lies strictly inside the disc, ignoring elevation.
func (z HazardZone) Contains(p Vec3) bool {
	return mgl64.Vec2{p[0] - z.Center[0], p[2] - z.Center[1]}.Len() < z.Radius
}

// FuelStation refuels the robot when it is close enough.
type FuelStation struct {
	Position Vec3
}
