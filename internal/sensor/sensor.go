// Package sensor synthesizes the robot's sensor readings from the world.
// Synthesize never mutates the world; it is called for live feedback and for
// telemetry, possibly several times within one tick, with identical results.
package sensor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/reacture/engine/internal/hazard"
	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
)

const (
	MaxRange        = 10.0
	DetectionRadius = 15.0
)

// Local sensor directions before rotation by yaw.
var (
	forward = core.Vec3{0, 0, -1}
	left    = core.Vec3{-1, 0, 0}
	right   = core.Vec3{1, 0, 0}
	back    = core.Vec3{0, 0, 1}
)

// ViewDirection is the camera's forward vector for the given yaw and pitch.
func ViewDirection(yaw, pitch float64) core.Vec3 {
	return mgl64.Rotate3DY(yaw).Mul3(mgl64.Rotate3DX(pitch)).Mul3x1(forward)
}

// Bearing is the angle of target relative to the robot's forward direction,
// from atan2 of the lateral components in the robot frame. Zero is dead
// ahead; positive is to the right.
func Bearing(r core.Robot, target core.Vec3) float64 {
	local := mgl64.Rotate3DY(-r.Yaw).Mul3x1(target.Sub(r.Position))
	return math.Atan2(local[0], -local[2])
}

// Synthesize builds a full sensor reading for the robot's current pose.
func Synthesize(w *world.World) core.SensorReading {
	r := w.Robot
	eye := r.Eye()
	yaw := mgl64.Rotate3DY(r.Yaw)

	reading := core.SensorReading{
		Proximity: cast(w, eye, ViewDirection(r.Yaw, r.Pitch)),
		ProximitySensors: core.ProximitySensors{
			Forward: cast(w, eye, yaw.Mul3x1(forward)),
			Left:    cast(w, eye, yaw.Mul3x1(left)),
			Right:   cast(w, eye, yaw.Mul3x1(right)),
			Back:    cast(w, eye, yaw.Mul3x1(back)),
		},
		Victims:             []core.VictimContact{},
		FuelStationDistance: w.FuelStationDistance(),
		Zone:                r.Zone,
	}

	for _, v := range w.Victims {
		if v.State == core.VictimRescued {
			continue
		}
		d := r.Position.Sub(v.Position).Len()
		if d >= DetectionRadius {
			continue
		}
		reading.Victims = append(reading.Victims, core.VictimContact{
			ID:       v.ID,
			Distance: d,
			Angle:    Bearing(r, v.Position),
			Health:   v.Health,
		})
	}
	reading.VictimsDetected = len(reading.Victims)

	m := hazard.Classify(w.Zones, r.Position)
	reading.InYellowZone = m.InCaution
	reading.InRedZone = m.InDanger
	return reading
}

func cast(w *world.World, origin, dir core.Vec3) float64 {
	if hit, ok := w.Raycast(origin, dir, MaxRange, world.QueryAll); ok {
		return hit.Distance
	}
	return MaxRange
}
