package telemetry

import (
	"time"

	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
)

// Stamp is the time of a sample, in simulated milliseconds since session start.
type Stamp struct {
	Start time.Time
	MS    int64
}

// Time is the wall-clock equivalent of the stamp.
func (t Stamp) Time() time.Time {
	return t.Start.Add(time.Duration(t.MS) * time.Millisecond)
}

// Snapshot captures the full robot, camera and sensor state of w.
func Snapshot(w *world.World, in core.InputState, sensors core.SensorReading, at Stamp) core.TelemetrySample {
	r := w.Robot
	rotation := core.Position3D{X: r.Pitch, Y: r.Yaw}
	return core.TelemetrySample{
		Timestamp:   at.Time(),
		TimestampMS: at.MS,
		ElapsedS:    float64(at.MS) / 1000,
		Type:        core.SampleRobotState,
		KeyPresses:  in,
		Robot: core.RobotSnapshot{
			Position:  core.NewPosition3D(r.Position),
			Rotation:  rotation,
			Velocity:  core.NewPosition3D(r.Velocity),
			IsJumping: r.Jumping,
		},
		Accelerometer: core.NewPosition3D(r.Acceleration),
		Battery:       r.Fuel,
		Damage:        (core.MaxHealth - r.Health) / core.MaxHealth,
		Health:        r.Health,
		Fuel:          r.Fuel,
		Zone:          r.Zone,
		Camera: core.CameraSnapshot{
			Position: core.NewPosition3D(r.Eye()),
			Rotation: rotation,
			Yaw:      r.Yaw,
			Pitch:    r.Pitch,
		},
		Sensors: sensors,
	}
}

// Event tags a state snapshot with an event name.
func Event(s core.TelemetrySample, event string, data map[string]any) core.TelemetrySample {
	s.Type = core.SampleRobotState
	s.Event = event
	s.Data = data
	return s
}

// Action turns a state snapshot into a player action sample.
func Action(s core.TelemetrySample, action string, data map[string]any) core.TelemetrySample {
	s.Type = core.SamplePlayerAction
	s.Event = ""
	s.Action = action
	s.Data = data
	return s
}
