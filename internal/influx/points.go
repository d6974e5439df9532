package influx

import (
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/reacture/engine/pkg/core"
)

// Measurements.
const (
	MeasurementRobot    = "robot_state"
	MeasurementAction   = "player_action"
	MeasurementDecision = "decision"
	MeasurementResult   = "session_result"
)

// SamplePoint turns one telemetry sample into a point. Periodic and event
// samples go to robot_state, player actions to player_action.
func SamplePoint(info core.SessionInfo, s core.TelemetrySample) *influxdb2_write.Point {
	measurement := MeasurementRobot
	if s.Type == core.SamplePlayerAction {
		measurement = MeasurementAction
	}
	p := influxdb2_write.NewPointWithMeasurement(measurement).
		AddTag("session_id", info.ID).
		AddTag("environment", info.Environment).
		AddTag("zone", s.Zone.String()).
		AddField("x", s.Robot.Position.X).
		AddField("y", s.Robot.Position.Y).
		AddField("z", s.Robot.Position.Z).
		AddField("speed", s.Robot.Velocity.Vec().Len()).
		AddField("yaw", s.Camera.Yaw).
		AddField("pitch", s.Camera.Pitch).
		AddField("health", s.Health).
		AddField("fuel", s.Fuel).
		AddField("proximity", s.Sensors.Proximity).
		AddField("victims_detected", s.Sensors.VictimsDetected).
		AddField("jumping", s.Robot.IsJumping).
		SetTime(s.Timestamp)
	if name := s.Name(); name != "" {
		p.AddTag("name", name)
	}
	return p
}

// DecisionPoint turns a decision into a point.
func DecisionPoint(info core.SessionInfo, d core.Decision) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementDecision).
		AddTag("session_id", info.ID).
		AddTag("environment", info.Environment).
		AddTag("type", d.Type).
		AddField("success", d.Success).
		AddField("x", d.Position.X).
		AddField("z", d.Position.Z).
		SetTime(info.StartTime.Add(msDuration(d.TimestampMS)))
}

// ResultPoint turns a finished session into a point.
func ResultPoint(info core.SessionInfo, r core.SessionResult) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementResult).
		AddTag("session_id", info.ID).
		AddTag("environment", info.Environment).
		AddTag("player_id", info.PlayerID).
		AddTag("reason", string(r.Reason)).
		AddTag("status", r.CompletionStatus).
		AddField("final_score", r.Score).
		AddField("base_score", r.BaseScore).
		AddField("time_bonus", r.TimeBonus).
		AddField("health_bonus", r.HealthBonus).
		AddField("fuel_bonus", r.FuelBonus).
		AddField("victims_total", r.VictimsTotal).
		AddField("victims_saved", r.VictimsSaved).
		AddField("victims_died", r.VictimsDied).
		AddField("rubble_destroyed", r.RubbleDestroyed).
		AddField("final_health", r.FinalHealth).
		AddField("final_fuel", r.FinalFuel).
		AddField("duration_s", r.DurationS).
		SetTime(r.EndTime)
}
