// Package convert maps between the domain types in pkg/core and the gorm rows.
package convert

import (
	"encoding/json"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/reacture/engine/internal/geo"
	"github.com/reacture/engine/internal/model"
	"github.com/reacture/engine/pkg/core"
	"gorm.io/datatypes"
)

// position3DToPoint converts an arena position to an XYZ point.
func position3DToPoint(p core.Position3D) geom.Point {
	return geo.ArenaPoint(p.Vec())
}

// toJSON marshals v, falling back to null for an unmarshalable value.
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(data)
}

// CoreToSession converts the start-of-session info to a row.
func CoreToSession(info core.SessionInfo) model.Session {
	return model.Session{
		SessionID:       info.ID,
		PlayerID:        info.PlayerID,
		PlayerName:      info.PlayerName,
		Environment:     info.Environment,
		EnvironmentName: info.EnvironmentName,
		Seed:            info.Seed,
		VictimsTotal:    info.VictimsTotal,
		RubbleTotal:     info.RubbleTotal,
		HazardZones:     info.HazardZones,
		FuelStation:     position3DToPoint(info.FuelStation),
		StartTime:       info.StartTime,
		Trajectory:      geom.LineString{},
	}
}

// ApplyResult copies the end-of-session result onto a row.
func ApplyResult(row *model.Session, res core.SessionResult) {
	end := res.EndTime
	row.EndTime = &end
	row.DurationS = res.DurationS
	row.Reason = string(res.Reason)
	row.FinalScore = res.Score
	row.BaseScore = res.BaseScore
	row.TimeBonus = res.TimeBonus
	row.HealthBonus = res.HealthBonus
	row.FuelBonus = res.FuelBonus
	row.VictimsSaved = res.VictimsSaved
	row.VictimsDied = res.VictimsDied
	row.RubbleDestroyed = res.RubbleDestroyed
	row.FinalHealth = res.FinalHealth
	row.FinalFuel = res.FinalFuel
	row.CompletionStatus = res.CompletionStatus
}

// CoreToSample converts a telemetry sample to a row. sessionID is the row id
// of the owning session.
func CoreToSample(sessionID uint, s core.TelemetrySample) model.Sample {
	row := model.Sample{
		SessionID:   sessionID,
		Time:        s.Timestamp,
		TimestampMS: s.TimestampMS,
		Type:        string(s.Type),
		Name:        s.Name(),
		Position:    position3DToPoint(s.Robot.Position),
		Yaw:         s.Camera.Yaw,
		Pitch:       s.Camera.Pitch,
		Speed:       s.Robot.Velocity.Vec().Len(),
		Jumping:     s.Robot.IsJumping,
		Health:      s.Health,
		Fuel:        s.Fuel,
		Zone:        s.Zone.String(),
		Proximity:   s.Sensors.Proximity,
		Victims:     s.Sensors.VictimsDetected,
		FramePath:   s.VisualFramePath,
		Robot:       toJSON(s.Robot),
		Sensors:     toJSON(s.Sensors),
		KeyPresses:  toJSON(s.KeyPresses),
		Camera:      toJSON(s.Camera),
		Accel:       toJSON(s.Accelerometer),
	}
	if len(s.Data) > 0 {
		row.Data = toJSON(s.Data)
	}
	return row
}

// CoreToFrame converts a frame record to a row.
func CoreToFrame(sessionID uint, f core.FrameRecord) model.Frame {
	return model.Frame{
		SessionID:   sessionID,
		Index:       f.Index,
		TimestampMS: f.TimestampMS,
		Width:       f.Width,
		Height:      f.Height,
		Pixels:      f.Pixels,
	}
}

// CoreToDecision converts a decision to a row.
func CoreToDecision(sessionID uint, d core.Decision) model.Decision {
	row := model.Decision{
		SessionID:   sessionID,
		Type:        d.Type,
		Position:    position3DToPoint(d.Position),
		TimestampMS: d.TimestampMS,
		Success:     d.Success,
	}
	if len(d.Metadata) > 0 {
		row.Metadata = toJSON(d.Metadata)
	}
	return row
}

// CoreToVictimOutcome converts the final state of a victim to a row.
func CoreToVictimOutcome(sessionID uint, v core.VictimOutcome) model.VictimOutcome {
	return model.VictimOutcome{
		SessionID: sessionID,
		VictimID:  v.ID,
		PileID:    v.PileID,
		Position:  position3DToPoint(v.Position),
		State:     v.State.String(),
		Health:    v.Health,
	}
}
