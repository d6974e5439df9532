package convert

import (
	"encoding/json"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/reacture/engine/internal/model"
	"github.com/reacture/engine/pkg/core"
	"gorm.io/datatypes"
)

// pointToPosition3D is the inverse of position3DToPoint.
func pointToPosition3D(p geom.Point) core.Position3D {
	c, ok := p.Coordinates()
	if !ok {
		return core.Position3D{}
	}
	return core.Position3D{X: c.XY.X, Y: c.Z, Z: -c.XY.Y}
}

func fromJSON(data datatypes.JSON, v any) {
	if len(data) > 0 {
		_ = json.Unmarshal(data, v)
	}
}

// SessionToInfo converts a row back to the start-of-session info.
func SessionToInfo(row model.Session) core.SessionInfo {
	return core.SessionInfo{
		ID:              row.SessionID,
		PlayerID:        row.PlayerID,
		PlayerName:      row.PlayerName,
		Environment:     row.Environment,
		EnvironmentName: row.EnvironmentName,
		VictimsTotal:    row.VictimsTotal,
		RubbleTotal:     row.RubbleTotal,
		HazardZones:     row.HazardZones,
		FuelStation:     pointToPosition3D(row.FuelStation),
		Seed:            row.Seed,
		StartTime:       row.StartTime,
	}
}

// SessionToResult converts a row back to the result. ok is false while the
// session has not ended.
func SessionToResult(row model.Session) (core.SessionResult, bool) {
	if row.EndTime == nil {
		return core.SessionResult{}, false
	}
	return core.SessionResult{
		EndTime:          *row.EndTime,
		Elapsed:          time.Duration(row.DurationS * float64(time.Second)),
		DurationS:        row.DurationS,
		Reason:           core.EndReason(row.Reason),
		Score:            row.FinalScore,
		BaseScore:        row.BaseScore,
		TimeBonus:        row.TimeBonus,
		HealthBonus:      row.HealthBonus,
		FuelBonus:        row.FuelBonus,
		VictimsTotal:     row.VictimsTotal,
		VictimsSaved:     row.VictimsSaved,
		VictimsDied:      row.VictimsDied,
		RubbleDestroyed:  row.RubbleDestroyed,
		FinalHealth:      row.FinalHealth,
		FinalFuel:        row.FinalFuel,
		CompletionStatus: row.CompletionStatus,
	}, true
}

// SampleToCore converts a row back to a telemetry sample.
func SampleToCore(row model.Sample) core.TelemetrySample {
	s := core.TelemetrySample{
		Timestamp:       row.Time,
		TimestampMS:     row.TimestampMS,
		ElapsedS:        float64(row.TimestampMS) / 1000,
		Type:            core.SampleType(row.Type),
		Health:          row.Health,
		Fuel:            row.Fuel,
		Battery:         row.Fuel,
		Damage:          (core.MaxHealth - row.Health) / core.MaxHealth,
		VisualFramePath: row.FramePath,
	}
	if s.Type == core.SamplePlayerAction {
		s.Action = row.Name
	} else {
		s.Event = row.Name
	}
	_ = s.Zone.UnmarshalText([]byte(row.Zone))
	fromJSON(row.Robot, &s.Robot)
	fromJSON(row.Sensors, &s.Sensors)
	fromJSON(row.KeyPresses, &s.KeyPresses)
	fromJSON(row.Camera, &s.Camera)
	fromJSON(row.Accel, &s.Accelerometer)
	fromJSON(row.Data, &s.Data)
	return s
}

// FrameToCore converts a row back to a frame record.
func FrameToCore(row model.Frame) core.FrameRecord {
	return core.FrameRecord{
		Index:       row.Index,
		TimestampMS: row.TimestampMS,
		Width:       row.Width,
		Height:      row.Height,
		Pixels:      row.Pixels,
	}
}

// DecisionToCore converts a row back to a decision.
func DecisionToCore(row model.Decision) core.Decision {
	d := core.Decision{
		Type:        row.Type,
		Position:    pointToPosition3D(row.Position),
		TimestampMS: row.TimestampMS,
		Success:     row.Success,
	}
	fromJSON(row.Metadata, &d.Metadata)
	return d
}

// VictimOutcomeToCore converts a row back to a victim outcome.
func VictimOutcomeToCore(row model.VictimOutcome) core.VictimOutcome {
	v := core.VictimOutcome{
		ID:       row.VictimID,
		PileID:   row.PileID,
		Position: pointToPosition3D(row.Position),
		Health:   row.Health,
	}
	_ = v.State.UnmarshalText([]byte(row.State))
	return v
}
