package core

import "time"

// RobotModel is recorded in every dataset.
const RobotModel = "ReActure_v1"

// SamplingRateHz is the fixed rate of periodic telemetry.
const SamplingRateHz = 10

// SessionInfo is exposed when a session starts.
type SessionInfo struct {
	ID              string     `json:"session_id"`
	PlayerID        string     `json:"player_id"`
	PlayerName      string     `json:"player_name"`
	Environment     string     `json:"environment"`
	EnvironmentName string     `json:"environment_name"`
	VictimsTotal    int        `json:"victims_total"`
	RubbleTotal     int        `json:"rubble_total"`
	HazardZones     int        `json:"hazard_zones"`
	FuelStation     Position3D `json:"fuel_station"`
	Seed            int64      `json:"seed"`
	StartTime       time.Time  `json:"start_time"`
}

// EndReason says why a session finished.
type EndReason string

const (
	EndVictimsExhausted EndReason = "victims_exhausted"
	EndRobotDestroyed   EndReason = "robot_destroyed"
	EndManual           EndReason = "manual"
)

// Decision types.
const (
	DecisionRescue  = "rescue"
	DecisionRefuel  = "refuel"
	DecisionInspect = "inspect"
	DecisionDestroy = "destroy_rubble"
)

// Decision is one player decision attempt, successful or not.
type Decision struct {
	Type        string         `json:"type"`
	Position    Position3D     `json:"position"`
	TimestampMS int64          `json:"timestamp"`
	Success     bool           `json:"success"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SessionResult is exposed exactly once when a session ends.
type SessionResult struct {
	EndTime          time.Time       `json:"end_time"`
	Elapsed          time.Duration   `json:"-"`
	DurationS        float64         `json:"duration_s"`
	Reason           EndReason       `json:"reason"`
	Score            int             `json:"final_score"`
	BaseScore        int             `json:"base_score"`
	TimeBonus        int             `json:"time_bonus"`
	HealthBonus      int             `json:"health_bonus"`
	FuelBonus        int             `json:"fuel_bonus"`
	VictimsTotal     int             `json:"victims_total"`
	VictimsSaved     int             `json:"victims_saved"`
	VictimsDied      int             `json:"victims_died"`
	RubbleDestroyed  int             `json:"rubble_destroyed"`
	FinalHealth      float64         `json:"final_health"`
	FinalFuel        float64         `json:"final_fuel"`
	CompletionStatus string          `json:"completion_status"`
	Decisions        []Decision      `json:"decisions,omitempty"`
	Victims          []VictimOutcome `json:"victims,omitempty"`
}

// VictimOutcome is the state a victim was left in when the session ended.
type VictimOutcome struct {
	ID       int         `json:"id"`
	PileID   int         `json:"pile_id"`
	Position Position3D  `json:"position"`
	State    VictimState `json:"state"`
	Health   float64     `json:"health"`
}

// Completion statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Success reports whether the robot survived the session.
func (r SessionResult) Success() bool {
	return r.CompletionStatus == StatusSuccess
}
