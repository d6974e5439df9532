package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Session{},
	&Sample{},
	&Frame{},
	&Decision{},
	&VictimOutcome{},
}

// Session is one simulation run. The result columns are filled in at the end.
type Session struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	SessionID       string     `json:"sessionId" gorm:"size:64;uniqueIndex"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	PlayerID        string     `json:"playerId" gorm:"size:64;index:idx_session_player"`
	PlayerName      string     `json:"playerName" gorm:"size:127"`
	Environment     string     `json:"environment" gorm:"size:32"`
	EnvironmentName string     `json:"environmentName" gorm:"size:64"`
	Seed            int64      `json:"seed"`
	VictimsTotal    int        `json:"victimsTotal"`
	RubbleTotal     int        `json:"rubbleTotal"`
	HazardZones     int        `json:"hazardZones"`
	FuelStation     geom.Point `json:"fuelStation"`
	StartTime       time.Time  `json:"startTime" gorm:"index:idx_session_start"`

	EndTime          *time.Time      `json:"endTime"`
	DurationS        float64         `json:"durationS"`
	Reason           string          `json:"reason" gorm:"size:32"`
	FinalScore       int             `json:"finalScore"`
	BaseScore        int             `json:"baseScore"`
	TimeBonus        int             `json:"timeBonus"`
	HealthBonus      int             `json:"healthBonus"`
	FuelBonus        int             `json:"fuelBonus"`
	VictimsSaved     int             `json:"victimsSaved"`
	VictimsDied      int             `json:"victimsDied"`
	RubbleDestroyed  int             `json:"rubbleDestroyed"`
	FinalHealth      float64         `json:"finalHealth"`
	FinalFuel        float64         `json:"finalFuel"`
	CompletionStatus string          `json:"completionStatus" gorm:"size:16"`
	Trajectory       geom.LineString `json:"trajectory"`
	DistanceM        float64         `json:"distanceM"`

	Samples   []Sample
	Frames    []Frame
	Decisions []Decision
}

func (*Session) TableName() string {
	return "sessions"
}

// GetBySessionID loads the row for a session id.
func (s *Session) GetBySessionID(db *gorm.DB, sessionID string) error {
	return db.Where("session_id = ?", sessionID).First(s).Error
}

// Sample is one telemetry log line. Scalar columns are the ones queried;
// the full sensor reading and input state ride along as JSON.
type Sample struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	SessionID   uint       `json:"sessionId" gorm:"index:idx_sample_session_ts,priority:1"`
	Session     Session    `json:"-" gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Time        time.Time  `json:"time"`
	TimestampMS int64      `json:"timestampMs" gorm:"index:idx_sample_session_ts,priority:2"`
	Type        string     `json:"type" gorm:"size:16"`
	Name        string     `json:"name" gorm:"size:32;index:idx_sample_name"`
	Position    geom.Point `json:"position"`
	Yaw         float64    `json:"yaw"`
	Pitch       float64    `json:"pitch"`
	Speed       float64    `json:"speed"`
	Jumping     bool       `json:"jumping"`
	Health      float64    `json:"health"`
	Fuel        float64    `json:"fuel"`
	Zone        string     `json:"zone" gorm:"size:8"`
	Proximity   float64    `json:"proximity"`
	Victims     int        `json:"victimsDetected"`
	FramePath   string     `json:"framePath" gorm:"size:64"`

	Robot      datatypes.JSON `json:"robot" gorm:"type:jsonb"`
	Sensors    datatypes.JSON `json:"sensors" gorm:"type:jsonb"`
	KeyPresses datatypes.JSON `json:"keyPresses" gorm:"type:jsonb"`
	Camera     datatypes.JSON `json:"camera" gorm:"type:jsonb"`
	Data       datatypes.JSON `json:"data" gorm:"type:jsonb;default:NULL"`
	Accel      datatypes.JSON `json:"accelerometer" gorm:"type:jsonb"`
}

func (*Sample) TableName() string {
	return "samples"
}

// Frame is one downsampled RGB capture.
type Frame struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	SessionID   uint    `json:"sessionId" gorm:"uniqueIndex:idx_frame_session_index,priority:1"`
	Session     Session `json:"-" gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Index       int     `json:"index" gorm:"uniqueIndex:idx_frame_session_index,priority:2"`
	TimestampMS int64   `json:"timestampMs"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Pixels      []byte  `json:"-"`
}

func (*Frame) TableName() string {
	return "frames"
}

// Decision is one player decision attempt.
type Decision struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	SessionID   uint           `json:"sessionId" gorm:"index:idx_decision_session"`
	Session     Session        `json:"-" gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Type        string         `json:"type" gorm:"size:32"`
	Position    geom.Point     `json:"position"`
	TimestampMS int64          `json:"timestampMs"`
	Success     bool           `json:"success"`
	Metadata    datatypes.JSON `json:"metadata" gorm:"type:jsonb;default:NULL"`
}

func (*Decision) TableName() string {
	return "decisions"
}

// VictimOutcome is the terminal state of one victim, written at session end.
type VictimOutcome struct {
	SessionID uint       `json:"sessionId" gorm:"primaryKey;autoIncrement:false"`
	VictimID  int        `json:"victimId" gorm:"primaryKey;autoIncrement:false"`
	Session   Session    `json:"-" gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	PileID    int        `json:"pileId"`
	Position  geom.Point `json:"position"`
	State     string     `json:"state" gorm:"size:16"`
	Health    float64    `json:"health"`
}

func (*VictimOutcome) TableName() string {
	return "victim_outcomes"
}
