// pkg/core/telemetry.go
package core

import (
	"fmt"
	"time"
)

// SampleType distinguishes state snapshots from discrete player actions in the session log.
type SampleType string

const (
	SampleRobotState   SampleType = "robot_state"
	SamplePlayerAction SampleType = "player_action"
)

// Event tags carried by robot_state samples.
const (
	EventPeriodic        = "periodic_update_10hz"
	EventGameStart       = "game_start"
	EventGameEnd         = "game_end"
	EventZoneChange      = "zone_change"
	EventZoneDamage      = "damage_from_zone"
	EventCollisionDamage = "collision_damage"
	EventMovementStart   = "movement_start"
	EventMovementStop    = "movement_stop"
)

// Action names carried by player_action samples.
const (
	ActionJump          = "jump"
	ActionRescue        = "rescue_victim"
	ActionVictimDied    = "victim_died"
	ActionDestroyRubble = "destroy_rubble"
	ActionRefuel        = "refuel"
	ActionInspectStart  = "inspect_start"
	ActionInspectEnd    = "inspect_end"
	ActionPaused        = "game_paused"
	ActionResumed       = "game_resumed"
)

// InputState is the held and momentary input at one instant.
type InputState struct {
	Forward  bool    `json:"W"`
	Left     bool    `json:"A"`
	Backward bool    `json:"S"`
	Right    bool    `json:"D"`
	Jump     bool    `json:"Space"`
	Inspect  bool    `json:"E"`
	Refuel   bool    `json:"R"`
	MouseDX  float64 `json:"mouse_dx"`
	MouseDY  float64 `json:"mouse_dy"`
	Rescue   bool    `json:"rescue"`
	Destroy  bool    `json:"destroy"`
}

// Moving reports whether any direction is held.
func (in InputState) Moving() bool {
	return in.Forward || in.Backward || in.Left || in.Right
}

// ProximitySensors are the directional ray distances, rotated by the robot's yaw.
type ProximitySensors struct {
	Forward float64 `json:"forward"`
	Left    float64 `json:"left"`
	Right   float64 `json:"right"`
	Back    float64 `json:"back"`
}

// VictimContact is one entry of the known-nearby victim list. It ignores occlusion.
type VictimContact struct {
	ID       int     `json:"id"`
	Distance float64 `json:"distance"`
	Angle    float64 `json:"angle"`
	Health   float64 `json:"health"`
}

// SensorReading is the synthesized sensor state at one instant.
type SensorReading struct {
	Proximity           float64          `json:"proximity"`
	ProximitySensors    ProximitySensors `json:"proximitySensors"`
	VictimsDetected     int              `json:"victimsDetected"`
	Victims             []VictimContact  `json:"victims"`
	FuelStationDistance float64          `json:"fuelStationDistance"`
	Zone                ZoneClass        `json:"zone"`
	InYellowZone        bool             `json:"inYellowZone"`
	InRedZone           bool             `json:"inRedZone"`
}

// RobotSnapshot is the kinematic robot state in a sample.
type RobotSnapshot struct {
	Position  Position3D `json:"position"`
	Rotation  Position3D `json:"rotation"`
	Velocity  Position3D `json:"velocity"`
	IsJumping bool       `json:"isJumping"`
}

// CameraSnapshot is the first-person camera state in a sample.
type CameraSnapshot struct {
	Position Position3D `json:"position"`
	Rotation Position3D `json:"rotation"`
	Yaw      float64    `json:"yaw"`
	Pitch    float64    `json:"pitch"`
}

// TelemetrySample is one line of the session log: a periodic snapshot, an
// event-tagged snapshot, or a player action. Immutable once appended.
type TelemetrySample struct {
	Timestamp     time.Time      `json:"timestamp"`
	TimestampMS   int64          `json:"timestamp_ms"`
	ElapsedS      float64        `json:"time_elapsed_s"`
	Type          SampleType     `json:"type"`
	Event         string         `json:"event,omitempty"`
	Action        string         `json:"action,omitempty"`
	KeyPresses    InputState     `json:"key_presses"`
	Robot         RobotSnapshot  `json:"robot"`
	Accelerometer Position3D     `json:"accelerometer"`
	Battery       float64        `json:"battery"`
	Damage        float64        `json:"damage"`
	Health        float64        `json:"health"`
	Fuel          float64        `json:"fuel"`
	Zone          ZoneClass      `json:"zone"`
	Camera        CameraSnapshot `json:"camera"`
	Sensors       SensorReading  `json:"sensors"`

	VisualFramePath string         `json:"visual_frame_path,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
}

// Name is the event or action tag of the sample.
func (s TelemetrySample) Name() string {
	if s.Type == SamplePlayerAction {
		return s.Action
	}
	return s.Event
}

// Periodic reports whether the sample came from the fixed-rate sampler.
func (s TelemetrySample) Periodic() bool {
	return s.Type == SampleRobotState && s.Event == EventPeriodic
}

// FrameRecord is one downsampled RGB capture. Index implies temporal order.
type FrameRecord struct {
	Index       int
	TimestampMS int64
	Width       int
	Height      int
	Pixels      []byte // row-major, 3 bytes per pixel
}

// Path is the logical file name the frame is referenced by in the session log.
func (f FrameRecord) Path() string {
	return FramePath(f.Index)
}

// FramePath formats the logical frame path for index i.
func FramePath(i int) string {
	return fmt.Sprintf("frames/frame_%06d.npy", i)
}
