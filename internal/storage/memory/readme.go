package memory

import (
	"io"
	"text/template"

	"github.com/dustin/go-humanize"
)

var readmeTemplate = template.Must(template.New("readme").Funcs(template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"float": func(f float64) string { return humanize.FormatFloat("#,###.##", f) },
}).Parse(`# ReActure Dataset - {{.SessionID}}

## Session Information

- **Session ID**: {{.SessionID}}
- **Start Time**: {{.StartTime.Format "2006-01-02T15:04:05.000Z07:00"}}
- **Duration**: {{float .DurationS}}s
- **Sampling Rate**: {{.SamplingRateHz}} Hz
- **Player**: {{.PlayerName}}
- **Environment**: {{.EnvironmentName}}
- **Seed**: {{.Seed}}

## Game Results

- **Victims Saved**: {{.GameResult.VictimsSaved}}/{{.GameResult.VictimsTotal}}
- **Victims Died**: {{.GameResult.VictimsDied}}
- **Final Score**: {{.GameResult.FinalScore}}
- **Final Health**: {{float .GameResult.FinalHealth}}%
- **Final Fuel**: {{float .GameResult.FinalFuel}}%
- **Status**: {{.GameResult.CompletionStatus}} ({{.GameResult.Reason}})

## Dataset Statistics

- **Total Samples**: {{comma .DataStats.TotalSamples}}
- **Visual Frames**: {{comma .DataStats.TotalFrames}}
- **Player Actions**: {{comma .DataStats.ActionsLogged}}
- **Decisions**: {{comma .DataStats.DecisionsTotal}}
- **Distance Travelled**: {{float .Trajectory.DistanceM}} m

## Files Included

1. **metadata.json** - Session metadata
2. **session_log.jsonl** - Time-series data, one JSON object per line ordered by timestamp_ms
3. **frames.npy** - Visual frames, uint8 array of shape (N, H, W, 3)
4. **timestamps.npy** - Frame capture times in ms since session start, float32 array of shape (N,)
5. **schema.json** - JSON Schema of one session_log.jsonl line
6. **ml_ready.json** - Trajectory, action and sensor sequences with score labels
7. **README.md** - This file

Files 3 and 4 are absent when no frames were captured. JSON files carry a .gz
suffix when the dataset was exported compressed.

## Data Format

### JSONL Data Structure

Each line is a JSON object. Periodic lines are sampled at {{.SamplingRateHz}} Hz and
carry the event "periodic_update_10hz"; other robot_state lines mark events and
player_action lines mark actions:

` + "```" + `json
{
  "timestamp": "2025-11-09T...",
  "timestamp_ms": 1234,
  "time_elapsed_s": 1.234,
  "type": "robot_state",
  "event": "periodic_update_10hz",
  "key_presses": {"W": true, "A": false, "S": false, "D": false, "mouse_dx": 0, "mouse_dy": 0},
  "accelerometer": {"x": 0.14, "y": 0.0, "z": 0.05},
  "battery": 87.3,
  "damage": 0.12,
  "robot": {"position": {...}, "rotation": {...}, "velocity": {...}, "isJumping": false},
  "camera": {"position": {...}, "rotation": {...}, "yaw": 0.0, "pitch": 0.0},
  "sensors": {...},
  "visual_frame_path": "frames/frame_000123.npy"
}
` + "```" + `

### Frame Data

Frames are {{if .DataStats.FrameShape}}{{index .DataStats.FrameShape 2}}x{{index .DataStats.FrameShape 1}}{{else}}128x128{{end}} RGB images stored in frames.npy.
Load them with numpy:

` + "```" + `python
import numpy as np
frames = np.load("frames.npy")          # (N, H, W, 3) uint8
timestamps = np.load("timestamps.npy")  # (N,) float32
` + "```" + `

The visual_frame_path of a log line names the frame by its index in frames.npy.

## Generated by

ReActure v1.0 - Disaster Response Simulation
`))

func writeReadme(w io.Writer, meta Metadata) error {
	return readmeTemplate.Execute(w, meta)
}
