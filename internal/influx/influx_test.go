package influx

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/reacture/engine/internal/config"
	"github.com/reacture/engine/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var info = core.SessionInfo{ID: "reacture_1_abcd", Environment: "wildfire", PlayerID: "p1", StartTime: start}

func line(p *influxdb2_write.Point) string {
	return influxdb2_write.PointToLineProtocol(p, time.Millisecond)
}

func TestSamplePoint(t *testing.T) {
	s := core.TelemetrySample{
		Timestamp:   start.Add(1500 * time.Millisecond),
		TimestampMS: 1500,
		Type:        core.SampleRobotState,
		Event:       core.EventPeriodic,
		Robot:       core.RobotSnapshot{Position: core.Position3D{X: 1, Y: 1, Z: -2}, Velocity: core.Position3D{X: 3, Z: 4}},
		Health:      80,
		Fuel:        70,
		Zone:        core.ZoneDanger,
	}
	lp := line(SamplePoint(info, s))
	assert.True(t, strings.HasPrefix(lp, "robot_state,"), lp)
	assert.Contains(t, lp, "session_id=reacture_1_abcd")
	assert.Contains(t, lp, "zone=red")
	assert.Contains(t, lp, "name=periodic_update_10hz")
	assert.Contains(t, lp, "speed=5")
	assert.Contains(t, lp, "health=80")
	assert.True(t, strings.HasSuffix(lp, " 1772366401500\n") || strings.HasSuffix(lp, " 1772366401500"), lp)

	action := line(SamplePoint(info, core.TelemetrySample{Type: core.SamplePlayerAction, Action: core.ActionJump, Timestamp: start}))
	assert.True(t, strings.HasPrefix(action, "player_action,"), action)
}

func TestDecisionAndResultPoints(t *testing.T) {
	d := line(DecisionPoint(info, core.Decision{Type: core.DecisionRefuel, TimestampMS: 2000, Success: true}))
	assert.Contains(t, d, "type=refuel")
	assert.Contains(t, d, "success=true")
	assert.Contains(t, d, "1772366402000")

	r := line(ResultPoint(info, core.SessionResult{EndTime: start.Add(time.Minute), Reason: core.EndManual, Score: 900, VictimsSaved: 2, CompletionStatus: core.StatusSuccess}))
	assert.True(t, strings.HasPrefix(r, "session_result,"), r)
	assert.Contains(t, r, "reason=manual")
	assert.Contains(t, r, "final_score=900i")
	assert.Contains(t, r, "victims_saved=2i")
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{Enabled: false}, "")
	assert.Error(t, m.Connect(context.Background()))
}

func unreachable(t *testing.T) config.InfluxConfig {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     u.Hostname(),
		Port:     u.Port(),
		Org:      "reacture",
		Bucket:   "robot-telemetry",
	}
}

func TestConnect_FallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.lp.gz")
	m := NewManager(zerolog.Nop(), unreachable(t), path)
	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)
	require.NotNil(t, m.BackupWriter)

	rec := NewRecorder(m)
	require.NoError(t, rec.StartSession(&info))
	require.NoError(t, rec.RecordSample(&core.TelemetrySample{Type: core.SampleRobotState, Event: core.EventGameStart, Timestamp: start}))
	require.NoError(t, rec.RecordFrame(&core.FrameRecord{}))
	require.NoError(t, rec.RecordDecision(&core.Decision{Type: core.DecisionInspect}))
	require.NoError(t, rec.EndSession(&core.SessionResult{EndTime: start}))
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "robot_state,"))
	assert.True(t, strings.HasPrefix(lines[1], "decision,"))
	assert.True(t, strings.HasPrefix(lines[2], "session_result,"))
}

func TestWritePoint_NoSink(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{Bucket: "b"}, "")
	assert.Error(t, m.WritePoint("b", influxdb2_write.NewPointWithMeasurement("x").AddField("v", 1)))
}
