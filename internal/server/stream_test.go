// internal/server/stream_test.go
package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/reacture/engine/internal/config"
	wsstore "github.com/reacture/engine/internal/storage/websocket"
	"github.com/reacture/engine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamServer(t *testing.T, secret string) (*Server, string) {
	t.Helper()
	s := New(config.ServerConfig{DataDir: t.TempDir(), Secret: secret}, nil)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
}

func TestStream_LiveSessionLifecycle(t *testing.T) {
	s, url := streamServer(t, "k")
	b := wsstore.New(wsstore.Config{URL: url, Secret: "k"}, nil)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.StartSession(&core.SessionInfo{ID: "live_1", Environment: "tsunami", PlayerID: "p1"}))
	live := s.live.list()
	require.Len(t, live, 1, "start is registered before it is acknowledged")
	assert.Equal(t, "tsunami", live[0].Info.Environment)

	require.NoError(t, b.RecordSample(&core.TelemetrySample{
		Type:    core.SampleRobotState,
		Event:   core.EventPeriodic,
		Battery: 77,
		Zone:    core.ZoneDanger,
		Robot:   core.RobotSnapshot{Position: core.Position3D{X: 2, Y: 1, Z: -3}},
	}))
	require.NoError(t, b.RecordFrame(&core.FrameRecord{Index: 0, Width: 1, Height: 1, Pixels: []byte{1, 2, 3}}))
	require.NoError(t, b.RecordDecision(&core.Decision{Type: core.DecisionRescue, Success: true}))

	assert.Eventually(t, func() bool {
		l := s.live.list()
		return len(l) == 1 && l[0].Samples == 1 && l[0].Frames == 1 && l[0].Decisions == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := decode[liveResponse](t, get(t, s, "/api/live"))
	require.Len(t, got.Sessions, 1)
	assert.InDelta(t, 77, got.Sessions[0].Battery, 1e-9)
	assert.Equal(t, core.ZoneDanger, got.Sessions[0].Zone)
	assert.Equal(t, 1, got.Sessions[0].Successes)
	assert.Equal(t, core.Position3D{X: 2, Y: 1, Z: -3}, got.Sessions[0].Position)

	require.NoError(t, b.EndSession(&core.SessionResult{Score: 10, Reason: core.EndManual}))
	assert.Empty(t, s.live.list())
}

func TestStream_DisconnectDropsSession(t *testing.T) {
	s, url := streamServer(t, "")
	b := wsstore.New(wsstore.Config{URL: url}, nil)
	require.NoError(t, b.Init())
	require.NoError(t, b.StartSession(&core.SessionInfo{ID: "gone"}))
	require.Len(t, s.live.list(), 1)

	require.NoError(t, b.Close())
	assert.Eventually(t, func() bool { return len(s.live.list()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStream_RejectsWrongSecret(t *testing.T) {
	_, url := streamServer(t, "k")
	b := wsstore.New(wsstore.Config{URL: url, Secret: "wrong"}, nil)
	assert.Error(t, b.Init())
}

func TestLiveSessions_UpdateUnknownIsNoop(t *testing.T) {
	l := newLiveSessions()
	l.update("missing", func(ls *LiveSession) { ls.Samples++ })
	assert.Empty(t, l.list())

	l.start(core.SessionInfo{ID: "b"})
	l.start(core.SessionInfo{ID: "a"})
	ids := []string{}
	for _, ls := range l.list() {
		ids = append(ids, ls.Info.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}
