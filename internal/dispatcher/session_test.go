package dispatcher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/reacture/engine/internal/session"
	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boundSession(t *testing.T) (*Dispatcher, *session.Session, *world.World) {
	t.Helper()
	env, ok := core.LookupEnvironment("tsunami")
	require.True(t, ok)
	w := world.New(env)
	w.Station = core.FuelStation{Position: core.Vec3{30, 1, 0}}
	w.AddVictim(&core.Victim{Position: core.Vec3{2, 0.4, 0}, Health: 90, DecayRate: 0.5})
	w.AddVictim(&core.Victim{Position: core.Vec3{40, 0.4, 0}, Health: 90, DecayRate: 0.0001})

	s, err := session.New(session.Config{Start: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), Seed: 7}, session.WithWorld(w))
	require.NoError(t, err)

	d, _ := newTestDispatcher(t)
	BindSession(d, s)
	return d, s, w
}

func dispatch(t *testing.T, d *Dispatcher, cmd string, payload any) Result {
	t.Helper()
	e := Event{Command: cmd}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		e.Payload = raw
	}
	res, err := d.Dispatch(e)
	require.NoError(t, err)
	out, ok := res.(Result)
	require.True(t, ok)
	assert.Equal(t, cmd, out.Command)
	return out
}

func TestBindSession_RegistersAll(t *testing.T) {
	d, _, _ := boundSession(t)
	for _, cmd := range []string{CmdTick, CmdLook, CmdJump, CmdRescue, CmdRefuel, CmdInspect, CmdDestroy, CmdPause, CmdResume, CmdEnd, CmdStatus} {
		assert.True(t, d.HasHandler(cmd), cmd)
	}
}

func TestBindSession_TickAndLook(t *testing.T) {
	d, s, w := boundSession(t)

	out := dispatch(t, d, CmdTick, TickArgs{Delta: 0.1, Input: core.InputState{Forward: true}})
	assert.Equal(t, "ok", out.Outcome)
	rep, ok := out.Value.(session.Report)
	require.True(t, ok)
	assert.True(t, rep.Advanced)
	assert.Equal(t, 100*time.Millisecond, s.Elapsed())

	dispatch(t, d, CmdLook, LookArgs{DX: -100})
	assert.InDelta(t, 0.2, w.Robot.Yaw, 1e-9)
}

func TestBindSession_RescueOutcomes(t *testing.T) {
	d, s, _ := boundSession(t)

	out := dispatch(t, d, CmdRescue, nil)
	assert.Equal(t, "ok", out.Outcome)
	value, ok := out.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, value["victim_id"])

	out = dispatch(t, d, CmdRescue, nil)
	assert.Equal(t, "unavailable", out.Outcome)
	assert.Nil(t, out.Value)
	assert.NotEmpty(t, out.Message)
	assert.Equal(t, value["score"], s.Score())
}

func TestBindSession_RefuelTooFar(t *testing.T) {
	d, _, _ := boundSession(t)

	out := dispatch(t, d, CmdRefuel, nil)
	assert.Equal(t, "unavailable", out.Outcome)
}

func TestBindSession_PauseBlocksActions(t *testing.T) {
	d, s, _ := boundSession(t)

	assert.Equal(t, "ok", dispatch(t, d, CmdPause, nil).Outcome)
	assert.True(t, s.Paused())
	assert.Equal(t, "inactive", dispatch(t, d, CmdInspect, nil).Outcome)
	assert.Equal(t, "ok", dispatch(t, d, CmdResume, nil).Outcome)

	out := dispatch(t, d, CmdInspect, nil)
	assert.Equal(t, "ok", out.Outcome)
	assert.Equal(t, 1, out.Value)
}

func TestBindSession_EndAndStatus(t *testing.T) {
	d, s, _ := boundSession(t)

	out := dispatch(t, d, CmdEnd, nil)
	result, ok := out.Value.(core.SessionResult)
	require.True(t, ok)
	assert.Equal(t, core.EndManual, result.Reason)
	assert.True(t, s.Ended())

	status := dispatch(t, d, CmdStatus, nil).Value.(Status)
	assert.True(t, status.Ended)
	assert.Equal(t, s.Info().ID, status.SessionID)
	assert.Equal(t, "inactive", dispatch(t, d, CmdRefuel, nil).Outcome)
}

func TestBindSession_BadPayload(t *testing.T) {
	d, _, _ := boundSession(t)

	_, err := d.Dispatch(Event{Command: CmdTick, Payload: json.RawMessage(`[1,2]`)})
	assert.Error(t, err)
}

func TestBindSession_LogsEndNotTick(t *testing.T) {
	env, ok := core.LookupEnvironment("tsunami")
	require.True(t, ok)
	s, err := session.New(session.Config{Seed: 3}, session.WithWorld(world.New(env)))
	require.NoError(t, err)
	d, logger := newTestDispatcher(t)
	BindSession(d, s)

	dispatch(t, d, CmdTick, TickArgs{Delta: 0.1})
	assert.Empty(t, logger.snapshot())

	dispatch(t, d, CmdEnd, nil)
	msgs := logger.snapshot()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "handling command")
	assert.Contains(t, msgs[1], "command complete")
	assert.Contains(t, msgs[1], CmdEnd)
}
