package main

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/reacture/engine/internal/config"
	"github.com/reacture/engine/internal/dispatcher"
	"github.com/reacture/engine/internal/logging"
	"github.com/reacture/engine/internal/session"
	"github.com/reacture/engine/internal/storage"
	"github.com/reacture/engine/internal/storage/memory"
	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyWorld() *world.World {
	env, _ := core.LookupEnvironment("earthquake")
	w := world.New(env)
	w.Station.Position = core.Vec3{30, 1, 0}
	return w
}

func TestHeadingTo(t *testing.T) {
	origin := core.Vec3{0, 1, 0}
	assert.InDelta(t, 0, headingTo(origin, core.Vec3{0, 1, -10}), 1e-9)
	assert.InDelta(t, math.Pi/2, headingTo(origin, core.Vec3{-10, 1, 0}), 1e-9)
	assert.InDelta(t, -math.Pi/2, headingTo(origin, core.Vec3{10, 1, 0}), 1e-9)
}

func TestWrapAngle(t *testing.T) {
	assert.InDelta(t, -math.Pi/2, wrapAngle(3*math.Pi/2), 1e-9)
	assert.InDelta(t, math.Pi/2, wrapAngle(-3*math.Pi/2), 1e-9)
	assert.InDelta(t, 0.3, wrapAngle(0.3), 1e-9)
}

func TestSteer_TurnsThenWalks(t *testing.T) {
	r := core.NewRobot()
	target := core.Vec3{-10, 1, 0}

	in := steer(r, target, 0)
	assert.False(t, in.Forward, "not facing the target yet")
	assert.Zero(t, in.MouseDY)

	r.Yaw -= in.MouseDX * session.MouseSensitivity
	assert.InDelta(t, math.Pi/2, r.Yaw, 1e-9)

	in = steer(r, target, 0)
	assert.True(t, in.Forward)
	assert.InDelta(t, 0, in.MouseDX, 1e-6)
}

func TestSteer_Pitch(t *testing.T) {
	r := core.NewRobot()
	r.Pitch = 0.2
	in := steer(r, core.Vec3{0, 1, -10}, -0.3)
	r.Pitch -= in.MouseDY * session.MouseSensitivity
	assert.InDelta(t, -0.3, r.Pitch, 1e-9)
}

func TestPitchTo(t *testing.T) {
	eye := core.Vec3{0, 2.5, 0}
	assert.InDelta(t, 0, pitchTo(eye, core.Vec3{0, 2.5, -3}), 1e-9)
	assert.InDelta(t, -math.Pi/4, pitchTo(eye, core.Vec3{0, 0.5, -2}), 1e-9)
}

// The camera sits well above waist-high rubble, so digging only works when
// the autopilot looks down at the buried victim first.
func TestPlan_DigsOutBuriedVictim(t *testing.T) {
	w := emptyWorld()
	w.AddVictim(&core.Victim{Position: core.Vec3{0, 0.4, -4}, Health: 100, DecayRate: 0.01})
	w.AddRubble(&core.RubblePiece{Position: core.Vec3{0, 0.6, -3}, Width: 2, Height: 1.2, Depth: 1, Grounded: true})
	sess, err := session.New(session.Config{Seed: 1}, session.WithWorld(w))
	require.NoError(t, err)

	_, err = sess.DestroyRubble()
	require.ErrorIs(t, err, session.ErrNoTarget, "a level view passes over the piece")

	a := newAutopilot()
	p := a.Plan(w, time.Second)
	require.Equal(t, []string{dispatcher.CmdDestroy}, p.Commands)
	sess.Tick(1.0/60, p.Input)
	assert.InDelta(t, math.Atan2(0.4-2.5, 4), sess.Robot().Pitch, 1e-6)

	id, err := sess.DestroyRubble()
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(w *world.World)
		want    []string
		forward bool
	}{
		{
			name: "rescue in range",
			setup: func(w *world.World) {
				w.AddVictim(&core.Victim{Position: core.Vec3{0, 0.4, -2}, Health: 100, Accessible: true})
			},
			want: []string{dispatcher.CmdRescue},
		},
		{
			name: "dig out a buried victim",
			setup: func(w *world.World) {
				w.AddVictim(&core.Victim{Position: core.Vec3{0, 0.4, -4}, Health: 100})
			},
			want: []string{dispatcher.CmdDestroy},
		},
		{
			name: "head for a distant victim",
			setup: func(w *world.World) {
				w.AddVictim(&core.Victim{Position: core.Vec3{0, 0.4, -20}, Health: 100})
			},
			forward: true,
		},
		{
			name: "refuel at the station",
			setup: func(w *world.World) {
				w.Robot.Fuel = 10
				w.Station.Position = core.Vec3{1, 1, 0}
			},
			want: []string{dispatcher.CmdRefuel},
		},
		{
			name: "low fuel goes to the station first",
			setup: func(w *world.World) {
				w.Robot.Fuel = 10
				w.Station.Position = core.Vec3{0, 1, -30}
				w.AddVictim(&core.Victim{Position: core.Vec3{0, 0.4, -2}, Health: 100, Accessible: true})
			},
			forward: true,
		},
		{
			name: "ignores rescued victims",
			setup: func(w *world.World) {
				w.AddVictim(&core.Victim{Position: core.Vec3{0, 0.4, -2}, State: core.VictimRescued})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := emptyWorld()
			tt.setup(w)
			p := newAutopilot().Plan(w, time.Second)
			assert.Equal(t, tt.want, p.Commands)
			assert.Equal(t, tt.forward, p.Input.Forward)
		})
	}
}

func TestPlan_InspectsPeriodically(t *testing.T) {
	w := emptyWorld()
	a := newAutopilot()
	assert.Empty(t, a.Plan(w, 10*time.Second).Commands)
	assert.Equal(t, []string{dispatcher.CmdInspect}, a.Plan(w, 20*time.Second).Commands)
	assert.Empty(t, a.Plan(w, 25*time.Second).Commands)
	assert.Equal(t, []string{dispatcher.CmdInspect}, a.Plan(w, 40*time.Second).Commands)
}

func TestPlan_Unsticks(t *testing.T) {
	w := emptyWorld()
	w.AddVictim(&core.Victim{Position: core.Vec3{0, 0.4, -20}, Health: 100})
	a := newAutopilot()
	for range stuckAfter - 1 {
		assert.Empty(t, a.Plan(w, 0).Commands)
	}
	assert.Equal(t, []string{dispatcher.CmdDestroy, dispatcher.CmdJump}, a.Plan(w, 0).Commands)
	assert.Empty(t, a.Plan(w, 0).Commands, "counter restarts")
}

func TestObserve(t *testing.T) {
	a := newAutopilot()
	a.Observe(dispatcher.Result{Command: dispatcher.CmdRescue, Outcome: "unavailable"})
	a.Observe(dispatcher.Result{Command: dispatcher.CmdRescue, Outcome: "ok"})
	assert.Equal(t, 1, a.failed[dispatcher.CmdRescue])
}

func TestDrive_EndsAfterDuration(t *testing.T) {
	out := t.TempDir()
	backend := memory.New(config.MemoryConfig{OutputDir: out}, nil)
	require.NoError(t, backend.Init())

	sess, err := session.New(session.Config{Environment: "tsunami", Seed: 7}, session.WithRecorder(backend))
	require.NoError(t, err)
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer d.Close()
	dispatcher.BindSession(d, sess)

	rt := &app{logger: slog.Default(), context: &logging.RunContext{}}
	res, err := drive(context.Background(), d, sess, config.SimulationConfig{Duration: 2 * time.Second, TickRate: 50}, rt)
	require.NoError(t, err)

	assert.True(t, sess.Ended())
	assert.Equal(t, core.EndManual, res.Reason)
	assert.InDelta(t, 2, res.DurationS, 0.05)
	assert.NotEmpty(t, sess.Log().Samples())

	up, ok := uploadable(backend)
	require.True(t, ok)
	assert.Equal(t, sess.Info().ID, up.GetExportMetadata().SessionID)
}

func TestDrive_Cancelled(t *testing.T) {
	sess, err := session.New(session.Config{Environment: "wildfire", Seed: 3})
	require.NoError(t, err)
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer d.Close()
	dispatcher.BindSession(d, sess)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rt := &app{logger: slog.Default(), context: &logging.RunContext{}}
	res, err := drive(ctx, d, sess, config.SimulationConfig{Duration: time.Minute, TickRate: 60}, rt)
	require.NoError(t, err)
	assert.Zero(t, res.DurationS)
	assert.True(t, sess.Ended())
}

func TestUploadable(t *testing.T) {
	fresh := memory.New(config.MemoryConfig{OutputDir: t.TempDir()}, nil)
	_, ok := uploadable(fresh)
	assert.False(t, ok, "nothing exported yet")

	_, ok = uploadable(storage.Multi{fresh})
	assert.False(t, ok)
}
