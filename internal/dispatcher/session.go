package dispatcher

import (
	"github.com/reacture/engine/internal/session"
	"github.com/reacture/engine/pkg/core"
)

// Session commands.
const (
	CmdTick    = "tick"
	CmdLook    = "look"
	CmdJump    = "jump"
	CmdRescue  = "rescue"
	CmdRefuel  = "refuel"
	CmdInspect = "inspect"
	CmdDestroy = "destroy"
	CmdPause   = "pause"
	CmdResume  = "resume"
	CmdEnd     = "end"
	CmdStatus  = "status"
)

// TickArgs is the payload of a tick command. Delta is raw seconds.
type TickArgs struct {
	Delta float64        `json:"delta"`
	Input core.InputState `json:"input"`
}

// LookArgs is the payload of a look command.
type LookArgs struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Result is what a session command returns. Unmet action preconditions are
// reported here with a nil error; only faults are returned as errors.
type Result struct {
	Command string `json:"command"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
	Value   any    `json:"value,omitempty"`
}

// Status is the value of a status command.
type Status struct {
	SessionID string  `json:"session_id"`
	ElapsedS  float64 `json:"elapsed_s"`
	Score     int     `json:"score"`
	Health    float64 `json:"health"`
	Fuel      float64 `json:"fuel"`
	Paused    bool    `json:"paused"`
	Ended     bool    `json:"ended"`
	Samples   int     `json:"samples"`
}

func outcome(command string, value any, err error) (any, error) {
	res := Result{Command: command, Outcome: session.Outcome(err), Value: value}
	if err != nil {
		if res.Outcome == "error" {
			return nil, err
		}
		res.Message = err.Error()
		res.Value = nil
	}
	return res, nil
}

// BindSession registers every session command on d. Only end is logged, since
// tick fires every frame. opts apply to all commands.
func BindSession(d *Dispatcher, s *session.Session, opts ...Option) {
	logged := append([]Option{Logged()}, opts...)

	d.Register(CmdTick, func(e Event) (any, error) {
		var args TickArgs
		if err := e.Decode(&args); err != nil {
			return nil, err
		}
		rep := s.Tick(args.Delta, args.Input)
		return outcome(CmdTick, rep, nil)
	}, opts...)

	d.Register(CmdLook, func(e Event) (any, error) {
		var args LookArgs
		if err := e.Decode(&args); err != nil {
			return nil, err
		}
		s.Look(args.DX, args.DY)
		return outcome(CmdLook, nil, nil)
	}, opts...)

	d.Register(CmdJump, func(e Event) (any, error) {
		return outcome(CmdJump, s.Jump(), nil)
	}, opts...)

	d.Register(CmdRescue, func(e Event) (any, error) {
		r, err := s.Rescue()
		if err != nil {
			return outcome(CmdRescue, nil, err)
		}
		return outcome(CmdRescue, map[string]any{
			"victim_id": r.Victim.ID,
			"distance":  r.Distance,
			"score":     r.Score,
		}, nil)
	}, opts...)

	d.Register(CmdRefuel, func(e Event) (any, error) {
		return outcome(CmdRefuel, nil, s.Refuel())
	}, opts...)

	d.Register(CmdInspect, func(e Event) (any, error) {
		n, err := s.Inspect()
		return outcome(CmdInspect, n, err)
	}, opts...)

	d.Register(CmdDestroy, func(e Event) (any, error) {
		id, err := s.DestroyRubble()
		return outcome(CmdDestroy, id, err)
	}, opts...)

	d.Register(CmdPause, func(e Event) (any, error) {
		return outcome(CmdPause, nil, s.Pause())
	}, opts...)

	d.Register(CmdResume, func(e Event) (any, error) {
		return outcome(CmdResume, nil, s.Resume())
	}, opts...)

	d.Register(CmdEnd, func(e Event) (any, error) {
		return outcome(CmdEnd, s.End(core.EndManual), nil)
	}, logged...)

	d.Register(CmdStatus, func(e Event) (any, error) {
		robot := s.Robot()
		return outcome(CmdStatus, Status{
			SessionID: s.Info().ID,
			ElapsedS:  s.Elapsed().Seconds(),
			Score:     s.Score(),
			Health:    robot.Health,
			Fuel:      robot.Fuel,
			Paused:    s.Paused(),
			Ended:     s.Ended(),
			Samples:   s.Log().Len(),
		}, nil)
	}, opts...)
}
