package physics

import (
	"testing"

	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stack(t *testing.T) (*world.World, []*core.RubblePiece) {
	t.Helper()
	env, ok := core.LookupEnvironment("earthquake")
	require.True(t, ok)
	w := world.New(env)
	base := w.AddRubble(&core.RubblePiece{Position: core.Vec3{0, 0.5, 0}, Width: 2, Height: 1, Depth: 2, Grounded: true})
	mid := w.AddRubble(&core.RubblePiece{Position: core.Vec3{0.3, 1.5, 0}, Width: 2, Height: 1, Depth: 2})
	top := w.AddRubble(&core.RubblePiece{Position: core.Vec3{0.6, 2.5, 0}, Width: 2, Height: 1, Depth: 2})
	return w, []*core.RubblePiece{base, mid, top}
}

func TestSolveSupport_StableStack(t *testing.T) {
	w, pieces := stack(t)
	for range 100 {
		res := SolveSupport(w)
		assert.Empty(t, res.Falling)
	}
	assert.Equal(t, 1.5, pieces[1].Position[1])
	assert.Equal(t, 2.5, pieces[2].Position[1])
}

func TestSolveSupport_EventualPropagation(t *testing.T) {
	w, pieces := stack(t)
	_, mid, top := pieces[0], pieces[1], pieces[2]
	w.Destroy(pieces[0])

	res := SolveSupport(w)
	assert.Equal(t, []int{mid.ID}, res.Falling, "only the directly unsupported piece reacts first")
	assert.Less(t, mid.Position[1], 1.5)
	assert.Greater(t, mid.Position[1], world.SettleHeight, "the fall is integrated, not instantaneous")
	assert.Equal(t, 2.5, top.Position[1], "the piece above still sees support this pass")

	settled := false
	topFell := false
	for range 500 {
		res = SolveSupport(w)
		for _, id := range res.Settled {
			if id == mid.ID {
				settled = true
			}
		}
		for _, id := range res.Falling {
			if id == top.ID {
				topFell = true
				assert.True(t, settled || mid.Position[1] < 1.5, "top falls only after its support moved away")
			}
		}
		if mid.Grounded && top.Grounded {
			break
		}
	}
	require.True(t, settled)
	assert.True(t, topFell)
	assert.Equal(t, world.SettleHeight, mid.Position[1])
	assert.Equal(t, 0.0, mid.FallingVelocity)
	assert.True(t, top.Grounded)
}

func TestSolveSupport_GroundedIsPermanent(t *testing.T) {
	env, _ := core.LookupEnvironment("tsunami")
	w := world.New(env)
	p := w.AddRubble(&core.RubblePiece{Position: core.Vec3{0, 3, 0}, Width: 1, Height: 1, Depth: 1, Grounded: true})

	SolveSupport(w)
	assert.Equal(t, 3.0, p.Position[1], "grounded pieces are never re-evaluated")
}

func TestSolveSupport_LowPieceGrounds(t *testing.T) {
	env, _ := core.LookupEnvironment("tsunami")
	w := world.New(env)
	p := w.AddRubble(&core.RubblePiece{Position: core.Vec3{0, 0.4, 0}, Width: 1, Height: 1, Depth: 1})

	res := SolveSupport(w)
	assert.Empty(t, res.Falling)
	assert.True(t, p.Grounded)
}

func TestSupported(t *testing.T) {
	p := &core.RubblePiece{Position: core.Vec3{0, 2, 0}}
	tests := []struct {
		name  string
		other core.Vec3
		want  bool
	}{
		{"directly below", core.Vec3{0, 1, 0}, true},
		{"too far sideways", core.Vec3{1.6, 1, 0}, false},
		{"gap too large", core.Vec3{0, -0.1, 0}, false},
		{"above", core.Vec3{0, 3, 0}, false},
		{"same height", core.Vec3{0, 2, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &core.RubblePiece{ID: 1, Position: tt.other}
			assert.Equal(t, tt.want, Supported(p, []*core.RubblePiece{o}))
		})
	}
	assert.True(t, Supported(&core.RubblePiece{Position: core.Vec3{0, 0.6, 0}}, nil), "near ground")
}
