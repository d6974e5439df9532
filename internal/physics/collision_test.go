package physics

import (
	"math/rand/v2"
	"testing"

	"github.com/reacture/engine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func piece(id int, x, y, z, size float64) *core.RubblePiece {
	return &core.RubblePiece{ID: id, Position: core.Vec3{x, y, z}, Width: size, Height: size, Depth: size}
}

func TestResolveCollisions_SymmetricCancel(t *testing.T) {
	r := core.NewRobot()
	start := r.Position
	pieces := []*core.RubblePiece{
		piece(0, 1, 1, 0, 1),
		piece(1, -1, 1, 0, 1),
	}
	res := ResolveCollisions(&r, pieces)
	assert.Len(t, res.Contacts, 2)
	assert.InDelta(t, 0, res.Push.Len(), 1e-12)
	assert.Equal(t, start, r.Position)
}

func TestResolveCollisions_PushesAway(t *testing.T) {
	r := core.NewRobot()
	res := ResolveCollisions(&r, []*core.RubblePiece{piece(0, 1, 1, 0, 1)})
	require.True(t, res.Collided())
	assert.InDelta(t, -PushForce, res.Push[0], 1e-12)
	assert.InDelta(t, -PushForce, r.Position[0], 1e-12)
}

func TestResolveCollisions_NoOverlap(t *testing.T) {
	r := core.NewRobot()
	r.Velocity = core.Vec3{5, 0, 0}
	res := ResolveCollisions(&r, []*core.RubblePiece{piece(0, 5, 1, 0, 1)})
	assert.False(t, res.Collided())
	assert.Equal(t, core.MaxHealth, r.Health)
}

func TestResolveCollisions_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	var pieces []*core.RubblePiece
	for i := range 12 {
		pieces = append(pieces, piece(i, rng.Float64()*2-1, 1+rng.Float64()*0.4-0.2, rng.Float64()*2-1, 1+rng.Float64()*2))
	}
	first := core.NewRobot()
	want := ResolveCollisions(&first, pieces)

	for range 10 {
		shuffled := append([]*core.RubblePiece(nil), pieces...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		r := core.NewRobot()
		got := ResolveCollisions(&r, shuffled)
		assert.Equal(t, want.Push, got.Push)
		assert.Equal(t, want.Contacts, got.Contacts)
	}
}

func TestResolveCollisions_Damage(t *testing.T) {
	tests := []struct {
		name     string
		velocity core.Vec3
		cooldown float64
		want     float64
	}{
		{"capped", core.Vec3{4, 0, 0}, 0, MaxCollisionDamage},
		{"proportional", core.Vec3{1, 0, 0}, 0, 5},
		{"below threshold", core.Vec3{0.05, 0, 0}, 0, 0},
		{"cooling down", core.Vec3{4, 0, 0}, 0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := core.NewRobot()
			r.Velocity = tt.velocity
			r.DamageCooldown = tt.cooldown
			res := ResolveCollisions(&r, []*core.RubblePiece{piece(0, 1, 1, 0, 1)})
			assert.InDelta(t, tt.want, res.Damage, 1e-9)
			assert.InDelta(t, core.MaxHealth-tt.want, r.Health, 1e-9)
			if tt.want > 0 {
				assert.Equal(t, DamageCooldown, r.DamageCooldown)
			}
		})
	}
}

func TestResolveCollisions_DamageOncePerWindow(t *testing.T) {
	r := core.NewRobot()
	r.Velocity = core.Vec3{4, 0, 0}
	pieces := []*core.RubblePiece{piece(0, 1, 1, 0.2, 1), piece(1, 1, 1, -0.2, 1)}
	res := ResolveCollisions(&r, pieces)
	assert.Len(t, res.Contacts, 2)
	assert.Equal(t, MaxCollisionDamage, res.Damage, "several contacts in one pass damage once")
}

func TestResolveCollisions_Restitution(t *testing.T) {
	r := core.NewRobot()
	r.Velocity = core.Vec3{2, 0, 0}
	ResolveCollisions(&r, []*core.RubblePiece{piece(0, 1, 1, 0, 1)})
	// normal is -x; half of the inward component is removed
	assert.InDelta(t, 1.0, r.Velocity[0], 1e-9)

	away := core.NewRobot()
	away.Velocity = core.Vec3{-2, 0, 0}
	ResolveCollisions(&away, []*core.RubblePiece{piece(0, 1, 1, 0, 1)})
	assert.InDelta(t, -2.0, away.Velocity[0], 1e-9, "moving away keeps velocity")
}

func TestResolveCollisions_SkipsDestroyed(t *testing.T) {
	r := core.NewRobot()
	p := piece(0, 1, 1, 0, 1)
	p.Destroyed = true
	res := ResolveCollisions(&r, []*core.RubblePiece{p})
	assert.False(t, res.Collided())
}
