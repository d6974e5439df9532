package physics

import (
	"cmp"
	"slices"

	"github.com/reacture/engine/pkg/core"
)

const (
	RobotRadius          = 0.6
	PushForce            = 0.3
	DamageSpeedThreshold = 0.1
	DamagePerSpeed       = 5.0
	MaxCollisionDamage   = 10.0
	DamageCooldown       = 1.0
	Restitution          = 0.5
)

// CollisionResult describes one resolution pass.
type CollisionResult struct {
	Contacts []int     // ids of overlapping pieces
	Push     core.Vec3 // displacement applied to the robot
	Speed    float64   // robot speed at contact
	Damage   float64   // zero unless damage applied this pass
}

// Collided reports whether any piece overlapped the robot.
func (c CollisionResult) Collided() bool {
	return len(c.Contacts) > 0
}

// PushDirection sums the unit vectors from every overlapping piece towards the
// robot. The sum is taken over a sorted id list so the result does not depend
// on the order of pieces.
func PushDirection(pos core.Vec3, pieces []*core.RubblePiece) (core.Vec3, []int) {
	var sum core.Vec3
	var contacts []int
	for _, p := range sortedByID(pieces) {
		if p.Destroyed {
			continue
		}
		away := pos.Sub(p.Position)
		dist := away.Len()
		if dist >= RobotRadius+p.Radius() {
			continue
		}
		contacts = append(contacts, p.ID)
		if dist > 0 {
			sum = sum.Add(away.Mul(1 / dist))
		}
	}
	return sum, contacts
}

// ResolveCollisions pushes r out of every overlapping piece at once. Speed
// dependent damage is gated by the robot's damage cooldown.
func ResolveCollisions(r *core.Robot, pieces []*core.RubblePiece) CollisionResult {
	sum, contacts := PushDirection(r.Position, pieces)
	res := CollisionResult{Contacts: contacts, Speed: r.Speed()}
	if len(contacts) == 0 {
		return res
	}

	if res.Speed > DamageSpeedThreshold && r.DamageCooldown <= 0 {
		res.Damage = min(MaxCollisionDamage, res.Speed*DamagePerSpeed)
		r.Damage(res.Damage)
		r.DamageCooldown = DamageCooldown
	}

	// opposite contacts cancel; nothing to push along
	if sum.Len() < 1e-9 {
		return res
	}
	n := sum.Normalize()
	res.Push = n.Mul(PushForce)
	r.Position = r.Position.Add(res.Push)

	if speed := r.Velocity.Len(); speed > 0 {
		if dot := r.Velocity.Mul(1 / speed).Dot(n); dot < 0 {
			r.Velocity = r.Velocity.Sub(n.Mul(dot * speed * Restitution))
		}
	}
	return res
}

func sortedByID(pieces []*core.RubblePiece) []*core.RubblePiece {
	sorted := slices.Clone(pieces)
	slices.SortFunc(sorted, func(a, b *core.RubblePiece) int { return cmp.Compare(a.ID, b.ID) })
	return sorted
}
