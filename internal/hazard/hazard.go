// Package hazard classifies the robot's position against the arena's hazard
// zones and applies their effects.
package hazard

import (
	"github.com/reacture/engine/internal/physics"
	"github.com/reacture/engine/pkg/core"
)

// DangerDamage is the per-window damage of a Danger zone before the
// environment multiplier.
const DangerDamage = 2.0

// Membership is the set of zones a point lies in.
type Membership struct {
	Class     core.ZoneClass // most severe zone occupied
	InCaution bool
	InDanger  bool
	Zones     []int
}

// Classify tests p against every zone. Overlapping zones are allowed; the
// most severe one wins.
func Classify(zones []core.HazardZone, p core.Vec3) Membership {
	var m Membership
	for _, z := range zones {
		if !z.Contains(p) {
			continue
		}
		m.Zones = append(m.Zones, z.ID)
		switch z.Class {
		case core.ZoneCaution:
			m.InCaution = true
		case core.ZoneDanger:
			m.InDanger = true
		}
		m.Class = max(m.Class, z.Class)
	}
	return m
}

// Result reports one evaluation.
type Result struct {
	Membership
	Previous core.ZoneClass
	Changed  bool
	Damage   float64
}

// Evaluate updates the robot's zone classification and applies Danger zone
// damage, gated by the cooldown shared with collisions.
func Evaluate(r *core.Robot, zones []core.HazardZone, env core.Environment) Result {
	res := Result{Membership: Classify(zones, r.Position), Previous: r.Zone}
	if res.Class != r.Zone {
		r.Zone = res.Class
		res.Changed = true
	}
	if res.InDanger && r.DamageCooldown <= 0 {
		res.Damage = DangerDamage * env.DamageMultiplier
		r.Damage(res.Damage)
		r.DamageCooldown = physics.DamageCooldown
	}
	return res
}
