package world

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/reacture/engine/pkg/core"
)

// Generation parameters of the procedural arena.
const (
	pilesMin, pilesSpan           = 7, 5
	pileArea                      = 60.0
	piecesMin, piecesSpan         = 12, 15
	spreadMin, spreadSpan         = 5.0, 3.0
	piecesPerLayer                = 6
	layerHeight                   = 0.5
	victimChance                  = 0.8
	victimY                       = 0.4
	victimDecayMin, victimDecaySp = 0.3, 0.4

	zoneArea                          = 50.0
	cautionMin, cautionSpan           = 4, 3
	cautionRadiusMin, cautionRadiusSp = 3.0, 3.0
	dangerMin, dangerSpan             = 2, 2
	dangerRadiusMin, dangerRadiusSp   = 2.0, 2.0

	stationDistMin, stationDistSpan = 20.0, 20.0
	stationY                        = 1.0

	// SettleHeight is the resting elevation of a grounded piece.
	SettleHeight = 0.5
)

// ErrUnknownEnvironment is returned for an environment key that is not registered.
var ErrUnknownEnvironment = errors.New("unknown environment")

// GenerateFor looks up the environment registered under key and generates an arena for it.
func GenerateFor(key string, seed uint64) (*World, error) {
	env, ok := core.LookupEnvironment(key)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownEnvironment, key)
	}
	return Generate(env, seed), nil
}

// Generate builds a random arena for env. The same seed always yields the same arena.
func Generate(env core.Environment, seed uint64) *World {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	w := New(env)

	piles := pilesMin + rng.IntN(pilesSpan)
	for pile := range piles {
		px := (rng.Float64() - 0.5) * pileArea
		pz := (rng.Float64() - 0.5) * pileArea
		pieces := piecesMin + rng.IntN(piecesSpan)
		spread := spreadMin + rng.Float64()*spreadSpan

		for j := range pieces {
			width := 1 + rng.Float64()*2.5
			height := 0.3 + rng.Float64()*0.8
			depth := 1 + rng.Float64()*2.5
			angle := rng.Float64() * 2 * math.Pi
			dist := rng.Float64() * spread
			layer := float64(j / piecesPerLayer)

			p := &core.RubblePiece{
				PileID: pile,
				Position: core.Vec3{
					px + math.Cos(angle)*dist,
					layer*layerHeight + rng.Float64()*0.3,
					pz + math.Sin(angle)*dist,
				},
				Rotation: core.Vec3{
					(rng.Float64() - 0.5) * math.Pi * 0.4,
					rng.Float64() * 2 * math.Pi,
					(rng.Float64() - 0.5) * math.Pi * 0.3,
				},
				Width:  width,
				Height: height,
				Depth:  depth,
			}
			p.Grounded = p.Position[1] <= SettleHeight
			w.AddRubble(p)
		}

		if rng.Float64() < victimChance {
			w.AddVictim(&core.Victim{
				PileID:    pile,
				Position:  core.Vec3{px, victimY, pz},
				Health:    core.MaxHealth,
				DecayRate: victimDecayMin + rng.Float64()*victimDecaySp,
			})
		}
	}

	addZones(w, rng, cautionMin+rng.IntN(cautionSpan), cautionRadiusMin, cautionRadiusSp, core.ZoneCaution, "caution")
	addZones(w, rng, dangerMin+rng.IntN(dangerSpan), dangerRadiusMin, dangerRadiusSp, core.ZoneDanger, env.HazardType)

	angle := rng.Float64() * 2 * math.Pi
	dist := stationDistMin + rng.Float64()*stationDistSpan
	w.Station = core.FuelStation{Position: core.Vec3{math.Cos(angle) * dist, stationY, math.Sin(angle) * dist}}

	if err := w.Validate(); err != nil {
		panic(fmt.Sprintf("world: generated invalid arena: %v", err))
	}
	return w
}

func addZones(w *World, rng *rand.Rand, n int, rmin, rspan float64, class core.ZoneClass, hazard string) {
	for range n {
		w.AddZone(core.HazardZone{
			Center:     mgl64.Vec2{(rng.Float64() - 0.5) * zoneArea, (rng.Float64() - 0.5) * zoneArea},
			Radius:     rmin + rng.Float64()*rspan,
			Class:      class,
			HazardType: hazard,
		})
	}
}
