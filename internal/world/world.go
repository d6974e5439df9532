// Package world is the entity store of a session. It owns every entity and
// answers the spatial queries the simulation components need.
package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/reacture/engine/pkg/core"
)

// R-tree fan-out; the arena holds a few hundred pieces at most.
const (
	treeMinChildren = 8
	treeMaxChildren = 16
)

// footprint is the R-tree entry of a rubble piece: its ground-plane bounds.
// Pieces only ever move vertically, so the footprint never changes.
type footprint struct {
	piece *core.RubblePiece
	rect  rtreego.Rect
}

func (f *footprint) Bounds() rtreego.Rect {
	return f.rect
}

// World is the simulation state of one session. It is not safe for concurrent
// use; a session advances it from a single goroutine.
type World struct {
	Env     core.Environment
	Robot   core.Robot
	Rubble  []*core.RubblePiece
	Victims []*core.Victim
	Zones   []core.HazardZone
	Station core.FuelStation

	index      *rtreego.Rtree
	footprints map[int]*footprint
	maxRadius  float64
}

// New creates an empty world with the robot at its spawn point.
func New(env core.Environment) *World {
	return &World{
		Env:        env,
		Robot:      core.NewRobot(),
		index:      rtreego.NewTree(2, treeMinChildren, treeMaxChildren),
		footprints: make(map[int]*footprint),
	}
}

// AddRubble assigns the next rubble id to p and indexes it.
func (w *World) AddRubble(p *core.RubblePiece) *core.RubblePiece {
	p.ID = len(w.Rubble)
	w.Rubble = append(w.Rubble, p)
	w.maxRadius = max(w.maxRadius, p.Radius())
	if p.Destroyed {
		return p
	}
	f := &footprint{piece: p, rect: squareRect(p.Position[0], p.Position[2], halfDiagonal(p))}
	w.footprints[p.ID] = f
	w.index.Insert(f)
	return p
}

// AddVictim assigns the next victim id to v.
func (w *World) AddVictim(v *core.Victim) *core.Victim {
	v.ID = len(w.Victims)
	w.Victims = append(w.Victims, v)
	return v
}

// AddZone assigns the next zone id to z.
func (w *World) AddZone(z core.HazardZone) {
	z.ID = len(w.Zones)
	w.Zones = append(w.Zones, z)
}

// Destroy marks a piece destroyed and drops it from every later query.
// It reports false if the piece was already destroyed.
func (w *World) Destroy(p *core.RubblePiece) bool {
	if p.Destroyed {
		return false
	}
	p.Destroyed = true
	if f, ok := w.footprints[p.ID]; ok {
		w.index.Delete(f)
		delete(w.footprints, p.ID)
	}
	return true
}

// RubbleNear returns the non-destroyed pieces whose footprint may lie within
// radius of (x, z) on the ground plane, ordered by id. Callers apply their own
// exact distance test.
func (w *World) RubbleNear(x, z, radius float64) []*core.RubblePiece {
	found := w.index.SearchIntersect(squareRect(x, z, radius))
	pieces := make([]*core.RubblePiece, 0, len(found))
	for _, s := range found {
		p := s.(*footprint).piece
		if !p.Destroyed {
			pieces = append(pieces, p)
		}
	}
	sort.Slice(pieces, func(i, j int) bool { return pieces[i].ID < pieces[j].ID })
	return pieces
}

// ActiveRubble returns every non-destroyed piece in id order.
func (w *World) ActiveRubble() []*core.RubblePiece {
	pieces := make([]*core.RubblePiece, 0, len(w.Rubble))
	for _, p := range w.Rubble {
		if !p.Destroyed {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// MaxRubbleRadius is the largest collision radius of any piece ever added.
func (w *World) MaxRubbleRadius() float64 {
	return w.maxRadius
}

// IndexedRubble is the number of pieces in the spatial index.
func (w *World) IndexedRubble() int {
	return w.index.Size()
}

// NearestVictim returns the closest victim to from within maxDist that passes
// keep, or nil.
func (w *World) NearestVictim(from core.Vec3, maxDist float64, keep func(*core.Victim) bool) (*core.Victim, float64) {
	var best *core.Victim
	bestDist := math.Inf(1)
	for _, v := range w.Victims {
		if keep != nil && !keep(v) {
			continue
		}
		d := from.Sub(v.Position).Len()
		if d < maxDist && d < bestDist {
			best, bestDist = v, d
		}
	}
	return best, bestDist
}

// VictimCounts tallies victims by state.
func (w *World) VictimCounts() (alive, rescued, died int) {
	for _, v := range w.Victims {
		switch v.State {
		case core.VictimAlive:
			alive++
		case core.VictimRescued:
			rescued++
		case core.VictimDied:
			died++
		}
	}
	return alive, rescued, died
}

// FuelStationDistance is the straight-line distance from the robot to the station.
func (w *World) FuelStationDistance() float64 {
	return w.Robot.Position.Sub(w.Station.Position).Len()
}

// Validate checks map-generation invariants and returns the first violation.
func (w *World) Validate() error {
	piles := make(map[int]bool)
	for _, p := range w.Rubble {
		piles[p.PileID] = true
	}
	for _, v := range w.Victims {
		if v.PileID < 0 || !piles[v.PileID] {
			return fmt.Errorf("victim %d references missing pile %d", v.ID, v.PileID)
		}
		if v.DecayRate <= 0 {
			return fmt.Errorf("victim %d has non-positive decay rate %f", v.ID, v.DecayRate)
		}
	}
	for i, p := range w.Rubble {
		if p.ID != i {
			return fmt.Errorf("rubble at index %d has id %d", i, p.ID)
		}
	}
	return nil
}

func halfDiagonal(p *core.RubblePiece) float64 {
	return math.Hypot(p.Width, p.Depth) / 2
}

func squareRect(x, z, half float64) rtreego.Rect {
	half = max(half, 1e-6)
	r, err := rtreego.NewRect(rtreego.Point{x - half, z - half}, []float64{2 * half, 2 * half})
	if err != nil {
		// lengths are positive by construction
		panic(err)
	}
	return r
}
