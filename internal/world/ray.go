package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/reacture/engine/pkg/core"
)

// Victim body proportions used for ray tests: an upright cylinder centred on
// the victim position.
const (
	VictimRadius = 0.3
	VictimHeight = 0.8
)

// Query selects which entity kinds a ray may hit.
type Query uint8

const (
	QueryRubble Query = 1 << iota
	QueryVictims

	QueryAll = QueryRubble | QueryVictims
)

// Candidates is the entity set a ray is tested against. It is a snapshot:
// destroyed pieces and rescued victims are excluded when it is built, so
// later mutation of the world cannot invalidate an in-flight query.
type Candidates struct {
	Rubble  []core.RubblePiece
	Victims []core.Victim
}

// Hit is the nearest intersection reported by a ray query.
type Hit struct {
	Distance float64
	RubbleID int // -1 when a victim was hit
	VictimID int // -1 when rubble was hit
}

// Snapshot collects the candidates a ray from origin along dir could reach
// within maxRange.
func (w *World) Snapshot(origin, dir core.Vec3, maxRange float64, q Query) Candidates {
	var c Candidates
	if q&QueryRubble != 0 {
		end := origin.Add(dir.Mul(maxRange))
		cx, cz := (origin[0]+end[0])/2, (origin[2]+end[2])/2
		half := max(math.Abs(end[0]-origin[0]), math.Abs(end[2]-origin[2]))/2 + 0.01
		for _, p := range w.RubbleNear(cx, cz, half) {
			c.Rubble = append(c.Rubble, *p)
		}
	}
	if q&QueryVictims != 0 {
		for _, v := range w.Victims {
			if v.State != core.VictimRescued {
				c.Victims = append(c.Victims, *v)
			}
		}
	}
	return c
}

// Raycast returns the nearest intersection within maxRange.
func (w *World) Raycast(origin, dir core.Vec3, maxRange float64, q Query) (Hit, bool) {
	return NearestIntersection(origin, dir, maxRange, w.Snapshot(origin, dir, maxRange, q))
}

// NearestIntersection tests a ray against every candidate and returns the
// closest hit no farther than maxRange. dir must be non-zero; it is normalized.
// A ray starting inside a body does not hit that body.
func NearestIntersection(origin, dir core.Vec3, maxRange float64, c Candidates) (Hit, bool) {
	if dir.Len() == 0 {
		return Hit{}, false
	}
	dir = dir.Normalize()
	best := Hit{Distance: math.Inf(1), RubbleID: -1, VictimID: -1}
	found := false

	for i := range c.Rubble {
		p := &c.Rubble[i]
		if p.Destroyed {
			continue
		}
		if t, ok := rayBox(origin, dir, p); ok && t <= maxRange && t < best.Distance {
			best = Hit{Distance: t, RubbleID: p.ID, VictimID: -1}
			found = true
		}
	}
	for i := range c.Victims {
		v := &c.Victims[i]
		if v.State == core.VictimRescued {
			continue
		}
		if t, ok := rayCylinder(origin, dir, v.Position, VictimRadius, VictimHeight); ok && t <= maxRange && t < best.Distance {
			best = Hit{Distance: t, RubbleID: -1, VictimID: v.ID}
			found = true
		}
	}
	return best, found
}

// rayBox intersects a ray with a piece's box, oriented by its XYZ euler angles.
func rayBox(origin, dir core.Vec3, p *core.RubblePiece) (float64, bool) {
	// world = Rx·Ry·Rz·local, so the transpose takes world into the box frame
	toLocal := mgl64.Rotate3DX(p.Rotation[0]).
		Mul3(mgl64.Rotate3DY(p.Rotation[1])).
		Mul3(mgl64.Rotate3DZ(p.Rotation[2])).
		Transpose()
	o := toLocal.Mul3x1(origin.Sub(p.Position))
	d := toLocal.Mul3x1(dir)
	half := core.Vec3{p.Width / 2, p.Height / 2, p.Depth / 2}

	tmin, tmax := math.Inf(-1), math.Inf(1)
	for axis := range 3 {
		if math.Abs(d[axis]) < 1e-12 {
			if o[axis] < -half[axis] || o[axis] > half[axis] {
				return 0, false
			}
			continue
		}
		t1 := (-half[axis] - o[axis]) / d[axis]
		t2 := (half[axis] - o[axis]) / d[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	if tmin < 0 {
		return 0, false
	}
	return tmin, true
}

// rayCylinder intersects a ray with a capped upright cylinder centred on c.
func rayCylinder(origin, dir, c core.Vec3, radius, height float64) (float64, bool) {
	bottom, top := c[1]-height/2, c[1]+height/2
	ox, oz := origin[0]-c[0], origin[2]-c[2]

	// side range from the circle in xz
	tmin, tmax := math.Inf(-1), math.Inf(1)
	a := dir[0]*dir[0] + dir[2]*dir[2]
	if a < 1e-12 {
		if ox*ox+oz*oz > radius*radius {
			return 0, false
		}
	} else {
		b := 2 * (ox*dir[0] + oz*dir[2])
		cc := ox*ox + oz*oz - radius*radius
		disc := b*b - 4*a*cc
		if disc < 0 {
			return 0, false
		}
		sq := math.Sqrt(disc)
		tmin, tmax = (-b-sq)/(2*a), (-b+sq)/(2*a)
	}

	// cap range from the vertical slab
	if math.Abs(dir[1]) < 1e-12 {
		if origin[1] < bottom || origin[1] > top {
			return 0, false
		}
	} else {
		t1 := (bottom - origin[1]) / dir[1]
		t2 := (top - origin[1]) / dir[1]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}
	if tmin > tmax || tmin < 0 {
		return 0, false
	}
	return tmin, true
}
