package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/reacture/engine/pkg/core"
)

// Trajectory is the robot ground track of a session.
type Trajectory struct {
	Points []core.Vec3
}

// TrajectoryFromSamples collects the robot positions of the periodic samples
// in order. Event samples repeat nearby positions and are skipped.
func TrajectoryFromSamples(samples []core.TelemetrySample) Trajectory {
	var t Trajectory
	for _, s := range samples {
		if s.Periodic() {
			t.Points = append(t.Points, s.Robot.Position.Vec())
		}
	}
	return t
}

func (t Trajectory) flat(project func(core.Vec3) geom.XY) []float64 {
	coords := make([]float64, 0, len(t.Points)*2)
	var last geom.XY
	for i, p := range t.Points {
		xy := project(p)
		if i > 0 && xy == last {
			continue
		}
		coords = append(coords, xy.X, xy.Y)
		last = xy
	}
	return coords
}

func lineString(coords []float64) geom.LineString {
	if len(coords) < 4 {
		return geom.LineString{}
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}

// LineString is the ground track in arena metres. Consecutive duplicate
// points are dropped; fewer than two distinct points give an empty line.
func (t Trajectory) LineString() geom.LineString {
	return lineString(t.flat(ArenaXY))
}

// Length is the planar ground distance travelled in metres.
func (t Trajectory) Length() float64 {
	return t.LineString().Length()
}

// WKT is the ground track as well-known text.
func (t Trajectory) WKT() string {
	return t.LineString().AsText()
}

// LonLat is the ground track as [lon, lat] pairs.
func (t Trajectory) LonLat(r *Referencer) [][2]float64 {
	out := make([][2]float64, 0, len(t.Points))
	for _, p := range t.Points {
		lon, lat := r.LonLat(p)
		out = append(out, [2]float64{lon, lat})
	}
	return out
}
