// Package geo turns arena coordinates into geometry.
//
// The arena ground plane is XZ with forward -Z. Geometry uses X east and
// Y north, so arena (x, z) maps to (x, -z) and elevation goes to Z.
// Database geometry stays in arena metres; lon/lat (EPSG:4326) is produced
// for the dataset files by pinning the origin to the environment's site.
package geo

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/reacture/engine/pkg/core"
	"github.com/wroge/wgs84"
)

// ArenaXY is the planar geometry coordinate of an arena position.
func ArenaXY(v core.Vec3) geom.XY {
	return geom.XY{X: v[0], Y: -v[2]}
}

// ArenaPoint is an arena position as an XYZ point, elevation in Z.
func ArenaPoint(v core.Vec3) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   ArenaXY(v),
		Z:    v[1],
		Type: geom.DimXYZ,
	})
}

// Referencer pins the arena origin to a site on the globe.
type Referencer struct {
	originX, originY float64 // origin in EPSG:3857
	scale            float64 // 3857 metres per ground metre at the origin latitude
	to3857           func(a, b, c float64) (float64, float64, float64)
	to4326           func(a, b, c float64) (float64, float64, float64)
}

// NewReferencer pins the arena origin at lon/lat.
func NewReferencer(lon, lat float64) *Referencer {
	epsg := wgs84.EPSG()
	r := &Referencer{
		to3857: epsg.Transform(4326, 3857),
		to4326: epsg.Transform(3857, 4326),
		scale:  1 / math.Cos(lat*math.Pi/180),
	}
	r.originX, r.originY, _ = r.to3857(lon, lat, 0)
	return r
}

// ForEnvironment pins the arena to the environment's reference site.
func ForEnvironment(env core.Environment) *Referencer {
	return NewReferencer(env.OriginLongitude, env.OriginLatitude)
}

// LonLat returns the WGS84 longitude and latitude of an arena position.
func (r *Referencer) LonLat(v core.Vec3) (lon, lat float64) {
	xy := ArenaXY(v)
	lon, lat, _ = r.to4326(r.originX+xy.X*r.scale, r.originY+xy.Y*r.scale, 0)
	return lon, lat
}
