package geo

import (
	"testing"

	"github.com/reacture/engine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func periodic(x, z float64) core.TelemetrySample {
	return core.TelemetrySample{
		Type:  core.SampleRobotState,
		Event: core.EventPeriodic,
		Robot: core.RobotSnapshot{Position: core.Position3D{X: x, Y: 1, Z: z}},
	}
}

func TestTrajectoryFromSamples(t *testing.T) {
	samples := []core.TelemetrySample{
		periodic(0, 0),
		{Type: core.SamplePlayerAction, Action: core.ActionJump, Robot: core.RobotSnapshot{Position: core.Position3D{X: 9, Z: 9}}},
		periodic(3, 0),
		periodic(3, 0),
		periodic(3, -4),
	}
	tr := TrajectoryFromSamples(samples)
	require.Len(t, tr.Points, 4)

	ls := tr.LineString()
	assert.Equal(t, 3, ls.Coordinates().Length())
	assert.InDelta(t, 7.0, tr.Length(), 1e-9)
	assert.Equal(t, "LINESTRING(0 0,3 0,3 4)", tr.WKT())
}

func TestTrajectory_Degenerate(t *testing.T) {
	assert.True(t, Trajectory{}.LineString().IsEmpty())

	still := TrajectoryFromSamples([]core.TelemetrySample{periodic(1, 1), periodic(1, 1)})
	assert.True(t, still.LineString().IsEmpty())
	assert.Zero(t, still.Length())
}

func TestTrajectory_GeoReferenced(t *testing.T) {
	r := NewReferencer(10, 45)
	tr := Trajectory{Points: []core.Vec3{{0, 1, 0}, {0, 1, -100}}}

	ll := tr.LonLat(r)
	require.Len(t, ll, 2)
	assert.InDelta(t, 10, ll[0][0], 1e-9)
	assert.Greater(t, ll[1][1], ll[0][1])
	assert.InDelta(t, 100.0/111_000, ll[1][1]-ll[0][1], 1e-4)
}
