package l3planes

import (
	"math"
	"testing"

	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestAssign_NearestWithinThreshold(t *testing.T) {
	t.Parallel()

	cents := []Centroid{{ID: 0, Direction: axisX}, {ID: 1, Direction: axisZ}}
	cos := math.Cos(DegreesToRadians(20))

	id, ok := Assign(r3.Unit(tilt(axisZ, axisX, DegreesToRadians(5))), cents, cos)
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	id, ok = Assign(axisY, cents, cos)
	assert.False(t, ok)
	assert.Equal(t, NoMatch, id)
}

func TestAssign_NoCentroids(t *testing.T) {
	t.Parallel()

	id, ok := Assign(axisZ, nil, math.Cos(0.5))
	assert.False(t, ok)
	assert.Equal(t, NoMatch, id)
}

func TestAssign_TieBreaksToLowestID(t *testing.T) {
	t.Parallel()

	// n is equidistant from X and Y.
	n := r3.Unit(r3.Vec{X: 1, Y: 1})
	cos := math.Cos(DegreesToRadians(60))

	id, ok := Assign(n, []Centroid{{ID: 7, Direction: axisY}, {ID: 3, Direction: axisX}}, cos)
	require.True(t, ok)
	assert.Equal(t, int64(3), id)

	id, ok = Assign(n, []Centroid{{ID: 3, Direction: axisX}, {ID: 7, Direction: axisY}}, cos)
	require.True(t, ok)
	assert.Equal(t, int64(3), id)
}

func TestAssign_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	for _, deg := range []float64{5, 10, 30, 60} {
		theta := DegreesToRadians(deg)
		cos := math.Cos(theta)
		cents := []Centroid{{ID: 0, Direction: axisZ}}

		on := r3.Vec{X: math.Sin(theta), Z: math.Cos(theta)}
		id, ok := Assign(on, cents, cos)
		assert.True(t, ok, "angle exactly %g° must match", deg)
		assert.Equal(t, int64(0), id)

		past := theta + 1e-6
		off := r3.Vec{X: math.Sin(past), Z: math.Cos(past)}
		_, ok = Assign(off, cents, cos)
		assert.False(t, ok, "angle just beyond %g° must not match", deg)
	}
}

func TestAssignFrame_LabelsAndSentinels(t *testing.T) {
	t.Parallel()

	f := l2normals.NewField(4, 1)
	f.Set(0, 0, axisZ, 1)
	f.Set(1, 0, axisX, 1)
	f.Set(2, 0, axisY, 1)
	// (3, 0) stays invalid.

	cents := []Centroid{{ID: 4, Direction: axisZ}, {ID: 9, Direction: axisX}}
	labels := AssignFrame(f, cents, math.Cos(DegreesToRadians(10)), 2)
	assert.Equal(t, []int64{4, 9, NoMatch, Unassigned}, labels)
}

func TestAssignFrame_IdempotentAndWorkerIndependent(t *testing.T) {
	t.Parallel()

	rng := newRand(11)
	f := noisyScene(rng, 120, 90, 25)
	cents := []Centroid{
		{ID: 0, Direction: axisX},
		{ID: 1, Direction: axisY},
		{ID: 2, Direction: axisZ},
	}
	cos := math.Cos(DegreesToRadians(15))

	first := AssignFrame(f, cents, cos, 1)
	again := AssignFrame(f, cents, cos, 1)
	parallel := AssignFrame(f, cents, cos, 8)

	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("repeat assignment differs (-first +again):\n%s", diff)
	}
	if diff := cmp.Diff(first, parallel); diff != "" {
		t.Errorf("parallel assignment differs (-serial +parallel):\n%s", diff)
	}
	assert.Contains(t, first, NoMatch, "jitter beyond the threshold should leave unmatched pixels")
}
