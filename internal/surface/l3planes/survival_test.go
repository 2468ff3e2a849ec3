package l3planes

import (
	"fmt"
	"math"
	"testing"

	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSurvival_RetirementBoundary(t *testing.T) {
	t.Parallel()

	for _, horizon := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("horizon=%d", horizon), func(t *testing.T) {
			t.Parallel()

			e := mustEngine(t, testConfig(10, horizon, 0.9))
			first := mustStep(t, e, l2normals.Uniform(4, 4, axisZ, 1))
			require.Equal(t, []int64{0}, first.Born)

			for k := 1; k <= horizon+1; k++ {
				res := mustStep(t, e, l2normals.Uniform(4, 4, axisX, 1))
				a, live := e.Cluster(0)
				if k <= horizon {
					require.True(t, live, "unmatched %d ≤ horizon must stay live", k)
					assert.Equal(t, ClusterStale, a.State)
					assert.Equal(t, k, a.SurvivalCounter)
					assert.NotContains(t, res.Retired, int64(0))
				} else {
					assert.False(t, live, "unmatched %d > horizon must retire", k)
					assert.Equal(t, []int64{0}, res.Retired)
					assert.NotContains(t, e.LiveIDs(), int64(0))
				}
			}
		})
	}
}

func TestSurvival_RetiredIDsAreNeverReused(t *testing.T) {
	t.Parallel()

	e := mustEngine(t, testConfig(10, 0, 0.9))
	mustStep(t, e, l2normals.Uniform(3, 3, axisZ, 1)) // born 0
	mustStep(t, e, l2normals.Uniform(3, 3, axisX, 1)) // born 1, 0 retired

	res := mustStep(t, e, l2normals.Uniform(3, 3, axisZ, 1))
	assert.Equal(t, []int64{2}, res.Born, "returning direction must get a fresh ID")
	assert.Equal(t, []int64{1}, res.Retired)
	assert.Equal(t, []int64{2}, e.LiveIDs())
}

func TestSurvival_DecayOfUnmatchedCluster(t *testing.T) {
	t.Parallel()

	const focal = 540.0
	cfg := testConfig(10, 5, 0.9)
	e := mustEngine(t, cfg)
	mustStep(t, e, l2normals.Uniform(4, 4, axisZ, 2))

	for k := 1; k <= 3; k++ {
		mustStep(t, e, l2normals.Uniform(4, 4, axisX, 2))
		a, ok := e.Cluster(0)
		require.True(t, ok)
		decay := math.Pow(0.9, float64(k))
		assert.InDelta(t, 16*decay, a.Count, 1e-9)
		assert.InDelta(t, 16*2/focal*decay, a.Concentration, 1e-9)
		assert.InDelta(t, 1, a.MeanDirection.Z, 1e-12)
		assert.Equal(t, uint64(1), a.LastMatchedFrame)
	}
}

func TestSurvival_MatchedAccumulatesWithPrior(t *testing.T) {
	t.Parallel()

	e := mustEngine(t, testConfig(10, 1, 0.5))
	mustStep(t, e, l2normals.Uniform(2, 2, axisZ, 1))
	mustStep(t, e, l2normals.Uniform(2, 2, axisZ, 1))

	a, ok := e.Cluster(0)
	require.True(t, ok)
	assert.InDelta(t, 4*0.5+4, a.Count, 1e-12)
	assert.Equal(t, ClusterActive, a.State)
	assert.Zero(t, a.SurvivalCounter)
	assert.Equal(t, uint64(2), a.LastMatchedFrame)
}

func TestSurvival_LowCountClustersAreWithheld(t *testing.T) {
	t.Parallel()

	e := mustEngine(t, testConfig(10, 5, 0.5))

	f := l2normals.Uniform(3, 3, axisX, 1)
	f.Set(0, 0, axisZ, 1) // a one-pixel cluster
	first := mustStep(t, e, f)
	require.Len(t, first.Clusters, 2)

	res := mustStep(t, e, l2normals.Uniform(3, 3, axisX, 1))
	require.Len(t, res.Clusters, 1, "decayed count 0.5 must not be reported")
	assert.Equal(t, int64(1), res.Clusters[0].ID)
	assert.InDelta(t, 1.0, res.Clusters[0].Proportion, 1e-12)

	z, live := e.Cluster(0)
	require.True(t, live, "withheld clusters remain live")
	assert.InDelta(t, 0.5, z.Count, 1e-12)
	assert.Zero(t, z.Proportion)

	// A withheld cluster still competes for pixels.
	back := mustStep(t, e, l2normals.Uniform(3, 3, axisZ, 1))
	assert.Empty(t, back.Born)
	assert.Equal(t, int64(0), back.Labels.At(1, 1))
}

func TestSurvival_ZeroResultantKeepsMeanDirection(t *testing.T) {
	t.Parallel()

	s := newSurvival(testConfig(180, 1, 0.9))
	id := s.spawn(axisZ, 1)

	require.NotPanics(t, func() {
		s.advance(map[int64]FrameStat{id: {Sum: r3.Vec{}, Count: 3}}, 1)
	})
	c, ok := s.get(id)
	require.True(t, ok)
	assert.Equal(t, axisZ, c.MeanDirection, "cancelled resultant keeps the seed direction")
	assert.Zero(t, c.Concentration)

	var reported []Cluster
	require.NotPanics(t, func() { reported = s.report() })
	require.Len(t, reported, 1)
	assert.InDelta(t, 1, r3.Norm(reported[0].MeanDirection), unitNormTolerance)
}

func TestSurvival_DecayIntoSubnormalsKeepsUnitDirection(t *testing.T) {
	t.Parallel()

	s := newSurvival(testConfig(10, 1000, 0.1))
	id := s.spawn(r3.Vec{X: 0.6, Z: 0.8}, 1)
	s.advance(map[int64]FrameStat{id: {Sum: r3.Vec{X: 0.6, Z: 0.8}, Count: 1}}, 1)

	for frame := uint64(2); frame <= 400; frame++ {
		s.advance(nil, frame)
		c, ok := s.get(id)
		require.True(t, ok, "frame %d", frame)
		d := c.MeanDirection
		require.False(t, math.IsNaN(d.X) || math.IsNaN(d.Y) || math.IsNaN(d.Z), "frame %d: %v", frame, d)
		require.InDelta(t, 1, r3.Norm(d), 1e-9, "frame %d: %v", frame, d)
		require.GreaterOrEqual(t, d.X, 0.0)
		require.GreaterOrEqual(t, d.Z, 0.0)
	}
	c, _ := s.get(id)
	assert.Equal(t, r3.Vec{}, c.ResultantSum, "resultant has underflowed to zero")
}

func TestUnitDirection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   r3.Vec
		want r3.Vec
		ok   bool
		tol  float64
	}{
		{"unit", axisY, axisY, true, 1e-12},
		{"scaled", r3.Vec{X: 3, Y: 4}, r3.Vec{X: 0.6, Y: 0.8}, true, 1e-12},
		{"subnormal", r3.Vec{X: 3e-320, Y: 4e-320}, r3.Vec{X: 0.6, Y: 0.8}, true, 1e-3},
		{"zero", r3.Vec{}, r3.Vec{}, false, 0},
		{"nan", r3.Vec{X: math.NaN()}, r3.Vec{}, false, 0},
		{"inf", r3.Vec{Z: math.Inf(1)}, r3.Vec{}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := unitDirection(tt.in)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.InDelta(t, tt.want.X, got.X, tt.tol)
			assert.InDelta(t, tt.want.Y, got.Y, tt.tol)
			assert.InDelta(t, tt.want.Z, got.Z, tt.tol)
			assert.InDelta(t, 1, r3.Norm(got), 1e-12)
		})
	}
}

func TestSurvival_ReportRejectsNonUnitDirection(t *testing.T) {
	t.Parallel()

	s := newSurvival(testConfig(10, 1, 0.9))
	id := s.spawn(axisZ, 1)
	s.advance(map[int64]FrameStat{id: {Sum: axisZ, Count: 2}}, 1)
	s.clusters[id].MeanDirection = r3.Vec{Z: 2}

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.IsAssertionFailure(err))
	}()
	s.report()
}
