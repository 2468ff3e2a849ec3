package l3planes

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Internal numerical constants, not user-tunable.
const (
	// minReportCount is the smallest decayed count a cluster may carry and
	// still be reported to callers.
	minReportCount = 1.0
	// unitNormTolerance bounds |‖MeanDirection‖ - 1| for reported clusters.
	unitNormTolerance = 1e-9
)

// survival is the temporal survival manager. It exclusively owns the live
// cluster set: an arena keyed by ID plus the IDs in insertion order.
// IDs are allocated from a monotonically increasing counter and never
// reused.
type survival struct {
	horizon int
	prior   float64

	clusters map[int64]*Cluster
	order    []int64
	nextID   int64
}

func newSurvival(cfg Config) *survival {
	return &survival{
		horizon:  cfg.SurvivalHorizon,
		prior:    cfg.PersistencePrior,
		clusters: make(map[int64]*Cluster),
	}
}

// reconfigure swaps the lifecycle parameters, keeping live clusters.
func (s *survival) reconfigure(cfg Config) {
	s.horizon = cfg.SurvivalHorizon
	s.prior = cfg.PersistencePrior
}

// centroids returns the assignment view of every live cluster in ID order.
func (s *survival) centroids() []Centroid {
	out := make([]Centroid, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Centroid{ID: id, Direction: s.clusters[id].MeanDirection})
	}
	return out
}

// spawn creates an Active cluster anchored at dir and returns its ID.
// Statistics stay empty until the frame's aggregate is applied.
func (s *survival) spawn(dir r3.Vec, frame uint64) int64 {
	id := s.nextID
	s.nextID++
	s.clusters[id] = &Cluster{
		ID:               id,
		State:            ClusterActive,
		MeanDirection:    dir,
		BornFrame:        frame,
		LastMatchedFrame: frame,
	}
	s.order = append(s.order, id)
	return id
}

// advance applies one frame of statistics to every live cluster and
// returns the IDs retired by this frame.
//
//	matched:   R ← prior·R + sum, N ← prior·N + n, counter ← 0, Active
//	unmatched: R ← prior·R,       N ← prior·N,     counter++,   Stale,
//	           Retired (and deleted) once counter > horizon
func (s *survival) advance(stats map[int64]FrameStat, frame uint64) []int64 {
	var retired []int64
	kept := s.order[:0]
	for _, id := range s.order {
		c := s.clusters[id]
		st := stats[id]

		c.ResultantSum = r3.Scale(s.prior, c.ResultantSum)
		c.Count *= s.prior

		if st.Count >= 1 {
			c.ResultantSum = r3.Add(c.ResultantSum, st.Sum)
			c.Count += float64(st.Count)
			c.SurvivalCounter = 0
			c.State = ClusterActive
			c.LastMatchedFrame = frame
		} else {
			c.SurvivalCounter++
			if c.SurvivalCounter > s.horizon {
				c.State = ClusterRetired
				delete(s.clusters, id)
				retired = append(retired, id)
				continue
			}
			c.State = ClusterStale
		}

		// A resultant that cancelled or underflowed keeps the previous
		// mean direction (the seed for a newborn cluster).
		c.Concentration = r3.Norm(c.ResultantSum)
		if dir, ok := unitDirection(c.ResultantSum); ok {
			c.MeanDirection = dir
		} else if c.Count > 0 {
			diagf("cluster %d: degenerate resultant %v with count %g, keeping mean direction", id, c.ResultantSum, c.Count)
		}
		kept = append(kept, id)
	}
	s.order = kept
	return retired
}

// unitDirection normalises v. Components are divided by the largest
// magnitude first so resultants decayed into the subnormal range still
// give a unit vector. It reports false for zero or non-finite v.
func unitDirection(v r3.Vec) (r3.Vec, bool) {
	m := max(math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z))
	if !(m > 0) || math.IsInf(m, 0) {
		return r3.Vec{}, false
	}
	v = r3.Vec{X: v.X / m, Y: v.Y / m, Z: v.Z / m}
	return r3.Scale(1/r3.Norm(v), v), true
}

// report returns copies of the reportable clusters in ID order with
// proportions refreshed. Live clusters whose decayed count has fallen
// below minReportCount are withheld (and get proportion 0) but keep
// competing in assignment.
func (s *survival) report() []Cluster {
	reportable := make([]*Cluster, 0, len(s.order))
	counts := make([]float64, 0, len(s.order))
	for _, id := range s.order {
		c := s.clusters[id]
		c.Proportion = 0
		if c.Count >= minReportCount {
			reportable = append(reportable, c)
			counts = append(counts, c.Count)
		}
	}
	if len(reportable) == 0 {
		return nil
	}

	total := floats.Sum(counts)
	out := make([]Cluster, len(reportable))
	for i, c := range reportable {
		c.Proportion = c.Count / total
		if math.Abs(r3.Norm(c.MeanDirection)-1) > unitNormTolerance {
			panic(errors.AssertionFailedf("reported cluster %d has non-unit mean direction %v", c.ID, c.MeanDirection))
		}
		out[i] = *c
	}
	return out
}

// get returns a copy of a live cluster.
func (s *survival) get(id int64) (Cluster, bool) {
	c, ok := s.clusters[id]
	if !ok {
		return Cluster{}, false
	}
	return *c, true
}

// resultants returns a copy of every live cluster's resultant sum.
func (s *survival) resultants() map[int64]r3.Vec {
	out := make(map[int64]r3.Vec, len(s.clusters))
	for id, c := range s.clusters {
		out[id] = c.ResultantSum
	}
	return out
}

func (s *survival) live() int {
	return len(s.order)
}
