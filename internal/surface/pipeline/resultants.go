package pipeline

import (
	"slices"

	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/banshee-data/normals.report/internal/surface/l3planes"
	"gonum.org/v1/gonum/spatial/r3"
)

// resultantTolerance is the largest acceptable difference between the
// engine's per-frame sums and the sequential recomputation, relative to
// the sum's magnitude.
const resultantTolerance = 1e-9

// ResultantCheck compares the engine's aggregate for one frame with an
// independent recomputation from the final label map.
type ResultantCheck struct {
	Clusters     int     // clusters that received pixels this frame
	WorstID      int64   // cluster with the largest deviation (-1 if none)
	MaxDeviation float64 // ‖engine − recomputed‖ / max(1, ‖recomputed‖)
	Missing      []int64 // IDs present in one result but not the other
}

// OK reports whether the two computations agree.
func (c ResultantCheck) OK() bool {
	return len(c.Missing) == 0 && c.MaxDeviation <= resultantTolerance
}

// CheckResultants recomputes the weighted sums of res.Labels over field and
// compares them with frameStats.
func CheckResultants(field *l2normals.Field, res *l3planes.FrameResult, frameStats map[int64]l3planes.FrameStat, focal float64) ResultantCheck {
	want := l3planes.RecomputeResultants(field, res.Labels.Labels, focal)
	check := ResultantCheck{Clusters: len(want), WorstID: -1}

	for id, sum := range want {
		st, ok := frameStats[id]
		if !ok {
			check.Missing = append(check.Missing, id)
			continue
		}
		dev := r3.Norm(r3.Sub(st.Sum, sum)) / max(1, r3.Norm(sum))
		if dev > check.MaxDeviation || check.WorstID < 0 {
			check.MaxDeviation = max(check.MaxDeviation, dev)
			check.WorstID = id
		}
	}
	for id := range frameStats {
		if _, ok := want[id]; !ok {
			check.Missing = append(check.Missing, id)
		}
	}
	slices.Sort(check.Missing)
	return check
}

func logResultantCheck(frame uint64, c ResultantCheck) {
	if !c.OK() {
		opsf("frame %d: resultant mismatch: max_dev=%.3g worst=%d missing=%v", frame, c.MaxDeviation, c.WorstID, c.Missing)
		return
	}
	diagf("frame %d: resultant check ok: clusters=%d max_dev=%.3g", frame, c.Clusters, c.MaxDeviation)
}
