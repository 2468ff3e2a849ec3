package l3planes

import (
	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"gonum.org/v1/gonum/spatial/r3"
)

// Aggregate folds the labelled pixels of a frame into per-cluster
// statistics. Each normal contributes normal × depth / focal to its
// cluster's sum and 1 to its count; pixels with negative labels are
// skipped.
//
// Every band accumulates into its own map; the maps are merged in band
// order after all workers finish, so no state is shared during the
// parallel phase and the result is independent of workers.
func Aggregate(field *l2normals.Field, labels []int64, focal float64, workers int) map[int64]FrameStat {
	partials := make([]map[int64]FrameStat, bandCount(len(labels)))
	forEachBand(len(labels), workers, func(band, lo, hi int) {
		local := make(map[int64]FrameStat)
		for i := lo; i < hi; i++ {
			id := labels[i]
			if id < 0 {
				continue
			}
			st := local[id]
			st.Sum = r3.Add(st.Sum, weighted(field, i, focal))
			st.Count++
			local[id] = st
		}
		partials[band] = local
	})

	out := make(map[int64]FrameStat)
	for _, local := range partials {
		for id, st := range local {
			acc := out[id]
			acc.Sum = r3.Add(acc.Sum, st.Sum)
			acc.Count += st.Count
			out[id] = acc
		}
	}
	return out
}

// RecomputeResultants reproduces the per-cluster weighted sums of a
// labelled frame with a plain sequential loop. It exists to verify the
// parallel aggregation and the engine's accumulators from the outside.
func RecomputeResultants(field *l2normals.Field, labels []int64, focal float64) map[int64]r3.Vec {
	out := make(map[int64]r3.Vec)
	for i, id := range labels {
		if id < 0 {
			continue
		}
		out[id] = r3.Add(out[id], weighted(field, i, focal))
	}
	return out
}

// weighted returns the depth-scaled contribution of pixel i.
func weighted(field *l2normals.Field, i int, focal float64) r3.Vec {
	return r3.Scale(field.Depth[i]/focal, field.Normals[i])
}
