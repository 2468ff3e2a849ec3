package l3planes

import (
	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"gonum.org/v1/gonum/spatial/r3"
)

// cosTolerance absorbs rounding so that a normal lying exactly on the
// threshold cone still matches.
const cosTolerance = 1e-12

// withinThreshold reports whether a dot product is inside the (inclusive)
// matching cone.
func withinThreshold(dot, cosThreshold float64) bool {
	return dot >= cosThreshold-cosTolerance
}

// Assign returns the ID of the centroid closest in angle to n, or
// (NoMatch, false) if that angle exceeds the threshold. Equal similarity
// is resolved in favour of the lowest ID. n must be unit length.
func Assign(n r3.Vec, centroids []Centroid, cosThreshold float64) (int64, bool) {
	found := false
	bestID := NoMatch
	bestDot := 0.0
	for _, c := range centroids {
		d := r3.Dot(n, c.Direction)
		if !found || d > bestDot || (d == bestDot && c.ID < bestID) {
			found = true
			bestID = c.ID
			bestDot = d
		}
	}
	if !found || !withinThreshold(bestDot, cosThreshold) {
		return NoMatch, false
	}
	return bestID, true
}

// AssignFrame labels every pixel of field: the matching cluster ID,
// NoMatch for usable pixels outside every cone, or Unassigned for
// unusable pixels. It does not modify its inputs and returns the same
// labels for the same inputs regardless of workers.
func AssignFrame(field *l2normals.Field, centroids []Centroid, cosThreshold float64, workers int) []int64 {
	labels := make([]int64, field.Len())
	forEachBand(len(labels), workers, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			if !field.Usable(i) {
				labels[i] = Unassigned
				continue
			}
			id, _ := Assign(field.Normals[i], centroids, cosThreshold)
			labels[i] = id
		}
	})
	return labels
}
