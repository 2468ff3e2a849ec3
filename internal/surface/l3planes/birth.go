package l3planes

import (
	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"gonum.org/v1/gonum/spatial/r3"
)

// Seed describes a cluster to be born this frame.
type Seed struct {
	Direction r3.Vec // normal of the seeding pixel
	Pixels    []int  // pixel indices claimed by the seed, seed pixel first
}

// Birth consolidates the NoMatch pixels of labels into new clusters.
//
// Seeding is greedy in pixel-index order: the first unclaimed NoMatch
// pixel anchors a seed at its own normal, and every later unclaimed
// NoMatch pixel within the threshold cone of that normal is claimed by
// it. The loop repeats until every NoMatch pixel is claimed. labels is
// not modified; the caller allocates IDs and relabels the pixels.
func Birth(field *l2normals.Field, labels []int64, cosThreshold float64) []Seed {
	var pending []int
	for i, l := range labels {
		if l == NoMatch {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	var seeds []Seed
	claimed := make([]bool, len(pending))
	for s, seedPix := range pending {
		if claimed[s] {
			continue
		}
		claimed[s] = true
		dir := field.Normals[seedPix]
		seed := Seed{Direction: dir, Pixels: []int{seedPix}}
		for t := s + 1; t < len(pending); t++ {
			if claimed[t] {
				continue
			}
			if withinThreshold(r3.Dot(field.Normals[pending[t]], dir), cosThreshold) {
				claimed[t] = true
				seed.Pixels = append(seed.Pixels, pending[t])
			}
		}
		seeds = append(seeds, seed)
	}
	return seeds
}
