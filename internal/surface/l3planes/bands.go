package l3planes

import (
	"golang.org/x/sync/errgroup"
)

// bandSize is the number of pixels per parallel work unit. It is fixed
// (not derived from the worker count) so band boundaries, and therefore
// floating-point summation order, are the same on every machine.
const bandSize = 4096

// bandCount returns the number of bands covering n pixels.
func bandCount(n int) int {
	return (n + bandSize - 1) / bandSize
}

// forEachBand runs fn over [lo, hi) pixel ranges on at most workers
// goroutines and waits for all of them.
func forEachBand(n, workers int, fn func(band, lo, hi int)) {
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for b := 0; b < bandCount(n); b++ {
		lo := b * bandSize
		hi := min(lo+bandSize, n)
		g.Go(func() error {
			fn(b, lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
