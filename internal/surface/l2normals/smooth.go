package l2normals

import (
	"github.com/banshee-data/normals.report/internal/surface/l1depth"
)

// GuidedFilter smooths a depth map with a self-guided filter of the given
// window radius and regulariser eps (metres²). Missing measurements are
// excluded from every window and stay missing in the output, so holes do
// not bleed into valid surfaces. radius == 0 returns a copy.
func GuidedFilter(src *l1depth.Image, radius int, eps float64) *l1depth.Image {
	w, h := src.Width, src.Height
	out := l1depth.NewImage(w, h)
	if radius <= 0 {
		copy(out.Meters, src.Meters)
		return out
	}

	mask := make([]bool, w*h)
	sq := make([]float64, w*h)
	for i, v := range src.Meters {
		if l1depth.IsValidDepth(v) {
			mask[i] = true
			sq[i] = v * v
		}
	}

	meanI := boxMean(src.Meters, mask, w, h, radius)
	meanII := boxMean(sq, mask, w, h, radius)

	a := make([]float64, w*h)
	b := make([]float64, w*h)
	for i := range a {
		if !mask[i] {
			continue
		}
		variance := meanII[i] - meanI[i]*meanI[i]
		if variance < 0 {
			variance = 0
		}
		a[i] = variance / (variance + eps)
		b[i] = meanI[i] - a[i]*meanI[i]
	}

	meanA := boxMean(a, mask, w, h, radius)
	meanB := boxMean(b, mask, w, h, radius)
	for i, v := range src.Meters {
		if mask[i] {
			out.Meters[i] = meanA[i]*v + meanB[i]
		}
	}
	return out
}

// boxMean returns the mean of vals over the (2r+1)² window around each
// pixel, counting only pixels where mask is set. Summed-area tables keep
// the cost independent of r.
func boxMean(vals []float64, mask []bool, w, h, r int) []float64 {
	stride := w + 1
	sum := make([]float64, stride*(h+1))
	cnt := make([]int, stride*(h+1))
	for y := 0; y < h; y++ {
		rowSum := 0.0
		rowCnt := 0
		for x := 0; x < w; x++ {
			i := y*w + x
			if mask[i] {
				rowSum += vals[i]
				rowCnt++
			}
			sum[(y+1)*stride+x+1] = sum[y*stride+x+1] + rowSum
			cnt[(y+1)*stride+x+1] = cnt[y*stride+x+1] + rowCnt
		}
	}

	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		y0, y1 := clampInt(y-r, 0, h-1), clampInt(y+r, 0, h-1)+1
		for x := 0; x < w; x++ {
			x0, x1 := clampInt(x-r, 0, w-1), clampInt(x+r, 0, w-1)+1
			s := sum[y1*stride+x1] - sum[y0*stride+x1] - sum[y1*stride+x0] + sum[y0*stride+x0]
			c := cnt[y1*stride+x1] - cnt[y0*stride+x1] - cnt[y1*stride+x0] + cnt[y0*stride+x0]
			if c > 0 {
				out[y*w+x] = s / float64(c)
			}
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
