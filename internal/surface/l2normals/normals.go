package l2normals

import (
	"math"

	"github.com/banshee-data/normals.report/internal/surface/l1depth"
	"gonum.org/v1/gonum/spatial/r3"
)

// minCrossNorm rejects normals from degenerate (collinear) neighbourhoods.
const minCrossNorm = 1e-12

// Intrinsics is a pinhole camera model with square pixels.
type Intrinsics struct {
	Focal float64 // focal length in pixels
	Cx    float64 // principal point x (pixels)
	Cy    float64 // principal point y (pixels)
}

// CentredIntrinsics places the principal point at the image centre.
func CentredIntrinsics(focal float64, width, height int) Intrinsics {
	return Intrinsics{
		Focal: focal,
		Cx:    float64(width-1) / 2,
		Cy:    float64(height-1) / 2,
	}
}

// BackProject returns the camera-frame point for pixel (x, y) at depth d.
func (k Intrinsics) BackProject(x, y int, d float64) r3.Vec {
	return r3.Vec{
		X: (float64(x) - k.Cx) * d / k.Focal,
		Y: (float64(y) - k.Cy) * d / k.Focal,
		Z: d,
	}
}

// Compute extracts the surface normal field of a depth map. Tangents are
// central differences of back-projected neighbours, falling back to one-
// sided differences at holes and borders. Normals are oriented toward the
// camera. Pixels without two usable tangents are left invalid.
func Compute(depth *l1depth.Image, k Intrinsics) *Field {
	w, h := depth.Width, depth.Height
	f := NewField(w, h)

	point := func(x, y int) (r3.Vec, bool) {
		d := depth.At(x, y)
		if !l1depth.IsValidDepth(d) {
			return r3.Vec{}, false
		}
		return k.BackProject(x, y, d), true
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p, ok := point(x, y)
			if !ok {
				continue
			}
			du, okU := tangent(point, p, x-1, y, x+1, y)
			dv, okV := tangent(point, p, x, y-1, x, y+1)
			if !okU || !okV {
				continue
			}
			n := r3.Cross(du, dv)
			norm := r3.Norm(n)
			if norm < minCrossNorm || math.IsNaN(norm) {
				continue
			}
			n = r3.Scale(1/norm, n)
			if r3.Dot(n, p) > 0 {
				n = r3.Scale(-1, n)
			}
			f.Set(x, y, n, p.Z)
		}
	}
	return f
}

// tangent returns the difference between the forward and backward
// neighbours, or a one-sided difference against the centre point.
func tangent(point func(x, y int) (r3.Vec, bool), centre r3.Vec, bx, by, fx, fy int) (r3.Vec, bool) {
	back, okB := point(bx, by)
	fwd, okF := point(fx, fy)
	switch {
	case okB && okF:
		return r3.Sub(fwd, back), true
	case okF:
		return r3.Sub(fwd, centre), true
	case okB:
		return r3.Sub(centre, back), true
	}
	return r3.Vec{}, false
}

// FromDepth smooths a depth map and extracts its normal field. The field
// carries the smoothed depth.
func FromDepth(depth *l1depth.Image, focal float64, radius int, eps float64) *Field {
	smoothed := GuidedFilter(depth, radius, eps)
	return Compute(smoothed, CentredIntrinsics(focal, depth.Width, depth.Height))
}
