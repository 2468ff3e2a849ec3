package l2normals

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// UnitTolerance is the maximum deviation of ‖n‖ from 1 for a normal to
// be treated as a unit vector.
const UnitTolerance = 1e-3

// Field is one frame of per-pixel surface normals, row-major.
//
// Normals[i] is meaningful only when Valid[i] is true. Depth[i] is the
// (smoothed) metric depth backing the normal and is used by the engine
// to weight the normal's contribution.
type Field struct {
	Width   int
	Height  int
	Normals []r3.Vec
	Valid   []bool
	Depth   []float64
}

// NewField allocates an all-invalid field.
func NewField(width, height int) *Field {
	n := width * height
	return &Field{
		Width:   width,
		Height:  height,
		Normals: make([]r3.Vec, n),
		Valid:   make([]bool, n),
		Depth:   make([]float64, n),
	}
}

// Uniform returns a field where every pixel carries the same unit normal
// at the same depth. Used for synthetic streams and calibration.
func Uniform(width, height int, normal r3.Vec, depth float64) *Field {
	f := NewField(width, height)
	u := r3.Unit(normal)
	for i := range f.Normals {
		f.Normals[i] = u
		f.Valid[i] = true
		f.Depth[i] = depth
	}
	return f
}

// Len returns the number of pixels.
func (f *Field) Len() int {
	return f.Width * f.Height
}

// Set stores a normal at (x, y) and marks it valid.
func (f *Field) Set(x, y int, normal r3.Vec, depth float64) {
	i := y*f.Width + x
	f.Normals[i] = normal
	f.Depth[i] = depth
	f.Valid[i] = true
}

// Invalidate clears the pixel at (x, y).
func (f *Field) Invalidate(x, y int) {
	i := y*f.Width + x
	f.Normals[i] = r3.Vec{}
	f.Depth[i] = 0
	f.Valid[i] = false
}

// Validate checks the structural consistency of the field. Per-pixel
// problems (bad normals, missing depth) are not errors; see Usable.
func (f *Field) Validate() error {
	if f == nil {
		return fmt.Errorf("nil normal field")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid field dimensions %dx%d", f.Width, f.Height)
	}
	n := f.Width * f.Height
	if len(f.Normals) != n || len(f.Valid) != n || len(f.Depth) != n {
		return fmt.Errorf("field buffers do not match %dx%d: normals=%d valid=%d depth=%d",
			f.Width, f.Height, len(f.Normals), len(f.Valid), len(f.Depth))
	}
	return nil
}

// Usable reports whether pixel i may take part in clustering: flagged
// valid, finite unit normal, positive finite depth.
func (f *Field) Usable(i int) bool {
	if !f.Valid[i] {
		return false
	}
	d := f.Depth[i]
	if !(d > 0) || math.IsInf(d, 0) {
		return false
	}
	n := f.Normals[i]
	if !finite(n.X) || !finite(n.Y) || !finite(n.Z) {
		return false
	}
	return math.Abs(r3.Norm(n)-1) <= UnitTolerance
}

// UsableCount returns the number of usable pixels.
func (f *Field) UsableCount() int {
	c := 0
	for i := range f.Valid {
		if f.Usable(i) {
			c++
		}
	}
	return c
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
