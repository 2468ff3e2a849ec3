package l1depth

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Image is a dense depth map in metres, row-major.
// A value of 0 (or any non-finite value) marks a missing measurement.
type Image struct {
	Width  int
	Height int
	Meters []float64
}

// NewImage allocates a zeroed depth image.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Meters: make([]float64, width*height),
	}
}

// FromRaw converts raw sensor units (typically millimetres) into metres.
func FromRaw(raw []uint16, width, height int, scale float64) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid depth dimensions %dx%d", width, height)
	}
	if len(raw) != width*height {
		return nil, fmt.Errorf("raw depth has %d samples, want %d", len(raw), width*height)
	}
	if !(scale > 0) {
		return nil, fmt.Errorf("depth scale must be positive, got %f", scale)
	}
	img := NewImage(width, height)
	for i, v := range raw {
		img.Meters[i] = float64(v) * scale
	}
	return img, nil
}

// Index returns the row-major index of pixel (x, y).
func (d *Image) Index(x, y int) int {
	return y*d.Width + x
}

// At returns the depth at (x, y) in metres, or 0 outside the image.
func (d *Image) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return 0
	}
	return d.Meters[d.Index(x, y)]
}

// Valid reports whether the pixel at (x, y) carries a usable measurement.
func (d *Image) Valid(x, y int) bool {
	return IsValidDepth(d.At(x, y))
}

// IsValidDepth reports whether a depth sample is a usable measurement.
func IsValidDepth(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// ValidCount returns the number of pixels with a usable measurement.
func (d *Image) ValidCount() int {
	n := 0
	for _, v := range d.Meters {
		if IsValidDepth(v) {
			n++
		}
	}
	return n
}

// Load decodes a depth PNG from disk. 16-bit grey images are read
// directly; any other colour model is reduced to its 16-bit luminance.
// Raw values are multiplied by scale to obtain metres.
func Load(path string, scale float64) (*Image, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open depth image %s: %w", path, err)
	}
	return FromImage(src, scale)
}

// FromImage converts a decoded image into a depth map.
func FromImage(src image.Image, scale float64) (*Image, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	raw := make([]uint16, w*h)

	switch img := src.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				raw[y*w+x] = img.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.Gray16Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				raw[y*w+x] = g.Y
			}
		}
	}

	return FromRaw(raw, w, h, scale)
}

// Visualise renders the depth map as an 8-bit grey image, mapping
// [0, maxMeters] to [0, 255]. Missing measurements are black.
func (d *Image) Visualise(maxMeters float64) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, d.Width, d.Height))
	if !(maxMeters > 0) {
		maxMeters = 4.0
	}
	for i, v := range d.Meters {
		if !IsValidDepth(v) {
			continue
		}
		s := v / maxMeters * 255.0
		if s > 255 {
			s = 255
		}
		out.Pix[i] = uint8(s)
	}
	return out
}
