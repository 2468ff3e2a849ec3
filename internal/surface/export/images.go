package export

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/blend"
	"github.com/banshee-data/normals.report/internal/surface/l3planes"
	"github.com/disintegration/imaging"
)

// DefaultOverlayOpacity is the label weight used by Writer overlays.
const DefaultOverlayOpacity = 0.5

// RenderLabels paints every pixel of m with its cluster colour.
func RenderLabels(m *l3planes.LabelMap) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, id := range m.Labels {
		c := ColorFor(id)
		o := i * 4
		out.Pix[o] = c.R
		out.Pix[o+1] = c.G
		out.Pix[o+2] = c.B
		out.Pix[o+3] = c.A
	}
	return out
}

// Overlay blends the label colours of m over base with the given opacity
// in [0, 1]. Unassigned pixels show base unchanged. base is resized to the
// label grid if the dimensions differ.
func Overlay(base image.Image, m *l3planes.LabelMap, opacity float64) *image.RGBA {
	bg := toRGBA(base, m.Width, m.Height)

	fg := image.NewRGBA(bg.Bounds())
	copy(fg.Pix, bg.Pix)
	for i, id := range m.Labels {
		if id < 0 {
			continue
		}
		c := ColorFor(id)
		o := i * 4
		fg.Pix[o] = c.R
		fg.Pix[o+1] = c.G
		fg.Pix[o+2] = c.B
		fg.Pix[o+3] = 255
	}
	return blend.Opacity(bg, fg, clamp01(opacity))
}

// SavePNG writes img to path; the format follows the extension.
func SavePNG(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// LoadImage decodes an RGB image from path.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return img, nil
}

// toRGBA returns a zero-origin RGBA copy of img at w×h.
func toRGBA(img image.Image, w, h int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
		b = img.Bounds()
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
