package export

import (
	"image/color"
	"math"

	"github.com/banshee-data/normals.report/internal/surface/l3planes"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// goldenAngle spreads successive cluster hues around the colour wheel.
const goldenAngle = 137.50776405003785

// UnassignedColor is used for pixels without a cluster.
var UnassignedColor = color.RGBA{A: 255}

// ColorFor returns the display colour of a cluster. The colour depends only
// on the ID, so a cluster keeps its colour for its whole lifetime.
func ColorFor(id int64) color.RGBA {
	if id < 0 {
		return UnassignedColor
	}
	hue := math.Mod(float64(id)*goldenAngle, 360)
	// Alternate saturation and value so neighbouring IDs stay distinct
	// once the hue wheel wraps.
	sat := 0.65 + 0.25*float64(id%2)
	val := 0.95 - 0.2*float64((id/2)%2)
	r, g, b := colorful.Hsv(hue, sat, val).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Legend returns the colours of the given clusters in order.
func Legend(clusters []l3planes.Cluster) []color.RGBA {
	out := make([]color.RGBA, len(clusters))
	for i, c := range clusters {
		out[i] = ColorFor(c.ID)
	}
	return out
}
