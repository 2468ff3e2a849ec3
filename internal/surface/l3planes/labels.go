package l3planes

// LabelMap is the dense per-pixel cluster assignment of one frame,
// row-major at the input resolution. Unusable pixels hold Unassigned.
type LabelMap struct {
	Width  int
	Height int
	Labels []int64
}

// BuildLabelMap copies final labels into a LabelMap. Any leftover
// negative label is normalised to Unassigned.
func BuildLabelMap(width, height int, labels []int64) *LabelMap {
	out := make([]int64, len(labels))
	for i, l := range labels {
		if l < 0 {
			l = Unassigned
		}
		out[i] = l
	}
	return &LabelMap{Width: width, Height: height, Labels: out}
}

// At returns the label at (x, y), or Unassigned outside the grid.
func (m *LabelMap) At(x, y int) int64 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return Unassigned
	}
	return m.Labels[y*m.Width+x]
}

// Histogram counts pixels per cluster ID, excluding Unassigned.
func (m *LabelMap) Histogram() map[int64]int {
	h := make(map[int64]int)
	for _, l := range m.Labels {
		if l != Unassigned {
			h[l]++
		}
	}
	return h
}

// AssignedCount returns the number of labelled pixels.
func (m *LabelMap) AssignedCount() int {
	n := 0
	for _, l := range m.Labels {
		if l != Unassigned {
			n++
		}
	}
	return n
}
