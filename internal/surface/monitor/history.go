package monitor

import (
	"context"
	"sort"
	"sync"

	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/banshee-data/normals.report/internal/surface/l3planes"
	"gonum.org/v1/gonum/spatial/r3"
)

// ClusterSample is one cluster's reported state after one frame.
type ClusterSample struct {
	Frame         uint64
	State         l3planes.ClusterState
	MeanDirection r3.Vec
	Concentration float64
	Proportion    float64
	Count         float64
	Pixels        int // pixels labelled with this cluster in the frame
}

// FrameSample summarises one frame.
type FrameSample struct {
	Frame         uint64
	Reported      int
	Born          int
	Retired       int
	ValidPixels   int
	NoMatchPixels int
}

// History accumulates cluster time series. It is a frame sink and is safe
// for concurrent use.
type History struct {
	mu      sync.Mutex
	samples map[int64][]ClusterSample
	frames  []FrameSample
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{samples: make(map[int64][]ClusterSample)}
}

// ConsumeFrame records the reported clusters of res.
func (h *History) ConsumeFrame(_ context.Context, _ *l2normals.Field, res *l3planes.FrameResult) error {
	h.Record(res)
	return nil
}

// Record appends the clusters and counters of res.
func (h *History) Record(res *l3planes.FrameResult) {
	var pixels map[int64]int
	if res.Labels != nil {
		pixels = res.Labels.Histogram()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range res.Clusters {
		h.samples[c.ID] = append(h.samples[c.ID], ClusterSample{
			Frame:         res.FrameIndex,
			State:         c.State,
			MeanDirection: c.MeanDirection,
			Concentration: c.Concentration,
			Proportion:    c.Proportion,
			Count:         c.Count,
			Pixels:        pixels[c.ID],
		})
	}
	h.frames = append(h.frames, FrameSample{
		Frame:         res.FrameIndex,
		Reported:      len(res.Clusters),
		Born:          len(res.Born),
		Retired:       len(res.Retired),
		ValidPixels:   res.ValidPixels,
		NoMatchPixels: res.NoMatchPixels,
	})
}

// ClusterIDs returns every cluster ID seen, ascending.
func (h *History) ClusterIDs() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int64, 0, len(h.samples))
	for id := range h.samples {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Samples returns a copy of one cluster's series in frame order.
func (h *History) Samples(id int64) []ClusterSample {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ClusterSample(nil), h.samples[id]...)
}

// Frames returns a copy of the per-frame summaries.
func (h *History) Frames() []FrameSample {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]FrameSample(nil), h.frames...)
}

// Len returns the number of recorded frames.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}
