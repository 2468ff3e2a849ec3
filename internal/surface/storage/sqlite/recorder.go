package sqlite

import (
	"context"

	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/banshee-data/normals.report/internal/surface/l3planes"
)

// FrameRecorder is a frame sink that writes every frame result of one run
// to a Store.
type FrameRecorder struct {
	store *Store
	runID string
}

// NewFrameRecorder creates a FrameRecorder for runID.
func NewFrameRecorder(store *Store, runID string) *FrameRecorder {
	return &FrameRecorder{store: store, runID: runID}
}

// RunID returns the run being recorded.
func (r *FrameRecorder) RunID() string {
	return r.runID
}

// ConsumeFrame persists res.
func (r *FrameRecorder) ConsumeFrame(ctx context.Context, _ *l2normals.Field, res *l3planes.FrameResult) error {
	return r.store.RecordFrame(ctx, r.runID, res)
}
