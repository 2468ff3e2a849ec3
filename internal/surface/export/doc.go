// Package export writes clustering results to files: the centroid
// summary table, per-pixel label images and label overlays on the
// camera image.
//
// It is an adapter over l3planes results and does not import pipeline;
// Writer satisfies pipeline.FrameSink and pipeline.Flusher structurally.
package export
