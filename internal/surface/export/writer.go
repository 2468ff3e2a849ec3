package export

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/banshee-data/normals.report/internal/surface/l1depth"
	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/banshee-data/normals.report/internal/surface/l3planes"
)

// Output file suffixes appended to WriterConfig.Prefix.
const (
	CentroidsSuffix = "_cRmf.csv"
	LabelsSuffix    = "_labels.png"
	OverlaySuffix   = "_rgbLabels.png"
)

// DepthSource exposes the unfiltered depth map behind the latest frame.
// l2normals.FileSource implements it.
type DepthSource interface {
	LastDepth() *l1depth.Image
}

// WriterConfig controls which files a Writer produces.
type WriterConfig struct {
	Prefix     string      // output path prefix, e.g. "out/scene"
	Background image.Image // optional camera image for the overlay
	Opacity    float64     // label weight in the overlay; 0 uses DefaultOverlayOpacity
	MaxDepth   float64     // metres mapped to white when no background is given

	// RawDepth, when set, supplies the depth map rendered as the overlay
	// background in place of the field's smoothed depth.
	RawDepth DepthSource

	// EveryFrame additionally writes <prefix>_<frame>_labels.png for each
	// frame as it arrives.
	EveryFrame bool
}

// Writer is a frame sink that keeps the latest frame and writes the
// centroid table, label image and overlay for it when flushed.
type Writer struct {
	cfg     WriterConfig
	field   *l2normals.Field
	depth   *l1depth.Image
	result  *l3planes.FrameResult
	written []string
}

// NewWriter creates a Writer, making the prefix directory if needed.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("export prefix must not be empty")
	}
	if cfg.Opacity == 0 {
		cfg.Opacity = DefaultOverlayOpacity
	}
	if dir := filepath.Dir(cfg.Prefix); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	return &Writer{cfg: cfg}, nil
}

// ConsumeFrame records the frame and, if configured, writes its label image.
func (w *Writer) ConsumeFrame(_ context.Context, field *l2normals.Field, res *l3planes.FrameResult) error {
	w.field = field
	w.result = res
	if w.cfg.RawDepth != nil {
		w.depth = w.cfg.RawDepth.LastDepth()
	}
	if !w.cfg.EveryFrame {
		return nil
	}
	path := fmt.Sprintf("%s_%06d%s", w.cfg.Prefix, res.FrameIndex, LabelsSuffix)
	if err := SavePNG(path, RenderLabels(res.Labels)); err != nil {
		return err
	}
	w.written = append(w.written, path)
	return nil
}

// Flush writes the outputs for the most recent frame. It is a no-op if no
// frame was consumed.
func (w *Writer) Flush() error {
	if w.result == nil {
		return nil
	}
	res := w.result

	csvPath := w.cfg.Prefix + CentroidsSuffix
	if err := SaveCentroids(csvPath, res.Clusters); err != nil {
		return err
	}
	labelsPath := w.cfg.Prefix + LabelsSuffix
	if err := SavePNG(labelsPath, RenderLabels(res.Labels)); err != nil {
		return err
	}
	overlayPath := w.cfg.Prefix + OverlaySuffix
	if err := SavePNG(overlayPath, Overlay(w.background(), res.Labels, w.cfg.Opacity)); err != nil {
		return err
	}
	w.written = append(w.written, csvPath, labelsPath, overlayPath)
	return nil
}

// Written returns the paths written so far.
func (w *Writer) Written() []string {
	return append([]string(nil), w.written...)
}

// background returns the configured camera image, or a grey rendering of
// the latest frame's raw depth (falling back to the field's depth).
func (w *Writer) background() image.Image {
	if w.cfg.Background != nil {
		return w.cfg.Background
	}
	if d := w.depth; d != nil && d.Width == w.field.Width && d.Height == w.field.Height {
		return d.Visualise(w.cfg.MaxDepth)
	}
	depth := &l1depth.Image{Width: w.field.Width, Height: w.field.Height, Meters: w.field.Depth}
	return depth.Visualise(w.cfg.MaxDepth)
}
