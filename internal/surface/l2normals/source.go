package l2normals

import (
	"fmt"
	"io"

	"github.com/banshee-data/normals.report/internal/surface/l1depth"
)

// FileSourceConfig holds the preprocessing parameters for FileSource.
type FileSourceConfig struct {
	Paths      []string // depth PNGs, in stream order
	Repeat     int      // times each image is emitted (>= 1)
	DepthScale float64  // metres per raw depth unit
	Focal      float64  // focal length in pixels
	Radius     int      // guided filter radius
	Eps        float64  // guided filter regulariser (m²)
}

// FileSource streams normal fields computed from depth PNG files. Each
// file is decoded and filtered once and then emitted Repeat times, which
// replays a still scene through the temporal engine.
type FileSource struct {
	cfg     FileSourceConfig
	pathIdx int
	emitted int
	current *Field
	depth   *l1depth.Image
}

// NewFileSource creates a FileSource.
func NewFileSource(cfg FileSourceConfig) (*FileSource, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("file source needs at least one depth image")
	}
	if cfg.Repeat < 1 {
		cfg.Repeat = 1
	}
	if !(cfg.DepthScale > 0) {
		return nil, fmt.Errorf("depth scale must be positive, got %f", cfg.DepthScale)
	}
	if !(cfg.Focal > 0) {
		return nil, fmt.Errorf("focal length must be positive, got %f", cfg.Focal)
	}
	return &FileSource{cfg: cfg}, nil
}

// Next returns the next field, or io.EOF when the stream is exhausted.
func (s *FileSource) Next() (*Field, error) {
	if s.current != nil && s.emitted < s.cfg.Repeat {
		s.emitted++
		return s.current, nil
	}
	if s.pathIdx >= len(s.cfg.Paths) {
		return nil, io.EOF
	}

	path := s.cfg.Paths[s.pathIdx]
	s.pathIdx++
	depth, err := l1depth.Load(path, s.cfg.DepthScale)
	if err != nil {
		return nil, err
	}
	s.depth = depth
	s.current = FromDepth(depth, s.cfg.Focal, s.cfg.Radius, s.cfg.Eps)
	s.emitted = 1
	return s.current, nil
}

// LastDepth returns the raw depth map behind the most recent field.
func (s *FileSource) LastDepth() *l1depth.Image {
	return s.depth
}

// SliceSource replays an in-memory sequence of fields.
type SliceSource struct {
	Fields []*Field
	pos    int
}

// NewSliceSource creates a SliceSource over fields.
func NewSliceSource(fields ...*Field) *SliceSource {
	return &SliceSource{Fields: fields}
}

// Next returns the next field, or io.EOF when the sequence is exhausted.
func (s *SliceSource) Next() (*Field, error) {
	if s.pos >= len(s.Fields) {
		return nil, io.EOF
	}
	f := s.Fields[s.pos]
	s.pos++
	return f, nil
}
