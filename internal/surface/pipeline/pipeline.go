package pipeline

import (
	"context"
	"io"
	"reflect"
	"time"

	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/banshee-data/normals.report/internal/surface/l3planes"
	"github.com/banshee-data/normals.report/internal/timeutil"
	"github.com/cockroachdb/errors"
)

// DirectionSource produces one normal field per frame. Next returns
// io.EOF when the stream ends.
type DirectionSource interface {
	Next() (*l2normals.Field, error)
}

// FrameSink consumes the result of every processed frame. Sinks are
// adapters (export, monitoring, persistence) and are called in the order
// they were registered.
type FrameSink interface {
	ConsumeFrame(ctx context.Context, field *l2normals.Field, res *l3planes.FrameResult) error
}

// Flusher is implemented by sinks that buffer output until the stream ends.
type Flusher interface {
	Flush() error
}

// SinkFunc adapts a plain function to FrameSink.
type SinkFunc func(ctx context.Context, field *l2normals.Field, res *l3planes.FrameResult) error

// ConsumeFrame calls f.
func (f SinkFunc) ConsumeFrame(ctx context.Context, field *l2normals.Field, res *l3planes.FrameResult) error {
	return f(ctx, field, res)
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Config holds the dependencies of a Runner.
type Config struct {
	Engine *l3planes.Engine
	Source DirectionSource
	Sinks  []FrameSink // nil entries are ignored

	// SkipInvalidFrames keeps the run going when the engine rejects a
	// frame as malformed. When false the first rejection ends the run.
	SkipInvalidFrames bool

	// VerifyResultants recomputes every frame's weighted sums with a
	// sequential loop and compares them with the engine's aggregate.
	VerifyResultants bool

	// MaxFrames stops the run after this many processed frames.
	// Zero means run until the source is exhausted.
	MaxFrames int

	// Clock times the run and each frame. Nil uses the wall clock.
	Clock timeutil.Clock
}

// RunStats summarises a completed (or interrupted) run.
type RunStats struct {
	FramesProcessed int
	FramesSkipped   int
	LastFrame       uint64
	MaxDeviation    float64 // largest resultant check deviation, if enabled
	Elapsed         time.Duration
}

// Runner pulls frames from a source, steps the engine and feeds sinks.
type Runner struct {
	cfg   Config
	clock timeutil.Clock
	sinks []FrameSink
}

// NewRunner validates cfg and returns a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Engine == nil {
		return nil, errors.New("pipeline: engine is required")
	}
	if isNilInterface(cfg.Source) {
		return nil, errors.New("pipeline: direction source is required")
	}
	if cfg.MaxFrames < 0 {
		return nil, errors.Newf("pipeline: max frames must be non-negative, got %d", cfg.MaxFrames)
	}
	r := &Runner{cfg: cfg, clock: timeutil.OrReal(cfg.Clock)}
	for _, s := range cfg.Sinks {
		if !isNilInterface(s) {
			r.sinks = append(r.sinks, s)
		}
	}
	return r, nil
}

// Run processes frames until the source is exhausted, MaxFrames is
// reached, ctx is cancelled or a stage fails. Cancellation is checked
// between frames; a frame that has started is always completed and
// delivered to every sink. Flushers are flushed when the stream ends
// normally.
func (r *Runner) Run(ctx context.Context) (stats RunStats, err error) {
	start := r.clock.Now()
	defer func() { stats.Elapsed = r.clock.Since(start) }()

	opsf("run started: sinks=%d verify=%v max_frames=%d", len(r.sinks), r.cfg.VerifyResultants, r.cfg.MaxFrames)

	for r.cfg.MaxFrames == 0 || stats.FramesProcessed < r.cfg.MaxFrames {
		if err := ctx.Err(); err != nil {
			opsf("run cancelled after %d frames", stats.FramesProcessed)
			return stats, errors.Wrap(err, "pipeline: run cancelled")
		}

		field, nextErr := r.cfg.Source.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return stats, errors.Wrapf(nextErr, "pipeline: reading frame %d", stats.LastFrame+1)
		}

		frameStart := r.clock.Now()
		res, stepErr := r.cfg.Engine.Step(field)
		if stepErr != nil {
			if r.cfg.SkipInvalidFrames && errors.Is(stepErr, l3planes.ErrInvalidFrame) {
				stats.FramesSkipped++
				opsf("skipping frame: %v", stepErr)
				continue
			}
			return stats, errors.Wrap(stepErr, "pipeline: engine step")
		}
		stats.FramesProcessed++
		stats.LastFrame = res.FrameIndex

		if r.cfg.VerifyResultants {
			check := CheckResultants(field, res, r.cfg.Engine.LastFrameStats(), r.cfg.Engine.Config().FocalLength)
			stats.MaxDeviation = max(stats.MaxDeviation, check.MaxDeviation)
			logResultantCheck(res.FrameIndex, check)
		}

		for i, sink := range r.sinks {
			if err := sink.ConsumeFrame(ctx, field, res); err != nil {
				opsf("frame %d: sink %d (%T) failed: %v", res.FrameIndex, i, sink, err)
				return stats, errors.Wrapf(err, "pipeline: sink %d (%T) on frame %d", i, sink, res.FrameIndex)
			}
		}

		tracef("frame %d: usable=%d assigned=%d clusters=%d born=%d retired=%d took=%s",
			res.FrameIndex, field.UsableCount(), res.Labels.AssignedCount(),
			len(res.Clusters), len(res.Born), len(res.Retired), r.clock.Since(frameStart))
	}

	for i, sink := range r.sinks {
		f, ok := sink.(Flusher)
		if !ok {
			continue
		}
		if err := f.Flush(); err != nil {
			return stats, errors.Wrapf(err, "pipeline: flushing sink %d (%T)", i, sink)
		}
	}

	opsf("run finished: frames=%d skipped=%d elapsed=%s",
		stats.FramesProcessed, stats.FramesSkipped, r.clock.Since(start))
	return stats, nil
}
