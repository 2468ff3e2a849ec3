package l3planes

import (
	"sync"

	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidFrame is returned (wrapped) when a frame is structurally
// unusable. The engine state is not advanced for such frames.
var ErrInvalidFrame = errors.New("invalid frame")

// Engine is the streaming directional clustering engine. Step must be
// called once per frame in stream order; read accessors may be called
// concurrently with Step.
type Engine struct {
	mu sync.RWMutex

	cfg          Config
	cosThreshold float64
	state        *survival

	frameIndex uint64
	last       *FrameResult
	lastStats  map[int64]FrameStat
	stats      Stats
}

// NewEngine validates cfg and returns an engine with an empty live set.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:          cfg,
		cosThreshold: cfg.CosThreshold(),
		state:        newSurvival(cfg),
	}, nil
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Reconfigure replaces the configuration. Live clusters are kept; the
// new threshold and lifecycle parameters apply from the next frame.
func (e *Engine) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.cosThreshold = cfg.CosThreshold()
	e.state.reconfigure(cfg)
	opsf("reconfigured: threshold=%.4frad horizon=%d prior=%.3f focal=%.1f",
		cfg.AngularThreshold, cfg.SurvivalHorizon, cfg.PersistencePrior, cfg.FocalLength)
	return nil
}

// Reset drops every cluster, restarts ID allocation and clears counters.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = newSurvival(e.cfg)
	e.frameIndex = 0
	e.last = nil
	e.lastStats = nil
	e.stats = Stats{}
}

// Step clusters one frame and advances the temporal state.
func (e *Engine) Step(field *l2normals.Field) (*FrameResult, error) {
	if err := field.Validate(); err != nil {
		e.mu.Lock()
		e.stats.FramesRejected++
		next := e.frameIndex + 1
		e.mu.Unlock()
		opsf("frame %d rejected: %v", next, err)
		return nil, errors.Wrapf(ErrInvalidFrame, "frame %d: %v", next, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	frame := e.frameIndex + 1
	workers := e.cfg.workers()

	labels := AssignFrame(field, e.state.centroids(), e.cosThreshold, workers)

	valid, noMatch := 0, 0
	for _, l := range labels {
		switch {
		case l == NoMatch:
			noMatch++
			valid++
		case l >= 0:
			valid++
		}
	}

	var born []int64
	for _, seed := range Birth(field, labels, e.cosThreshold) {
		id := e.state.spawn(seed.Direction, frame)
		for _, p := range seed.Pixels {
			labels[p] = id
		}
		born = append(born, id)
		diagf("frame %d: born cluster %d dir=(%.3f, %.3f, %.3f) seed_pixels=%d",
			frame, id, seed.Direction.X, seed.Direction.Y, seed.Direction.Z, len(seed.Pixels))
	}

	frameStats := Aggregate(field, labels, e.cfg.FocalLength, workers)
	retired := e.state.advance(frameStats, frame)
	for _, id := range retired {
		diagf("frame %d: retired cluster %d", frame, id)
	}
	clusters := e.state.report()

	res := &FrameResult{
		FrameIndex:    frame,
		Clusters:      clusters,
		Labels:        BuildLabelMap(field.Width, field.Height, labels),
		Born:          born,
		Retired:       retired,
		ValidPixels:   valid,
		NoMatchPixels: noMatch,
	}

	e.frameIndex = frame
	e.last = res
	e.lastStats = frameStats
	e.stats.FramesProcessed++
	e.stats.ClustersBorn += uint64(len(born))
	e.stats.ClustersRetired += uint64(len(retired))
	e.stats.LiveClusters = e.state.live()
	e.stats.LastValidPixels = valid

	tracef("frame %d: valid=%d no_match=%d born=%d retired=%d live=%d reported=%d",
		frame, valid, noMatch, len(born), len(retired), e.state.live(), len(clusters))

	return res, nil
}

// Clusters returns the clusters reported after the latest frame.
func (e *Engine) Clusters() []Cluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return nil
	}
	out := make([]Cluster, len(e.last.Clusters))
	copy(out, e.last.Clusters)
	return out
}

// Cluster returns a copy of any live cluster, including ones withheld
// from the reported set. Intended for diagnostics.
func (e *Engine) Cluster(id int64) (Cluster, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.get(id)
}

// ResultantSums returns a copy of every live cluster's accumulated
// resultant sum, keyed by ID.
func (e *Engine) ResultantSums() map[int64]r3.Vec {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.resultants()
}

// LastFrameStats returns a copy of the per-cluster statistics aggregated
// from the latest frame, before decay and merging.
func (e *Engine) LastFrameStats() map[int64]FrameStat {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[int64]FrameStat, len(e.lastStats))
	for id, st := range e.lastStats {
		out[id] = st
	}
	return out
}

// LiveIDs returns the IDs of all live clusters in ascending order.
func (e *Engine) LiveIDs() []int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]int64, len(e.state.order))
	copy(out, e.state.order)
	return out
}

// Stats returns a snapshot of the running counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}
