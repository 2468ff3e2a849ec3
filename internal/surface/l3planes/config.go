package l3planes

import (
	"math"
	"runtime"

	"github.com/banshee-data/normals.report/internal/config"
	"github.com/cockroachdb/errors"
)

// ErrInvalidConfig is returned (wrapped) for out-of-range engine parameters.
var ErrInvalidConfig = errors.New("invalid engine configuration")

// Config holds the engine parameters. It is fixed for the lifetime of an
// Engine unless replaced through Engine.Reconfigure.
type Config struct {
	AngularThreshold float64 // max angle (radians) between a normal and its cluster
	SurvivalHorizon  int     // consecutive unmatched frames tolerated before retirement
	PersistencePrior float64 // per-frame decay of carried statistics, in (0, 1]
	FocalLength      float64 // pixels; normals are weighted by depth / FocalLength
	Workers          int     // intra-frame parallelism; 0 = GOMAXPROCS
}

// DefaultConfig returns engine configuration loaded from the canonical
// tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig. The
// threshold is supplied in degrees and converted here.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		AngularThreshold: cfg.GetAngularThresholdRad(),
		SurvivalHorizon:  cfg.GetSurvivalHorizon(),
		PersistencePrior: cfg.GetPersistencePrior(),
		FocalLength:      cfg.GetFocalLength(),
		Workers:          cfg.GetWorkers(),
	}
}

// DegreesToRadians converts an externally supplied threshold.
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if math.IsNaN(c.AngularThreshold) || c.AngularThreshold <= 0 || c.AngularThreshold > math.Pi {
		return errors.Wrapf(ErrInvalidConfig, "angular threshold must be in (0, π], got %g", c.AngularThreshold)
	}
	if c.SurvivalHorizon < 0 {
		return errors.Wrapf(ErrInvalidConfig, "survival horizon must be non-negative, got %d", c.SurvivalHorizon)
	}
	if math.IsNaN(c.PersistencePrior) || c.PersistencePrior <= 0 || c.PersistencePrior > 1 {
		return errors.Wrapf(ErrInvalidConfig, "persistence prior must be in (0, 1], got %g", c.PersistencePrior)
	}
	if !(c.FocalLength > 0) || math.IsInf(c.FocalLength, 0) {
		return errors.Wrapf(ErrInvalidConfig, "focal length must be positive and finite, got %g", c.FocalLength)
	}
	if c.Workers < 0 {
		return errors.Wrapf(ErrInvalidConfig, "workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

// CosThreshold is the minimum dot product that counts as a match.
func (c Config) CosThreshold() float64 {
	return math.Cos(c.AngularThreshold)
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
