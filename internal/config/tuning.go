package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Every field is optional; the Get* accessors fall back to built-in
// defaults so partial files are safe.
type TuningConfig struct {
	// Clustering engine params
	AngularThresholdDeg *float64 `json:"angular_threshold_deg,omitempty" toml:"angular_threshold_deg"`
	SurvivalHorizon     *int     `json:"survival_horizon,omitempty" toml:"survival_horizon"`
	PersistencePrior    *float64 `json:"persistence_prior,omitempty" toml:"persistence_prior"`
	FocalLength         *float64 `json:"focal_length,omitempty" toml:"focal_length"`
	Workers             *int     `json:"workers,omitempty" toml:"workers"`

	// Depth preprocessing params
	GuidedFilterRadius *int     `json:"guided_filter_radius,omitempty" toml:"guided_filter_radius"`
	GuidedFilterEps    *float64 `json:"guided_filter_eps,omitempty" toml:"guided_filter_eps"`
	DepthScale         *float64 `json:"depth_scale,omitempty" toml:"depth_scale"`

	// Driver params
	Iterations *int `json:"iterations,omitempty" toml:"iterations"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		AngularThresholdDeg: ptrFloat64(empty.GetAngularThresholdDeg()),
		SurvivalHorizon:     ptrInt(empty.GetSurvivalHorizon()),
		PersistencePrior:    ptrFloat64(empty.GetPersistencePrior()),
		FocalLength:         ptrFloat64(empty.GetFocalLength()),
		Workers:             ptrInt(empty.GetWorkers()),
		GuidedFilterRadius:  ptrInt(empty.GetGuidedFilterRadius()),
		GuidedFilterEps:     ptrFloat64(empty.GetGuidedFilterEps()),
		DepthScale:          ptrFloat64(empty.GetDepthScale()),
		Iterations:          ptrInt(empty.GetIterations()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or TOML file.
// The format is chosen by extension (.json or .toml). Fields omitted from
// the file retain their default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".toml" {
		return nil, fmt.Errorf("config file must have .json or .toml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/surface/l3planes/
		"../../../../" + DefaultConfigPath, // from internal/surface/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.AngularThresholdDeg != nil {
		v := *c.AngularThresholdDeg
		if math.IsNaN(v) || v <= 0 || v > 180 {
			return fmt.Errorf("angular_threshold_deg must be in (0, 180], got %f", v)
		}
	}

	if c.SurvivalHorizon != nil && *c.SurvivalHorizon < 0 {
		return fmt.Errorf("survival_horizon must be non-negative, got %d", *c.SurvivalHorizon)
	}

	if c.PersistencePrior != nil {
		v := *c.PersistencePrior
		if math.IsNaN(v) || v <= 0 || v > 1 {
			return fmt.Errorf("persistence_prior must be in (0, 1], got %f", v)
		}
	}

	if c.FocalLength != nil && !(*c.FocalLength > 0) {
		return fmt.Errorf("focal_length must be positive, got %f", *c.FocalLength)
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	if c.GuidedFilterRadius != nil && *c.GuidedFilterRadius < 0 {
		return fmt.Errorf("guided_filter_radius must be non-negative, got %d", *c.GuidedFilterRadius)
	}

	if c.GuidedFilterEps != nil && *c.GuidedFilterEps < 0 {
		return fmt.Errorf("guided_filter_eps must be non-negative, got %f", *c.GuidedFilterEps)
	}

	if c.DepthScale != nil && !(*c.DepthScale > 0) {
		return fmt.Errorf("depth_scale must be positive, got %f", *c.DepthScale)
	}

	if c.Iterations != nil && *c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", *c.Iterations)
	}

	return nil
}

// GetAngularThresholdDeg returns the angular_threshold_deg value or the default.
func (c *TuningConfig) GetAngularThresholdDeg() float64 {
	if c.AngularThresholdDeg == nil {
		return 30.0
	}
	return *c.AngularThresholdDeg
}

// GetAngularThresholdRad returns the angular threshold converted to radians.
func (c *TuningConfig) GetAngularThresholdRad() float64 {
	return c.GetAngularThresholdDeg() * math.Pi / 180.0
}

// GetSurvivalHorizon returns the survival_horizon value or the default.
func (c *TuningConfig) GetSurvivalHorizon() int {
	if c.SurvivalHorizon == nil {
		return 1
	}
	return *c.SurvivalHorizon
}

// GetPersistencePrior returns the persistence_prior value or the default.
func (c *TuningConfig) GetPersistencePrior() float64 {
	if c.PersistencePrior == nil {
		return 0.9
	}
	return *c.PersistencePrior
}

// GetFocalLength returns the focal_length value (pixels) or the default.
func (c *TuningConfig) GetFocalLength() float64 {
	if c.FocalLength == nil {
		return 540.0
	}
	return *c.FocalLength
}

// GetWorkers returns the workers value or the default (0 = GOMAXPROCS).
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetGuidedFilterRadius returns the guided_filter_radius value or the default.
func (c *TuningConfig) GetGuidedFilterRadius() int {
	if c.GuidedFilterRadius == nil {
		return 9
	}
	return *c.GuidedFilterRadius
}

// GetGuidedFilterEps returns the guided_filter_eps value or the default.
func (c *TuningConfig) GetGuidedFilterEps() float64 {
	if c.GuidedFilterEps == nil {
		return 0.04 // 0.2 m squared
	}
	return *c.GuidedFilterEps
}

// GetDepthScale returns the depth_scale value (metres per raw unit) or the default.
func (c *TuningConfig) GetDepthScale() float64 {
	if c.DepthScale == nil {
		return 0.001
	}
	return *c.DepthScale
}

// GetIterations returns the iterations value or the default.
func (c *TuningConfig) GetIterations() int {
	if c.Iterations == nil {
		return 10
	}
	return *c.Iterations
}
