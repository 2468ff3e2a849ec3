package l3planes

import (
	"math"
	"testing"

	"github.com/banshee-data/normals.report/internal/config"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := testConfig(10, 1, 0.9)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.AngularThreshold = 0 }},
		{"negative threshold", func(c *Config) { c.AngularThreshold = -0.1 }},
		{"nan threshold", func(c *Config) { c.AngularThreshold = math.NaN() }},
		{"threshold above pi", func(c *Config) { c.AngularThreshold = math.Pi + 0.01 }},
		{"negative horizon", func(c *Config) { c.SurvivalHorizon = -1 }},
		{"zero prior", func(c *Config) { c.PersistencePrior = 0 }},
		{"prior above one", func(c *Config) { c.PersistencePrior = 1.01 }},
		{"nan prior", func(c *Config) { c.PersistencePrior = math.NaN() }},
		{"zero focal", func(c *Config) { c.FocalLength = 0 }},
		{"infinite focal", func(c *Config) { c.FocalLength = math.Inf(1) }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))

			_, err = NewEngine(cfg)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "NewEngine must reject %s", tt.name)
		})
	}
}

func TestConfig_BoundaryValuesAccepted(t *testing.T) {
	t.Parallel()

	cfg := testConfig(180, 0, 1.0)
	assert.NoError(t, cfg.Validate())
	assert.InDelta(t, -1.0, cfg.CosThreshold(), 1e-12)
}

func TestConfigFromTuning(t *testing.T) {
	t.Parallel()

	deg := 12.0
	horizon := 4
	prior := 0.75
	tc := config.EmptyTuningConfig()
	tc.AngularThresholdDeg = &deg
	tc.SurvivalHorizon = &horizon
	tc.PersistencePrior = &prior

	cfg := ConfigFromTuning(tc)
	assert.InDelta(t, 12*math.Pi/180, cfg.AngularThreshold, 1e-12)
	assert.Equal(t, 4, cfg.SurvivalHorizon)
	assert.Equal(t, 0.75, cfg.PersistencePrior)
	assert.Equal(t, 540.0, cfg.FocalLength)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, DegreesToRadians(30), cfg.AngularThreshold, 1e-12)
	assert.Equal(t, 1, cfg.SurvivalHorizon)
}

func TestConfig_Workers(t *testing.T) {
	t.Parallel()

	cfg := testConfig(10, 1, 0.9)
	cfg.Workers = 3
	assert.Equal(t, 3, cfg.workers())
	cfg.Workers = 0
	assert.GreaterOrEqual(t, cfg.workers(), 1)
}
