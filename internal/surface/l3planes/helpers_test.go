package l3planes

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}
)

// testConfig returns a fully specified configuration without touching
// the defaults file.
func testConfig(thresholdDeg float64, horizon int, prior float64) Config {
	return Config{
		AngularThreshold: DegreesToRadians(thresholdDeg),
		SurvivalHorizon:  horizon,
		PersistencePrior: prior,
		FocalLength:      540,
		Workers:          4,
	}
}

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

func mustStep(t *testing.T, e *Engine, f *l2normals.Field) *FrameResult {
	t.Helper()
	res, err := e.Step(f)
	require.NoError(t, err)
	return res
}

// tilt rotates the unit vector base by angle radians toward the
// orthogonal direction toward.
func tilt(base, toward r3.Vec, angle float64) r3.Vec {
	return r3.Add(r3.Scale(math.Cos(angle), base), r3.Scale(math.Sin(angle), toward))
}

// noisyScene builds a field split into three horizontal bands facing X,
// Y and Z, each normal jittered by up to jitterDeg, with some holes.
func noisyScene(rng *rand.Rand, w, h int, jitterDeg float64) *l2normals.Field {
	f := l2normals.NewField(w, h)
	for y := 0; y < h; y++ {
		var base, a, b r3.Vec
		switch {
		case y < h/3:
			base, a, b = axisX, axisY, axisZ
		case y < 2*h/3:
			base, a, b = axisY, axisZ, axisX
		default:
			base, a, b = axisZ, axisX, axisY
		}
		for x := 0; x < w; x++ {
			if rng.Float64() < 0.05 {
				continue // hole
			}
			j := DegreesToRadians(jitterDeg) * rng.Float64()
			phi := 2 * math.Pi * rng.Float64()
			dir := r3.Add(r3.Scale(math.Cos(phi), a), r3.Scale(math.Sin(phi), b))
			n := r3.Unit(tilt(base, dir, j))
			f.Set(x, y, n, 0.5+3*rng.Float64())
		}
	}
	return f
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
