package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/banshee-data/normals.report/internal/surface/l3planes"
	"github.com/banshee-data/normals.report/internal/timeutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEngineConfig() l3planes.Config {
	return l3planes.Config{
		AngularThreshold: l3planes.DegreesToRadians(10),
		SurvivalHorizon:  1,
		PersistencePrior: 0.9,
		FocalLength:      540,
		Workers:          2,
	}
}

// stepAll runs fields through a fresh engine, recording each frame.
func stepAll(t *testing.T, rec *FrameRecorder, fields ...*l2normals.Field) []*l3planes.FrameResult {
	t.Helper()
	e, err := l3planes.NewEngine(testEngineConfig())
	require.NoError(t, err)
	var out []*l3planes.FrameResult
	for _, f := range fields {
		res, err := e.Step(f)
		require.NoError(t, err)
		require.NoError(t, rec.ConsumeFrame(context.Background(), f, res))
		out = append(out, res)
	}
	return out
}

func TestOpen_AppliesMigrations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)

	version, dirty, err := schemaVersion(s.db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	for _, table := range []string{"runs", "frames", "cluster_snapshots"} {
		var name string
		err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
	require.NoError(t, s.Close())

	// Reopening an up-to-date database is a no-op.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpen_InMemory(t *testing.T) {
	t.Parallel()

	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.StartRun("mem", RunParams{})
	assert.NoError(t, err)
}

func TestStore_StartAndGetRun(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	params := RunParamsFromConfig(testEngineConfig())
	runID, err := s.StartRun("scene.png", params)
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	assert.NoError(t, err)

	run, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, run.RunID)
	assert.Equal(t, "scene.png", run.Source)
	assert.InDelta(t, 10, run.Params.AngularThresholdDeg, 1e-9)
	assert.Equal(t, 1, run.Params.SurvivalHorizon)
	assert.Positive(t, run.CreatedAt)

	_, err = s.GetRun("missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestStore_TimestampsUseClock(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	start := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	clock.SetAutoStep(time.Second)
	s.SetClock(clock)

	runID, err := s.StartRun("clocked", RunParams{})
	require.NoError(t, err)
	stepAll(t, NewFrameRecorder(s, runID), l2normals.Uniform(2, 2, r3.Vec{Z: 1}, 1))

	run, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, start.UnixNano(), run.CreatedAt)

	var recordedAt int64
	require.NoError(t, s.db.QueryRow(
		`SELECT recorded_at FROM frames WHERE run_id = ? AND frame_index = 1`, runID,
	).Scan(&recordedAt))
	assert.Equal(t, start.Add(time.Second).UnixNano(), recordedAt)
}

func TestStore_RecordFramesAndQuery(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	runID, err := s.StartRun("synthetic", RunParamsFromConfig(testEngineConfig()))
	require.NoError(t, err)
	rec := NewFrameRecorder(s, runID)
	assert.Equal(t, runID, rec.RunID())

	results := stepAll(t, rec,
		l2normals.Uniform(4, 4, r3.Vec{Z: 1}, 1),
		l2normals.Uniform(4, 4, r3.Vec{Z: 1}, 1),
		l2normals.Uniform(4, 4, r3.Vec{X: 1}, 1),
	)

	n, err := s.FrameCount(runID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hist, err := s.ClusterHistory(runID, 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	for i, snap := range hist {
		want := results[i].Clusters[0]
		assert.Equal(t, uint64(i+1), snap.FrameIndex)
		assert.Equal(t, want.State, snap.State)
		assert.InDelta(t, want.Count, snap.Count, 1e-12)
		assert.InDelta(t, want.Concentration, snap.Concentration, 1e-12)
		assert.InDelta(t, want.MeanDirection.Z, snap.MeanDirection.Z, 1e-12)
		assert.Equal(t, uint64(1), snap.BornFrame)
	}
	assert.Equal(t, l3planes.ClusterStale, hist[2].State)
	assert.Equal(t, 1, hist[2].SurvivalCounter)

	latest, err := s.LatestClusters(runID)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, []int64{0, 1}, []int64{latest[0].ClusterID, latest[1].ClusterID})
	assert.InDelta(t, 1.0, latest[0].Proportion+latest[1].Proportion, 1e-9)
	assert.Equal(t, uint64(3), latest[1].BornFrame)

	empty, err := s.ClusterHistory(runID, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_RunsAreIsolated(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	a, err := s.StartRun("a", RunParams{})
	require.NoError(t, err)
	b, err := s.StartRun("b", RunParams{})
	require.NoError(t, err)

	stepAll(t, NewFrameRecorder(s, a), l2normals.Uniform(2, 2, r3.Vec{Z: 1}, 1), l2normals.Uniform(2, 2, r3.Vec{Z: 1}, 1))
	stepAll(t, NewFrameRecorder(s, b), l2normals.Uniform(2, 2, r3.Vec{Y: 1}, 1))

	na, err := s.FrameCount(a)
	require.NoError(t, err)
	nb, err := s.FrameCount(b)
	require.NoError(t, err)
	assert.Equal(t, 2, na)
	assert.Equal(t, 1, nb)

	latest, err := s.LatestClusters(b)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.InDelta(t, 1.0, latest[0].MeanDirection.Y, 1e-12)
}

func TestStore_DuplicateFrameRejected(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	runID, err := s.StartRun("dup", RunParams{})
	require.NoError(t, err)

	res := stepAll(t, NewFrameRecorder(s, runID), l2normals.Uniform(2, 2, r3.Vec{Z: 1}, 1))[0]
	err = s.RecordFrame(context.Background(), runID, res)
	assert.Error(t, err)

	hist, err := s.ClusterHistory(runID, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1, "failed transaction must not leave partial rows")
}
