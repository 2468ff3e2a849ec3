package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/normals.report/internal/surface/l3planes"
	"github.com/banshee-data/normals.report/internal/timeutil"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID has no record.
var ErrRunNotFound = errors.New("run not found")

// RunParams captures the engine parameters of a run for reproducibility.
type RunParams struct {
	AngularThresholdDeg float64 `json:"angular_threshold_deg"`
	SurvivalHorizon     int     `json:"survival_horizon"`
	PersistencePrior    float64 `json:"persistence_prior"`
	FocalLength         float64 `json:"focal_length"`
	Workers             int     `json:"workers"`
}

// RunParamsFromConfig converts an engine configuration.
func RunParamsFromConfig(cfg l3planes.Config) RunParams {
	return RunParams{
		AngularThresholdDeg: cfg.AngularThreshold * 180 / math.Pi,
		SurvivalHorizon:     cfg.SurvivalHorizon,
		PersistencePrior:    cfg.PersistencePrior,
		FocalLength:         cfg.FocalLength,
		Workers:             cfg.Workers,
	}
}

// Run is a persisted clustering run.
type Run struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Params    RunParams `json:"params"`
	CreatedAt int64     `json:"created_at"`
}

// ClusterSnapshot is one cluster's reported state after one frame.
type ClusterSnapshot struct {
	RunID           string
	FrameIndex      uint64
	ClusterID       int64
	State           l3planes.ClusterState
	MeanDirection   r3.Vec
	Concentration   float64
	Proportion      float64
	Count           float64
	SurvivalCounter int
	BornFrame       uint64
}

// Store persists runs in a SQLite database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, clock: timeutil.RealClock{}}, nil
}

// SetClock replaces the clock used for created_at and recorded_at
// timestamps. Nil restores the wall clock.
func (s *Store) SetClock(c timeutil.Clock) {
	s.clock = timeutil.OrReal(c)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new run and returns its generated ID.
func (s *Store) StartRun(source string, params RunParams) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal run params: %w", err)
	}
	runID := uuid.New().String()
	_, err = s.db.Exec(`
		INSERT INTO runs (run_id, source, params_json, created_at)
		VALUES (?, ?, ?, ?)`,
		runID, source, string(paramsJSON), s.clock.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	var r Run
	var paramsJSON string
	err := s.db.QueryRow(`
		SELECT run_id, source, params_json, created_at
		FROM runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.Source, &paramsJSON, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, fmt.Errorf("unmarshal run params: %w", err)
	}
	return &r, nil
}

// RecordFrame stores the frame counters and every reported cluster of res
// in one transaction.
func (s *Store) RecordFrame(ctx context.Context, runID string, res *l3planes.FrameResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin frame tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO frames (
			run_id, frame_index, valid_pixels, no_match_pixels,
			reported, born, retired, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, int64(res.FrameIndex), res.ValidPixels, res.NoMatchPixels,
		len(res.Clusters), len(res.Born), len(res.Retired), s.clock.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", res.FrameIndex, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cluster_snapshots (
			run_id, frame_index, cluster_id, state,
			mean_x, mean_y, mean_z, concentration, proportion, count,
			survival_counter, born_frame
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cluster insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range res.Clusters {
		_, err := stmt.ExecContext(ctx,
			runID, int64(res.FrameIndex), c.ID, string(c.State),
			c.MeanDirection.X, c.MeanDirection.Y, c.MeanDirection.Z,
			c.Concentration, c.Proportion, c.Count,
			c.SurvivalCounter, int64(c.BornFrame),
		)
		if err != nil {
			return fmt.Errorf("insert cluster %d at frame %d: %w", c.ID, res.FrameIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit frame %d: %w", res.FrameIndex, err)
	}
	return nil
}

// FrameCount returns the number of frames recorded for a run.
func (s *Store) FrameCount(runID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM frames WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}

// ClusterHistory returns every snapshot of one cluster in frame order.
func (s *Store) ClusterHistory(runID string, clusterID int64) ([]ClusterSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT `+snapshotColumns+`
		FROM cluster_snapshots
		WHERE run_id = ? AND cluster_id = ?
		ORDER BY frame_index`, runID, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster history: %w", err)
	}
	return scanSnapshots(rows)
}

// LatestClusters returns the clusters reported in the most recent
// recorded frame of a run, in ID order.
func (s *Store) LatestClusters(runID string) ([]ClusterSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT `+snapshotColumns+`
		FROM cluster_snapshots
		WHERE run_id = ?
		  AND frame_index = (SELECT MAX(frame_index) FROM frames WHERE run_id = ?)
		ORDER BY cluster_id`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("query latest clusters: %w", err)
	}
	return scanSnapshots(rows)
}

const snapshotColumns = `run_id, frame_index, cluster_id, state,
		       mean_x, mean_y, mean_z, concentration, proportion, count,
		       survival_counter, born_frame`

func scanSnapshots(rows *sql.Rows) ([]ClusterSnapshot, error) {
	defer rows.Close()

	var out []ClusterSnapshot
	for rows.Next() {
		var c ClusterSnapshot
		var frame, born int64
		var state string
		if err := rows.Scan(
			&c.RunID, &frame, &c.ClusterID, &state,
			&c.MeanDirection.X, &c.MeanDirection.Y, &c.MeanDirection.Z,
			&c.Concentration, &c.Proportion, &c.Count,
			&c.SurvivalCounter, &born,
		); err != nil {
			return nil, fmt.Errorf("scan cluster snapshot: %w", err)
		}
		c.FrameIndex = uint64(frame)
		c.BornFrame = uint64(born)
		c.State = l3planes.ClusterState(state)
		out = append(out, c)
	}
	return out, rows.Err()
}
