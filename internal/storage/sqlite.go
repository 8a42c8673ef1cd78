package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/region"
)

const sqliteFile = "popsim.db"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		metadata BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS regions (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		name TEXT NOT NULL,
		initial_population INTEGER NOT NULL,
		birth_rate REAL NOT NULL,
		death_rate REAL NOT NULL,
		migration_rate REAL NOT NULL,
		final_population REAL,
		PRIMARY KEY (run_id, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS trajectory_points (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		region_idx INTEGER NOT NULL,
		point_idx INTEGER NOT NULL,
		time REAL NOT NULL,
		population REAL NOT NULL,
		PRIMARY KEY (run_id, region_idx, point_idx)
	)`,
}

// SQLiteStore keeps all runs in one database file. Run metadata is stored as
// a JSON blob next to relational region and trajectory tables.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	clock clockwork.Clock
}

func NewSQLiteStore(dir string, clock clockwork.Clock) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	path := filepath.Join(dir, sqliteFile)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writes serialised.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db, path: path, clock: clock}, nil
}

func (s *SQLiteStore) Init() error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema in %s: %w", s.path, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Save(ctx context.Context, run *Run) (id string, retErr error) {
	stamp(run, s.clock)
	meta, err := json.Marshal(run.Meta)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs(id, created_at, metadata) VALUES(?, ?, ?)`,
		run.Meta.ID, run.Meta.CreatedAt.Format(time.RFC3339Nano), meta,
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	regStmt, err := tx.PrepareContext(ctx, `INSERT INTO regions(
		run_id, idx, name, initial_population, birth_rate, death_rate, migration_rate, final_population
	) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer regStmt.Close()

	for i, r := range run.Regions {
		var final sql.NullFloat64
		if v, ok := r.FinalPopulation(); ok {
			final = sql.NullFloat64{Float64: v, Valid: true}
		}
		if _, err := regStmt.ExecContext(ctx, run.Meta.ID, i, r.Name, r.InitialPopulation,
			r.BirthRate, r.DeathRate, r.MigrationRate, final); err != nil {
			return "", fmt.Errorf("insert %s: %w", r.Name, err)
		}
	}

	ptStmt, err := tx.PrepareContext(ctx, `INSERT INTO trajectory_points(
		run_id, region_idx, point_idx, time, population
	) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer ptStmt.Close()

	for i, t := range run.Trajectories {
		for j := range t.Population {
			if _, err := ptStmt.ExecContext(ctx, run.Meta.ID, i, j, t.Times[j], t.Population[j]); err != nil {
				return "", fmt.Errorf("insert trajectory point: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.Meta.ID, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]RunMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT metadata FROM runs`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var meta RunMetadata
		if err := json.Unmarshal(payload, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		runs = append(runs, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortNewestFirst(runs)
	return runs, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Run, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT metadata FROM runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}

	run := &Run{}
	if err := json.Unmarshal(payload, &run.Meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	if run.Regions, err = s.loadRegions(ctx, id); err != nil {
		return nil, err
	}
	if run.Trajectories, err = s.loadTrajectories(ctx, id, len(run.Regions)); err != nil {
		return nil, err
	}

	run.attachStats()
	return run, nil
}

func (s *SQLiteStore) loadRegions(ctx context.Context, id string) ([]region.Region, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, initial_population, birth_rate, death_rate, migration_rate, final_population
		FROM regions WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("select regions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var regions []region.Region
	for rows.Next() {
		var r region.Region
		var final sql.NullFloat64
		if err := rows.Scan(&r.Name, &r.InitialPopulation, &r.BirthRate, &r.DeathRate, &r.MigrationRate, &final); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		if final.Valid {
			r = r.WithFinalPopulation(final.Float64)
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

func (s *SQLiteStore) loadTrajectories(ctx context.Context, id string, n int) ([]*growth.Trajectory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT region_idx, time, population
		FROM trajectory_points WHERE run_id = ? ORDER BY region_idx, point_idx`, id)
	if err != nil {
		return nil, fmt.Errorf("select trajectories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	trajs := make([]*growth.Trajectory, n)
	for i := range trajs {
		trajs[i] = &growth.Trajectory{}
	}

	for rows.Next() {
		var idx int
		var t, p float64
		if err := rows.Scan(&idx, &t, &p); err != nil {
			return nil, fmt.Errorf("scan trajectory point: %w", err)
		}
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("trajectory point for unknown region %d", idx)
		}
		trajs[idx].Times = append(trajs[idx].Times, t)
		trajs[idx].Population = append(trajs[idx].Population, p)
	}
	return trajs, rows.Err()
}
