// Package store keeps a history of planning runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/kass/charge-planner/pkg/models"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = eris.New("run not found")

// Run is one stored planning run.
type Run struct {
	ID         string                   `json:"id" yaml:"id"`
	Strategy   string                   `json:"strategy" yaml:"strategy"`
	Threshold  float64                  `json:"threshold" yaml:"threshold"`
	Capacity   int                      `json:"capacity" yaml:"capacity"`
	Bubbles    int                      `json:"bubbles" yaml:"bubbles"`
	Facilities int                      `json:"facilities" yaml:"facilities"`
	CreatedAt  time.Time                `json:"created_at" yaml:"created_at"`
	Entries    []models.AssignmentEntry `json:"entries,omitempty" yaml:"entries,omitempty"`
}

// SQLiteStore stores runs using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens a SQLite database at the given path and configures WAL mode.
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	strategy   TEXT NOT NULL,
	threshold  REAL NOT NULL,
	capacity   INTEGER NOT NULL,
	bubbles    INTEGER NOT NULL,
	facilities INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assignments (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	facility_id TEXT NOT NULL,
	x           REAL NOT NULL,
	y           REAL NOT NULL,
	count       INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun stores a run and its assignment entries in one transaction. An
// empty ID gets a new UUID and a zero CreatedAt the current time; the stored
// run is returned.
func (s *SQLiteStore) CreateRun(ctx context.Context, run Run) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, strategy, threshold, capacity, bubbles, facilities, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.Threshold, run.Capacity, run.Bubbles, run.Facilities, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO assignments (run_id, position, facility_id, x, y, count) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare assignments")
	}
	defer stmt.Close()

	for i, e := range run.Entries {
		if _, err := stmt.ExecContext(ctx, run.ID, i, e.FacilityID, e.X, e.Y, e.Count); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert assignment %s", e.FacilityID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return &run, nil
}

// GetRun returns a run with its entries in facility order.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, strategy, threshold, capacity, bubbles, facilities, created_at FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT facility_id, x, y, count FROM assignments WHERE run_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get assignments of run %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.AssignmentEntry
		if err := rows.Scan(&e.FacilityID, &e.X, &e.Y, &e.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignment")
		}
		run.Entries = append(run.Entries, e)
	}
	return run, eris.Wrap(rows.Err(), "sqlite: assignments iterate")
}

// ListRuns returns the most recent runs first, without entries. A limit of
// zero or less means 100.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy, threshold, capacity, bubbles, facilities, created_at FROM runs
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	if err := row.Scan(&r.ID, &r.Strategy, &r.Threshold, &r.Capacity, &r.Bubbles, &r.Facilities, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
