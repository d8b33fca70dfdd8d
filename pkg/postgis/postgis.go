// Package postgis reads planner inputs from and writes assignments to a
// PostGIS database.
package postgis

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kass/charge-planner/pkg/models"
)

const batchSize = 10000

// DB is a PostGIS connection holding facilities, demand and assignments.
type DB struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects to PostGIS with a lib/pq connection string.
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: open")
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "postgis: ping")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{db: db, log: zap.L().With(zap.String("component", "postgis"))}, nil
}

// InitSchema recreates the facility and demand tables and creates the
// assignments table if missing.
func (p *DB) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,

		`DROP TABLE IF EXISTS facilities;`,
		`DROP TABLE IF EXISTS demand;`,

		`CREATE TABLE facilities (
			position INTEGER PRIMARY KEY,
			id       TEXT NOT NULL,
			location GEOMETRY(POINT) NOT NULL
		);`,
		`CREATE TABLE demand (
			position INTEGER PRIMARY KEY,
			weight   DOUBLE PRECISION NOT NULL CHECK (weight >= 0),
			location GEOMETRY(POINT) NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS assignments (
			run_id      TEXT NOT NULL,
			position    INTEGER NOT NULL,
			facility_id TEXT NOT NULL,
			count       INTEGER NOT NULL,
			location    GEOMETRY(POINT) NOT NULL,
			PRIMARY KEY (run_id, position)
		);`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return eris.Wrapf(err, "postgis: exec %q", query)
		}
	}
	return nil
}

// CreateSpatialIndexes creates GIST indexes on the point columns and
// analyzes the tables.
func (p *DB) CreateSpatialIndexes(ctx context.Context) error {
	start := time.Now()
	for _, query := range []string{
		`CREATE INDEX IF NOT EXISTS idx_facilities_location ON facilities USING GIST(location);`,
		`CREATE INDEX IF NOT EXISTS idx_demand_location ON demand USING GIST(location);`,
		`ANALYZE facilities;`,
		`ANALYZE demand;`,
	} {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return eris.Wrapf(err, "postgis: exec %q", query)
		}
	}

	p.log.Info("created spatial indexes", zap.Duration("took", time.Since(start)))
	return nil
}

// BulkInsertFacilities appends facilities, keeping their order.
func (p *DB) BulkInsertFacilities(ctx context.Context, facilities []models.Facility) error {
	return p.insertBatches(ctx,
		`INSERT INTO facilities (position, id, location) VALUES ($1, $2, ST_MakePoint($3, $4))`,
		len(facilities),
		func(i int) []any {
			f := facilities[i]
			return []any{i, f.ID, f.X, f.Y}
		},
	)
}

// BulkInsertDemand appends demand points, keeping their order.
func (p *DB) BulkInsertDemand(ctx context.Context, points []models.DemandPoint) error {
	return p.insertBatches(ctx,
		`INSERT INTO demand (position, weight, location) VALUES ($1, $2, ST_MakePoint($3, $4))`,
		len(points),
		func(i int) []any {
			d := points[i]
			return []any{i, d.Weight, d.X, d.Y}
		},
	)
}

// insertBatches runs query for rows 0..n-1, committing every batchSize rows.
func (p *DB) insertBatches(ctx context.Context, query string, n int, args func(i int) []any) error {
	start := time.Now()
	for lo := 0; lo < n; lo += batchSize {
		hi := min(lo+batchSize, n)
		if err := p.insertBatch(ctx, query, lo, hi, args); err != nil {
			return err
		}
	}

	p.log.Debug("inserted rows", zap.Int("rows", n), zap.Duration("took", time.Since(start)))
	return nil
}

func (p *DB) insertBatch(ctx context.Context, query string, lo, hi int, args func(i int) []any) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "postgis: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrap(err, "postgis: prepare insert")
	}
	defer stmt.Close()

	for i := lo; i < hi; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return eris.Wrapf(err, "postgis: insert row %d", i)
		}
	}
	return eris.Wrapf(tx.Commit(), "postgis: commit rows %d-%d", lo, hi)
}

// LoadFacilities returns the stored facilities in insertion order. A
// non-nil box keeps only those inside it.
func (p *DB) LoadFacilities(ctx context.Context, box *models.BoundingBox) ([]models.Facility, error) {
	query := `SELECT id, ST_X(location), ST_Y(location) FROM facilities`
	rows, err := p.db.QueryContext(ctx, query+boxFilter(box)+` ORDER BY position`, boxArgs(box)...)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: query facilities")
	}
	defer rows.Close()

	var facilities []models.Facility
	for rows.Next() {
		var f models.Facility
		if err := rows.Scan(&f.ID, &f.X, &f.Y); err != nil {
			return nil, eris.Wrap(err, "postgis: scan facility")
		}
		facilities = append(facilities, f)
	}
	return facilities, eris.Wrap(rows.Err(), "postgis: facilities iterate")
}

// LoadDemand returns the stored demand points in insertion order. A non-nil
// box keeps only those inside it.
func (p *DB) LoadDemand(ctx context.Context, box *models.BoundingBox) ([]models.DemandPoint, error) {
	query := `SELECT ST_X(location), ST_Y(location), weight FROM demand`
	rows, err := p.db.QueryContext(ctx, query+boxFilter(box)+` ORDER BY position`, boxArgs(box)...)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: query demand")
	}
	defer rows.Close()

	var points []models.DemandPoint
	for rows.Next() {
		var d models.DemandPoint
		if err := rows.Scan(&d.X, &d.Y, &d.Weight); err != nil {
			return nil, eris.Wrap(err, "postgis: scan demand")
		}
		points = append(points, d)
	}
	return points, eris.Wrap(rows.Err(), "postgis: demand iterate")
}

func boxFilter(box *models.BoundingBox) string {
	if box == nil {
		return ""
	}
	return ` WHERE location && ST_MakeEnvelope($1, $2, $3, $4)`
}

func boxArgs(box *models.BoundingBox) []any {
	if box == nil {
		return nil
	}
	return []any{box.Min.X, box.Min.Y, box.Max.X, box.Max.Y}
}

// SaveAssignments replaces the stored entries of runID.
func (p *DB) SaveAssignments(ctx context.Context, runID string, entries []models.AssignmentEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "postgis: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgis: clear assignments of run %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assignments (run_id, position, facility_id, count, location)
		VALUES ($1, $2, $3, $4, ST_MakePoint($5, $6))
	`)
	if err != nil {
		return eris.Wrap(err, "postgis: prepare assignments")
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, i, e.FacilityID, e.Count, e.X, e.Y); err != nil {
			return eris.Wrapf(err, "postgis: insert assignment %s", e.FacilityID)
		}
	}
	return eris.Wrap(tx.Commit(), "postgis: commit assignments")
}

// LoadAssignments returns the stored entries of runID in facility order.
func (p *DB) LoadAssignments(ctx context.Context, runID string) ([]models.AssignmentEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT facility_id, ST_X(location), ST_Y(location), count
		FROM assignments WHERE run_id = $1 ORDER BY position
	`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgis: query assignments of run %s", runID)
	}
	defer rows.Close()

	var entries []models.AssignmentEntry
	for rows.Next() {
		var e models.AssignmentEntry
		if err := rows.Scan(&e.FacilityID, &e.X, &e.Y, &e.Count); err != nil {
			return nil, eris.Wrap(err, "postgis: scan assignment")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgis: assignments iterate")
}

// Count returns the number of rows in the facilities or demand table.
func (p *DB) Count(ctx context.Context, table string) (int64, error) {
	var query string
	switch table {
	case "facilities":
		query = `SELECT COUNT(*) FROM facilities`
	case "demand":
		query = `SELECT COUNT(*) FROM demand`
	default:
		return 0, eris.Errorf("postgis: unknown table %q", table)
	}

	var count int64
	if err := p.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, eris.Wrapf(err, "postgis: count %s", table)
	}
	return count, nil
}

// Stats returns table sizes and row counts.
func (p *DB) Stats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var dbSize string
	err := p.db.QueryRowContext(ctx, `SELECT pg_size_pretty(pg_database_size(current_database()))`).Scan(&dbSize)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: database size")
	}
	stats["database_size"] = dbSize

	for _, table := range []string{"facilities", "demand"} {
		var tableSize, indexSize string
		err = p.db.QueryRowContext(ctx, `
			SELECT pg_size_pretty(pg_total_relation_size($1::regclass)),
			       pg_size_pretty(pg_indexes_size($1::regclass))
		`, table).Scan(&tableSize, &indexSize)
		if err != nil {
			// Table might not exist yet
			tableSize, indexSize = "0 bytes", "0 bytes"
		}
		stats[table+"_size"] = tableSize
		stats[table+"_index_size"] = indexSize

		count, _ := p.Count(ctx, table)
		stats[table+"_rows"] = count
	}
	return stats, nil
}

// Close closes the database connection.
func (p *DB) Close() error {
	return p.db.Close()
}
