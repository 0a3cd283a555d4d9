// Package sqlite implements storage.Repository on SQLite via database/sql.
// SQLite has no bulk-load primitive like Postgres COPY, so trip batches are
// written as prepared INSERTs inside a single transaction, which both keeps
// throughput acceptable and gives the batch its all-or-nothing semantics.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mobility/internal/schema"
	"mobility/internal/storage"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
}

// Repository is the SQLite-backed implementation.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the database and fails fast on an unusable DSN.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
	return &Repository{db: db}, nil
}

// ddl is the normalized schema: the zone dimension, the trips fact table
// with its derived-feature columns, and the indexes the aggregation
// queries lean on.
const ddl = `
CREATE TABLE IF NOT EXISTS zones (
    location_id  INTEGER PRIMARY KEY,
    borough      TEXT,
    zone_name    TEXT,
    service_zone TEXT
);

CREATE TABLE IF NOT EXISTS trips (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    pickup_datetime       TEXT,
    dropoff_datetime      TEXT,
    passenger_count       INTEGER,
    trip_distance         REAL,
    pu_location_id        INTEGER,
    do_location_id        INTEGER,
    fare_amount           REAL,
    tip_amount            REAL,
    total_amount          REAL,
    payment_type          INTEGER,
    trip_duration_minutes REAL,
    speed_mph             REAL,
    fare_per_mile         REAL,
    pickup_hour           INTEGER,
    time_of_day           TEXT,
    is_weekend            INTEGER
);

CREATE INDEX IF NOT EXISTS idx_pickup_datetime ON trips(pickup_datetime);
CREATE INDEX IF NOT EXISTS idx_pu_location ON trips(pu_location_id);
CREATE INDEX IF NOT EXISTS idx_do_location ON trips(do_location_id);
CREATE INDEX IF NOT EXISTS idx_time_of_day ON trips(time_of_day);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: ensure schema: %w", err)
	}
	return nil
}

// ReplaceZones reloads the zone dimension inside one transaction.
func (r *Repository) ReplaceZones(ctx context.Context, zs []schema.Zone) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM zones"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: clear zones: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO zones (location_id, borough, zone_name, service_zone) VALUES (?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: prepare zones: %w", err)
	}
	defer stmt.Close()
	for _, z := range zs {
		if _, err := stmt.ExecContext(ctx, z.LocationID, z.Borough, z.Name, z.ServiceZone); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: insert zone %d: %w", z.LocationID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit zones: %w", err)
	}
	return nil
}

// InsertTrips writes one batch atomically: all rows commit or the
// transaction rolls back and none do.
func (r *Repository) InsertTrips(ctx context.Context, trips []schema.CleanTrip) (int64, error) {
	if len(trips) == 0 {
		return 0, nil
	}

	cols := schema.TripColumns
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmtSQL := fmt.Sprintf("INSERT INTO trips (%s) VALUES (%s)",
		strings.Join(cols, ", "), placeholders)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trips {
		if _, err := stmt.ExecContext(ctx, sqliteRow(t)...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert trip line: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return int64(len(trips)), nil
}

// sqliteRow normalizes Go values for SQLite columns: timestamps as layout
// text, booleans as 0/1 integers.
func sqliteRow(t schema.CleanTrip) []any {
	row := t.Row()
	for i, v := range row {
		switch x := v.(type) {
		case time.Time:
			row[i] = x.Format(schema.TimeLayout)
		case bool:
			if x {
				row[i] = 1
			} else {
				row[i] = 0
			}
		}
	}
	return row
}

// TripCountsByPickupZone groups trips by pickup zone. No ORDER BY on count
// is issued; ranking is the selector's job.
func (r *Repository) TripCountsByPickupZone(ctx context.Context, f storage.Filter) ([]storage.ZoneCount, error) {
	q := `SELECT t.pu_location_id, z.zone_name, z.borough, COUNT(*) AS trip_count
FROM trips t
JOIN zones z ON t.pu_location_id = z.location_id`
	clauses, args := storage.FilterClauses(f, storage.QuestionPlaceholder, 1)
	if len(clauses) > 0 {
		q += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	q += "\nGROUP BY t.pu_location_id, z.zone_name, z.borough"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: zone counts: %w", err)
	}
	defer rows.Close()

	var out []storage.ZoneCount
	for rows.Next() {
		var zc storage.ZoneCount
		if err := rows.Scan(&zc.LocationID, &zc.ZoneName, &zc.Borough, &zc.TripCount); err != nil {
			return nil, fmt.Errorf("sqlite: zone counts scan: %w", err)
		}
		out = append(out, zc)
	}
	return out, rows.Err()
}

// HourlyStats returns trip counts and fare/duration averages per pickup hour.
func (r *Repository) HourlyStats(ctx context.Context, f storage.Filter) ([]storage.HourlyStat, error) {
	q := `SELECT t.pickup_hour, COUNT(*) AS trip_count,
       AVG(t.fare_amount) AS avg_fare,
       AVG(t.trip_duration_minutes) AS avg_duration
FROM trips t
JOIN zones z ON t.pu_location_id = z.location_id`
	clauses, args := storage.FilterClauses(f, storage.QuestionPlaceholder, 1)
	if len(clauses) > 0 {
		q += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	q += "\nGROUP BY t.pickup_hour ORDER BY t.pickup_hour"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: hourly stats: %w", err)
	}
	defer rows.Close()

	var out []storage.HourlyStat
	for rows.Next() {
		var h storage.HourlyStat
		if err := rows.Scan(&h.PickupHour, &h.TripCount, &h.AvgFare, &h.AvgDuration); err != nil {
			return nil, fmt.Errorf("sqlite: hourly stats scan: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// BoroughSummary aggregates by pickup borough.
func (r *Repository) BoroughSummary(ctx context.Context, f storage.Filter) ([]storage.BoroughStat, error) {
	q := `SELECT z.borough, COUNT(*) AS trip_count,
       AVG(t.trip_distance) AS avg_distance,
       AVG(t.fare_amount) AS avg_fare,
       AVG(t.trip_duration_minutes) AS avg_duration
FROM trips t
JOIN zones z ON t.pu_location_id = z.location_id`
	clauses, args := storage.FilterClauses(f, storage.QuestionPlaceholder, 1)
	if len(clauses) > 0 {
		q += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	q += "\nGROUP BY z.borough ORDER BY z.borough"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: borough summary: %w", err)
	}
	defer rows.Close()

	var out []storage.BoroughStat
	for rows.Next() {
		var b storage.BoroughStat
		if err := rows.Scan(&b.Borough, &b.TripCount, &b.AvgDistance, &b.AvgFare, &b.AvgDuration); err != nil {
			return nil, fmt.Errorf("sqlite: borough summary scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Summary returns whole-table statistics for dashboard cards.
func (r *Repository) Summary(ctx context.Context) (storage.Summary, error) {
	const q = `SELECT COUNT(*),
       COALESCE(AVG(fare_amount), 0),
       COALESCE(AVG(trip_distance), 0),
       COALESCE(AVG(speed_mph), 0)
FROM trips`
	var s storage.Summary
	err := r.db.QueryRowContext(ctx, q).Scan(&s.TotalTrips, &s.AvgFare, &s.AvgDistance, &s.AvgSpeed)
	if err != nil {
		return storage.Summary{}, fmt.Errorf("sqlite: summary: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (r *Repository) Close() error { return r.db.Close() }
