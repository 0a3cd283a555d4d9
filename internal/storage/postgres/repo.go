// Package postgres implements storage.Repository using pgx v5. Trip batches
// go through COPY inside a transaction so a failed batch leaves nothing
// behind.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mobility/internal/schema"
	"mobility/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
}

// Repository is the Postgres-backed implementation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository opens a pgx pool for the DSN.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: pool}, nil
}

const ddl = `
CREATE TABLE IF NOT EXISTS zones (
    location_id  integer PRIMARY KEY,
    borough      text,
    zone_name    text,
    service_zone text
);

CREATE TABLE IF NOT EXISTS trips (
    id                    bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    pickup_datetime       timestamp,
    dropoff_datetime      timestamp,
    passenger_count       integer,
    trip_distance         double precision,
    pu_location_id        integer,
    do_location_id        integer,
    fare_amount           double precision,
    tip_amount            double precision,
    total_amount          double precision,
    payment_type          integer,
    trip_duration_minutes double precision,
    speed_mph             double precision,
    fare_per_mile         double precision,
    pickup_hour           integer,
    time_of_day           text,
    is_weekend            boolean
);

CREATE INDEX IF NOT EXISTS idx_pickup_datetime ON trips(pickup_datetime);
CREATE INDEX IF NOT EXISTS idx_pu_location ON trips(pu_location_id);
CREATE INDEX IF NOT EXISTS idx_do_location ON trips(do_location_id);
CREATE INDEX IF NOT EXISTS idx_time_of_day ON trips(time_of_day);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// ReplaceZones reloads the zone dimension inside one transaction.
func (r *Repository) ReplaceZones(ctx context.Context, zs []schema.Zone) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM zones"); err != nil {
		return fmt.Errorf("postgres: clear zones: %w", err)
	}
	rows := make([][]any, 0, len(zs))
	for _, z := range zs {
		rows = append(rows, []any{z.LocationID, z.Borough, z.Name, z.ServiceZone})
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"zones"},
		[]string{"location_id", "borough", "zone_name", "service_zone"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("postgres: copy zones: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit zones: %w", err)
	}
	return nil
}

// InsertTrips COPYs one batch inside a transaction: all rows or none.
func (r *Repository) InsertTrips(ctx context.Context, trips []schema.CleanTrip) (int64, error) {
	if len(trips) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows := make([][]any, 0, len(trips))
	for _, t := range trips {
		rows = append(rows, t.Row())
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"trips"}, schema.TripColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("postgres: copy trips: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return n, nil
}

func dollarPlaceholder(i int) string { return fmt.Sprintf("$%d", i) }

// TripCountsByPickupZone groups trips by pickup zone; ranking is left to
// the selector.
func (r *Repository) TripCountsByPickupZone(ctx context.Context, f storage.Filter) ([]storage.ZoneCount, error) {
	q := `SELECT t.pu_location_id, z.zone_name, z.borough, COUNT(*) AS trip_count
FROM trips t
JOIN zones z ON t.pu_location_id = z.location_id`
	clauses, args := storage.FilterClauses(f, dollarPlaceholder, 1)
	if len(clauses) > 0 {
		q += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	q += "\nGROUP BY t.pu_location_id, z.zone_name, z.borough"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: zone counts: %w", err)
	}
	defer rows.Close()

	var out []storage.ZoneCount
	for rows.Next() {
		var zc storage.ZoneCount
		if err := rows.Scan(&zc.LocationID, &zc.ZoneName, &zc.Borough, &zc.TripCount); err != nil {
			return nil, fmt.Errorf("postgres: zone counts scan: %w", err)
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
	clauses, args := storage.FilterClauses(f, dollarPlaceholder, 1)
	if len(clauses) > 0 {
		q += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	q += "\nGROUP BY t.pickup_hour ORDER BY t.pickup_hour"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: hourly stats: %w", err)
	}
	defer rows.Close()

	var out []storage.HourlyStat
	for rows.Next() {
		var h storage.HourlyStat
		if err := rows.Scan(&h.PickupHour, &h.TripCount, &h.AvgFare, &h.AvgDuration); err != nil {
			return nil, fmt.Errorf("postgres: hourly stats scan: %w", err)
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
	clauses, args := storage.FilterClauses(f, dollarPlaceholder, 1)
	if len(clauses) > 0 {
		q += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	q += "\nGROUP BY z.borough ORDER BY z.borough"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: borough summary: %w", err)
	}
	defer rows.Close()

	var out []storage.BoroughStat
	for rows.Next() {
		var b storage.BoroughStat
		if err := rows.Scan(&b.Borough, &b.TripCount, &b.AvgDistance, &b.AvgFare, &b.AvgDuration); err != nil {
			return nil, fmt.Errorf("postgres: borough summary scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Summary returns whole-table statistics.
func (r *Repository) Summary(ctx context.Context) (storage.Summary, error) {
	const q = `SELECT COUNT(*),
       COALESCE(AVG(fare_amount), 0),
       COALESCE(AVG(trip_distance), 0),
       COALESCE(AVG(speed_mph), 0)
FROM trips`
	var s storage.Summary
	if err := r.pool.QueryRow(ctx, q).Scan(&s.TotalTrips, &s.AvgFare, &s.AvgDistance, &s.AvgSpeed); err != nil {
		return storage.Summary{}, fmt.Errorf("postgres: summary: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
