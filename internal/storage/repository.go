// Package storage contains the storage-agnostic repository contract for the
// cleaned trip table and the zone dimension, plus the aggregation query
// surface consumed by the ranking and reporting layers.
//
// Concrete backends live in subpackages and register themselves with the
// factory at init time; callers select one by kind and never import a
// database driver directly.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"mobility/internal/schema"
)

// Config selects and configures a backend.
type Config struct {
	Kind string // "sqlite" or "postgres"
	DSN  string
}

// Filter narrows the aggregation queries. Zero values mean "no constraint".
type Filter struct {
	Borough    string
	TimeOfDay  string
	PickupHour *int
}

// ZoneCount is the per-pickup-zone trip count a ranking pass consumes.
type ZoneCount struct {
	LocationID int
	ZoneName   string
	Borough    string
	TripCount  int64
}

// HourlyStat aggregates trips sharing a pickup hour.
type HourlyStat struct {
	PickupHour  int
	TripCount   int64
	AvgFare     float64
	AvgDuration float64
}

// BoroughStat aggregates trips by pickup borough.
type BoroughStat struct {
	Borough     string
	TripCount   int64
	AvgDistance float64
	AvgFare     float64
	AvgDuration float64
}

// Summary holds the whole-table statistics.
type Summary struct {
	TotalTrips  int64
	AvgFare     float64
	AvgDistance float64
	AvgSpeed    float64
}

/// Repository is the backend contract. InsertTrips must be atomic per call:
// either every row of the batch is committed or none is, so the cleaning
// report can stay consistent with the table.
type Repository interface {
	EnsureSchema(ctx context.Context) error
	ReplaceZones(ctx context.Context, zs []schema.Zone) error
	InsertTrips(ctx context.Context, trips []schema.CleanTrip) (int64, error)

	TripCountsByPickupZone(ctx context.Context, f Filter) ([]ZoneCount, error)
	HourlyStats(ctx context.Context, f Filter) ([]HourlyStat, error)
	BoroughSummary(ctx context.Context, f Filter) ([]BoroughStat, error)
	Summary(ctx context.Context) (Summary, error)

	Close() error
}

// Factory builds a Repository from a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register installs a backend factory under kind. Backends call this from
// init; registering the same kind twice is a programming error.
func Register(kind string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("storage: duplicate registration for kind %q", kind))
	}
	factories[kind] = f
}

// New builds the repository for cfg.Kind. Unknown kinds list the registered
// ones in the error to keep misconfiguration diagnosable.
func New(ctx context.Context, cfg Config) (Repository, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Kind]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
