// Package config defines the canonical, JSON-serializable configuration model
// for a cleaning run. It is intentionally small, explicit, and dependency-free
// so that run files can be loaded from disk and passed through the program
// without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in run files
//     under configs/runs/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by
//     the standard library.
//
// Example (trimmed):
//
//	{
//	  "job":     "yellow-2024-01",
//	  "source":  { "trips_path": "data/trips.csv", "zones_path": "data/zones.csv" },
//	  "limits":  { "max_distance_miles": 100, "max_fare_amount": 500 },
//	  "storage": { "kind": "sqlite", "dsn": "trips.db" },
//	  "runtime": { "batch_size": 5000, "reject_log_limit": 20 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"mobility/internal/validate"
)

// Run describes one cleaning run in JSON. It is the top-level object decoded
// from a run file.
type Run struct {
	// Job names the run. It labels metrics and log lines.
	Job string `json:"job"`

	// Source describes where the input CSVs live.
	Source Source `json:"source"`

	// Limits overrides the default validation bounds. Absent fields keep
	// their defaults.
	Limits *Limits `json:"limits"`

	// Storage selects the backend trips are written to.
	Storage Storage `json:"storage"`

	// Runtime controls batching and reject logging.
	Runtime RuntimeConfig `json:"runtime"`
}

// Source identifies the input files for a run.
type Source struct {
	// TripsPath is the local filesystem path to the trip CSV.
	TripsPath string `json:"trips_path"`

	// ZonesPath is the local filesystem path to the zone lookup CSV.
	ZonesPath string `json:"zones_path"`

	// Comma overrides the CSV delimiter. Empty means ",".
	Comma string `json:"comma"`
}

// Limits mirrors validate.Limits in JSON. Pointer fields distinguish "absent"
// from an explicit zero, which is a configuration error the linter reports.
type Limits struct {
	MaxDistanceMiles *float64 `json:"max_distance_miles"`
	MaxFareAmount    *float64 `json:"max_fare_amount"`
	MaxPassengers    *int     `json:"max_passengers"`
	MinDurationMin   *float64 `json:"min_duration_minutes"`
	MaxDurationMin   *float64 `json:"max_duration_minutes"`
	MaxSpeedMPH      *float64 `json:"max_speed_mph"`
}

// Storage selects the backend used to persist cleaned trips.
type Storage struct {
	// Kind selects the storage implementation: "sqlite" or "postgres".
	Kind string `json:"kind"`

	// DSN is the connection string, or a file path for sqlite.
	DSN string `json:"dsn"`
}

// RuntimeConfig controls batching and reject logging.
type RuntimeConfig struct {
	// BatchSize is the number of raw records read and committed per batch.
	BatchSize int `json:"batch_size"`

	// RejectLogLimit caps how many individual rejections are logged per run.
	// Zero means the default.
	RejectLogLimit int `json:"reject_log_limit"`
}

// DefaultBatchSize is used when runtime.batch_size is absent.
const DefaultBatchSize = 5000

// DefaultRejectLogLimit is used when runtime.reject_log_limit is absent.
const DefaultRejectLogLimit = 20

// Load reads and decodes a run file. Unknown fields are rejected so typos in
// run files surface as errors instead of silently keeping defaults.
func Load(path string) (Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return Run{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	var r Run
	if err := dec.Decode(&r); err != nil {
		return Run{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return r, nil
}

// EffectiveLimits merges the run's overrides onto validate.DefaultLimits.
func (r Run) EffectiveLimits() validate.Limits {
	lim := validate.DefaultLimits()
	o := r.Limits
	if o == nil {
		return lim
	}
	if o.MaxDistanceMiles != nil {
		lim.MaxDistanceMiles = *o.MaxDistanceMiles
	}
	if o.MaxFareAmount != nil {
		lim.MaxFareAmount = *o.MaxFareAmount
	}
	if o.MaxPassengers != nil {
		lim.MaxPassengers = *o.MaxPassengers
	}
	if o.MinDurationMin != nil {
		lim.MinDurationMin = *o.MinDurationMin
	}
	if o.MaxDurationMin != nil {
		lim.MaxDurationMin = *o.MaxDurationMin
	}
	if o.MaxSpeedMPH != nil {
		lim.MaxSpeedMPH = *o.MaxSpeedMPH
	}
	return lim
}

// EffectiveBatchSize returns the configured batch size or the default.
func (r Run) EffectiveBatchSize() int {
	if r.Runtime.BatchSize > 0 {
		return r.Runtime.BatchSize
	}
	return DefaultBatchSize
}

// EffectiveRejectLogLimit returns the configured reject log cap or the default.
func (r Run) EffectiveRejectLogLimit() int {
	if r.Runtime.RejectLogLimit > 0 {
		return r.Runtime.RejectLogLimit
	}
	return DefaultRejectLogLimit
}
