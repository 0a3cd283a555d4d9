// Package metrics is a small backend-agnostic layer for recording
// operational metrics from the cleaning pipeline.
//
// It mirrors the storage abstraction: a narrow interface (Backend), a global
// pluggable backend defaulting to a no-op, and concrete systems kept in
// subpackages. Pipeline code can always call these helpers; when no backend
// is configured nothing happens.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics stay optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordPhase measures latency plus success/failure for a pipeline phase
// (read, validate, enrich, load).
func RecordPhase(job, phase string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"phase":  phase,
		"status": status,
	}

	backend.IncCounter("trips_phase_total", 1, lbls)
	backend.ObserveHistogram("trips_phase_duration_seconds", d.Seconds(), lbls)
}

// RecordTrips increments a record-level counter for the given job and kind.
//
// Kinds mirror the cleaning report: "input", "cleaned", "inserted", plus one
// per validation stage ("duplicates", "missing_fields", ...).
func RecordTrips(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("trips_records_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("trips_batches_total", float64(delta), Labels{
		"job": job,
	})
}
