// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// It maps the pipeline's generic counters onto client_golang CounterVec and
// SummaryVec collectors and pushes them to a Pushgateway instead of exposing
// a scrape endpoint, which suits a short-lived batch job. All Prometheus
// dependencies live here so the rest of the project stays decoupled.
package prompush

import (
	"fmt"

	"mobility/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	phaseCounter  *prometheus.CounterVec // "trips_phase_total"
	phaseDuration *prometheus.SummaryVec // "trips_phase_duration_seconds"

	recordCounter *prometheus.CounterVec // "trips_records_total"
	batchCounter  prometheus.Counter     // "trips_batches_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "trips"
	}

	reg := prometheus.NewRegistry()

	// job is the Pushgateway grouping key; phase and status stay dynamic.
	phaseCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trips_phase_total",
			Help: "Pipeline phase executions, partitioned by phase and status.",
		},
		[]string{"phase", "status"},
	)
	phaseDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "trips_phase_duration_seconds",
			Help:       "Duration of pipeline phases in seconds, partitioned by phase and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"phase", "status"},
	)

	// kind: input, cleaned, inserted, or a validation stage name.
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trips_records_total",
			Help: "Record-level counts per kind (input, cleaned, inserted, rejection stages).",
		},
		[]string{"kind"},
	)

	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trips_batches_total",
			Help: "Total number of committed trip batches for this job.",
		},
	)

	if err := reg.Register(phaseCounter); err != nil {
		return nil, fmt.Errorf("prompush: register phase counter: %w", err)
	}
	if err := reg.Register(phaseDuration); err != nil {
		return nil, fmt.Errorf("prompush: register phase summary: %w", err)
	}
	if err := reg.Register(recordCounter); err != nil {
		return nil, fmt.Errorf("prompush: register record counter: %w", err)
	}
	if err := reg.Register(batchCounter); err != nil {
		return nil, fmt.Errorf("prompush: register batch counter: %w", err)
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		phaseCounter:  phaseCounter,
		phaseDuration: phaseDuration,
		recordCounter: recordCounter,
		batchCounter:  batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "trips_phase_total":
		if b.phaseCounter == nil {
			return
		}
		phase := labels["phase"]
		status := labels["status"]
		b.phaseCounter.WithLabelValues(phase, status).Add(delta)

	case "trips_records_total":
		if b.recordCounter == nil {
			return
		}
		kind := labels["kind"]
		b.recordCounter.WithLabelValues(kind).Add(delta)

	case "trips_batches_total":
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "trips_phase_duration_seconds" || b.phaseDuration == nil {
		return
	}
	phase := labels["phase"]
	status := labels["status"]
	b.phaseDuration.WithLabelValues(phase, status).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
