// Package pipeline contains the batch cleaning execution logic.
//
// It wires together CSV reading, validation, enrichment, and batched loading
// into the configured storage backend. Bad rows are dropped before the
// database (fail-soft semantics), attributed to exactly one validation stage,
// and summarized at the end. The run is single threaded: one batch is read,
// validated, enriched, committed, and accounted for before the next batch is
// read, so peak memory stays around O(batchSize).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"mobility/internal/enrich"
	"mobility/internal/metrics"
	"mobility/internal/report"
	"mobility/internal/schema"
	"mobility/internal/storage"
	"mobility/internal/validate"
)

// Source yields raw trips in batches. io.EOF signals exhaustion.
// It is satisfied by csv.TripReader.
type Source interface {
	ReadBatch(n int) ([]schema.RawTrip, error)
}

// Options configures a Runner.
type Options struct {
	// Job labels log lines and metrics.
	Job string

	// BatchSize is the number of raw records per read/commit cycle.
	BatchSize int

	// RejectLogLimit caps how many individual rejections are logged.
	RejectLogLimit int
}

// Runner executes one cleaning run against a repository.
type Runner struct {
	opts      Options
	validator *validate.Validator
	repo      storage.Repository
	rep       *report.Report
	rejAgg    *rejectAgg
}

// New constructs a Runner. The validator carries the bounds and the zone
// lookup; the repository must already have its schema ensured.
func New(opts Options, v *validate.Validator, repo storage.Repository) (*Runner, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("pipeline: batch size must be positive, got %d", opts.BatchSize)
	}
	if v == nil {
		return nil, fmt.Errorf("pipeline: validator is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("pipeline: repository is required")
	}
	limit := opts.RejectLogLimit
	if limit <= 0 {
		limit = 20
	}
	return &Runner{
		opts:      opts,
		validator: v,
		repo:      repo,
		rep:       report.New(validate.StageNames()),
		rejAgg:    newRejectAgg(limit),
	}, nil
}

// Report returns the cleaning report. Remaining counts are meaningful only
// after Run has returned nil.
func (r *Runner) Report() *report.Report { return r.rep }

// Run drains the source. Each batch is validated, enriched, and committed
// atomically; its counts are merged into the report only after the commit
// succeeds, so a failed batch leaves the report consistent with the table.
//
// An enrichment guard failure aborts the run: it means a record passed
// validation with a non-positive duration or distance, which is a pipeline
// bug, not bad input.
func (r *Runner) Run(ctx context.Context, src Source) error {
	start := time.Now()
	var batchNum int64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		readStart := time.Now()
		batch, err := src.ReadBatch(r.opts.BatchSize)
		metrics.RecordPhase(r.opts.Job, "read", err, time.Since(readStart))
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("pipeline: read batch: %w", err)
		}
		done := errors.Is(err, io.EOF)
		if len(batch) > 0 {
			batchNum++
			if err := r.runBatch(ctx, batchNum, batch, start); err != nil {
				return err
			}
		}
		if done {
			break
		}
	}

	if err := r.rep.Finalize(); err != nil {
		return err
	}

	r.rejAgg.logSummary()
	r.logSummary(time.Since(start))
	return nil
}

// runBatch validates, enriches, and commits one batch, then merges its
// tallies into the report.
func (r *Runner) runBatch(ctx context.Context, batchNum int64, batch []schema.RawTrip, start time.Time) error {
	removed := make(map[string]int64)
	clean := make([]schema.CleanTrip, 0, len(batch))

	validateStart := time.Now()
	for i := range batch {
		raw := &batch[i]
		if rej := r.validator.Check(raw); rej != nil {
			removed[rej.Stage]++
			r.rejAgg.add(raw.Line, rej.Stage, rej.Reason)
			continue
		}
		ct, err := enrich.Trip(raw)
		if err != nil {
			metrics.RecordPhase(r.opts.Job, "validate", err, time.Since(validateStart))
			return fmt.Errorf("pipeline: line %d: %w", raw.Line, err)
		}
		clean = append(clean, ct)
	}
	metrics.RecordPhase(r.opts.Job, "validate", nil, time.Since(validateStart))

	loadStart := time.Now()
	inserted, err := r.repo.InsertTrips(ctx, clean)
	metrics.RecordPhase(r.opts.Job, "load", err, time.Since(loadStart))
	if err != nil {
		log.Printf("loader: commit failed for batch=%d (rows=%d): %v", batchNum, len(clean), err)
		return fmt.Errorf("pipeline: insert batch %d: %w", batchNum, err)
	}
	if inserted != int64(len(clean)) {
		return fmt.Errorf("pipeline: batch %d: inserted %d of %d rows", batchNum, inserted, len(clean))
	}

	// Commit succeeded; only now does the batch count toward the report.
	if err := r.rep.AddInput(int64(len(batch))); err != nil {
		return err
	}
	for stage, n := range removed {
		if err := r.rep.AddRemoved(stage, n); err != nil {
			return err
		}
		metrics.RecordTrips(r.opts.Job, stage, n)
	}
	if err := r.rep.AddCleaned(inserted); err != nil {
		return err
	}

	metrics.RecordTrips(r.opts.Job, "input", int64(len(batch)))
	metrics.RecordTrips(r.opts.Job, "inserted", inserted)
	metrics.RecordBatches(r.opts.Job, 1)

	elapsed := time.Since(start)
	rate := int64(0)
	if secs := elapsed.Seconds(); secs > 0 {
		rate = int64(float64(r.rep.Cleaned()) / secs)
	}
	log.Printf("batch=%d rps=%d inserted=%d total_inserted=%d elapsed=%s",
		batchNum, rate, inserted, r.rep.Cleaned(), elapsed.Truncate(time.Millisecond))

	return nil
}

// logSummary prints the final aggregated statistics for the run.
//
// The invariant for data rows is:
//
//	input == cleaned + sum(removed per stage)
//
// which Finalize has already verified; this just makes the numbers visible.
func (r *Runner) logSummary(elapsed time.Duration) {
	log.Printf("summary: job=%s input=%d removed=%d cleaned=%d elapsed=%s",
		r.opts.Job, r.rep.Input(), r.rep.Removed(), r.rep.Cleaned(),
		elapsed.Truncate(time.Millisecond))
	if _, err := r.rep.WriteTo(os.Stderr); err != nil {
		log.Printf("report render: %v", err)
	}
}

// rejectAgg aggregates rejections, keeping the first N messages for the log.
type rejectAgg struct {
	mu      sync.Mutex
	limit   int
	count   int
	first   []string
	buckets map[string]int
}

func newRejectAgg(limit int) *rejectAgg {
	return &rejectAgg{limit: limit, buckets: make(map[string]int)}
}

func (a *rejectAgg) add(line int, stage, reason string) {
	a.mu.Lock()
	a.buckets[stage]++
	if a.count < a.limit {
		a.first = append(a.first, fmt.Sprintf("line=%d stage=%s: %s", line, stage, reason))
	}
	a.count++
	a.mu.Unlock()
}

func (a *rejectAgg) logSummary() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return
	}
	log.Printf("rejections: %d (showing first %d)", a.count, len(a.first))
	for i, s := range a.first {
		log.Printf("  #%03d: %s", i+1, s)
	}
}
