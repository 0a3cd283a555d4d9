// Package report accumulates per-stage removal counts for one cleaning run.
//
// The report is an explicit object threaded through the pipeline, never
// ambient global state, so independent runs stay independently testable.
// It is created once per run, has counts merged into it as batches commit,
// and is finalized exactly once; after Finalize it never changes.
package report

import (
	"fmt"
	"io"
	"strings"
)

// StageCount is one line of the cleaning report: how many records the stage
// removed and how many remained after it ran.
type StageCount struct {
	Stage     string
	Removed   int64
	Remaining int64
}

// Report is the per-run cleaning audit. Stage order is fixed at
// construction and mirrors the validation pipeline.
type Report struct {
	stages    []StageCount
	index     map[string]int
	input     int64
	cleaned   int64
	finalized bool
}

// New creates a report with the given stage names in pipeline order.
func New(stageNames []string) *Report {
	r := &Report{
		stages: make([]StageCount, len(stageNames)),
		index:  make(map[string]int, len(stageNames)),
	}
	for i, name := range stageNames {
		r.stages[i] = StageCount{Stage: name}
		r.index[name] = i
	}
	return r
}

// AddInput records n raw records entering the run.
func (r *Report) AddInput(n int64) error {
	if r.finalized {
		return fmt.Errorf("report: finalized")
	}
	r.input += n
	return nil
}

// AddRemoved attributes n removals to the named stage.
func (r *Report) AddRemoved(stage string, n int64) error {
	if r.finalized {
		return fmt.Errorf("report: finalized")
	}
	i, ok := r.index[stage]
	if !ok {
		return fmt.Errorf("report: unknown stage %q", stage)
	}
	r.stages[i].Removed += n
	return nil
}

// AddCleaned records n records committed to the cleaned table.
func (r *Report) AddCleaned(n int64) error {
	if r.finalized {
		return fmt.Errorf("report: finalized")
	}
	r.cleaned += n
	return nil
}

// Finalize fills in the cumulative remaining counts and verifies the
// conservation law: every input record is either removed by exactly one
// stage or present in the cleaned output. It may be called once.
func (r *Report) Finalize() error {
	if r.finalized {
		return fmt.Errorf("report: already finalized")
	}
	remaining := r.input
	var removed int64
	for i := range r.stages {
		remaining -= r.stages[i].Removed
		removed += r.stages[i].Removed
		r.stages[i].Remaining = remaining
	}
	if removed+r.cleaned != r.input {
		return fmt.Errorf("report: conservation violated: input=%d removed=%d cleaned=%d",
			r.input, removed, r.cleaned)
	}
	r.finalized = true
	return nil
}

// Input returns the number of raw records seen.
func (r *Report) Input() int64 { return r.input }

// Cleaned returns the number of records committed to the cleaned table.
func (r *Report) Cleaned() int64 { return r.cleaned }

// Removed returns the total number of records removed across all stages.
func (r *Report) Removed() int64 {
	var n int64
	for _, s := range r.stages {
		n += s.Removed
	}
	return n
}

// Stages returns a copy of the per-stage counts in pipeline order.
// Remaining values are meaningful only after Finalize.
func (r *Report) Stages() []StageCount {
	out := make([]StageCount, len(r.stages))
	copy(out, r.stages)
	return out
}

// Finalized reports whether Finalize has run.
func (r *Report) Finalized() bool { return r.finalized }

// WriteTo renders the transparency log: one line per stage with removal and
// remaining counts, then the final cleaned total.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "raw records: %d\n", r.input)
	for _, s := range r.stages {
		fmt.Fprintf(&b, "%s: removed %d, remaining %d\n", s.Stage, s.Removed, s.Remaining)
	}
	fmt.Fprintf(&b, "final clean records: %d\n", r.cleaned)
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
