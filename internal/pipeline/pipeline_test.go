package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"mobility/internal/schema"
	"mobility/internal/storage"
	"mobility/internal/validate"
	"mobility/internal/zones"
)

// sliceSource feeds a fixed set of raw trips in batches.
type sliceSource struct {
	trips []schema.RawTrip
	pos   int
}

func (s *sliceSource) ReadBatch(n int) ([]schema.RawTrip, error) {
	if s.pos >= len(s.trips) {
		return nil, io.EOF
	}
	end := s.pos + n
	if end > len(s.trips) {
		end = len(s.trips)
	}
	out := s.trips[s.pos:end]
	s.pos = end
	if s.pos >= len(s.trips) {
		return out, io.EOF
	}
	return out, nil
}

// fakeRepo records inserted trips in memory. failAfter, when positive, fails
// every InsertTrips call after that many successful ones.
type fakeRepo struct {
	trips     []schema.CleanTrip
	calls     int
	failAfter int
}

func (f *fakeRepo) EnsureSchema(context.Context) error               { return nil }
func (f *fakeRepo) ReplaceZones(context.Context, []schema.Zone) error { return nil }
func (f *fakeRepo) Close() error                                     { return nil }

func (f *fakeRepo) InsertTrips(_ context.Context, trips []schema.CleanTrip) (int64, error) {
	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return 0, errors.New("disk full")
	}
	f.trips = append(f.trips, trips...)
	return int64(len(trips)), nil
}

func (f *fakeRepo) TripCountsByPickupZone(context.Context, storage.Filter) ([]storage.ZoneCount, error) {
	return nil, nil
}
func (f *fakeRepo) HourlyStats(context.Context, storage.Filter) ([]storage.HourlyStat, error) {
	return nil, nil
}
func (f *fakeRepo) BoroughSummary(context.Context, storage.Filter) ([]storage.BoroughStat, error) {
	return nil, nil
}
func (f *fakeRepo) Summary(context.Context) (storage.Summary, error) {
	return storage.Summary{}, nil
}

func testLookup() *zones.Lookup {
	return zones.FromSlice([]schema.Zone{
		{LocationID: 100, Borough: "Manhattan", Name: "Midtown", ServiceZone: "Yellow"},
		{LocationID: 200, Borough: "Queens", Name: "Astoria", ServiceZone: "Boro"},
	})
}

func timePtr(t time.Time) *time.Time { return &t }
func intPtr(n int) *int              { return &n }
func floatPtr(f float64) *float64    { return &f }

// rawTrip builds a record that passes every validation stage. minuteOffset
// shifts the pickup so records hash differently.
func rawTrip(minuteOffset int) schema.RawTrip {
	pickup := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC).Add(time.Duration(minuteOffset) * time.Minute)
	dropoff := pickup.Add(10 * time.Minute)
	return schema.RawTrip{
		Line:           minuteOffset + 2,
		PickupAt:       timePtr(pickup),
		DropoffAt:      timePtr(dropoff),
		PULocationID:   intPtr(100),
		DOLocationID:   intPtr(200),
		PassengerCount: intPtr(1),
		TripDistance:   floatPtr(2.0),
		FareAmount:     floatPtr(12.0),
		TipAmount:      floatPtr(2.0),
		TotalAmount:    floatPtr(14.0),
		PaymentType:    intPtr(1),
	}
}

func newTestRunner(t *testing.T, repo storage.Repository, batchSize int) *Runner {
	t.Helper()
	v, err := validate.New(validate.DefaultLimits(), testLookup())
	if err != nil {
		t.Fatalf("validate.New: %v", err)
	}
	r, err := New(Options{Job: "test", BatchSize: batchSize}, v, repo)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRunCleanInput(t *testing.T) {
	src := &sliceSource{trips: []schema.RawTrip{rawTrip(0), rawTrip(1), rawTrip(2)}}
	repo := &fakeRepo{}
	r := newTestRunner(t, repo, 2)

	if err := r.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(repo.trips) != 3 {
		t.Errorf("inserted %d trips, want 3", len(repo.trips))
	}
	if repo.calls != 2 {
		t.Errorf("InsertTrips called %d times, want 2 batches", repo.calls)
	}

	rep := r.Report()
	if rep.Input() != 3 || rep.Cleaned() != 3 || rep.Removed() != 0 {
		t.Errorf("report input=%d cleaned=%d removed=%d, want 3/3/0",
			rep.Input(), rep.Cleaned(), rep.Removed())
	}
	if !rep.Finalized() {
		t.Error("report not finalized after successful run")
	}
}

func TestRunAttributesRejections(t *testing.T) {
	bad := rawTrip(5)
	bad.DropoffAt = timePtr(bad.PickupAt.Add(-time.Minute)) // dropoff before pickup

	missing := rawTrip(6)
	missing.FareAmount = nil

	dup := rawTrip(0)
	dup.Line = 99 // line number must not defeat duplicate detection

	src := &sliceSource{trips: []schema.RawTrip{rawTrip(0), bad, missing, dup}}
	repo := &fakeRepo{}
	r := newTestRunner(t, repo, 10)

	if err := r.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rep := r.Report()
	if rep.Input() != 4 || rep.Cleaned() != 1 || rep.Removed() != 3 {
		t.Fatalf("report input=%d cleaned=%d removed=%d, want 4/1/3",
			rep.Input(), rep.Cleaned(), rep.Removed())
	}

	want := map[string]int64{
		validate.StageTimestampOrder: 1,
		validate.StageMissingFields:  1,
		validate.StageDuplicates:     1,
	}
	for _, s := range rep.Stages() {
		if s.Removed != want[s.Stage] {
			t.Errorf("stage %s removed=%d, want %d", s.Stage, s.Removed, want[s.Stage])
		}
	}
}

func TestRunFailedCommitLeavesReportConsistent(t *testing.T) {
	var trips []schema.RawTrip
	for i := 0; i < 4; i++ {
		trips = append(trips, rawTrip(i))
	}
	src := &sliceSource{trips: trips}
	repo := &fakeRepo{failAfter: 1} // second batch fails
	r := newTestRunner(t, repo, 2)

	err := r.Run(context.Background(), src)
	if err == nil {
		t.Fatal("Run succeeded despite failing commit")
	}

	// Only the first, committed batch may appear in the report.
	rep := r.Report()
	if rep.Input() != 2 || rep.Cleaned() != 2 {
		t.Errorf("report input=%d cleaned=%d, want 2/2 (first batch only)",
			rep.Input(), rep.Cleaned())
	}
	if rep.Finalized() {
		t.Error("report finalized after a failed run")
	}
	if len(repo.trips) != 2 {
		t.Errorf("repo holds %d trips, want 2", len(repo.trips))
	}
}

func TestRunEmptySource(t *testing.T) {
	src := &sliceSource{}
	repo := &fakeRepo{}
	r := newTestRunner(t, repo, 10)

	if err := r.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rep := r.Report()
	if rep.Input() != 0 || rep.Cleaned() != 0 {
		t.Errorf("report input=%d cleaned=%d, want 0/0", rep.Input(), rep.Cleaned())
	}
	if repo.calls != 0 {
		t.Errorf("InsertTrips called %d times for empty source", repo.calls)
	}
}

func TestRunCancelledContext(t *testing.T) {
	src := &sliceSource{trips: []schema.RawTrip{rawTrip(0)}}
	repo := &fakeRepo{}
	r := newTestRunner(t, repo, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Run(ctx, src); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	v, err := validate.New(validate.DefaultLimits(), testLookup())
	if err != nil {
		t.Fatalf("validate.New: %v", err)
	}

	if _, err := New(Options{BatchSize: 0}, v, &fakeRepo{}); err == nil {
		t.Error("New accepted zero batch size")
	}
	if _, err := New(Options{BatchSize: 100}, nil, &fakeRepo{}); err == nil {
		t.Error("New accepted nil validator")
	}
	if _, err := New(Options{BatchSize: 100}, v, nil); err == nil {
		t.Error("New accepted nil repository")
	}
}
