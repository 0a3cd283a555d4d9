package csv

import (
	"io"
	"strings"
	"testing"
	"time"

	"mobility/internal/schema"
)

const yellowHeader = "tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,PULocationID,DOLocationID,fare_amount,tip_amount,total_amount,payment_type"

func newReader(t *testing.T, body string) *TripReader {
	t.Helper()
	tr, err := NewTripReader(strings.NewReader(body), DefaultOptions())
	if err != nil {
		t.Fatalf("NewTripReader: %v", err)
	}
	return tr
}

func TestReadBatchYellowDump(t *testing.T) {
	body := yellowHeader + "\n" +
		"2024-01-01 08:00:00,2024-01-01 08:10:00,1,2.0,100,200,12.0,2.5,14.5,1\n"

	tr := newReader(t, body)
	batch, err := tr.ReadBatch(10)
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("len(batch) = %d, want 1", len(batch))
	}

	r := batch[0]
	wantPickup := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	if r.PickupAt == nil || !r.PickupAt.Equal(wantPickup) {
		t.Errorf("PickupAt = %v, want %v", r.PickupAt, wantPickup)
	}
	if r.DropoffAt == nil || !r.DropoffAt.Equal(wantPickup.Add(10*time.Minute)) {
		t.Errorf("DropoffAt = %v", r.DropoffAt)
	}
	if r.PULocationID == nil || *r.PULocationID != 100 {
		t.Errorf("PULocationID = %v, want 100", r.PULocationID)
	}
	if r.DOLocationID == nil || *r.DOLocationID != 200 {
		t.Errorf("DOLocationID = %v, want 200", r.DOLocationID)
	}
	if r.PassengerCount == nil || *r.PassengerCount != 1 {
		t.Errorf("PassengerCount = %v, want 1", r.PassengerCount)
	}
	if r.TripDistance == nil || *r.TripDistance != 2.0 {
		t.Errorf("TripDistance = %v, want 2.0", r.TripDistance)
	}
	if r.FareAmount == nil || *r.FareAmount != 12.0 {
		t.Errorf("FareAmount = %v, want 12.0", r.FareAmount)
	}
	if r.Line != 2 {
		t.Errorf("Line = %d, want 2", r.Line)
	}

	// Source exhausted: next call reports io.EOF with no records.
	if _, err := tr.ReadBatch(10); err != io.EOF {
		t.Fatalf("second ReadBatch error = %v, want io.EOF", err)
	}
}

func TestReadBatchBounds(t *testing.T) {
	var b strings.Builder
	b.WriteString(yellowHeader + "\n")
	for i := 0; i < 5; i++ {
		b.WriteString("2024-01-01 08:00:00,2024-01-01 08:10:00,1,2.0,100,200,12.0,,,\n")
	}

	tr := newReader(t, b.String())

	first, err := tr.ReadBatch(2)
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first batch = %d records, want 2", len(first))
	}

	second, err := tr.ReadBatch(2)
	if err != nil || len(second) != 2 {
		t.Fatalf("second batch = %d records, err %v", len(second), err)
	}

	// Last batch is short; the error comes on the following call.
	third, err := tr.ReadBatch(2)
	if err != nil || len(third) != 1 {
		t.Fatalf("third batch = %d records, err %v", len(third), err)
	}
	if _, err := tr.ReadBatch(2); err != io.EOF {
		t.Fatalf("final ReadBatch error = %v, want io.EOF", err)
	}
}

// Unparseable cells leave fields nil; the record itself still comes through
// so downstream stages can reject and count it.
func TestReadBatchBadCells(t *testing.T) {
	body := yellowHeader + "\n" +
		"not-a-date,2024-01-01 08:10:00,1.5,abc,100,200,12.0,,,\n"

	tr := newReader(t, body)
	batch, err := tr.ReadBatch(10)
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("len(batch) = %d, want 1", len(batch))
	}

	r := batch[0]
	if r.PickupAt != nil {
		t.Errorf("PickupAt = %v, want nil for bad timestamp", r.PickupAt)
	}
	if r.DropoffAt == nil {
		t.Error("DropoffAt = nil, want parsed value")
	}
	if r.PassengerCount != nil {
		t.Errorf("PassengerCount = %v, want nil for non-integral float", r.PassengerCount)
	}
	if r.TripDistance != nil {
		t.Errorf("TripDistance = %v, want nil", r.TripDistance)
	}
}

// Float-formatted integers are accepted; several dump vintages write "1.0".
func TestReadBatchFloatFormattedInts(t *testing.T) {
	body := yellowHeader + "\n" +
		"2024-01-01 08:00:00,2024-01-01 08:10:00,1.0,2.0,100.0,200,12.0,,,\n"

	tr := newReader(t, body)
	batch, err := tr.ReadBatch(1)
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	r := batch[0]
	if r.PassengerCount == nil || *r.PassengerCount != 1 {
		t.Errorf("PassengerCount = %v, want 1", r.PassengerCount)
	}
	if r.PULocationID == nil || *r.PULocationID != 100 {
		t.Errorf("PULocationID = %v, want 100", r.PULocationID)
	}
}

func TestReadBatchGreenAndPlainHeaders(t *testing.T) {
	for name, header := range map[string]string{
		"green": "lpep_pickup_datetime,lpep_dropoff_datetime,trip_distance,fare_amount,PULocationID,DOLocationID",
		"plain": "pickup_datetime,dropoff_datetime,trip_distance,fare_amount,pu_location_id,do_location_id",
	} {
		t.Run(name, func(t *testing.T) {
			body := header + "\n2024-01-01 08:00:00,2024-01-01 08:10:00,2.0,12.0,100,200\n"
			tr := newReader(t, body)
			batch, err := tr.ReadBatch(1)
			if err != nil {
				t.Fatalf("ReadBatch: %v", err)
			}
			r := batch[0]
			if r.PickupAt == nil || r.TripDistance == nil || r.PULocationID == nil {
				t.Errorf("fields not mapped: %+v", r)
			}
			if r.PassengerCount != nil {
				t.Errorf("PassengerCount = %v, want nil (column absent)", r.PassengerCount)
			}
		})
	}
}

func TestNewTripReaderRequiresPickupColumn(t *testing.T) {
	if _, err := NewTripReader(strings.NewReader("foo,bar\n1,2\n"), DefaultOptions()); err == nil {
		t.Fatal("NewTripReader accepted a header without a pickup column")
	}
}

func TestNewTripReaderEmptyInput(t *testing.T) {
	if _, err := NewTripReader(strings.NewReader(""), DefaultOptions()); err == nil {
		t.Fatal("NewTripReader accepted empty input")
	}
}

// A structurally broken line still yields exactly one (empty) record so row
// accounting stays exact; the completeness stage rejects it downstream.
// Lazy quoting is disabled here since it forgives the bare quote.
func TestReadBatchMalformedLine(t *testing.T) {
	body := yellowHeader + "\n" +
		"2024-01-01 08:00:00,2024-01-01 08:10:00,1,2.0,100,200,12.0,,,\n" +
		"2024-01-01 08:30:00,2024-01-01 08:40:00,1,2.0,ab\"cd,200,12.0,,,\n" +
		"2024-01-01 09:00:00,2024-01-01 09:10:00,1,2.0,100,200,12.0,,,\n"

	opt := DefaultOptions()
	opt.LazyQuotes = false
	tr, err := NewTripReader(strings.NewReader(body), opt)
	if err != nil {
		t.Fatalf("NewTripReader: %v", err)
	}

	var all []schema.RawTrip
	for {
		batch, err := tr.ReadBatch(10)
		all = append(all, batch...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadBatch: %v", err)
		}
	}

	if len(all) != 3 {
		t.Fatalf("got %d records, want 3 (malformed line included)", len(all))
	}
	bad := all[1]
	if bad.PickupAt != nil || bad.FareAmount != nil {
		t.Errorf("malformed line should have all-nil fields: %+v", bad)
	}
}

func TestReadBatchInvalidSize(t *testing.T) {
	tr := newReader(t, yellowHeader+"\n")
	if _, err := tr.ReadBatch(0); err == nil {
		t.Fatal("ReadBatch(0) did not fail")
	}
}

func TestReadBatchCustomDelimiter(t *testing.T) {
	opt := DefaultOptions()
	opt.Comma = ';'
	body := strings.ReplaceAll(yellowHeader, ",", ";") + "\n" +
		"2024-01-01 08:00:00;2024-01-01 08:10:00;1;2.0;100;200;12.0;;;\n"

	tr, err := NewTripReader(strings.NewReader(body), opt)
	if err != nil {
		t.Fatalf("NewTripReader: %v", err)
	}
	batch, err := tr.ReadBatch(1)
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if batch[0].TripDistance == nil || *batch[0].TripDistance != 2.0 {
		t.Errorf("TripDistance = %v, want 2.0", batch[0].TripDistance)
	}
}
