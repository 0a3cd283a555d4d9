// Package csv streams raw trip records out of a TLC trip dump in bounded
// batches so multi-million-row inputs never sit in memory at once.
//
// Parsing is fail-soft at the cell level: a cell that does not parse leaves
// its field nil, and the completeness/bounds validation stages reject the
// record with a counted reason. This keeps the cleaning report's
// conservation law intact; the reader itself only fails on I/O errors.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mobility/internal/schema"
)

// Options tunes the underlying csv.Reader. The zero value is not useful;
// start from DefaultOptions.
type Options struct {
	Comma      rune
	TrimSpace  bool
	LazyQuotes bool
}

// DefaultOptions matches the TLC dumps: comma-separated, tolerant of edge
// whitespace and stray quotes.
func DefaultOptions() Options {
	return Options{Comma: ',', TrimSpace: true, LazyQuotes: true}
}

// Canonical field names the reader maps source headers onto. The alias
// table covers the yellow (tpep_) and green (lpep_) dump variants.
var headerAliases = map[string]string{
	"tpep_pickup_datetime":  "pickup_datetime",
	"lpep_pickup_datetime":  "pickup_datetime",
	"pickup_datetime":       "pickup_datetime",
	"tpep_dropoff_datetime": "dropoff_datetime",
	"lpep_dropoff_datetime": "dropoff_datetime",
	"dropoff_datetime":      "dropoff_datetime",
	"pulocationid":          "pu_location_id",
	"pu_location_id":        "pu_location_id",
	"dolocationid":          "do_location_id",
	"do_location_id":        "do_location_id",
	"passenger_count":       "passenger_count",
	"trip_distance":         "trip_distance",
	"fare_amount":           "fare_amount",
	"tip_amount":            "tip_amount",
	"total_amount":          "total_amount",
	"payment_type":          "payment_type",
}

// TripReader streams RawTrip batches from one source. It is single-use and
// not safe for concurrent readers.
type TripReader struct {
	cr   *csv.Reader
	cols map[string]int // canonical field -> source column index
	trim bool
	line int // 1-based, counting the header
}

// NewTripReader wraps r and consumes its header row. Headers are matched
// case-insensitively through the alias table; fields without a matching
// column simply stay nil on every record.
func NewTripReader(r io.Reader, opt Options) (*TripReader, error) {
	cr := csv.NewReader(r)
	cr.Comma = opt.Comma
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	tr := &TripReader{cr: cr, cols: make(map[string]int), trim: opt.TrimSpace}

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	tr.line = 1
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff") // strip BOM
		}
		if canonical, ok := headerAliases[strings.ToLower(h)]; ok {
			tr.cols[canonical] = i
		}
	}
	if _, ok := tr.cols["pickup_datetime"]; !ok {
		return nil, fmt.Errorf("csv: header has no pickup timestamp column")
	}
	return tr, nil
}

// ReadBatch returns up to n records. It returns io.EOF (with an empty
// batch) once the source is exhausted; a short batch alongside a nil error
// is never produced except at the end of input.
func (tr *TripReader) ReadBatch(n int) ([]schema.RawTrip, error) {
	if n <= 0 {
		return nil, fmt.Errorf("csv: batch size must be positive, got %d", n)
	}
	batch := make([]schema.RawTrip, 0, n)
	for len(batch) < n {
		rec, err := tr.cr.Read()
		if err == io.EOF {
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}
		tr.line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// A malformed line still counts as one input record; with
				// every field nil it is rejected by the completeness stage.
				batch = append(batch, schema.RawTrip{Line: tr.line})
				continue
			}
			return batch, fmt.Errorf("csv: line %d: %w", tr.line, err)
		}
		batch = append(batch, tr.parse(rec))
	}
	return batch, nil
}

// Line returns the last source line consumed (header included).
func (tr *TripReader) Line() int { return tr.line }

func (tr *TripReader) parse(rec []string) schema.RawTrip {
	cell := func(field string) (string, bool) {
		i, ok := tr.cols[field]
		if !ok || i >= len(rec) {
			return "", false
		}
		v := rec[i]
		if tr.trim {
			v = strings.TrimSpace(v)
		}
		if v == "" {
			return "", false
		}
		return v, true
	}

	r := schema.RawTrip{Line: tr.line}
	r.PickupAt = parseTime(cell("pickup_datetime"))
	r.DropoffAt = parseTime(cell("dropoff_datetime"))
	r.PULocationID = parseInt(cell("pu_location_id"))
	r.DOLocationID = parseInt(cell("do_location_id"))
	r.PassengerCount = parseInt(cell("passenger_count"))
	r.TripDistance = parseFloat(cell("trip_distance"))
	r.FareAmount = parseFloat(cell("fare_amount"))
	r.TipAmount = parseFloat(cell("tip_amount"))
	r.TotalAmount = parseFloat(cell("total_amount"))
	r.PaymentType = parseInt(cell("payment_type"))
	return r
}

func parseTime(s string, ok bool) *time.Time {
	if !ok {
		return nil
	}
	t, err := time.Parse(schema.TimeLayout, s)
	if err != nil {
		// Some dumps use RFC 3339 timestamps.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return nil
		}
	}
	return &t
}

// parseInt accepts plain integers and float-formatted integers; several
// dump vintages encode passenger_count as "1.0".
func parseInt(s string, ok bool) *int {
	if !ok {
		return nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return &i
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return nil
	}
	i := int(f)
	return &i
}

func parseFloat(s string, ok bool) *float64 {
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
