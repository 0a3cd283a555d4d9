// Package zones loads the taxi zone dimension table and answers referential
// lookups for the validator and the query layer.
//
// The zone set is read fully into memory once per run and is immutable
// afterwards; trip records whose location ids do not resolve against it are
// rejected by the validation pipeline.
package zones

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"mobility/internal/schema"
)

// Lookup is the immutable zone dimension set keyed by location id.
type Lookup struct {
	byID map[int]schema.Zone
}

// LoadCSV reads a zone lookup file (LocationID,Borough,Zone,service_zone)
// from disk. The header row is required.
func LoadCSV(path string) (*Lookup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("zones: open %s: %w", path, err)
	}
	defer f.Close()
	l, err := FromReader(f)
	if err != nil {
		return nil, fmt.Errorf("zones: %s: %w", path, err)
	}
	return l, nil
}

// FromReader parses zone rows from r. Column order follows the TLC lookup
// file: LocationID, Borough, Zone, service_zone.
func FromReader(r io.Reader) (*Lookup, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 4 {
		return nil, fmt.Errorf("expected 4 columns, got %d", len(header))
	}

	byID := make(map[int]schema.Zone)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < 4 {
			return nil, fmt.Errorf("line %d: expected 4 columns, got %d", line, len(rec))
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: location id %q: %w", line, rec[0], err)
		}
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate location id %d", line, id)
		}
		byID[id] = schema.Zone{
			LocationID:  id,
			Borough:     cleanLabel(rec[1]),
			Name:        cleanLabel(rec[2]),
			ServiceZone: cleanLabel(rec[3]),
		}
	}
	if len(byID) == 0 {
		return nil, fmt.Errorf("no zones found")
	}
	return &Lookup{byID: byID}, nil
}

// FromSlice builds a Lookup from pre-built zones. Later duplicates of a
// location id overwrite earlier ones.
func FromSlice(zs []schema.Zone) *Lookup {
	byID := make(map[int]schema.Zone, len(zs))
	for _, z := range zs {
		byID[z.LocationID] = z
	}
	return &Lookup{byID: byID}
}

// cleanLabel trims edge whitespace and applies Unicode NFC so that zone and
// borough labels from differently-encoded dumps compare and group equal.
func cleanLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Resolve returns the zone for id.
func (l *Lookup) Resolve(id int) (schema.Zone, bool) {
	z, ok := l.byID[id]
	return z, ok
}

// Contains reports whether id exists in the dimension set.
func (l *Lookup) Contains(id int) bool {
	_, ok := l.byID[id]
	return ok
}

// All returns every zone ordered by location id.
func (l *Lookup) All() []schema.Zone {
	out := make([]schema.Zone, 0, len(l.byID))
	for _, z := range l.byID {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationID < out[j].LocationID })
	return out
}

// Len returns the number of zones.
func (l *Lookup) Len() int { return len(l.byID) }
