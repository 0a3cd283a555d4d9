// Package validate implements the ordered record-rejection pipeline applied
// to raw trip records before enrichment.
//
// The stages are expressed as an ordered list of named predicates rather
// than nested branching so that stage order and stage attribution are
// independently testable. A record is blamed on the first failing stage in
// pipeline order and never counted twice; field-completeness and temporal
// checks run before duration and speed so the later arithmetic is always
// well defined.
package validate

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/zeebo/xxh3"

	"mobility/internal/schema"
	"mobility/internal/zones"
)

// Stage names, in pipeline order.
const (
	StageDuplicates     = "duplicates"
	StageMissingFields  = "missing_fields"
	StageTimestampOrder = "timestamp_order"
	StageBounds         = "bounds"
	StageUnknownZone    = "unknown_zone"
	StageDuration       = "duration"
	StageSpeed          = "speed"
)

// StageNames returns the stage names in pipeline order. The slice is fresh
// on every call; callers may keep it.
func StageNames() []string {
	return []string{
		StageDuplicates,
		StageMissingFields,
		StageTimestampOrder,
		StageBounds,
		StageUnknownZone,
		StageDuration,
		StageSpeed,
	}
}

// Rejection reports why a record was dropped and by which stage.
type Rejection struct {
	Stage  string
	Reason string
}

type stage struct {
	name  string
	check func(*schema.RawTrip) (bool, string)
}

// Validator applies the rejection stages to one record at a time. It is
// stateless per record except for duplicate detection, which tracks the
// hashes of every record seen during the run. A Validator covers exactly
// one pipeline run; build a fresh one per run so runs stay independent.
type Validator struct {
	stages []stage
	seen   map[xxh3.Uint128]struct{}
}

// New builds a Validator for the given bounds and zone dimension set.
// Invalid limits fail here, before any record is processed.
func New(limits Limits, lookup *zones.Lookup) (*Validator, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if lookup == nil || lookup.Len() == 0 {
		return nil, fmt.Errorf("validate: zone lookup must not be empty")
	}

	v := &Validator{seen: make(map[xxh3.Uint128]struct{})}
	v.stages = []stage{
		{StageDuplicates, v.checkDuplicate},
		{StageMissingFields, checkMissingFields},
		{StageTimestampOrder, checkTimestampOrder},
		{StageBounds, boundsCheck(limits)},
		{StageUnknownZone, zoneCheck(lookup)},
		{StageDuration, durationCheck(limits)},
		{StageSpeed, speedCheck(limits)},
	}
	return v, nil
}

// Check runs the stages in order and returns nil when the record is
// accepted, or the first failing stage's Rejection otherwise.
func (v *Validator) Check(r *schema.RawTrip) *Rejection {
	for _, s := range v.stages {
		if ok, reason := s.check(r); !ok {
			return &Rejection{Stage: s.name, Reason: reason}
		}
	}
	return nil
}

// checkDuplicate drops exact duplicates of earlier records, keeping the
// first instance. Identity is the xxh3 128-bit hash of the canonical field
// encoding; the source line number is deliberately excluded.
func (v *Validator) checkDuplicate(r *schema.RawTrip) (bool, string) {
	h := hashTrip(r)
	if _, dup := v.seen[h]; dup {
		return false, "exact duplicate of an earlier record"
	}
	v.seen[h] = struct{}{}
	return true, ""
}

func checkMissingFields(r *schema.RawTrip) (bool, string) {
	switch {
	case r.PickupAt == nil:
		return false, "missing pickup timestamp"
	case r.DropoffAt == nil:
		return false, "missing dropoff timestamp"
	case r.PULocationID == nil:
		return false, "missing pickup zone id"
	case r.DOLocationID == nil:
		return false, "missing dropoff zone id"
	case r.FareAmount == nil:
		return false, "missing fare amount"
	case r.TripDistance == nil:
		return false, "missing trip distance"
	}
	return true, ""
}

func checkTimestampOrder(r *schema.RawTrip) (bool, string) {
	if r.DropoffAt.Before(*r.PickupAt) {
		return false, fmt.Sprintf("dropoff %s before pickup %s",
			r.DropoffAt.Format(schema.TimeLayout), r.PickupAt.Format(schema.TimeLayout))
	}
	return true, ""
}

func boundsCheck(l Limits) func(*schema.RawTrip) (bool, string) {
	return func(r *schema.RawTrip) (bool, string) {
		if d := *r.TripDistance; d <= 0 || d > l.MaxDistanceMiles {
			return false, fmt.Sprintf("distance %.2f outside (0, %.0f]", d, l.MaxDistanceMiles)
		}
		if f := *r.FareAmount; f <= 0 || f > l.MaxFareAmount {
			return false, fmt.Sprintf("fare %.2f outside (0, %.0f]", f, l.MaxFareAmount)
		}
		if r.PassengerCount == nil {
			return false, "missing passenger count"
		}
		if p := *r.PassengerCount; p <= 0 || p > l.MaxPassengers {
			return false, fmt.Sprintf("passenger count %d outside [1, %d]", p, l.MaxPassengers)
		}
		return true, ""
	}
}

func zoneCheck(lookup *zones.Lookup) func(*schema.RawTrip) (bool, string) {
	return func(r *schema.RawTrip) (bool, string) {
		if !lookup.Contains(*r.PULocationID) {
			return false, fmt.Sprintf("unknown pickup zone id %d", *r.PULocationID)
		}
		if !lookup.Contains(*r.DOLocationID) {
			return false, fmt.Sprintf("unknown dropoff zone id %d", *r.DOLocationID)
		}
		return true, ""
	}
}

func durationCheck(l Limits) func(*schema.RawTrip) (bool, string) {
	return func(r *schema.RawTrip) (bool, string) {
		d := DurationMinutes(r)
		if d < l.MinDurationMin || d > l.MaxDurationMin {
			return false, fmt.Sprintf("duration %.2f min outside [%.0f, %.0f]", d, l.MinDurationMin, l.MaxDurationMin)
		}
		return true, ""
	}
}

func speedCheck(l Limits) func(*schema.RawTrip) (bool, string) {
	return func(r *schema.RawTrip) (bool, string) {
		// Duration is at least the configured minimum by the time this stage
		// runs, so the division is well defined.
		speed := *r.TripDistance / (DurationMinutes(r) / 60)
		if speed > l.MaxSpeedMPH {
			return false, fmt.Sprintf("average speed %.1f mph exceeds %.0f", speed, l.MaxSpeedMPH)
		}
		return true, ""
	}
}

// DurationMinutes computes the trip duration in fractional minutes. Both
// timestamps must be present.
func DurationMinutes(r *schema.RawTrip) float64 {
	return r.DropoffAt.Sub(*r.PickupAt).Minutes()
}

// hashTrip produces the canonical 128-bit identity hash of a raw record.
// Each field is written with a presence marker so that nil and zero values
// hash differently, and fixed-width encodings keep field boundaries
// unambiguous without separators.
func hashTrip(r *schema.RawTrip) xxh3.Uint128 {
	buf := make([]byte, 0, 96)
	buf = appendTimePtr(buf, r.PickupAt)
	buf = appendTimePtr(buf, r.DropoffAt)
	buf = appendIntPtr(buf, r.PULocationID)
	buf = appendIntPtr(buf, r.DOLocationID)
	buf = appendIntPtr(buf, r.PassengerCount)
	buf = appendFloatPtr(buf, r.TripDistance)
	buf = appendFloatPtr(buf, r.FareAmount)
	buf = appendFloatPtr(buf, r.TipAmount)
	buf = appendFloatPtr(buf, r.TotalAmount)
	buf = appendIntPtr(buf, r.PaymentType)
	return xxh3.Hash128(buf)
}

func appendTimePtr(b []byte, p *time.Time) []byte {
	if p == nil {
		return append(b, 0)
	}
	b = append(b, 1)
	return binary.LittleEndian.AppendUint64(b, uint64(p.UnixNano()))
}

func appendIntPtr(b []byte, p *int) []byte {
	if p == nil {
		return append(b, 0)
	}
	b = append(b, 1)
	return binary.LittleEndian.AppendUint64(b, uint64(*p))
}

func appendFloatPtr(b []byte, p *float64) []byte {
	if p == nil {
		return append(b, 0)
	}
	b = append(b, 1)
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(*p))
}
