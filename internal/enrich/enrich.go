// Package enrich computes the derived features of an accepted trip record.
//
// Enrichment is a pure transform with no rejection path: by construction,
// records reaching it have already passed the validation stages that make
// the derived arithmetic well defined. A record that would still divide by
// a non-positive duration or distance indicates a broken validator/enricher
// contract and is surfaced as ErrArithmeticGuard rather than swallowed.
package enrich

import (
	"errors"
	"fmt"
	"time"

	"mobility/internal/schema"
)

// ErrArithmeticGuard marks an enrichment computation that would be
// undefined despite the record having passed validation. It is an internal
// invariant breach and must abort the run.
var ErrArithmeticGuard = errors.New("enrich: arithmetic guard failure")

// Time-of-day buckets assigned from the pickup hour (0-23):
//
//	[MorningStartHour, AfternoonStartHour)  -> Morning
//	[AfternoonStartHour, EveningStartHour)  -> Afternoon
//	[EveningStartHour, NightStartHour)      -> Evening
//	everything else                         -> Night
const (
	MorningStartHour   = 5
	AfternoonStartHour = 12
	EveningStartHour   = 17
	NightStartHour     = 21
)

// Bucket labels stored in the time_of_day column.
const (
	Morning   = "Morning"
	Afternoon = "Afternoon"
	Evening   = "Evening"
	Night     = "Night"
)

// TimeOfDay maps a pickup hour onto its bucket label.
func TimeOfDay(hour int) string {
	switch {
	case hour >= MorningStartHour && hour < AfternoonStartHour:
		return Morning
	case hour >= AfternoonStartHour && hour < EveningStartHour:
		return Afternoon
	case hour >= EveningStartHour && hour < NightStartHour:
		return Evening
	default:
		return Night
	}
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Trip converts a validated raw record into a CleanTrip with derived
// features. The caller guarantees the record passed every validation stage.
func Trip(r *schema.RawTrip) (schema.CleanTrip, error) {
	duration := r.DropoffAt.Sub(*r.PickupAt).Minutes()
	if duration <= 0 {
		return schema.CleanTrip{}, fmt.Errorf("%w: non-positive duration %.4f min at line %d",
			ErrArithmeticGuard, duration, r.Line)
	}
	distance := *r.TripDistance
	if distance <= 0 {
		return schema.CleanTrip{}, fmt.Errorf("%w: non-positive distance %.4f at line %d",
			ErrArithmeticGuard, distance, r.Line)
	}

	c := schema.CleanTrip{
		PickupAt:       *r.PickupAt,
		DropoffAt:      *r.DropoffAt,
		PULocationID:   *r.PULocationID,
		DOLocationID:   *r.DOLocationID,
		PassengerCount: *r.PassengerCount,
		TripDistance:   distance,
		FareAmount:     *r.FareAmount,
		TipAmount:      r.TipAmount,
		TotalAmount:    r.TotalAmount,
		PaymentType:    r.PaymentType,

		DurationMinutes: duration,
		SpeedMPH:        distance / (duration / 60),
		PickupHour:      r.PickupAt.Hour(),
		TimeOfDay:       TimeOfDay(r.PickupAt.Hour()),
		IsWeekend:       IsWeekend(*r.PickupAt),
	}

	// Distance is positive here, so fare-per-mile is always defined for
	// validated records. The column keeps its NULL sentinel for unposted
	// values; validated trips always carry a concrete ratio.
	fpm := c.FareAmount / distance
	c.FarePerMile = &fpm

	return c, nil
}
