// Package schema defines the record model shared by the cleaning pipeline
// and the storage layer.
package schema

import "time"

// TimeLayout is the timestamp layout used in the TLC trip dumps.
const TimeLayout = "2006-01-02 15:04:05"

// RawTrip is a single trip record as read from the source dump. Pointer
// fields distinguish absent or unparseable values from zero values; no
// invariants hold until the record has passed validation.
type RawTrip struct {
	// Line is the 1-based source line, kept for diagnostics only. It is not
	// part of the record identity and is ignored by duplicate detection.
	Line int

	PickupAt       *time.Time `db:"pickup_datetime"`
	DropoffAt      *time.Time `db:"dropoff_datetime"`
	PULocationID   *int       `db:"pu_location_id"`
	DOLocationID   *int       `db:"do_location_id"`
	PassengerCount *int       `db:"passenger_count"`
	TripDistance   *float64   `db:"trip_distance"`
	FareAmount     *float64   `db:"fare_amount"`
	TipAmount      *float64   `db:"tip_amount"`
	TotalAmount    *float64   `db:"total_amount"`
	PaymentType    *int       `db:"payment_type"`
}

// CleanTrip is a validated trip plus its derived features. Once written to
// storage it is never mutated; corrections regenerate the whole dataset.
type CleanTrip struct {
	PickupAt       time.Time `db:"pickup_datetime"`
	DropoffAt      time.Time `db:"dropoff_datetime"`
	PULocationID   int       `db:"pu_location_id"`
	DOLocationID   int       `db:"do_location_id"`
	PassengerCount int       `db:"passenger_count"`
	TripDistance   float64   `db:"trip_distance"`
	FareAmount     float64   `db:"fare_amount"`
	TipAmount      *float64  `db:"tip_amount"`
	TotalAmount    *float64  `db:"total_amount"`
	PaymentType    *int      `db:"payment_type"`

	DurationMinutes float64  `db:"trip_duration_minutes"`
	SpeedMPH        float64  `db:"speed_mph"`
	FarePerMile     *float64 `db:"fare_per_mile"` // nil when distance is not positive
	PickupHour      int      `db:"pickup_hour"`
	TimeOfDay       string   `db:"time_of_day"`
	IsWeekend       bool     `db:"is_weekend"`
}

// Zone is one row of the zone dimension table. The set is loaded once per
// run and treated as immutable.
type Zone struct {
	LocationID  int    `db:"location_id"`
	Borough     string `db:"borough"`
	Name        string `db:"zone_name"`
	ServiceZone string `db:"service_zone"`
}

// TripColumns is the destination column order for the trips fact table.
// Row values produced by CleanTrip.Row follow this order.
var TripColumns = []string{
	"pickup_datetime",
	"dropoff_datetime",
	"passenger_count",
	"trip_distance",
	"pu_location_id",
	"do_location_id",
	"fare_amount",
	"tip_amount",
	"total_amount",
	"payment_type",
	"trip_duration_minutes",
	"speed_mph",
	"fare_per_mile",
	"pickup_hour",
	"time_of_day",
	"is_weekend",
}

// Row returns the trip's values aligned to TripColumns. Optional fields map
// to nil so drivers bind them as NULL.
func (c CleanTrip) Row() []any {
	return []any{
		c.PickupAt,
		c.DropoffAt,
		c.PassengerCount,
		c.TripDistance,
		c.PULocationID,
		c.DOLocationID,
		c.FareAmount,
		floatPtrVal(c.TipAmount),
		floatPtrVal(c.TotalAmount),
		intPtrVal(c.PaymentType),
		c.DurationMinutes,
		c.SpeedMPH,
		floatPtrVal(c.FarePerMile),
		c.PickupHour,
		c.TimeOfDay,
		c.IsWeekend,
	}
}

func floatPtrVal(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtrVal(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
