package validate

import "fmt"

// Limits holds the plausibility bounds applied by the validation stages.
// The zero value is not usable; start from DefaultLimits and override.
type Limits struct {
	MaxDistanceMiles float64 // stage bounds: distance must be in (0, MaxDistanceMiles]
	MaxFareAmount    float64 // stage bounds: fare must be in (0, MaxFareAmount]
	MaxPassengers    int     // stage bounds: passenger count must be in [1, MaxPassengers]
	MinDurationMin   float64 // stage duration: lower bound, minutes
	MaxDurationMin   float64 // stage duration: upper bound, minutes
	MaxSpeedMPH      float64 // stage speed: average speed upper bound
}

// DefaultLimits returns the standard bounds for yellow-cab trip data:
// 100 miles, 500 currency units, 6 passengers, 1-180 minutes, 80 mph.
func DefaultLimits() Limits {
	return Limits{
		MaxDistanceMiles: 100,
		MaxFareAmount:    500,
		MaxPassengers:    6,
		MinDurationMin:   1,
		MaxDurationMin:   180,
		MaxSpeedMPH:      80,
	}
}

// Validate rejects unusable bound configurations. A bad bound is a caller
// error and must fail the run before any record is processed, never be
// silently clamped.
func (l Limits) Validate() error {
	if l.MaxDistanceMiles <= 0 {
		return fmt.Errorf("limits: max distance must be positive, got %v", l.MaxDistanceMiles)
	}
	if l.MaxFareAmount <= 0 {
		return fmt.Errorf("limits: max fare must be positive, got %v", l.MaxFareAmount)
	}
	if l.MaxPassengers < 1 {
		return fmt.Errorf("limits: max passengers must be at least 1, got %d", l.MaxPassengers)
	}
	if l.MinDurationMin <= 0 {
		return fmt.Errorf("limits: min duration must be positive, got %v", l.MinDurationMin)
	}
	if l.MaxDurationMin <= l.MinDurationMin {
		return fmt.Errorf("limits: max duration %v must exceed min duration %v", l.MaxDurationMin, l.MinDurationMin)
	}
	if l.MaxSpeedMPH <= 0 {
		return fmt.Errorf("limits: max speed must be positive, got %v", l.MaxSpeedMPH)
	}
	return nil
}
