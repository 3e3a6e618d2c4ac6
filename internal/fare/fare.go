package fare

import (
	"math"
	"time"
)

const (
	DefaultRatePerMinute  = 1.0
	DefaultPayoutFraction = 0.8
)

// Rates is the per-minute pricing in effect.
type Rates struct {
	PerMinute      float64
	PayoutFraction float64
}

// DefaultRates returns the stock MinuteRide pricing.
func DefaultRates() Rates {
	return Rates{PerMinute: DefaultRatePerMinute, PayoutFraction: DefaultPayoutFraction}
}

// Breakdown is the billed result of a completed trip.
type Breakdown struct {
	DurationSeconds int
	DurationMinutes int
	Fare            float64
	DriverPayout    float64
}

// Estimate is a live, display-only projection of a running trip.
type Estimate struct {
	ElapsedSeconds int
	ElapsedMinutes float64
	Fare           float64
}

// Compute bills a trip that ran from start to end.
// Every trip is billed at least one second and one minute.
func (r Rates) Compute(start, end time.Time) Breakdown {
	secs := DurationSeconds(start, end)
	mins := DurationMinutes(secs)
	f := Round2(float64(mins) * r.PerMinute)

	return Breakdown{
		DurationSeconds: secs,
		DurationMinutes: mins,
		Fare:            f,
		DriverPayout:    Round2(f * r.PayoutFraction),
	}
}

// Estimate projects the running fare at now. Unlike Compute it is not rounded to
// whole minutes and has no minimum.
func (r Rates) Estimate(start, now time.Time) Estimate {
	secs := int(math.Floor(now.Sub(start).Seconds()))
	if secs < 0 {
		secs = 0
	}
	mins := float64(secs) / 60

	return Estimate{
		ElapsedSeconds: secs,
		ElapsedMinutes: mins,
		Fare:           mins * r.PerMinute,
	}
}

// DurationSeconds returns whole elapsed seconds, never less than 1.
func DurationSeconds(start, end time.Time) int {
	secs := int(math.Floor(end.Sub(start).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// DurationMinutes rounds seconds to the nearest minute, never less than 1.
func DurationMinutes(secs int) int {
	mins := int(math.Round(float64(secs) / 60))
	if mins < 1 {
		return 1
	}
	return mins
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ResolveDistance picks the distance to persist at completion. A non-zero value
// already stored on the job takes precedence over the locally tracked one.
func ResolveDistance(stored *int, trackedMeters float64) int {
	if stored != nil && *stored != 0 {
		return *stored
	}
	d := int(math.Round(trackedMeters))
	if d < 0 {
		return 0
	}
	return d
}
