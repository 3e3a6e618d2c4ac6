package fare

import (
	"math"
	"testing"
	"time"
)

func TestDurationMinutes_Rounding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 1},
		{1 * time.Second, 1},
		{59 * time.Second, 1},
		{60 * time.Second, 1},
		{61 * time.Second, 1},
		{89 * time.Second, 1},
		{90 * time.Second, 2},
		{125 * time.Second, 2},
		{3599 * time.Second, 60},
	}

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		secs := DurationSeconds(start, start.Add(tt.elapsed))
		if got := DurationMinutes(secs); got != tt.want {
			t.Errorf("elapsed %v: expected %d minutes, got %d", tt.elapsed, tt.want, got)
		}
	}
}

func TestDurationSeconds_Floors(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := DurationSeconds(start, start.Add(1999*time.Millisecond)); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := DurationSeconds(start, start.Add(2500*time.Millisecond)); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	// clock skew
	if got := DurationSeconds(start, start.Add(-time.Minute)); got != 1 {
		t.Errorf("expected 1 for negative duration, got %d", got)
	}
}

func TestCompute_TwoMinuteTrip(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := DefaultRates().Compute(start, start.Add(125*time.Second))

	if b.DurationSeconds != 125 {
		t.Errorf("expected 125 seconds, got %d", b.DurationSeconds)
	}
	if b.DurationMinutes != 2 {
		t.Errorf("expected 2 minutes, got %d", b.DurationMinutes)
	}
	if b.Fare != 2.00 {
		t.Errorf("expected fare 2.00, got %.2f", b.Fare)
	}
	if b.DriverPayout != 1.60 {
		t.Errorf("expected payout 1.60, got %.2f", b.DriverPayout)
	}
}

func TestCompute_FareMonotonicAndPayoutFraction(t *testing.T) {
	t.Parallel()

	rates := Rates{PerMinute: 1.37, PayoutFraction: 0.8}
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	prev := -1.0
	for secs := 0; secs <= 7200; secs += 17 {
		b := rates.Compute(start, start.Add(time.Duration(secs)*time.Second))
		if b.Fare < prev {
			t.Fatalf("fare decreased at %ds: %.2f < %.2f", secs, b.Fare, prev)
		}
		prev = b.Fare

		if math.Abs(b.DriverPayout-Round2(b.Fare*0.8)) > 1e-9 {
			t.Fatalf("payout %.2f is not 80%% of fare %.2f", b.DriverPayout, b.Fare)
		}
	}
}

func TestEstimate(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := DefaultRates().Estimate(start, start.Add(90*time.Second+400*time.Millisecond))

	if e.ElapsedSeconds != 90 {
		t.Errorf("expected 90 elapsed seconds, got %d", e.ElapsedSeconds)
	}
	if e.ElapsedMinutes != 1.5 {
		t.Errorf("expected 1.5 minutes, got %f", e.ElapsedMinutes)
	}
	if e.Fare != 1.5 {
		t.Errorf("expected estimated fare 1.5, got %f", e.Fare)
	}

	if early := DefaultRates().Estimate(start, start.Add(-time.Second)); early.Fare != 0 {
		t.Errorf("expected zero estimate before start, got %f", early.Fare)
	}
}

func TestResolveDistance(t *testing.T) {
	t.Parallel()

	stored := 5000
	zero := 0

	if got := ResolveDistance(&stored, 1609.4); got != 5000 {
		t.Errorf("stored distance should win, got %d", got)
	}
	if got := ResolveDistance(&zero, 1609.4); got != 1609 {
		t.Errorf("zero stored distance should fall back to tracked, got %d", got)
	}
	if got := ResolveDistance(nil, 1609.6); got != 1610 {
		t.Errorf("expected rounded tracked distance 1610, got %d", got)
	}
}

func TestRound2(t *testing.T) {
	t.Parallel()

	if got := Round2(1.6000000000000001); got != 1.6 {
		t.Errorf("expected 1.6, got %v", got)
	}
	if got := Round2(2.004); got != 2.0 {
		t.Errorf("expected 2.0, got %v", got)
	}
	if got := Round2(2.006); got != 2.01 {
		t.Errorf("expected 2.01, got %v", got)
	}
}
