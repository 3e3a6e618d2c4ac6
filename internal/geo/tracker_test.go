package geo

import (
	"math"
	"testing"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversine_OneHundredthDegreeAtEquator(t *testing.T) {
	d := Haversine(0, 0, 0, 0.01)
	// 2*pi*R/36000
	if math.Abs(d-1111.95) > 0.5 {
		t.Fatalf("expected ~1111.95m, got %f", d)
	}
}

func TestTracker_FirstSampleAddsNothing(t *testing.T) {
	var tr Tracker
	if added := tr.AddSample(51.5, -0.12); added != 0 {
		t.Fatalf("expected 0 for first sample, got %f", added)
	}
	if tr.TotalMeters != 0 {
		t.Fatalf("expected total 0, got %f", tr.TotalMeters)
	}
	if tr.Last == nil || tr.Last.Lat != 51.5 || tr.Last.Lon != -0.12 {
		t.Fatalf("expected anchored position, got %+v", tr.Last)
	}
}

func TestTracker_DistanceIsAdditive(t *testing.T) {
	var tr Tracker
	tr.AddSample(0, 0)
	first := tr.AddSample(0, 0.01)
	second := tr.AddSample(0, 0.02)

	direct := Haversine(0, 0, 0, 0.02)
	if math.Abs(tr.TotalMeters-direct) > 0.01 {
		t.Fatalf("expected total %f to match direct distance %f", tr.TotalMeters, direct)
	}
	if math.Abs(first+second-tr.TotalMeters) > 1e-9 {
		t.Fatalf("returned increments %f + %f do not sum to total %f", first, second, tr.TotalMeters)
	}
	if math.Abs(tr.TotalMeters-2223.9) > 1 {
		t.Fatalf("expected ~2223.9m, got %f", tr.TotalMeters)
	}
}

func TestTracker_StationarySamples(t *testing.T) {
	var tr Tracker
	for i := 0; i < 5; i++ {
		tr.AddSample(40.7128, -74.0060)
	}
	if tr.TotalMeters != 0 {
		t.Fatalf("expected no distance for repeated position, got %f", tr.TotalMeters)
	}
}

func TestTracker_Reset(t *testing.T) {
	var tr Tracker
	tr.AddSample(0, 0)
	tr.AddSample(0, 0.01)

	tr.Reset()
	if tr.TotalMeters != 0 || tr.Last != nil {
		t.Fatalf("expected cleared tracker, got %+v", tr)
	}
	if added := tr.AddSample(0, 0.05); added != 0 {
		t.Fatalf("expected first sample after reset to add 0, got %f", added)
	}
}

func TestTracker_Miles(t *testing.T) {
	tr := Tracker{TotalMeters: 1609.34}
	if math.Abs(tr.Miles()-1) > 1e-9 {
		t.Fatalf("expected 1 mile, got %f", tr.Miles())
	}
}
