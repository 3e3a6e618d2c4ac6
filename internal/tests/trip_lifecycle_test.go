package tests

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"minuteride/internal/domain"
	"minuteride/internal/fare"
	"minuteride/internal/geo"
	"minuteride/internal/lifecycle"
	"minuteride/internal/logging"
	"minuteride/internal/observability"
	"minuteride/internal/service"
)

type tripFixture struct {
	jobs      *MockJobRepository
	sessions  *MockSessionStore
	locations *MockLocationStore
	clock     *FakeClock
	svc       *service.TripService
}

func newTripFixture() *tripFixture {
	f := &tripFixture{
		jobs:      NewMockJobRepository(),
		sessions:  NewMockSessionStore(),
		locations: NewMockLocationStore(),
		clock:     NewFakeClock(time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)),
	}
	f.svc = service.NewTripService(f.jobs, f.sessions, f.locations, &MockPublisher{}, service.TripConfig{
		Rates: fare.DefaultRates(),
		Clock: f.clock.Now,
	}, logging.Discard())
	return f
}

func (f *tripFixture) assignedJob(id, driverID string) {
	f.jobs.AddJob(&domain.Job{ID: id, Status: domain.JobStatusAssigned, AssignedDriverID: driverID, Pickup: "A", Dropoff: "B"})
}

// ──────────────────────────────────────────────
// 5. TRIP LIFECYCLE
// ──────────────────────────────────────────────

func TestTrip_EndToEndBilling(t *testing.T) {
	t.Parallel()

	f := newTripFixture()
	ctx := context.Background()
	f.assignedJob("job-1", driverA.ID)

	started, err := f.svc.StartTrip(ctx, "job-1", driverA.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.Job.Status != domain.JobStatusInProgress {
		t.Fatalf("expected in_progress, got %s", started.Job.Status)
	}
	if !started.Job.StartedAt.Equal(f.clock.Now()) {
		t.Errorf("expected started_at %v, got %v", f.clock.Now(), started.Job.StartedAt)
	}

	// Two samples about one mile apart along the equator.
	if _, _, err := f.svc.RecordPosition(ctx, driverA.ID, 0, 0); err != nil {
		t.Fatalf("record position: %v", err)
	}
	f.clock.Advance(60 * time.Second)
	_, added, err := f.svc.RecordPosition(ctx, driverA.ID, 0, 0.01447)
	if err != nil {
		t.Fatalf("record position: %v", err)
	}
	wantMeters := geo.Haversine(0, 0, 0, 0.01447)
	if math.Abs(added-wantMeters) > 1e-6 {
		t.Errorf("expected %.3f meters added, got %.3f", wantMeters, added)
	}

	live, err := f.svc.ActiveTrip(ctx, driverA.ID)
	if err != nil {
		t.Fatalf("active trip: %v", err)
	}
	if live.Estimate.ElapsedSeconds != 60 || live.Estimate.Fare != 1.0 {
		t.Errorf("unexpected live estimate: %+v", live.Estimate)
	}

	f.clock.Advance(65 * time.Second)
	ended, err := f.svc.EndTrip(ctx, "job-1", driverA.ID)
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}

	job := ended.Job
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("expected completed, got %s", job.Status)
	}
	if *job.DurationSeconds != 125 {
		t.Errorf("expected 125 seconds, got %d", *job.DurationSeconds)
	}
	if *job.DurationMinutes != 2 {
		t.Errorf("expected 2 billed minutes, got %d", *job.DurationMinutes)
	}
	if *job.Fare != 2.00 {
		t.Errorf("expected fare 2.00, got %.2f", *job.Fare)
	}
	if *job.DriverPayout != 1.60 {
		t.Errorf("expected payout 1.60, got %.2f", *job.DriverPayout)
	}
	if *job.DistanceMeters != int(math.Round(wantMeters)) || *job.DistanceMeters != 1609 {
		t.Errorf("expected 1609 meters, got %d", *job.DistanceMeters)
	}
	if !job.EndedAt.Equal(f.clock.Now()) {
		t.Errorf("expected ended_at %v, got %v", f.clock.Now(), job.EndedAt)
	}

	if f.sessions.Has(driverA.ID) {
		t.Error("session should be closed after end")
	}
	if positions, _ := f.locations.Positions(ctx); len(positions) != 0 {
		t.Error("driver position should be removed after end")
	}
}

func TestTrip_ShortTripBillsOneMinute(t *testing.T) {
	t.Parallel()

	f := newTripFixture()
	ctx := context.Background()
	f.assignedJob("job-1", driverA.ID)

	if _, err := f.svc.StartTrip(ctx, "job-1", driverA.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	// Ended within the same second.
	ended, err := f.svc.EndTrip(ctx, "job-1", driverA.ID)
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if ended.Breakdown.DurationSeconds != 1 || ended.Breakdown.DurationMinutes != 1 || ended.Breakdown.Fare != 1.0 {
		t.Errorf("expected 1s/1min/1.00, got %+v", ended.Breakdown)
	}
	if *ended.Job.DistanceMeters != 0 {
		t.Errorf("expected 0 meters without samples, got %d", *ended.Job.DistanceMeters)
	}
}

func TestTrip_StartRejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("job not assigned", func(t *testing.T) {
		f := newTripFixture()
		f.jobs.AddJob(&domain.Job{ID: "job-1", Status: domain.JobStatusNew})
		_, err := f.svc.StartTrip(ctx, "job-1", driverA.ID)
		if !errors.Is(err, lifecycle.ErrDriverNotAssigned) && !errors.Is(err, lifecycle.ErrJobNotAssigned) {
			t.Errorf("expected start rejection, got %v", err)
		}
		if f.sessions.Has(driverA.ID) {
			t.Error("no session should remain after a rejected start")
		}
	})

	t.Run("wrong driver", func(t *testing.T) {
		f := newTripFixture()
		f.assignedJob("job-1", driverB.ID)
		_, err := f.svc.StartTrip(ctx, "job-1", driverA.ID)
		if !errors.Is(err, lifecycle.ErrDriverNotAssigned) {
			t.Errorf("expected ErrDriverNotAssigned, got %v", err)
		}
	})

	t.Run("already in progress", func(t *testing.T) {
		f := newTripFixture()
		f.jobs.AddJob(&domain.Job{ID: "job-1", Status: domain.JobStatusInProgress, AssignedDriverID: driverA.ID})
		_, err := f.svc.StartTrip(ctx, "job-1", driverA.ID)
		if !errors.Is(err, lifecycle.ErrJobNotAssigned) {
			t.Errorf("expected ErrJobNotAssigned, got %v", err)
		}
	})

	t.Run("driver has another active trip", func(t *testing.T) {
		f := newTripFixture()
		f.assignedJob("job-1", driverA.ID)
		f.assignedJob("job-2", driverA.ID)
		if _, err := f.svc.StartTrip(ctx, "job-1", driverA.ID); err != nil {
			t.Fatalf("first start failed: %v", err)
		}
		_, err := f.svc.StartTrip(ctx, "job-2", driverA.ID)
		if !errors.Is(err, service.ErrDriverHasActiveTrip) {
			t.Errorf("expected ErrDriverHasActiveTrip, got %v", err)
		}
		if got := f.jobs.GetJob("job-2").Status; got != domain.JobStatusAssigned {
			t.Errorf("second job should stay assigned, got %s", got)
		}
	})

	t.Run("missing job", func(t *testing.T) {
		f := newTripFixture()
		if _, err := f.svc.StartTrip(ctx, "nope", driverA.ID); err == nil {
			t.Error("expected error for missing job")
		}
	})
}

func TestTrip_StartStoreFailureReleasesSession(t *testing.T) {
	t.Parallel()

	f := newTripFixture()
	f.assignedJob("job-1", driverA.ID)
	f.jobs.StartError = errors.New("db down")

	if _, err := f.svc.StartTrip(context.Background(), "job-1", driverA.ID); err == nil {
		t.Fatal("expected error")
	}
	if f.sessions.Has(driverA.ID) {
		t.Error("session must be released when the job write fails")
	}
}

func TestTrip_StaleSessionForAssignedJobIsReplaced(t *testing.T) {
	t.Parallel()

	f := newTripFixture()
	f.assignedJob("job-1", driverA.ID)
	f.sessions.Put(domain.TripSession{DriverID: driverA.ID, JobID: "job-1", StartTime: f.clock.Now().Add(-time.Hour)})

	started, err := f.svc.StartTrip(context.Background(), "job-1", driverA.ID)
	if err != nil {
		t.Fatalf("start with stale session failed: %v", err)
	}
	if !started.Session.StartTime.Equal(f.clock.Now()) {
		t.Errorf("expected a fresh session start time, got %v", started.Session.StartTime)
	}
}

func TestTrip_CanceledTripDoesNotBlockNextStart(t *testing.T) {
	t.Parallel()

	f := newTripFixture()
	ctx := context.Background()
	f.assignedJob("job-1", driverA.ID)
	f.assignedJob("job-2", driverA.ID)

	if _, err := f.svc.StartTrip(ctx, "job-1", driverA.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := f.jobs.SetStatus(ctx, "job-1", domain.JobStatusCanceled); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(10 * time.Minute)

	if _, err := f.svc.ActiveTrip(ctx, driverA.ID); !errors.Is(err, service.ErrNoActiveTrip) {
		t.Errorf("canceled trip must not show a live fare, got %v", err)
	}

	started, err := f.svc.StartTrip(ctx, "job-2", driverA.ID)
	if err != nil {
		t.Fatalf("start of next job blocked by canceled trip: %v", err)
	}
	if started.Session.JobID != "job-2" {
		t.Errorf("expected session for job-2, got %s", started.Session.JobID)
	}
}

func TestTrip_ReassignedTripStopsTracking(t *testing.T) {
	t.Parallel()

	f := newTripFixture()
	ctx := context.Background()
	f.assignedJob("job-1", driverA.ID)

	if _, err := f.svc.StartTrip(ctx, "job-1", driverA.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := f.jobs.Assign(ctx, "job-1", driverB.ID); err != nil {
		t.Fatal(err)
	}

	if _, _, err := f.svc.RecordPosition(ctx, driverA.ID, 1, 1); !errors.Is(err, service.ErrNoActiveTrip) {
		t.Errorf("expected ErrNoActiveTrip after reassignment, got %v", err)
	}
	if f.sessions.Has(driverA.ID) {
		t.Error("session of a reassigned job should be closed")
	}
}

func TestTrip_StartInFlightIsNotTreatedAsLeftover(t *testing.T) {
	t.Parallel()

	f := newTripFixture()
	f.assignedJob("job-1", driverA.ID)
	// Opened by a concurrent start that has not written in_progress yet.
	f.sessions.Put(domain.TripSession{DriverID: driverA.ID, JobID: "job-1", StartTime: f.clock.Now().Add(-5 * time.Second)})

	_, err := f.svc.StartTrip(context.Background(), "job-1", driverA.ID)
	if !errors.Is(err, service.ErrDriverHasActiveTrip) {
		t.Errorf("expected ErrDriverHasActiveTrip, got %v", err)
	}
	if !f.sessions.Has(driverA.ID) {
		t.Error("the in-flight start's session must be kept")
	}
}

func TestTrip_PositionDoesNotOverwriteNewerTrip(t *testing.T) {
	t.Parallel()

	f := newTripFixture()
	ctx := context.Background()
	f.assignedJob("job-1", driverA.ID)

	if _, err := f.svc.StartTrip(ctx, "job-1", driverA.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, _, err := f.svc.RecordPosition(ctx, driverA.ID, 0, 0); err != nil {
		t.Fatalf("first sample failed: %v", err)
	}

	// The trip ends and the next one starts while this sample is in flight.
	next := domain.TripSession{DriverID: driverA.ID, JobID: "job-2", StartTime: f.clock.Now().Add(time.Minute)}
	var once sync.Once
	f.sessions.BeforeUpdate = func() {
		once.Do(func() { f.sessions.Put(next) })
	}

	if _, _, err := f.svc.RecordPosition(ctx, driverA.ID, 0, 0.01); !errors.Is(err, service.ErrNoActiveTrip) {
		t.Errorf("expected ErrNoActiveTrip, got %v", err)
	}

	stored, ok := f.sessions.Session(driverA.ID)
	if !ok || stored.JobID != "job-2" {
		t.Fatalf("newer session was replaced: %+v", stored)
	}
	if stored.Tracker.Last != nil || stored.Tracker.TotalMeters != 0 {
		t.Errorf("sample of the old trip leaked into the new one: %+v", stored.Tracker)
	}
}

// Not parallel: reads a process-wide gauge.
func TestTrip_ReplacedSessionLeavesActiveTripsBalanced(t *testing.T) {
	f := newTripFixture()
	ctx := context.Background()
	f.assignedJob("job-1", driverA.ID)
	before := testutil.ToFloat64(observability.ActiveTrips)

	if _, err := f.svc.StartTrip(ctx, "job-1", driverA.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	// Dispatcher moves the running job back to assigned and the driver restarts it.
	if err := f.jobs.SetStatus(ctx, "job-1", domain.JobStatusAssigned); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(2 * time.Minute)
	if _, err := f.svc.StartTrip(ctx, "job-1", driverA.ID); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if got := testutil.ToFloat64(observability.ActiveTrips) - before; got != 1 {
		t.Errorf("expected one active trip, gauge moved by %v", got)
	}

	if _, err := f.svc.EndTrip(ctx, "job-1", driverA.ID); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if got := testutil.ToFloat64(observability.ActiveTrips) - before; got != 0 {
		t.Errorf("expected gauge back to its start value, moved by %v", got)
	}
}

func TestTrip_EndRejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		f := newTripFixture()
		f.jobs.AddJob(&domain.Job{ID: "job-1", Status: domain.JobStatusInProgress, AssignedDriverID: driverA.ID})
		if _, err := f.svc.EndTrip(ctx, "job-1", driverA.ID); !errors.Is(err, service.ErrNoActiveTrip) {
			t.Errorf("expected ErrNoActiveTrip, got %v", err)
		}
	})

	t.Run("session for another job", func(t *testing.T) {
		f := newTripFixture()
		f.assignedJob("job-1", driverA.ID)
		f.jobs.AddJob(&domain.Job{ID: "job-2", Status: domain.JobStatusInProgress, AssignedDriverID: driverA.ID})
		if _, err := f.svc.StartTrip(ctx, "job-1", driverA.ID); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if _, err := f.svc.EndTrip(ctx, "job-2", driverA.ID); !errors.Is(err, service.ErrNoActiveTrip) {
			t.Errorf("expected ErrNoActiveTrip, got %v", err)
		}
		if !f.sessions.Has(driverA.ID) {
			t.Error("the running trip must not be touched")
		}
	})

	t.Run("job canceled under the trip", func(t *testing.T) {
		f := newTripFixture()
		f.assignedJob("job-1", driverA.ID)
		if _, err := f.svc.StartTrip(ctx, "job-1", driverA.ID); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if err := f.jobs.SetStatus(ctx, "job-1", domain.JobStatusCanceled); err != nil {
			t.Fatal(err)
		}

		_, err := f.svc.EndTrip(ctx, "job-1", driverA.ID)
		if !errors.Is(err, lifecycle.ErrJobNotInProgress) {
			t.Errorf("expected ErrJobNotInProgress, got %v", err)
		}
		if f.sessions.Has(driverA.ID) {
			t.Error("stale session should be closed")
		}
		if f.jobs.GetJob("job-1").Fare != nil {
			t.Error("canceled job must not be billed")
		}
	})
}

func TestTrip_EndStoreFailureKeepsSessionForRetry(t *testing.T) {
	t.Parallel()

	f := newTripFixture()
	ctx := context.Background()
	f.assignedJob("job-1", driverA.ID)
	if _, err := f.svc.StartTrip(ctx, "job-1", driverA.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	f.jobs.CompleteError = errors.New("db down")
	f.clock.Advance(3 * time.Minute)
	if _, err := f.svc.EndTrip(ctx, "job-1", driverA.ID); err == nil {
		t.Fatal("expected error")
	}
	if !f.sessions.Has(driverA.ID) {
		t.Fatal("session must survive a failed end")
	}

	f.jobs.CompleteError = nil
	ended, err := f.svc.EndTrip(ctx, "job-1", driverA.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if ended.Breakdown.DurationMinutes != 3 {
		t.Errorf("expected 3 minutes on retry, got %d", ended.Breakdown.DurationMinutes)
	}
}

func TestTrip_RecordPositionValidation(t *testing.T) {
	t.Parallel()

	f := newTripFixture()
	ctx := context.Background()

	if _, _, err := f.svc.RecordPosition(ctx, driverA.ID, 10, 10); !errors.Is(err, service.ErrNoActiveTrip) {
		t.Errorf("expected ErrNoActiveTrip, got %v", err)
	}
	if _, _, err := f.svc.RecordPosition(ctx, driverA.ID, 91, 0); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
	if _, err := f.svc.ActiveTrip(ctx, driverA.ID); !errors.Is(err, service.ErrNoActiveTrip) {
		t.Errorf("expected ErrNoActiveTrip, got %v", err)
	}
}
