package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"minuteride/internal/domain"
	"minuteride/internal/events"
	"minuteride/internal/fare"
	"minuteride/internal/lifecycle"
	"minuteride/internal/observability"
	internalRedis "minuteride/internal/redis"
	"minuteride/internal/repository"
)

// startGrace is how long a session may exist for a job that is still assigned
// before it counts as left over from a failed start.
const startGrace = time.Minute

// TripConfig holds pricing and the clock used for trip timing.
type TripConfig struct {
	Rates fare.Rates
	Clock func() time.Time // defaults to time.Now
}

// TripService runs trips: start, position tracking, live estimate and end.
// Each driver's running trip is a session in the session store; the store's
// atomic Begin is what enforces one active trip per driver.
type TripService struct {
	jobRepo   repository.JobRepository
	sessions  internalRedis.SessionStoreInterface
	locations internalRedis.LocationStoreInterface
	publisher events.Publisher
	rates     fare.Rates
	now       func() time.Time
	logger    *slog.Logger
}

// NewTripService creates a new TripService. locations may be nil.
func NewTripService(
	jobRepo repository.JobRepository,
	sessions internalRedis.SessionStoreInterface,
	locations internalRedis.LocationStoreInterface,
	publisher events.Publisher,
	cfg TripConfig,
	logger *slog.Logger,
) *TripService {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &TripService{
		jobRepo:   jobRepo,
		sessions:  sessions,
		locations: locations,
		publisher: publisher,
		rates:     cfg.Rates,
		now:       now,
		logger:    logger,
	}
}

// StartTripResponse contains the result of starting a trip.
type StartTripResponse struct {
	Job     *domain.Job
	Session *domain.TripSession
}

// EndTripResponse contains the result of ending a trip.
type EndTripResponse struct {
	Job       *domain.Job
	Breakdown fare.Breakdown
}

// LiveTrip is the running view of a driver's active trip.
type LiveTrip struct {
	Session  *domain.TripSession
	Estimate fare.Estimate
}

// StartTrip starts the trip for a job the driver has been assigned.
func (s *TripService) StartTrip(ctx context.Context, jobID, driverID string) (*StartTripResponse, error) {
	if jobID == "" {
		return nil, ErrInvalidJobID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	existing, err := s.activeSession(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.JobID != jobID {
		return nil, ErrDriverHasActiveTrip
	}

	if err := lifecycle.CheckStart(job, driverID); err != nil {
		return nil, err
	}

	session := &domain.TripSession{
		DriverID:  driverID,
		JobID:     jobID,
		StartTime: s.now().UTC(),
	}

	ok, err := s.sessions.Begin(ctx, session)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDriverHasActiveTrip
	}

	started, err := s.jobRepo.Start(ctx, jobID, driverID, session.StartTime)
	if err != nil || !started {
		s.releaseSession(ctx, driverID)
		if err != nil {
			return nil, err
		}
		// Lost a race with another writer; report against the current state.
		current, getErr := s.jobRepo.GetByID(ctx, jobID)
		if getErr != nil {
			return nil, getErr
		}
		if err := lifecycle.CheckStart(current, driverID); err != nil {
			return nil, err
		}
		return nil, lifecycle.ErrJobNotAssigned
	}

	observability.ActiveTrips.Inc()
	s.logger.Info("trip started", "job_id", jobID, "driver_id", driverID)
	publish(s.logger, s.publisher, events.Event{Type: events.JobStarted, JobID: jobID, DriverID: driverID, Status: string(domain.JobStatusInProgress)})

	job, err = s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &StartTripResponse{Job: job, Session: session}, nil
}

// RecordPosition adds a position sample to the driver's running trip and
// returns the updated session with the meters this sample added.
func (s *TripService) RecordPosition(ctx context.Context, driverID string, lat, lng float64) (*domain.TripSession, float64, error) {
	if driverID == "" {
		return nil, 0, ErrInvalidDriverID
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, 0, ErrInvalidLocation
	}

	session, err := s.activeSession(ctx, driverID)
	if err != nil {
		return nil, 0, err
	}
	if session == nil {
		return nil, 0, ErrNoActiveTrip
	}

	var added float64
	session, err = s.sessions.Update(ctx, session, func(ts *domain.TripSession) {
		added = ts.Tracker.AddSample(lat, lng)
	})
	if errors.Is(err, internalRedis.ErrSessionChanged) {
		return nil, 0, ErrNoActiveTrip
	}
	if err != nil {
		return nil, 0, err
	}

	if s.locations != nil {
		if err := s.locations.UpdateLocation(ctx, driverID, lat, lng); err != nil {
			s.logger.Warn("driver position not indexed", "driver_id", driverID, "error", err)
		}
	}

	return session, added, nil
}

// ActiveTrip returns the driver's running trip with a live fare estimate.
func (s *TripService) ActiveTrip(ctx context.Context, driverID string) (*LiveTrip, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	session, err := s.activeSession(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveTrip
	}

	return &LiveTrip{
		Session:  session,
		Estimate: s.rates.Estimate(session.StartTime, s.now()),
	}, nil
}

// EndTrip bills the driver's running trip on jobID and completes the job.
func (s *TripService) EndTrip(ctx context.Context, jobID, driverID string) (*EndTripResponse, error) {
	if jobID == "" {
		return nil, ErrInvalidJobID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	session, err := s.sessions.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.JobID != jobID {
		return nil, ErrNoActiveTrip
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// The job was canceled or reassigned under a running trip; the session is stale.
	if err := lifecycle.CheckComplete(job, driverID); err != nil {
		s.closeSession(ctx, driverID)
		return nil, err
	}

	endTime := s.now().UTC()
	breakdown := s.rates.Compute(session.StartTime, endTime)
	metrics := domain.TripMetrics{
		DurationSeconds: breakdown.DurationSeconds,
		DurationMinutes: breakdown.DurationMinutes,
		DistanceMeters:  fare.ResolveDistance(job.DistanceMeters, session.Tracker.TotalMeters),
		Fare:            breakdown.Fare,
		DriverPayout:    breakdown.DriverPayout,
		EndedAt:         endTime,
	}

	// On a store error the session is kept so the driver can retry.
	completed, err := s.jobRepo.Complete(ctx, jobID, driverID, metrics)
	if err != nil {
		return nil, err
	}
	s.closeSession(ctx, driverID)
	if !completed {
		return nil, lifecycle.ErrJobNotInProgress
	}

	observability.TripsCompletedTotal.Inc()
	observability.TripFareDollars.Observe(breakdown.Fare)
	s.logger.Info("trip completed", "job_id", jobID, "driver_id", driverID,
		"duration_minutes", metrics.DurationMinutes, "distance_meters", metrics.DistanceMeters, "fare", metrics.Fare)
	publish(s.logger, s.publisher, events.Event{Type: events.JobCompleted, JobID: jobID, DriverID: driverID, Status: string(domain.JobStatusCompleted)})

	job, err = s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &EndTripResponse{Job: job, Breakdown: breakdown}, nil
}

// activeSession returns the driver's running trip session. A session whose job
// was canceled, reassigned or moved out of in_progress by a dispatcher is closed
// and reported as absent.
func (s *TripService) activeSession(ctx context.Context, driverID string) (*domain.TripSession, error) {
	session, err := s.sessions.Get(ctx, driverID)
	if err != nil || session == nil {
		return nil, err
	}

	stale, err := s.sessionStale(ctx, session)
	if err != nil {
		return nil, err
	}
	if stale {
		s.logger.Info("closing stale trip session", "job_id", session.JobID, "driver_id", driverID)
		s.closeSession(ctx, driverID)
		return nil, nil
	}
	return session, nil
}

func (s *TripService) sessionStale(ctx context.Context, session *domain.TripSession) (bool, error) {
	job, err := s.jobRepo.GetByID(ctx, session.JobID)
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	// StartTrip opens the session before it writes in_progress.
	if job.Status == domain.JobStatusAssigned && job.AssignedDriverID == session.DriverID {
		return s.now().Sub(session.StartTime) > startGrace, nil
	}
	return lifecycle.CheckComplete(job, session.DriverID) != nil, nil
}

func (s *TripService) closeSession(ctx context.Context, driverID string) {
	if s.releaseSession(ctx, driverID) {
		observability.ActiveTrips.Dec()
	}
}

func (s *TripService) releaseSession(ctx context.Context, driverID string) bool {
	if err := s.sessions.End(ctx, driverID); err != nil {
		s.logger.Error("trip session not closed", "driver_id", driverID, "error", err)
		return false
	}

	if s.locations != nil {
		if err := s.locations.RemoveLocation(ctx, driverID); err != nil {
			s.logger.Warn("driver position not removed", "driver_id", driverID, "error", err)
		}
	}
	return true
}
