package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"minuteride/internal/domain"
	"minuteride/internal/events"
	"minuteride/internal/lifecycle"
	"minuteride/internal/observability"
	"minuteride/internal/repository"
)

const publishTimeout = 5 * time.Second

// JobNotifier alerts drivers about new jobs without blocking the caller.
// This interface allows for testing with mock implementations.
type JobNotifier interface {
	NotifyNewJobAsync(jobID, pickup, dropoff string)
}

// Ensure NotificationService implements JobNotifier.
var _ JobNotifier = (*NotificationService)(nil)

// DispatchService handles the job board: creation, visibility, assignment and claims.
type DispatchService struct {
	jobRepo   repository.JobRepository
	drivers   repository.DriverDirectory
	notifier  JobNotifier
	publisher events.Publisher
	logger    *slog.Logger
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	jobRepo repository.JobRepository,
	drivers repository.DriverDirectory,
	notifier JobNotifier,
	publisher events.Publisher,
	logger *slog.Logger,
) *DispatchService {
	return &DispatchService{
		jobRepo:   jobRepo,
		drivers:   drivers,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateJobRequest contains the parameters for creating a job.
type CreateJobRequest struct {
	DispatcherID string
	Pickup       string
	Dropoff      string
	Notes        string
}

// ClaimResult is the outcome of a claim attempt. A lost race is not an error:
// Claimed is false and Job shows who owns it now.
type ClaimResult struct {
	Claimed bool
	Job     *domain.Job
}

// CreateJob creates a new unassigned job and alerts drivers in the background.
func (s *DispatchService) CreateJob(ctx context.Context, req CreateJobRequest) (*domain.Job, error) {
	pickup := strings.TrimSpace(req.Pickup)
	dropoff := strings.TrimSpace(req.Dropoff)
	if pickup == "" {
		return nil, ErrMissingPickup
	}
	if dropoff == "" {
		return nil, ErrMissingDropoff
	}

	job := &domain.Job{
		ID:          uuid.New().String(),
		Status:      domain.JobStatusNew,
		Pickup:      pickup,
		Dropoff:     dropoff,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedByID: req.DispatcherID,
		CreatedAt:   time.Now().UTC(),
	}
	job.UpdatedAt = job.CreatedAt

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	observability.JobsCreatedTotal.Inc()
	s.logger.Info("job created", "job_id", job.ID, "dispatcher_id", req.DispatcherID)

	publish(s.logger, s.publisher, events.Event{Type: events.JobCreated, JobID: job.ID, Status: string(job.Status)})

	// Notification outcome never affects job creation.
	if s.notifier != nil {
		s.notifier.NotifyNewJobAsync(job.ID, job.Pickup, job.Dropoff)
	}

	return job, nil
}

// ListJobs returns the jobs visible to the actor, newest first. Dispatchers see
// everything; drivers see unclaimed jobs and their own.
func (s *DispatchService) ListJobs(ctx context.Context, actor domain.Actor) ([]*domain.Job, error) {
	filter := domain.JobFilter{}
	if !actor.IsDispatcher() {
		filter.VisibleToDriver = actor.ID
	}
	return s.jobRepo.List(ctx, filter)
}

// GetJob returns a job if the actor may see it. Jobs owned by another driver
// are reported as not found.
func (s *DispatchService) GetJob(ctx context.Context, actor domain.Actor, jobID string) (*domain.Job, error) {
	if jobID == "" {
		return nil, ErrInvalidJobID
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.IsDispatcher() && job.IsAssigned() && job.AssignedDriverID != actor.ID {
		return nil, repository.ErrNotFound
	}
	return job, nil
}

// ListDrivers returns the driver directory for assignment.
func (s *DispatchService) ListDrivers(ctx context.Context) ([]*domain.Driver, error) {
	return s.drivers.GetAll(ctx)
}

// AssignJob assigns a job to a driver on a dispatcher's behalf, regardless of its current owner.
func (s *DispatchService) AssignJob(ctx context.Context, jobID, driverID string) (*domain.Job, error) {
	if jobID == "" {
		return nil, ErrInvalidJobID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	if err := s.jobRepo.Assign(ctx, jobID, driverID); err != nil {
		return nil, err
	}
	s.logger.Info("job assigned", "job_id", jobID, "driver_id", driverID)
	publish(s.logger, s.publisher, events.Event{Type: events.JobAssigned, JobID: jobID, DriverID: driverID, Status: string(domain.JobStatusAssigned)})

	return s.jobRepo.GetByID(ctx, jobID)
}

// ClaimJob lets a driver take an unclaimed job. The first conditional write wins;
// everyone else gets Claimed=false with the refreshed job.
func (s *DispatchService) ClaimJob(ctx context.Context, jobID, driverID string) (*ClaimResult, error) {
	if jobID == "" {
		return nil, ErrInvalidJobID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	claimed, err := s.jobRepo.Claim(ctx, jobID, driverID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if claimed {
		observability.ClaimsTotal.WithLabelValues("won").Inc()
		s.logger.Info("job claimed", "job_id", jobID, "driver_id", driverID)
		publish(s.logger, s.publisher, events.Event{Type: events.JobClaimed, JobID: jobID, DriverID: driverID, Status: string(job.Status)})
	} else {
		observability.ClaimsTotal.WithLabelValues("lost").Inc()
		s.logger.Info("claim lost", "job_id", jobID, "driver_id", driverID, "owner_id", job.AssignedDriverID, "status", job.Status)
	}

	return &ClaimResult{Claimed: claimed, Job: job}, nil
}

// SetStatus overrides a job's status. Only existence is checked; moves outside
// the regular lifecycle are allowed and logged.
func (s *DispatchService) SetStatus(ctx context.Context, jobID, rawStatus string) (*domain.Job, error) {
	if jobID == "" {
		return nil, ErrInvalidJobID
	}
	status, err := lifecycle.Parse(rawStatus)
	if err != nil {
		return nil, ErrInvalidStatus
	}

	current, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := s.jobRepo.SetStatus(ctx, jobID, status); err != nil {
		return nil, err
	}

	if !lifecycle.CanTransition(current.Status, status) {
		s.logger.Warn("manual status override", "job_id", jobID, "from", current.Status, "to", status)
	} else {
		s.logger.Info("job status changed", "job_id", jobID, "from", current.Status, "to", status)
	}
	publish(s.logger, s.publisher, events.Event{Type: events.JobStatusChanged, JobID: jobID, DriverID: current.AssignedDriverID, Status: string(status)})

	return s.jobRepo.GetByID(ctx, jobID)
}

// publish sends a lifecycle event in the background. Failures are logged only.
func publish(logger *slog.Logger, publisher events.Publisher, ev events.Event) {
	if publisher == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := publisher.Publish(ctx, ev); err != nil {
			logger.Warn("job event not published", "type", ev.Type, "job_id", ev.JobID, "error", err)
		}
	}()
}
