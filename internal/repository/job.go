package repository

import (
	"context"
	"time"

	"minuteride/internal/domain"
)

// JobRepository defines the persistence operations for jobs.
// Conditional writes report whether a row matched instead of failing.
type JobRepository interface {
	// Create persists a new job.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by ID.
	GetByID(ctx context.Context, id string) (*domain.Job, error)

	// List retrieves jobs matching the filter, newest first.
	List(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error)

	// Claim assigns an unclaimed new job to driverID. Returns false when another
	// driver got there first.
	Claim(ctx context.Context, jobID, driverID string) (bool, error)

	// Assign unconditionally assigns the job to driverID.
	Assign(ctx context.Context, jobID, driverID string) error

	// Start moves an assigned job owned by driverID to in_progress.
	Start(ctx context.Context, jobID, driverID string, startedAt time.Time) (bool, error)

	// Complete writes trip metrics on an in-progress job owned by driverID.
	Complete(ctx context.Context, jobID, driverID string, m domain.TripMetrics) (bool, error)

	// SetStatus overrides the status. Moving back to new clears the assignee.
	SetStatus(ctx context.Context, jobID string, status domain.JobStatus) error
}
