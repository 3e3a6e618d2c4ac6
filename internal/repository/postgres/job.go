package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"minuteride/internal/domain"
	"minuteride/internal/repository"
)

const jobColumns = `
	id, status, pickup, dropoff, notes, assigned_driver_id, created_by_id,
	distance_meters, duration_seconds, duration_minutes, fare, driver_payout,
	started_at, ended_at, created_at, updated_at`

// JobRepository is a PostgreSQL implementation of repository.JobRepository.
type JobRepository struct {
	q Querier
}

// NewJobRepository creates a new PostgreSQL job repository.
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{q: db}
}

// Create persists a new job.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (id, status, pickup, dropoff, notes, assigned_driver_id, created_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		job.ID,
		job.Status,
		nullString(job.Pickup),
		nullString(job.Dropoff),
		nullString(job.Notes),
		nullString(job.AssignedDriverID),
		nullString(job.CreatedByID),
		job.CreatedAt,
	)

	return err
}

// GetByID retrieves a job by ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return job, nil
}

// List retrieves jobs matching the filter, newest first.
func (r *JobRepository) List(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if filter.VisibleToDriver != "" {
		query += ` WHERE assigned_driver_id IS NULL OR assigned_driver_id = $1`
		args = append(args, filter.VisibleToDriver)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// Claim assigns an unclaimed new job. Zero affected rows means the job was
// already taken (or no longer new) and is reported as false, not as an error.
func (r *JobRepository) Claim(ctx context.Context, jobID, driverID string) (bool, error) {
	query := `
		UPDATE jobs
		SET assigned_driver_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND assigned_driver_id IS NULL AND status = $4
	`

	return r.execConditional(ctx, query, driverID, domain.JobStatusAssigned, jobID, domain.JobStatusNew)
}

// Assign unconditionally assigns the job to a driver.
func (r *JobRepository) Assign(ctx context.Context, jobID, driverID string) error {
	query := `
		UPDATE jobs
		SET assigned_driver_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`

	ok, err := r.execConditional(ctx, query, driverID, domain.JobStatusAssigned, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

// Start moves an assigned job owned by driverID to in_progress.
func (r *JobRepository) Start(ctx context.Context, jobID, driverID string, startedAt time.Time) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1, started_at = $2, updated_at = NOW()
		WHERE id = $3 AND assigned_driver_id = $4 AND status = $5
	`

	return r.execConditional(ctx, query, domain.JobStatusInProgress, startedAt, jobID, driverID, domain.JobStatusAssigned)
}

// Complete writes trip metrics on an in-progress job owned by driverID.
func (r *JobRepository) Complete(ctx context.Context, jobID, driverID string, m domain.TripMetrics) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1, duration_seconds = $2, duration_minutes = $3, distance_meters = $4,
		    fare = $5, driver_payout = $6, ended_at = $7, updated_at = NOW()
		WHERE id = $8 AND assigned_driver_id = $9 AND status = $10
	`

	return r.execConditional(ctx, query,
		domain.JobStatusCompleted,
		m.DurationSeconds,
		m.DurationMinutes,
		m.DistanceMeters,
		m.Fare,
		m.DriverPayout,
		m.EndedAt,
		jobID,
		driverID,
		domain.JobStatusInProgress,
	)
}

// SetStatus overrides the status of a job. Moving back to new also releases the assignee.
func (r *JobRepository) SetStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    assigned_driver_id = CASE WHEN $1::text = 'new' THEN NULL ELSE assigned_driver_id END,
		    updated_at = NOW()
		WHERE id = $2
	`

	ok, err := r.execConditional(ctx, query, status, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (r *JobRepository) execConditional(ctx context.Context, query string, args ...any) (bool, error) {
	return execAffected(ctx, r.q, query, args...)
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var pickup, dropoff, notes, assignedDriverID, createdByID sql.NullString
	var distance, durationSeconds, durationMinutes sql.NullInt64
	var fare, payout sql.NullFloat64
	var startedAt, endedAt sql.NullTime

	if err := row.Scan(
		&job.ID,
		&job.Status,
		&pickup,
		&dropoff,
		&notes,
		&assignedDriverID,
		&createdByID,
		&distance,
		&durationSeconds,
		&durationMinutes,
		&fare,
		&payout,
		&startedAt,
		&endedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.Pickup = pickup.String
	job.Dropoff = dropoff.String
	job.Notes = notes.String
	job.AssignedDriverID = assignedDriverID.String
	job.CreatedByID = createdByID.String
	job.DistanceMeters = nullIntPtr(distance)
	job.DurationSeconds = nullIntPtr(durationSeconds)
	job.DurationMinutes = nullIntPtr(durationMinutes)
	if fare.Valid {
		job.Fare = &fare.Float64
	}
	if payout.Valid {
		job.DriverPayout = &payout.Float64
	}
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if endedAt.Valid {
		job.EndedAt = endedAt.Time
	}

	return &job, nil
}

// Ensure JobRepository implements repository.JobRepository.
var _ repository.JobRepository = (*JobRepository)(nil)
