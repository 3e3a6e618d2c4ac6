package domain

import "time"

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusNew           JobStatus = "new"
	JobStatusAssigned      JobStatus = "assigned"
	JobStatusEnroutePickup JobStatus = "enroute_pickup"
	JobStatusInProgress    JobStatus = "in_progress"
	JobStatusCompleted     JobStatus = "completed"
	JobStatusCanceled      JobStatus = "canceled"
)

// AllJobStatuses lists every known status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusNew,
	JobStatusAssigned,
	JobStatusEnroutePickup,
	JobStatusInProgress,
	JobStatusCompleted,
	JobStatusCanceled,
}

// Job is a dispatchable unit of work: a pickup/dropoff pair that a driver claims and runs as a trip.
type Job struct {
	ID               string
	Status           JobStatus
	Pickup           string
	Dropoff          string
	Notes            string
	AssignedDriverID string // empty while unclaimed
	CreatedByID      string

	// Trip-derived fields, nil until completion.
	DistanceMeters  *int
	DurationSeconds *int
	DurationMinutes *int
	Fare            *float64
	DriverPayout    *float64

	StartedAt time.Time
	EndedAt   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAssigned reports whether a driver currently owns the job.
func (j *Job) IsAssigned() bool {
	return j.AssignedDriverID != ""
}

// JobFilter narrows job listings.
type JobFilter struct {
	// VisibleToDriver restricts results to unclaimed jobs plus jobs owned by this driver.
	VisibleToDriver string
}
