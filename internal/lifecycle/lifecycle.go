// Package lifecycle holds the job state machine. Everything here is pure: callers
// pass the current job and get a verdict; persistence happens elsewhere.
package lifecycle

import (
	"errors"

	"minuteride/internal/domain"
)

var (
	// ErrJobNotAssigned is returned when a trip is started on a job that is not in the assigned state.
	ErrJobNotAssigned = errors.New("job is not in assigned state")

	// ErrDriverNotAssigned is returned when the caller is not the job's assigned driver.
	ErrDriverNotAssigned = errors.New("driver is not assigned to this job")

	// ErrJobNotInProgress is returned when completing a job that has no running trip.
	ErrJobNotInProgress = errors.New("job is not in progress")

	// ErrUnknownStatus is returned for a status outside the known set.
	ErrUnknownStatus = errors.New("unknown job status")
)

var transitions = map[domain.JobStatus]map[domain.JobStatus]struct{}{
	domain.JobStatusNew: {
		domain.JobStatusAssigned: {},
		domain.JobStatusCanceled: {},
	},
	domain.JobStatusAssigned: {
		domain.JobStatusEnroutePickup: {},
		domain.JobStatusInProgress:    {},
		domain.JobStatusCanceled:      {},
	},
	domain.JobStatusEnroutePickup: {
		domain.JobStatusInProgress: {},
		domain.JobStatusCanceled:   {},
	},
	domain.JobStatusInProgress: {
		domain.JobStatusCompleted: {},
		domain.JobStatusCanceled:  {},
	},
	domain.JobStatusCompleted: {},
	domain.JobStatusCanceled:  {},
}

// IsKnown reports whether s is one of the job statuses.
func IsKnown(s domain.JobStatus) bool {
	_, ok := transitions[s]
	return ok
}

// Parse validates a raw status string.
func Parse(raw string) (domain.JobStatus, error) {
	s := domain.JobStatus(raw)
	if !IsKnown(s) {
		return "", ErrUnknownStatus
	}
	return s, nil
}

// CanTransition returns whether a job may move from one status to another along
// the regular flow. Dispatcher overrides are not bound by this graph.
func CanTransition(from, to domain.JobStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// IsTerminal reports whether no further regular transitions exist.
func IsTerminal(s domain.JobStatus) bool {
	return s == domain.JobStatusCompleted || s == domain.JobStatusCanceled
}

// Claimable reports whether a driver may still claim the job.
func Claimable(job *domain.Job) bool {
	return job.Status == domain.JobStatusNew && !job.IsAssigned()
}

// CheckStart validates that driverID may start a trip on job.
func CheckStart(job *domain.Job, driverID string) error {
	if job.Status != domain.JobStatusAssigned {
		return ErrJobNotAssigned
	}
	if job.AssignedDriverID != driverID {
		return ErrDriverNotAssigned
	}
	return nil
}

// CheckComplete validates that driverID may complete job.
func CheckComplete(job *domain.Job, driverID string) error {
	if job.AssignedDriverID != driverID {
		return ErrDriverNotAssigned
	}
	if job.Status != domain.JobStatusInProgress {
		return ErrJobNotInProgress
	}
	return nil
}
