package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidJobID is returned when job ID is empty.
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrMissingPickup is returned when a job is created without a pickup.
	ErrMissingPickup = errors.New("pickup is required")

	// ErrMissingDropoff is returned when a job is created without a dropoff.
	ErrMissingDropoff = errors.New("dropoff is required")

	// ErrInvalidStatus is returned when a status override names an unknown status.
	ErrInvalidStatus = errors.New("invalid job status")

	// ErrInvalidLocation is returned when position coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrDriverHasActiveTrip is returned when driver already has an active trip.
	ErrDriverHasActiveTrip = errors.New("driver already has an active trip")

	// ErrNoActiveTrip is returned when ending or tracking a trip the driver is not running.
	ErrNoActiveTrip = errors.New("no active trip for this job")

	// ErrFetchRecipients is returned when the driver directory cannot be read for a fan-out.
	ErrFetchRecipients = errors.New("failed to fetch drivers")
)

// ConfigError reports a missing external integration setting. Flags name each
// required setting and whether it was present.
type ConfigError struct {
	Message string
	Flags   map[string]bool
}

func (e *ConfigError) Error() string {
	keys := make([]string, 0, len(e.Flags))
	for k := range e.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%t", k, e.Flags[k]))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}
