package domain

import (
	"time"

	"minuteride/internal/geo"
)

// TripSession is the per-driver context of a running trip. It lives outside the
// jobs table and exists only between start and end.
type TripSession struct {
	DriverID  string      `json:"driver_id"`
	JobID     string      `json:"job_id"`
	StartTime time.Time   `json:"start_time"`
	Tracker   geo.Tracker `json:"tracker"`
}

// TripMetrics are the trip-derived fields written when a job completes.
type TripMetrics struct {
	DurationSeconds int
	DurationMinutes int
	DistanceMeters  int
	Fare            float64
	DriverPayout    float64
	EndedAt         time.Time
}
