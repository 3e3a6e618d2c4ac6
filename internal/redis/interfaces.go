package redis

import (
	"context"

	"minuteride/internal/domain"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	Positions(ctx context.Context) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// SessionStoreInterface defines per-driver trip session storage.
// Begin must be atomic (at most one session per driver), and so must Update.
type SessionStoreInterface interface {
	Begin(ctx context.Context, session *domain.TripSession) (bool, error)
	Get(ctx context.Context, driverID string) (*domain.TripSession, error)
	Update(ctx context.Context, current *domain.TripSession, fn func(*domain.TripSession)) (*domain.TripSession, error)
	End(ctx context.Context, driverID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ SessionStoreInterface  = (*SessionStore)(nil)
)
