package repository

import (
	"context"

	"minuteride/internal/domain"
)

// DriverDirectory defines the read-only lookups over the driver directory.
type DriverDirectory interface {
	// GetAll retrieves all drivers ordered by name.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// SMSRecipients returns phone numbers of drivers who opted into SMS.
	SMSRecipients(ctx context.Context) ([]string, error)

	// PushTargets returns every registered device token.
	PushTargets(ctx context.Context) ([]domain.PushTarget, error)
}
