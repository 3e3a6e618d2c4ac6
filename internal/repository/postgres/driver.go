package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"minuteride/internal/domain"
	"minuteride/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverDirectory.
type DriverRepository struct {
	db *sqlx.DB
}

// NewDriverRepository creates a new PostgreSQL driver directory over an existing pool.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{db: sqlx.NewDb(db, "postgres")}
}

// GetAll retrieves all drivers ordered by name.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	query := `
		SELECT id,
		       COALESCE(full_name, '') AS full_name,
		       COALESCE(phone_number, '') AS phone_number,
		       sms_notifications_enabled,
		       COALESCE(expo_push_token, '') AS expo_push_token,
		       COALESCE(fcm_token, '') AS fcm_token
		FROM drivers
		ORDER BY full_name
	`

	var drivers []*domain.Driver
	if err := r.db.SelectContext(ctx, &drivers, query); err != nil {
		return nil, err
	}
	return drivers, nil
}

// SMSRecipients returns phone numbers of drivers who opted into SMS.
func (r *DriverRepository) SMSRecipients(ctx context.Context) ([]string, error) {
	query := `
		SELECT phone_number
		FROM drivers
		WHERE sms_notifications_enabled = TRUE
		  AND phone_number IS NOT NULL AND phone_number <> ''
	`

	var phones []string
	if err := r.db.SelectContext(ctx, &phones, query); err != nil {
		return nil, err
	}
	return phones, nil
}

// PushTargets returns every registered device token, one row per provider.
func (r *DriverRepository) PushTargets(ctx context.Context) ([]domain.PushTarget, error) {
	query := `
		SELECT id, expo_push_token AS token, 'expo' AS provider
		FROM drivers WHERE expo_push_token IS NOT NULL AND expo_push_token <> ''
		UNION ALL
		SELECT id, fcm_token AS token, 'fcm' AS provider
		FROM drivers WHERE fcm_token IS NOT NULL AND fcm_token <> ''
	`

	var rows []struct {
		ID       string `db:"id"`
		Token    string `db:"token"`
		Provider string `db:"provider"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	targets := make([]domain.PushTarget, 0, len(rows))
	for _, row := range rows {
		targets = append(targets, domain.PushTarget{
			DriverID: row.ID,
			Token:    row.Token,
			Provider: domain.PushProvider(row.Provider),
		})
	}
	return targets, nil
}

// Ensure DriverRepository implements repository.DriverDirectory.
var _ repository.DriverDirectory = (*DriverRepository)(nil)
