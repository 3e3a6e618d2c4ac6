package app

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the jobs board and driver directory, plus the trigger that
// publishes every jobs row change on the jobs_changes channel.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS drivers (
		id TEXT PRIMARY KEY,
		full_name TEXT,
		phone_number TEXT,
		sms_notifications_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		expo_push_token TEXT,
		fcm_token TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'new'
			CHECK (status IN ('new', 'assigned', 'enroute_pickup', 'in_progress', 'completed', 'canceled')),
		pickup TEXT,
		dropoff TEXT,
		notes TEXT,
		assigned_driver_id TEXT,
		created_by_id TEXT,
		distance_meters INTEGER,
		duration_seconds INTEGER,
		duration_minutes INTEGER,
		fare NUMERIC(10, 2),
		driver_payout NUMERIC(10, 2),
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_assigned_driver ON jobs (assigned_driver_id)`,

	`CREATE OR REPLACE FUNCTION notify_jobs_change() RETURNS trigger AS $$
	DECLARE
		rec jobs;
	BEGIN
		IF TG_OP = 'DELETE' THEN
			rec := OLD;
		ELSE
			rec := NEW;
		END IF;
		PERFORM pg_notify('jobs_changes', json_build_object(
			'op', TG_OP,
			'id', rec.id,
			'status', rec.status,
			'pickup', rec.pickup,
			'dropoff', rec.dropoff
		)::text);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS jobs_changes ON jobs`,
	`CREATE TRIGGER jobs_changes
		AFTER INSERT OR UPDATE OR DELETE ON jobs
		FOR EACH ROW EXECUTE FUNCTION notify_jobs_change()`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
