package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schedules (
	id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	kind         TEXT NOT NULL,
	desired_at   TIMESTAMPTZ NOT NULL,
	trigger_at   TIMESTAMPTZ NOT NULL,
	recurrence   TEXT,
	court_id     TEXT,
	duration_min INT NOT NULL DEFAULT 60,
	status       TEXT NOT NULL DEFAULT 'pending',
	booked_court TEXT,
	last_error   TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_schedules_status ON schedules(status);
CREATE INDEX IF NOT EXISTS idx_schedules_trigger_at ON schedules(trigger_at);

CREATE TABLE IF NOT EXISTS credentials (
	id             INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	access_secret  TEXT NOT NULL DEFAULT '',
	refresh_secret TEXT NOT NULL DEFAULT '',
	access_expiry  TIMESTAMPTZ NOT NULL DEFAULT to_timestamp(0),
	refresh_expiry TIMESTAMPTZ NOT NULL DEFAULT to_timestamp(0),
	session_marker TEXT NOT NULL DEFAULT '',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate applies the embedded schema. Every statement is idempotent, so
// running it on every startup is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}
