package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the schema migration. It is idempotent.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id                     TEXT PRIMARY KEY,
			email                  TEXT NOT NULL DEFAULT '',
			display_name           TEXT NOT NULL DEFAULT '',
			phone_enc              TEXT,
			plan                   TEXT NOT NULL DEFAULT 'free',
			role                   TEXT NOT NULL DEFAULT 'user',
			password               TEXT NOT NULL DEFAULT '',
			stripe_customer_id     TEXT,
			stripe_subscription_id TEXT,
			lemon_customer_id      TEXT,
			lemon_subscription_id  TEXT,
			disabled               BOOLEAN NOT NULL DEFAULT FALSE,
			created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			name              TEXT NOT NULL,
			price             NUMERIC(12,2) NOT NULL DEFAULT 0,
			renewal_date      TEXT NOT NULL DEFAULT '',
			remind_days       INTEGER[] NOT NULL DEFAULT '{}',
			email_reminder    BOOLEAN,
			sms_reminder      BOOLEAN NOT NULL DEFAULT FALSE,
			whatsapp_reminder BOOLEAN NOT NULL DEFAULT FALSE,
			category          TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id);

		CREATE TABLE IF NOT EXISTS reminder_logs (
			id              TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			user_id         TEXT NOT NULL,
			channel         TEXT NOT NULL,
			days_before     INTEGER NOT NULL,
			success         BOOLEAN NOT NULL,
			error           TEXT,
			run_id          TEXT NOT NULL,
			run_at          TIMESTAMPTZ NOT NULL,
			sent_at         TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_reminder_logs_run_at ON reminder_logs(run_at DESC, sent_at DESC);
		CREATE INDEX IF NOT EXISTS idx_reminder_logs_dedup ON reminder_logs(subscription_id, channel, days_before, sent_at);

		CREATE TABLE IF NOT EXISTS user_categories (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			name       TEXT NOT NULL,
			color      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_user_categories_user_id ON user_categories(user_id);

		CREATE TABLE IF NOT EXISTS team_invites (
			id              TEXT PRIMARY KEY,
			workspace_owner TEXT NOT NULL,
			email           TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'pending',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_team_invites_owner ON team_invites(workspace_owner);

		CREATE TABLE IF NOT EXISTS webhook_events (
			provider     TEXT NOT NULL,
			event_key    TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (provider, event_key)
		);
		CREATE INDEX IF NOT EXISTS idx_webhook_events_processed ON webhook_events(processed_at);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
