package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// schemaStatements is the full DDL, one statement per entry so a failure
// names the table it broke on.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		subscription_tier TEXT NOT NULL DEFAULT 'trial',
		subscription_status TEXT NOT NULL DEFAULT 'active',
		stripe_customer_id TEXT UNIQUE,
		trial_end TIMESTAMPTZ,
		trial_reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
		email_status TEXT NOT NULL DEFAULT 'active',
		perspective TEXT NOT NULL DEFAULT 'calm',
		locale TEXT NOT NULL DEFAULT 'en',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_users_trial_end
		ON users (trial_end)
		WHERE subscription_tier = 'trial'`,

	`CREATE TABLE IF NOT EXISTS subscriptions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		stripe_subscription_id TEXT NOT NULL UNIQUE,
		stripe_price_id TEXT,
		tier TEXT NOT NULL,
		status TEXT NOT NULL,
		current_period_end TIMESTAMPTZ,
		cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
		event_version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id
		ON subscriptions (user_id)`,

	// Append-only idempotency ledger. A row exists only after the event's
	// handler completed, so replays of in-flight events re-run the handler
	// rather than being silently dropped.
	`CREATE TABLE IF NOT EXISTS webhook_events (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		payload JSONB NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_webhook_events_processed_at
		ON webhook_events (processed_at)`,

	// Append-only webhook telemetry, one row per settled processing attempt.
	// Dead-lettered events keep their payload here because the ledger never
	// records them.
	`CREATE TABLE IF NOT EXISTS webhook_metrics (
		id BIGSERIAL PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		result TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		payload JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_webhook_metrics_created_at
		ON webhook_metrics (created_at)`,

	`CREATE TABLE IF NOT EXISTS email_logs (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		email_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payload JSONB NOT NULL DEFAULT '{}',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		sent_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_email_logs_user_id
		ON email_logs (user_id)`,

	`CREATE TABLE IF NOT EXISTS generation_metrics (
		id BIGSERIAL PRIMARY KEY,
		provider TEXT NOT NULL,
		perspective TEXT NOT NULL,
		tier TEXT NOT NULL,
		outcome TEXT NOT NULL,
		tokens INTEGER NOT NULL DEFAULT 0,
		cost_usd NUMERIC(10,6) NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_generation_metrics_created_at
		ON generation_metrics (created_at)`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// PruneGenerationMetrics deletes metric rows older than the retention
// window and returns the number of rows removed.
func PruneGenerationMetrics(ctx context.Context, db *sql.DB, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := db.ExecContext(ctx,
		`DELETE FROM generation_metrics WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune generation metrics: %w", err)
	}
	return res.RowsAffected()
}

// PruneWebhookMetrics deletes webhook telemetry rows older than the
// retention window and returns the number of rows removed.
func PruneWebhookMetrics(ctx context.Context, db *sql.DB, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := db.ExecContext(ctx,
		`DELETE FROM webhook_metrics WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune webhook metrics: %w", err)
	}
	return res.RowsAffected()
}

// PruneWebhookLedger deletes ledger entries older than the retention
// window. Entries inside the window stay untouchable; the ledger is
// append-only for its whole retention life.
func PruneWebhookLedger(ctx context.Context, db *sql.DB, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := db.ExecContext(ctx,
		`DELETE FROM webhook_events WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune webhook ledger: %w", err)
	}
	return res.RowsAffected()
}
