//go:build integration

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a throwaway PostgreSQL container and applies the schema.
func setupPostgres(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("astral_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())

	require.NoError(t, EnsureSchema(ctx, db))

	cleanup := func() {
		db.Close()
		_ = container.Terminate(ctx)
	}
	return db, cleanup
}

func TestSchemaRoundTrip(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()

	// Idempotent: running the DDL twice is fine.
	require.NoError(t, EnsureSchema(ctx, db))

	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, email, subscription_tier, trial_end, perspective)
		VALUES ('6b1f8f3e-0000-4000-8000-000000000001', 'io@moon.dev', 'trial', NOW() + INTERVAL '7 days', 'moon')`)
	require.NoError(t, err)

	// Unique email enforced
	_, err = db.ExecContext(ctx, `
		INSERT INTO users (id, email) VALUES ('6b1f8f3e-0000-4000-8000-000000000002', 'io@moon.dev')`)
	assert.Error(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, stripe_subscription_id, tier, status)
		VALUES ('6b1f8f3e-0000-4000-8000-000000000003',
		        '6b1f8f3e-0000-4000-8000-000000000001', 'sub_1', 'pro', 'active')`)
	require.NoError(t, err)

	// Ledger primary key dedupes event ids
	_, err = db.ExecContext(ctx, `
		INSERT INTO webhook_events (event_id, event_type, endpoint, payload)
		VALUES ('evt_1', 'customer.subscription.created', 'subscription', '{}')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO webhook_events (event_id, event_type, endpoint, payload)
		VALUES ('evt_1', 'customer.subscription.created', 'subscription', '{}')`)
	assert.Error(t, err)
}

func TestPruningIntegration(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO generation_metrics (provider, perspective, tier, outcome, created_at)
		VALUES ('nova', 'sun', 'pro', 'success', NOW() - INTERVAL '60 days'),
		       ('nova', 'sun', 'pro', 'success', NOW())`)
	require.NoError(t, err)

	removed, err := PruneGenerationMetrics(ctx, db, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var remaining int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generation_metrics`).Scan(&remaining))
	assert.Equal(t, 1, remaining)
}
