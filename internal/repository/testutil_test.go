package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/yourusername/arblens/internal/database"
)

// setupTestDB starts a PostgreSQL container and applies the schema migrations.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("arblens"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "failed to create pool")
	db := database.NewFromPool(pool)
	t.Cleanup(db.Close)

	_, err = db.Migrate(ctx, filepath.Join(findProjectRoot(t), "migrations"))
	require.NoError(t, err, "failed to apply migrations")

	return db
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "could not find project root")
		dir = parent
	}
}

// fixture seeds two venues, a market on each and one pair between them.
type fixture struct {
	venueA, venueB   uuid.UUID
	marketA, marketB uuid.UUID
	pair             uuid.UUID
}

func seedFixture(t *testing.T, db *database.DB) fixture {
	t.Helper()
	ctx := context.Background()
	pool := db.GetPool()

	f := fixture{
		venueA: uuid.New(), venueB: uuid.New(),
		marketA: uuid.New(), marketB: uuid.New(),
		pair: uuid.New(),
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO venues (id, name, venue_type, fee_bps, status) VALUES
			($1, 'Polymarket', 'prediction_market', 200, 'active'),
			($2, 'Kalshi', 'prediction_market', 100, 'active'),
			($3, 'Legacy', 'sports_betting', 0, 'disabled')`,
		f.venueA, f.venueB, uuid.New())
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO markets (id, venue_id, external_id, title, category, yes_price, no_price, status, last_updated) VALUES
			($1, $3, 'pm-1', 'Fed cuts in March', 'economics', 0.42, 0.58, 'active', NOW() - INTERVAL '1 hour'),
			($2, $4, 'ks-1', 'FOMC March cut', 'economics', 0.47, 0.53, 'active', NOW())`,
		f.marketA, f.marketB, f.venueA, f.venueB)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO market_pairs (id, market_a_id, market_b_id, confidence_score, is_manual_override)
		VALUES ($1, $2, $3, 0.93, true)`,
		f.pair, f.marketA, f.marketB)
	require.NoError(t, err)

	return f
}

func seedOpportunity(t *testing.T, db *database.DB, pair uuid.UUID, spread, liquidity float64, profit *float64, status string, createdAt time.Time) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.GetPool().Exec(context.Background(), `
		INSERT INTO arbitrage_opportunities (
			id, pair_id, gross_spread_pct, net_spread_pct, expected_profit_usd, max_tradable_amount,
			venue_a_side, venue_b_side, venue_a_price, venue_b_price, status, created_at
		) VALUES ($1, $2, $3, $3, $4, $5, 'yes', 'no', 0.42, 0.53, $6, $7)`,
		id, pair, spread, profit, liquidity, status, createdAt)
	require.NoError(t, err)
	return id
}
