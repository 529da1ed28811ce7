package clickhouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/yourusername/arblens/internal/models"
	"github.com/yourusername/arblens/internal/repository"
)

// setupTestConn starts a ClickHouse container with the history table applied.
func setupTestConn(t *testing.T) *Conn {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{"CLICKHOUSE_DB": "test"},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	applied, err := conn.ApplySchema(ctx, findMigrationsDir(t))
	require.NoError(t, err)
	require.Equal(t, []string{"001_opportunity_history"}, applied)

	return conn
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations", "clickhouse")
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "go.mod not found")
		dir = parent
	}
}

func historyRecord(at time.Time, spread, liquidity float64, venueA, venueB string) models.HistoricalOpportunity {
	return models.HistoricalOpportunity{
		ID:                uuid.New(),
		NetSpreadPct:      spread,
		MaxTradableAmount: liquidity,
		VenueAName:        venueA,
		VenueBName:        venueB,
		CreatedAt:         at,
	}
}

func TestHistoryRepositoryFetchHistory(t *testing.T) {
	conn := setupTestConn(t)
	repo := NewHistoryRepository(conn)
	ctx := context.Background()

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	profit := 12.5
	inWindow := historyRecord(day.Add(9*time.Hour), 2.0, 1000, "Polymarket", "Kalshi")
	inWindow.ExpectedProfitUSD = &profit

	records := []models.HistoricalOpportunity{
		inWindow,
		historyRecord(day.Add(10*time.Hour), 0.5, 1000, "Polymarket", "Kalshi"),
		historyRecord(day.Add(11*time.Hour), 3.0, 100, "Polymarket", "Kalshi"),
		historyRecord(day.Add(12*time.Hour), 4.0, 2000, "Betfair", "Smarkets"),
		historyRecord(day.AddDate(0, 0, 5), 5.0, 2000, "Polymarket", "Kalshi"),
	}
	require.NoError(t, repo.InsertBatch(ctx, records))

	query := repository.HistoryQuery{
		Start:           day,
		End:             day.Add(23*time.Hour + 59*time.Minute + 59*time.Second),
		MinSpreadPct:    1.0,
		MinLiquidityUSD: 500,
	}

	got, err := repo.FetchHistory(ctx, query)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, inWindow.ID, got[0].ID)
	require.NotNil(t, got[0].ExpectedProfitUSD)
	assert.Equal(t, 12.5, *got[0].ExpectedProfitUSD)
	assert.Nil(t, got[1].ExpectedProfitUSD)

	query.Venues = []string{"Kalshi"}
	got, err = repo.FetchHistory(ctx, query)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inWindow.ID, got[0].ID)
}
