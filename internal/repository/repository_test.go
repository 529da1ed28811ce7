package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/arblens/internal/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestNewRepositoriesRequiresDB(t *testing.T) {
	_, err := NewRepositories(nil)
	assert.Error(t, err)
}

func TestQueryBuilderNumbersPlaceholders(t *testing.T) {
	qb := newQueryBuilder("SELECT * FROM t")
	qb.where("a = %s", 1)
	qb.where("(b = %[1]s OR c = %[1]s)", "x")
	qb.suffix("LIMIT %s", 10)

	assert.Equal(t, "SELECT * FROM t\n\t\tWHERE a = $1\n\t\tAND (b = $2 OR c = $2)\n\t\tLIMIT $3", qb.sql())
	assert.Equal(t, []any{1, "x", 10}, qb.args)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, clampLimit(0, 50))
	assert.Equal(t, 50, clampLimit(-3, 50))
	assert.Equal(t, 7, clampLimit(7, 50))
	assert.Equal(t, maxListLimit, clampLimit(maxListLimit+1, 50))
}

func TestOpportunityRepositoryIntegration(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repos, err := NewRepositories(db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	best := seedOpportunity(t, db, f.pair, 4.5, 2000, floatPtr(90), "active", now)
	seedOpportunity(t, db, f.pair, 1.5, 300, nil, "active", now)
	seedOpportunity(t, db, f.pair, 9.0, 5000, nil, "expired", now)

	t.Run("list orders by spread and defaults to active", func(t *testing.T) {
		opps, err := repos.Opportunity.List(ctx, OpportunityFilter{})
		require.NoError(t, err)
		require.Len(t, opps, 2)
		assert.Equal(t, best, opps[0].ID)
		assert.Equal(t, "Polymarket", opps[0].VenueAName)
		assert.Equal(t, "Kalshi", opps[0].VenueBName)
		assert.InDelta(t, 0.93, opps[0].ConfidenceScore, 1e-9)
	})

	t.Run("list applies thresholds and venue filter", func(t *testing.T) {
		opps, err := repos.Opportunity.List(ctx, OpportunityFilter{MinLiquidity: floatPtr(500), Venues: []string{"Kalshi"}})
		require.NoError(t, err)
		require.Len(t, opps, 1)
		assert.Equal(t, best, opps[0].ID)

		opps, err = repos.Opportunity.List(ctx, OpportunityFilter{Venues: []string{"Nowhere"}})
		require.NoError(t, err)
		assert.Empty(t, opps)
	})

	t.Run("get by id joins both markets", func(t *testing.T) {
		detail, err := repos.Opportunity.GetByID(ctx, best)
		require.NoError(t, err)
		assert.True(t, detail.IsManualOverride)
		assert.Equal(t, 200, detail.VenueAFeeBps)
		assert.Equal(t, f.marketA, detail.MarketA.ID)
		assert.Equal(t, "Kalshi", detail.MarketB.VenueName)

		_, err = repos.Opportunity.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("count active", func(t *testing.T) {
		count, err := repos.Opportunity.CountActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}

func TestFetchHistoryIntegration(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repos, err := NewRepositories(db)
	require.NoError(t, err)
	ctx := context.Background()

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	first := seedOpportunity(t, db, f.pair, 2.0, 1000, floatPtr(20), "expired", day.Add(8*time.Hour))
	second := seedOpportunity(t, db, f.pair, 3.0, 1000, nil, "expired", day.Add(23*time.Hour+59*time.Minute+59*time.Second))
	seedOpportunity(t, db, f.pair, 0.5, 1000, nil, "expired", day.Add(9*time.Hour))
	seedOpportunity(t, db, f.pair, 5.0, 100, nil, "expired", day.Add(9*time.Hour))
	seedOpportunity(t, db, f.pair, 5.0, 1000, nil, "expired", day.AddDate(0, 0, 1))

	query := HistoryQuery{
		Start:           day,
		End:             day.Add(23*time.Hour + 59*time.Minute + 59*time.Second),
		MinSpreadPct:    1.0,
		MinLiquidityUSD: 500,
	}

	records, err := repos.Opportunity.FetchHistory(ctx, query)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0].ID)
	assert.Equal(t, second, records[1].ID)
	assert.Equal(t, 20.0, records[0].ProfitUSD())
	assert.Equal(t, 0.0, records[1].ProfitUSD())

	query.Venues = []string{"Smarkets"}
	records, err = repos.Opportunity.FetchHistory(ctx, query)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestVenueMarketAndStatsIntegration(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	repos, err := NewRepositories(db)
	require.NoError(t, err)
	ctx := context.Background()

	venues, err := repos.Venue.List(ctx, VenueFilter{})
	require.NoError(t, err)
	require.Len(t, venues, 2)
	assert.Equal(t, "Kalshi", venues[0].Name)
	assert.Equal(t, "Polymarket", venues[1].Name)

	venues, err = repos.Venue.List(ctx, VenueFilter{Status: "disabled", VenueType: "sports_betting"})
	require.NoError(t, err)
	require.Len(t, venues, 1)
	assert.Equal(t, "Legacy", venues[0].Name)

	markets, err := repos.Market.List(ctx, MarketFilter{})
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, f.marketB, markets[0].ID)
	assert.Equal(t, "Kalshi", markets[0].VenueName)

	markets, err = repos.Market.List(ctx, MarketFilter{VenueID: &f.venueA, Category: "economics"})
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, f.marketA, markets[0].ID)

	stats, err := repos.Stats.GetPlatformStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ActiveOpportunities)
	assert.Equal(t, 0.0, stats.AvgSpread)
	assert.Equal(t, 0.0, stats.TotalVolume)

	seedOpportunity(t, db, f.pair, 2.0, 1000, nil, "active", time.Now())
	seedOpportunity(t, db, f.pair, 4.0, 500, nil, "active", time.Now())

	stats, err = repos.Stats.GetPlatformStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ActiveOpportunities)
	assert.Equal(t, int64(2), stats.TotalVenues)
	assert.Equal(t, int64(2), stats.TotalMarkets)
	assert.InDelta(t, 3.0, stats.AvgSpread, 1e-9)
	assert.InDelta(t, 1500.0, stats.TotalVolume, 1e-9)
}

func TestBacktestRepositoryIntegration(t *testing.T) {
	db := setupTestDB(t)
	repos, err := NewRepositories(db)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, db.HealthCheck(ctx))

	bt := models.NewBacktest(models.BacktestSpec{
		Name:            "january",
		UserID:          "user-1",
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		MinSpreadPct:    1.0,
		MinLiquidityUSD: 500,
	})
	require.NoError(t, repos.Backtest.Create(ctx, bt))

	got, err := repos.Backtest.GetByID(ctx, bt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BacktestStatusPending, got.Status)
	assert.Equal(t, bt.StartDate, got.StartDate.UTC())
	assert.Equal(t, []string{}, got.VenueFilter)
	assert.Equal(t, models.BacktestResult{}, got.BacktestResult)

	require.NoError(t, repos.Backtest.MarkRunning(ctx, bt.ID))
	result := models.BacktestResult{
		TotalOpportunities:      3,
		ProfitableOpportunities: 2,
		TotalProfitPct:          0.0612,
		TotalProfitUSD:          41.5,
		MaxDrawdownPct:          1.25,
		SharpeRatio:             0.87,
	}
	require.NoError(t, repos.Backtest.SaveResult(ctx, bt.ID, result))

	got, err = repos.Backtest.GetByID(ctx, bt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BacktestStatusSucceeded, got.Status)
	assert.Equal(t, result, got.BacktestResult)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.CompletedAt)

	require.NoError(t, repos.Backtest.MarkFailed(ctx, bt.ID, "history source unavailable"))
	got, err = repos.Backtest.GetByID(ctx, bt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BacktestStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "history source unavailable", *got.ErrorMessage)

	list, err := repos.Backtest.ListByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = repos.Backtest.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, repos.Backtest.MarkRunning(ctx, uuid.New()), models.ErrNotFound)
}

func TestBacktestClaimStaleIntegration(t *testing.T) {
	db := setupTestDB(t)
	repos, err := NewRepositories(db)
	require.NoError(t, err)
	ctx := context.Background()

	spec := models.BacktestSpec{
		Name:      "stale",
		UserID:    "user-2",
		StartDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
	}
	stuck := models.NewBacktest(spec)
	fresh := models.NewBacktest(spec)
	done := models.NewBacktest(spec)
	for _, bt := range []*models.Backtest{stuck, fresh, done} {
		require.NoError(t, repos.Backtest.Create(ctx, bt))
	}
	require.NoError(t, repos.Backtest.MarkRunning(ctx, stuck.ID))
	require.NoError(t, repos.Backtest.SaveResult(ctx, done.ID, models.BacktestResult{}))

	_, err = db.GetPool().Exec(ctx,
		"UPDATE backtests SET updated_at = NOW() - INTERVAL '1 hour' WHERE id = ANY($1)",
		[]uuid.UUID{stuck.ID, done.ID})
	require.NoError(t, err)

	claimed, err := repos.Backtest.ClaimStale(ctx, time.Now().Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, stuck.ID, claimed[0].ID)
	assert.Equal(t, models.BacktestStatusPending, claimed[0].Status)

	claimed, err = repos.Backtest.ClaimStale(ctx, time.Now().Add(-10*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestBacktestRetryIsRecoverableIntegration(t *testing.T) {
	db := setupTestDB(t)
	repos, err := NewRepositories(db)
	require.NoError(t, err)
	ctx := context.Background()

	bt := models.NewBacktest(models.BacktestSpec{
		Name:      "retrying",
		UserID:    "user-3",
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, repos.Backtest.Create(ctx, bt))
	require.NoError(t, repos.Backtest.MarkRunning(ctx, bt.ID))
	require.NoError(t, repos.Backtest.MarkRetrying(ctx, bt.ID, "transient"))

	got, err := repos.Backtest.GetByID(ctx, bt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BacktestStatusPending, got.Status)
	assert.False(t, got.Status.IsTerminal())
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "transient", *got.ErrorMessage)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, 1, got.Attempts)

	// the retry enqueue never happened; the sweep still finds the row
	_, err = db.GetPool().Exec(ctx,
		"UPDATE backtests SET updated_at = NOW() - INTERVAL '1 hour' WHERE id = $1", bt.ID)
	require.NoError(t, err)

	claimed, err := repos.Backtest.ClaimStale(ctx, time.Now().Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, bt.ID, claimed[0].ID)

	assert.ErrorIs(t, repos.Backtest.MarkRetrying(ctx, uuid.New(), "x"), models.ErrNotFound)
}
