package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/arblens/internal/config"
)

func setFlags(t *testing.T, start, end, venueList string, spread, liquidity float64) {
	t.Helper()
	prevStart, prevEnd, prevVenues := startDate, endDate, venues
	prevSpread, prevLiquidity := minSpread, minLiquidity
	t.Cleanup(func() {
		startDate, endDate, venues = prevStart, prevEnd, prevVenues
		minSpread, minLiquidity = prevSpread, prevLiquidity
	})
	startDate, endDate, venues = start, end, venueList
	minSpread, minLiquidity = spread, liquidity
}

func TestBuildSpecUsesConfigDefaults(t *testing.T) {
	setFlags(t, "2024-01-01", "2024-01-31", "", -1, -1)
	cfg := &config.Config{Backtest: config.BacktestConfig{DefaultMinSpreadPct: 1, DefaultMinLiquidityUSD: 500}}

	spec, err := buildSpec(cfg)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), spec.StartDate)
	assert.Equal(t, 1.0, spec.MinSpreadPct)
	assert.Equal(t, 500.0, spec.MinLiquidityUSD)
	assert.Empty(t, spec.VenueFilter)
}

func TestBuildSpecOverrides(t *testing.T) {
	setFlags(t, "2024-01-01", "2024-01-31", "Kalshi, Polymarket,", 0, 2500)
	cfg := &config.Config{Backtest: config.BacktestConfig{DefaultMinSpreadPct: 1, DefaultMinLiquidityUSD: 500}}

	spec, err := buildSpec(cfg)
	require.NoError(t, err)

	assert.Equal(t, 0.0, spec.MinSpreadPct)
	assert.Equal(t, 2500.0, spec.MinLiquidityUSD)
	assert.Equal(t, []string{"Kalshi", "Polymarket"}, spec.VenueFilter)
}

func TestBuildSpecRejectsBadWindow(t *testing.T) {
	cfg := &config.Config{}

	setFlags(t, "2024-02-01", "2024-01-01", "", -1, -1)
	_, err := buildSpec(cfg)
	assert.Error(t, err)

	setFlags(t, "01/02/2024", "2024-03-01", "", -1, -1)
	_, err = buildSpec(cfg)
	assert.Error(t, err)
}
