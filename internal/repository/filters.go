package repository

import (
	"time"

	"github.com/google/uuid"
)

const (
	defaultOpportunityLimit = 50
	defaultMarketLimit      = 100
	maxListLimit            = 1000
)

// HistoryQuery selects the opportunities replayed by a backtest.
// Start and End are inclusive.
type HistoryQuery struct {
	Start           time.Time
	End             time.Time
	MinSpreadPct    float64
	MinLiquidityUSD float64
	// Venues restricts rows to pairs where either leg trades on one of the named venues
	Venues []string
}

// OpportunityFilter narrows the live opportunity listing
type OpportunityFilter struct {
	MinSpread    *float64
	MinLiquidity *float64
	Venues       []string
	Category     string
	Status       string
	Limit        int
}

// VenueFilter narrows the venue listing
type VenueFilter struct {
	Status    string
	VenueType string
}

// MarketFilter narrows the market listing
type MarketFilter struct {
	VenueID  *uuid.UUID
	Category string
	Status   string
	Limit    int
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
