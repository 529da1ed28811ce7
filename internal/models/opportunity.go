package models

import (
	"time"

	"github.com/google/uuid"
)

// OpportunityStatus represents the lifecycle state of an arbitrage opportunity
type OpportunityStatus string

const (
	OpportunityStatusActive                OpportunityStatus = "active"
	OpportunityStatusExpired               OpportunityStatus = "expired"
	OpportunityStatusInsufficientLiquidity OpportunityStatus = "insufficient_liquidity"
	OpportunityStatusExecuted              OpportunityStatus = "executed"
)

// RiskLevel grades the execution risk of an opportunity
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Opportunity is a detected price discrepancy between two paired markets
type Opportunity struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	PairID            uuid.UUID         `db:"pair_id" json:"pair_id"`
	GrossSpreadPct    float64           `db:"gross_spread_pct" json:"gross_spread_pct"`
	NetSpreadPct      float64           `db:"net_spread_pct" json:"net_spread_pct"`
	ExpectedProfitPct float64           `db:"expected_profit_pct" json:"expected_profit_pct"`
	ExpectedProfitUSD *float64          `db:"expected_profit_usd" json:"expected_profit_usd,omitempty"`
	MaxTradableAmount float64           `db:"max_tradable_amount" json:"max_tradable_amount"`
	VenueASide        string            `db:"venue_a_side" json:"venue_a_side"`
	VenueBSide        string            `db:"venue_b_side" json:"venue_b_side"`
	VenueAPrice       float64           `db:"venue_a_price" json:"venue_a_price"`
	VenueBPrice       float64           `db:"venue_b_price" json:"venue_b_price"`
	VenueALiquidity   float64           `db:"venue_a_liquidity" json:"venue_a_liquidity"`
	VenueBLiquidity   float64           `db:"venue_b_liquidity" json:"venue_b_liquidity"`
	RiskLevel         RiskLevel         `db:"risk_level" json:"risk_level"`
	Status            OpportunityStatus `db:"status" json:"status"`
	ExpiresAt         *time.Time        `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`

	// Joined from market_pairs, markets and venues
	ConfidenceScore float64   `db:"confidence_score" json:"confidence_score"`
	MarketATitle    string    `db:"market_a_title" json:"market_a_title"`
	MarketACategory *string   `db:"market_a_category" json:"market_a_category,omitempty"`
	MarketBTitle    string    `db:"market_b_title" json:"market_b_title"`
	MarketBCategory *string   `db:"market_b_category" json:"market_b_category,omitempty"`
	VenueAName      string    `db:"venue_a_name" json:"venue_a_name"`
	VenueAType      VenueType `db:"venue_a_type" json:"venue_a_type"`
	VenueBName      string    `db:"venue_b_name" json:"venue_b_name"`
	VenueBType      VenueType `db:"venue_b_type" json:"venue_b_type"`
}

// OpportunityDetail extends an opportunity with both full market legs
type OpportunityDetail struct {
	Opportunity
	IsManualOverride bool   `json:"is_manual_override"`
	VenueAFeeBps     int    `json:"venue_a_fee_bps"`
	VenueBFeeBps     int    `json:"venue_b_fee_bps"`
	MarketA          Market `json:"market_a"`
	MarketB          Market `json:"market_b"`
}

// HistoricalOpportunity is the slice of an opportunity a backtest replays
type HistoricalOpportunity struct {
	ID                uuid.UUID `db:"id" json:"id"`
	NetSpreadPct      float64   `db:"net_spread_pct" json:"net_spread_pct"`
	ExpectedProfitUSD *float64  `db:"expected_profit_usd" json:"expected_profit_usd,omitempty"`
	MaxTradableAmount float64   `db:"max_tradable_amount" json:"max_tradable_amount"`
	VenueAName        string    `db:"venue_a_name" json:"venue_a_name,omitempty"`
	VenueBName        string    `db:"venue_b_name" json:"venue_b_name,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// ProfitUSD returns the expected USD profit, treating a missing value as zero
func (h HistoricalOpportunity) ProfitUSD() float64 {
	if h.ExpectedProfitUSD == nil {
		return 0
	}
	return *h.ExpectedProfitUSD
}
