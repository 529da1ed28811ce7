package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar date format used by backtest requests
const DateLayout = "2006-01-02"

// BacktestStatus tracks a backtest job through its lifecycle
type BacktestStatus string

const (
	BacktestStatusPending   BacktestStatus = "pending"
	BacktestStatusRunning   BacktestStatus = "running"
	BacktestStatusSucceeded BacktestStatus = "succeeded"
	BacktestStatusFailed    BacktestStatus = "failed"
)

// IsTerminal reports whether no further transitions are expected
func (s BacktestStatus) IsTerminal() bool {
	return s == BacktestStatusSucceeded || s == BacktestStatusFailed
}

// BacktestSpec holds the immutable parameters of a backtest
type BacktestSpec struct {
	Name            string    `json:"name" validate:"required,min=1,max=255"`
	UserID          string    `json:"user_id" validate:"required"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	MinSpreadPct    float64   `json:"min_spread_pct" validate:"gte=0"`
	MinLiquidityUSD float64   `json:"min_liquidity_usd" validate:"gte=0"`
	VenueFilter     []string  `json:"venue_filter"`
}

// Validate checks the date window against now
func (s BacktestSpec) Validate(now time.Time) error {
	if !s.EndDate.After(s.StartDate) {
		return fmt.Errorf("%w: end_date must be after start_date", ErrInvalidDateRange)
	}
	today := truncateDay(now)
	if s.StartDate.After(today) || s.EndDate.After(today) {
		return ErrFutureDate
	}
	if s.MinSpreadPct < 0 || s.MinLiquidityUSD < 0 {
		return ErrNegativeThreshold
	}
	return nil
}

// WindowEnd returns the last instant included in the backtest window
func (s BacktestSpec) WindowEnd() time.Time {
	return s.EndDate.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
}

// BacktestResult holds the six metrics produced by a backtest run
type BacktestResult struct {
	TotalOpportunities      int     `db:"total_opportunities" json:"total_opportunities"`
	ProfitableOpportunities int     `db:"profitable_opportunities" json:"profitable_opportunities"`
	TotalProfitPct          float64 `db:"total_profit_pct" json:"total_profit_pct"`
	TotalProfitUSD          float64 `db:"total_profit_usd" json:"total_profit_usd"`
	MaxDrawdownPct          float64 `db:"max_drawdown_pct" json:"max_drawdown_pct"`
	SharpeRatio             float64 `db:"sharpe_ratio" json:"sharpe_ratio"`
}

// Backtest is a persisted backtest row
type Backtest struct {
	ID uuid.UUID `db:"id" json:"id"`
	BacktestSpec
	BacktestResult
	Status       BacktestStatus `db:"status" json:"status"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
	Attempts     int            `db:"attempts" json:"attempts"`
	StartedAt    *time.Time     `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// NewBacktest creates a pending backtest with zeroed result fields
func NewBacktest(spec BacktestSpec) *Backtest {
	now := time.Now().UTC()
	if spec.VenueFilter == nil {
		spec.VenueFilter = []string{}
	}
	return &Backtest{
		ID:           uuid.New(),
		BacktestSpec: spec,
		Status:       BacktestStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
