package backtest

import (
	"fmt"

	"github.com/yourusername/arblens/internal/config"
)

// Config holds engine settings derived from the application config
type Config struct {
	ApplyVenueFilter       bool
	DefaultMinSpreadPct    float64
	DefaultMinLiquidityUSD float64
	OutputPath             string
}

// DefaultConfig returns the engine defaults used when no config file is present
func DefaultConfig() Config {
	return Config{
		ApplyVenueFilter:       true,
		DefaultMinSpreadPct:    1.0,
		DefaultMinLiquidityUSD: 500.0,
		OutputPath:             "./output",
	}
}

// FromConfig converts app config to engine config
func FromConfig(cfg *config.BacktestConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("backtest config is required")
	}
	bt := Config{
		ApplyVenueFilter:       cfg.ApplyVenueFilter,
		DefaultMinSpreadPct:    cfg.DefaultMinSpreadPct,
		DefaultMinLiquidityUSD: cfg.DefaultMinLiquidityUSD,
		OutputPath:             cfg.OutputPath,
	}
	return bt, bt.Validate()
}

// Validate validates engine settings
func (c Config) Validate() error {
	if c.DefaultMinSpreadPct < 0 {
		return fmt.Errorf("default min spread cannot be negative")
	}
	if c.DefaultMinLiquidityUSD < 0 {
		return fmt.Errorf("default min liquidity cannot be negative")
	}
	return nil
}
