package models

// PlatformStats aggregates headline counters over the live dataset
type PlatformStats struct {
	ActiveOpportunities int64   `json:"active_opportunities"`
	TotalVenues         int64   `json:"total_venues"`
	TotalMarkets        int64   `json:"total_markets"`
	AvgSpread           float64 `json:"avg_spread"`
	TotalVolume         float64 `json:"total_volume"`
}
