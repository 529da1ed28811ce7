package repository

import (
	"fmt"

	"github.com/yourusername/arblens/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Opportunity OpportunityRepository
	Venue       VenueRepository
	Market      MarketRepository
	Stats       StatsRepository
	Backtest    BacktestRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Opportunity: NewPostgresOpportunityRepository(db),
		Venue:       NewPostgresVenueRepository(db),
		Market:      NewPostgresMarketRepository(db),
		Stats:       NewPostgresStatsRepository(db),
		Backtest:    NewPostgresBacktestRepository(db),
	}, nil
}
