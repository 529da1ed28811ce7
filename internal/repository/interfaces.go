package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/arblens/internal/models"
)

// OpportunityRepository defines the interface for arbitrage opportunity data access
type OpportunityRepository interface {
	List(ctx context.Context, filter OpportunityFilter) ([]*models.Opportunity, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.OpportunityDetail, error)
	CountActive(ctx context.Context) (int64, error)
	FetchHistory(ctx context.Context, query HistoryQuery) ([]models.HistoricalOpportunity, error)
}

// VenueRepository defines the interface for venue data access
type VenueRepository interface {
	List(ctx context.Context, filter VenueFilter) ([]*models.Venue, error)
}

// MarketRepository defines the interface for market data access
type MarketRepository interface {
	List(ctx context.Context, filter MarketFilter) ([]*models.Market, error)
}

// StatsRepository defines the interface for platform-wide aggregates
type StatsRepository interface {
	GetPlatformStats(ctx context.Context) (*models.PlatformStats, error)
}

// BacktestRepository defines the interface for backtest persistence
type BacktestRepository interface {
	Create(ctx context.Context, backtest *models.Backtest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Backtest, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Backtest, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	SaveResult(ctx context.Context, id uuid.UUID, result models.BacktestResult) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	MarkRetrying(ctx context.Context, id uuid.UUID, reason string) error
	// ClaimStale resets pending or running rows untouched since olderThan back to
	// pending and returns them, so the caller can requeue them.
	ClaimStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.Backtest, error)
}
