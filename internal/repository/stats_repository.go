package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/arblens/internal/database"
	"github.com/yourusername/arblens/internal/models"
)

// PostgresStatsRepository implements StatsRepository for PostgreSQL
type PostgresStatsRepository struct {
	db *database.DB
}

// NewPostgresStatsRepository creates a new stats repository
func NewPostgresStatsRepository(db *database.DB) StatsRepository {
	return &PostgresStatsRepository{db: db}
}

// GetPlatformStats computes headline counters over active rows.
// Aggregates over an empty set come back as zero.
func (r *PostgresStatsRepository) GetPlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM arbitrage_opportunities WHERE status = 'active'),
			(SELECT COUNT(*) FROM venues WHERE status = 'active'),
			(SELECT COUNT(*) FROM markets WHERE status = 'active'),
			(SELECT AVG(net_spread_pct) FROM arbitrage_opportunities WHERE status = 'active'),
			(SELECT SUM(max_tradable_amount) FROM arbitrage_opportunities WHERE status = 'active')
	`

	stats := &models.PlatformStats{}
	var avgSpread, totalVolume *float64
	err := r.db.GetPool().QueryRow(ctx, query).Scan(
		&stats.ActiveOpportunities, &stats.TotalVenues, &stats.TotalMarkets,
		&avgSpread, &totalVolume,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get platform stats: %w", err)
	}

	if avgSpread != nil {
		stats.AvgSpread = *avgSpread
	}
	if totalVolume != nil {
		stats.TotalVolume = *totalVolume
	}
	return stats, nil
}
