package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourusername/arblens/internal/database"
	"github.com/yourusername/arblens/internal/models"
)

const errScanMarket = "failed to scan market: %w"

var marketFields = []string{
	"id", "venue_id", "external_id", "title", "description", "category",
	"event_date", "resolution_date", "yes_price", "no_price",
	"yes_liquidity", "no_liquidity", "volume_24h", "tick_size",
	"market_url", "status", "last_updated", "created_at",
}

// marketColumns renders the market column list qualified by alias
func marketColumns(alias string) string {
	cols := make([]string, len(marketFields))
	for i, f := range marketFields {
		cols[i] = alias + "." + f
	}
	return "\n\t\t" + strings.Join(cols, ", ")
}

func marketDest(m *models.Market) []any {
	return []any{
		&m.ID, &m.VenueID, &m.ExternalID, &m.Title, &m.Description, &m.Category,
		&m.EventDate, &m.ResolutionDate, &m.YesPrice, &m.NoPrice,
		&m.YesLiquidity, &m.NoLiquidity, &m.Volume24h, &m.TickSize,
		&m.MarketURL, &m.Status, &m.LastUpdated, &m.CreatedAt,
	}
}

// PostgresMarketRepository implements MarketRepository for PostgreSQL
type PostgresMarketRepository struct {
	db *database.DB
}

// NewPostgresMarketRepository creates a new market repository
func NewPostgresMarketRepository(db *database.DB) MarketRepository {
	return &PostgresMarketRepository{db: db}
}

// List returns markets with their venue, most recently updated first
func (r *PostgresMarketRepository) List(ctx context.Context, filter MarketFilter) ([]*models.Market, error) {
	status := filter.Status
	if status == "" {
		status = string(models.MarketStatusActive)
	}

	qb := newQueryBuilder("SELECT" + marketColumns("m") + `, v.name, v.venue_type
		FROM markets m
		JOIN venues v ON m.venue_id = v.id`)
	qb.where("m.status = %s", status)
	if filter.VenueID != nil {
		qb.where("m.venue_id = %s", *filter.VenueID)
	}
	if filter.Category != "" {
		qb.where("m.category = %s", filter.Category)
	}
	qb.suffix("ORDER BY m.last_updated DESC LIMIT %s", clampLimit(filter.Limit, defaultMarketLimit))

	rows, err := r.db.GetPool().Query(ctx, qb.sql(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()

	markets := make([]*models.Market, 0)
	for rows.Next() {
		m := &models.Market{}
		dest := append(marketDest(m), &m.VenueName, &m.VenueType)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf(errScanMarket, err)
		}
		markets = append(markets, m)
	}

	return markets, rows.Err()
}
