package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/arblens/internal/database"
	"github.com/yourusername/arblens/internal/models"
)

// PostgresVenueRepository implements VenueRepository for PostgreSQL
type PostgresVenueRepository struct {
	db *database.DB
}

// NewPostgresVenueRepository creates a new venue repository
func NewPostgresVenueRepository(db *database.DB) VenueRepository {
	return &PostgresVenueRepository{db: db}
}

// List returns venues ordered by name
func (r *PostgresVenueRepository) List(ctx context.Context, filter VenueFilter) ([]*models.Venue, error) {
	status := filter.Status
	if status == "" {
		status = string(models.VenueStatusActive)
	}

	qb := newQueryBuilder(`SELECT id, name, venue_type, api_url, websocket_url, fee_bps,
		       min_trade_size, max_trade_size, supports_websocket, requires_auth,
		       geo_restrictions, status, last_sync_at, created_at, updated_at
		FROM venues`)
	qb.where("status = %s", status)
	if filter.VenueType != "" {
		qb.where("venue_type = %s", filter.VenueType)
	}
	qb.suffix("ORDER BY name")

	rows, err := r.db.GetPool().Query(ctx, qb.sql(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	defer rows.Close()

	venues := make([]*models.Venue, 0)
	for rows.Next() {
		v := &models.Venue{}
		err := rows.Scan(
			&v.ID, &v.Name, &v.VenueType, &v.APIURL, &v.WebsocketURL, &v.FeeBps,
			&v.MinTradeSize, &v.MaxTradeSize, &v.SupportsWebsocket, &v.RequiresAuth,
			&v.GeoRestrictions, &v.Status, &v.LastSyncAt, &v.CreatedAt, &v.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, v)
	}

	return venues, rows.Err()
}
