package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourusername/arblens/internal/models"
	"github.com/yourusername/arblens/internal/repository"
)

// HistoryRepository serves backtest history from the opportunity_history table.
type HistoryRepository struct {
	conn *Conn
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(conn *Conn) *HistoryRepository {
	return &HistoryRepository{conn: conn}
}

// FetchHistory returns rows inside [Start, End] clearing both thresholds, oldest first.
func (r *HistoryRepository) FetchHistory(ctx context.Context, query repository.HistoryQuery) ([]models.HistoricalOpportunity, error) {
	var sql strings.Builder
	sql.WriteString(`
		SELECT id, net_spread_pct, expected_profit_usd, max_tradable_amount,
		       venue_a_name, venue_b_name, created_at
		FROM opportunity_history FINAL
		WHERE created_at >= ? AND created_at <= ?
		  AND net_spread_pct >= ? AND max_tradable_amount >= ?`)
	args := []any{query.Start, query.End, query.MinSpreadPct, query.MinLiquidityUSD}

	if len(query.Venues) > 0 {
		sql.WriteString(`
		  AND (venue_a_name IN (?) OR venue_b_name IN (?))`)
		args = append(args, query.Venues, query.Venues)
	}
	sql.WriteString(`
		ORDER BY created_at ASC, id ASC`)

	rows, err := r.conn.Query(ctx, sql.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query opportunity history: %w", err)
	}
	defer rows.Close()

	var records []models.HistoricalOpportunity
	for rows.Next() {
		var rec models.HistoricalOpportunity
		if err := rows.Scan(
			&rec.ID, &rec.NetSpreadPct, &rec.ExpectedProfitUSD, &rec.MaxTradableAmount,
			&rec.VenueAName, &rec.VenueBName, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan opportunity history: %w", err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		records = append(records, rec)
	}

	return records, rows.Err()
}

// InsertBatch copies records into the warehouse. Re-inserting a row with the
// same (created_at, id) collapses on merge.
func (r *HistoryRepository) InsertBatch(ctx context.Context, records []models.HistoricalOpportunity) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO opportunity_history (
			id, net_spread_pct, expected_profit_usd, max_tradable_amount,
			venue_a_name, venue_b_name, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, rec := range records {
		err = batch.Append(
			rec.ID, rec.NetSpreadPct, rec.ExpectedProfitUSD, rec.MaxTradableAmount,
			rec.VenueAName, rec.VenueBName, rec.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}
