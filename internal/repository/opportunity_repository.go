package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/arblens/internal/database"
	"github.com/yourusername/arblens/internal/models"
)

const errScanOpportunity = "failed to scan opportunity: %w"

const opportunityJoins = `
		FROM arbitrage_opportunities ao
		JOIN market_pairs mp ON ao.pair_id = mp.id
		JOIN markets ma ON mp.market_a_id = ma.id
		JOIN markets mb ON mp.market_b_id = mb.id
		JOIN venues va ON ma.venue_id = va.id
		JOIN venues vb ON mb.venue_id = vb.id`

const opportunityColumns = `
		ao.id, ao.pair_id, ao.gross_spread_pct, ao.net_spread_pct, ao.expected_profit_pct,
		ao.expected_profit_usd, ao.max_tradable_amount, ao.venue_a_side, ao.venue_b_side,
		ao.venue_a_price, ao.venue_b_price, ao.venue_a_liquidity, ao.venue_b_liquidity,
		ao.risk_level, ao.status, ao.expires_at, ao.created_at, ao.updated_at,
		mp.confidence_score,
		ma.title, ma.category, mb.title, mb.category,
		va.name, va.venue_type, vb.name, vb.venue_type`

// PostgresOpportunityRepository implements OpportunityRepository for PostgreSQL
type PostgresOpportunityRepository struct {
	db *database.DB
}

// NewPostgresOpportunityRepository creates a new opportunity repository
func NewPostgresOpportunityRepository(db *database.DB) OpportunityRepository {
	return &PostgresOpportunityRepository{db: db}
}

// List returns opportunities matching the filter, best spread first
func (r *PostgresOpportunityRepository) List(ctx context.Context, filter OpportunityFilter) ([]*models.Opportunity, error) {
	status := filter.Status
	if status == "" {
		status = string(models.OpportunityStatusActive)
	}

	qb := newQueryBuilder("SELECT" + opportunityColumns + opportunityJoins)
	qb.where("ao.status = %s", status)
	if filter.MinSpread != nil {
		qb.where("ao.net_spread_pct >= %s", *filter.MinSpread)
	}
	if filter.MinLiquidity != nil {
		qb.where("ao.max_tradable_amount >= %s", *filter.MinLiquidity)
	}
	if filter.Category != "" {
		qb.where("(ma.category = %[1]s OR mb.category = %[1]s)", filter.Category)
	}
	if len(filter.Venues) > 0 {
		qb.where("(va.name = ANY(%[1]s) OR vb.name = ANY(%[1]s))", filter.Venues)
	}
	qb.suffix("ORDER BY ao.net_spread_pct DESC LIMIT %s", clampLimit(filter.Limit, defaultOpportunityLimit))

	rows, err := r.db.GetPool().Query(ctx, qb.sql(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}
	defer rows.Close()

	opportunities := make([]*models.Opportunity, 0)
	for rows.Next() {
		opp := &models.Opportunity{}
		if err := rows.Scan(opportunityDest(opp)...); err != nil {
			return nil, fmt.Errorf(errScanOpportunity, err)
		}
		opportunities = append(opportunities, opp)
	}

	return opportunities, rows.Err()
}

// GetByID retrieves an opportunity together with both market legs
func (r *PostgresOpportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.OpportunityDetail, error) {
	query := "SELECT" + opportunityColumns + `,
		mp.is_manual_override, va.fee_bps, vb.fee_bps,` +
		marketColumns("ma") + "," + marketColumns("mb") +
		opportunityJoins + `
		WHERE ao.id = $1`

	detail := &models.OpportunityDetail{}
	dest := opportunityDest(&detail.Opportunity)
	dest = append(dest, &detail.IsManualOverride, &detail.VenueAFeeBps, &detail.VenueBFeeBps)
	dest = append(dest, marketDest(&detail.MarketA)...)
	dest = append(dest, marketDest(&detail.MarketB)...)

	err := r.db.GetPool().QueryRow(ctx, query, id).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}

	detail.MarketA.VenueName, detail.MarketA.VenueType = detail.VenueAName, detail.VenueAType
	detail.MarketB.VenueName, detail.MarketB.VenueType = detail.VenueBName, detail.VenueBType
	return detail, nil
}

// CountActive returns the number of active opportunities
func (r *PostgresOpportunityRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetPool().QueryRow(ctx,
		"SELECT COUNT(*) FROM arbitrage_opportunities WHERE status = $1",
		models.OpportunityStatusActive,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active opportunities: %w", err)
	}
	return count, nil
}

// FetchHistory returns opportunities inside the window that clear both
// thresholds, oldest first
func (r *PostgresOpportunityRepository) FetchHistory(ctx context.Context, query HistoryQuery) ([]models.HistoricalOpportunity, error) {
	qb := newQueryBuilder(`SELECT ao.id, ao.net_spread_pct, ao.expected_profit_usd, ao.max_tradable_amount,
		va.name, vb.name, ao.created_at` + opportunityJoins)
	qb.where("ao.created_at >= %s", query.Start)
	qb.where("ao.created_at <= %s", query.End)
	qb.where("ao.net_spread_pct >= %s", query.MinSpreadPct)
	qb.where("ao.max_tradable_amount >= %s", query.MinLiquidityUSD)
	if len(query.Venues) > 0 {
		qb.where("(va.name = ANY(%[1]s) OR vb.name = ANY(%[1]s))", query.Venues)
	}
	qb.suffix("ORDER BY ao.created_at, ao.id")

	rows, err := r.db.GetPool().Query(ctx, qb.sql(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical opportunities: %w", err)
	}
	defer rows.Close()

	var records []models.HistoricalOpportunity
	for rows.Next() {
		var rec models.HistoricalOpportunity
		if err := rows.Scan(
			&rec.ID, &rec.NetSpreadPct, &rec.ExpectedProfitUSD, &rec.MaxTradableAmount,
			&rec.VenueAName, &rec.VenueBName, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf(errScanOpportunity, err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func opportunityDest(o *models.Opportunity) []any {
	return []any{
		&o.ID, &o.PairID, &o.GrossSpreadPct, &o.NetSpreadPct, &o.ExpectedProfitPct,
		&o.ExpectedProfitUSD, &o.MaxTradableAmount, &o.VenueASide, &o.VenueBSide,
		&o.VenueAPrice, &o.VenueBPrice, &o.VenueALiquidity, &o.VenueBLiquidity,
		&o.RiskLevel, &o.Status, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt,
		&o.ConfidenceScore,
		&o.MarketATitle, &o.MarketACategory, &o.MarketBTitle, &o.MarketBCategory,
		&o.VenueAName, &o.VenueAType, &o.VenueBName, &o.VenueBType,
	}
}

// queryBuilder accumulates WHERE clauses and positional arguments.
// Each clause format receives the placeholder for its single argument.
type queryBuilder struct {
	base    string
	clauses []string
	tail    string
	args    []any
}

func newQueryBuilder(base string) *queryBuilder {
	return &queryBuilder{base: base}
}

func (q *queryBuilder) bind(arg any) string {
	q.args = append(q.args, arg)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *queryBuilder) where(format string, arg any) {
	q.clauses = append(q.clauses, fmt.Sprintf(format, q.bind(arg)))
}

func (q *queryBuilder) suffix(format string, args ...any) {
	placeholders := make([]any, len(args))
	for i, arg := range args {
		placeholders[i] = q.bind(arg)
	}
	q.tail = fmt.Sprintf(format, placeholders...)
}

func (q *queryBuilder) sql() string {
	var b strings.Builder
	b.WriteString(q.base)
	for i, clause := range q.clauses {
		if i == 0 {
			b.WriteString("\n\t\tWHERE ")
		} else {
			b.WriteString("\n\t\tAND ")
		}
		b.WriteString(clause)
	}
	if q.tail != "" {
		b.WriteString("\n\t\t")
		b.WriteString(q.tail)
	}
	return b.String()
}
