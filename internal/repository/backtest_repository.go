package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/arblens/internal/database"
	"github.com/yourusername/arblens/internal/models"
)

const errScanBacktest = "failed to scan backtest: %w"

const backtestColumns = `id, user_id, name, start_date, end_date, min_spread_pct, min_liquidity_usd,
		venue_filter, total_opportunities, profitable_opportunities, total_profit_pct,
		total_profit_usd, max_drawdown_pct, sharpe_ratio, status, error_message, attempts,
		started_at, completed_at, created_at, updated_at`

// PostgresBacktestRepository implements BacktestRepository for PostgreSQL
type PostgresBacktestRepository struct {
	db *database.DB
}

// NewPostgresBacktestRepository creates a new backtest repository
func NewPostgresBacktestRepository(db *database.DB) BacktestRepository {
	return &PostgresBacktestRepository{db: db}
}

// Create inserts a new pending backtest
func (r *PostgresBacktestRepository) Create(ctx context.Context, bt *models.Backtest) error {
	query := `
		INSERT INTO backtests (id, user_id, name, start_date, end_date, min_spread_pct,
		                       min_liquidity_usd, venue_filter, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	venues := bt.VenueFilter
	if venues == nil {
		venues = []string{}
	}

	_, err := r.db.GetPool().Exec(ctx, query,
		bt.ID, bt.UserID, bt.Name, bt.StartDate, bt.EndDate, bt.MinSpreadPct,
		bt.MinLiquidityUSD, venues, bt.Status, bt.CreatedAt, bt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create backtest: %w", err)
	}

	return nil
}

// GetByID retrieves a backtest by ID
func (r *PostgresBacktestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Backtest, error) {
	query := `SELECT ` + backtestColumns + ` FROM backtests WHERE id = $1`

	bt, err := scanBacktest(r.db.GetPool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest: %w", err)
	}

	return bt, nil
}

// ListByUser returns a user's backtests, newest first
func (r *PostgresBacktestRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Backtest, error) {
	query := `SELECT ` + backtestColumns + `
		FROM backtests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.queryBacktests(ctx, query, userID, clampLimit(limit, defaultOpportunityLimit))
}

// MarkRunning moves a backtest to running and counts the attempt
func (r *PostgresBacktestRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE backtests
		SET status = $2, attempts = attempts + 1, started_at = NOW(),
		    error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, "mark backtest running", query, id, models.BacktestStatusRunning)
}

// SaveResult writes all six metrics and marks the backtest succeeded in one statement
func (r *PostgresBacktestRepository) SaveResult(ctx context.Context, id uuid.UUID, result models.BacktestResult) error {
	query := `
		UPDATE backtests
		SET total_opportunities = $2, profitable_opportunities = $3, total_profit_pct = $4,
		    total_profit_usd = $5, max_drawdown_pct = $6, sharpe_ratio = $7,
		    status = $8, error_message = NULL, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, "save backtest result", query, id,
		result.TotalOpportunities, result.ProfitableOpportunities, result.TotalProfitPct,
		result.TotalProfitUSD, result.MaxDrawdownPct, result.SharpeRatio,
		models.BacktestStatusSucceeded,
	)
}

// MarkFailed records the failure reason and leaves result fields untouched
func (r *PostgresBacktestRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE backtests
		SET status = $2, error_message = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, "mark backtest failed", query, id, models.BacktestStatusFailed, reason)
}

// MarkRetrying puts a backtest back to pending after a failed attempt that will
// be retried, keeping the reason visible until the next attempt starts
func (r *PostgresBacktestRepository) MarkRetrying(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE backtests
		SET status = $2, error_message = $3, completed_at = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, "mark backtest retrying", query, id, models.BacktestStatusPending, reason)
}

// ClaimStale requeues backtests stuck in pending or running
func (r *PostgresBacktestRepository) ClaimStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.Backtest, error) {
	query := `
		UPDATE backtests
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM backtests
			WHERE status IN ($2, $1) AND updated_at < $3
			ORDER BY updated_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + backtestColumns

	return r.queryBacktests(ctx, query,
		models.BacktestStatusPending, models.BacktestStatusRunning, olderThan, clampLimit(limit, defaultOpportunityLimit),
	)
}

func (r *PostgresBacktestRepository) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.db.GetPool().Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PostgresBacktestRepository) queryBacktests(ctx context.Context, query string, args ...any) ([]*models.Backtest, error) {
	rows, err := r.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtests: %w", err)
	}
	defer rows.Close()

	backtests := make([]*models.Backtest, 0)
	for rows.Next() {
		bt, err := scanBacktest(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanBacktest, err)
		}
		backtests = append(backtests, bt)
	}

	return backtests, rows.Err()
}

func scanBacktest(row pgx.Row) (*models.Backtest, error) {
	bt := &models.Backtest{}
	err := row.Scan(
		&bt.ID, &bt.UserID, &bt.Name, &bt.StartDate, &bt.EndDate, &bt.MinSpreadPct, &bt.MinLiquidityUSD,
		&bt.VenueFilter, &bt.TotalOpportunities, &bt.ProfitableOpportunities, &bt.TotalProfitPct,
		&bt.TotalProfitUSD, &bt.MaxDrawdownPct, &bt.SharpeRatio, &bt.Status, &bt.ErrorMessage, &bt.Attempts,
		&bt.StartedAt, &bt.CompletedAt, &bt.CreatedAt, &bt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return bt, nil
}
