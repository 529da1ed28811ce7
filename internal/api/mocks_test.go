package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/arblens/internal/models"
	"github.com/yourusername/arblens/internal/repository"
)

var errMockDB = errors.New("connection refused")

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

type mockOpportunityRepo struct {
	opportunities []*models.Opportunity
	detail        *models.OpportunityDetail
	shouldError   bool
	lastFilter    repository.OpportunityFilter
}

func (m *mockOpportunityRepo) List(ctx context.Context, filter repository.OpportunityFilter) ([]*models.Opportunity, error) {
	m.lastFilter = filter
	if m.shouldError {
		return nil, errMockDB
	}
	return m.opportunities, nil
}

func (m *mockOpportunityRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.OpportunityDetail, error) {
	if m.shouldError {
		return nil, errMockDB
	}
	if m.detail == nil || m.detail.ID != id {
		return nil, models.ErrNotFound
	}
	return m.detail, nil
}

func (m *mockOpportunityRepo) CountActive(ctx context.Context) (int64, error) {
	return int64(len(m.opportunities)), nil
}

func (m *mockOpportunityRepo) FetchHistory(ctx context.Context, query repository.HistoryQuery) ([]models.HistoricalOpportunity, error) {
	return nil, nil
}

type mockVenueRepo struct {
	venues     []*models.Venue
	lastFilter repository.VenueFilter
}

func (m *mockVenueRepo) List(ctx context.Context, filter repository.VenueFilter) ([]*models.Venue, error) {
	m.lastFilter = filter
	return m.venues, nil
}

type mockMarketRepo struct {
	markets    []*models.Market
	lastFilter repository.MarketFilter
}

func (m *mockMarketRepo) List(ctx context.Context, filter repository.MarketFilter) ([]*models.Market, error) {
	m.lastFilter = filter
	return m.markets, nil
}

type mockStatsRepo struct {
	stats models.PlatformStats
	calls int
}

func (m *mockStatsRepo) GetPlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	m.calls++
	stats := m.stats
	return &stats, nil
}

type mockBacktestRepo struct {
	mu          sync.Mutex
	backtests   map[uuid.UUID]*models.Backtest
	failed      map[uuid.UUID]string
	shouldError bool
	// transitions are applied, one per GetByID call, after the first read
	transitions []models.BacktestStatus
	reads       int
}

func newMockBacktestRepo() *mockBacktestRepo {
	return &mockBacktestRepo{
		backtests: make(map[uuid.UUID]*models.Backtest),
		failed:    make(map[uuid.UUID]string),
	}
}

func (m *mockBacktestRepo) Create(ctx context.Context, bt *models.Backtest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldError {
		return errMockDB
	}
	copied := *bt
	m.backtests[bt.ID] = &copied
	return nil
}

func (m *mockBacktestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Backtest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldError {
		return nil, errMockDB
	}
	bt, ok := m.backtests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if m.reads > 0 && len(m.transitions) > 0 {
		bt.Status = m.transitions[0]
		bt.UpdatedAt = bt.UpdatedAt.Add(time.Second)
		m.transitions = m.transitions[1:]
	}
	m.reads++
	copied := *bt
	return &copied, nil
}

func (m *mockBacktestRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Backtest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Backtest
	for _, bt := range m.backtests {
		if bt.UserID == userID {
			out = append(out, bt)
		}
	}
	return out, nil
}

func (m *mockBacktestRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (m *mockBacktestRepo) SaveResult(ctx context.Context, id uuid.UUID, result models.BacktestResult) error {
	return nil
}

func (m *mockBacktestRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id] = reason
	if bt, ok := m.backtests[id]; ok {
		bt.Status = models.BacktestStatusFailed
	}
	return nil
}

func (m *mockBacktestRepo) MarkRetrying(ctx context.Context, id uuid.UUID, reason string) error {
	return nil
}

func (m *mockBacktestRepo) ClaimStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.Backtest, error) {
	return nil, nil
}

type mockSubmitter struct {
	mu        sync.Mutex
	err       error
	submitted []models.BacktestSpec
}

func (m *mockSubmitter) Submit(ctx context.Context, backtestID uuid.UUID, spec models.BacktestSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.submitted = append(m.submitted, spec)
	return nil
}
