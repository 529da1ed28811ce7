// Package main provides the entry point for the offline backtesting CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/arblens/internal/backtest"
	"github.com/yourusername/arblens/internal/config"
	"github.com/yourusername/arblens/internal/database"
	"github.com/yourusername/arblens/internal/logger"
	"github.com/yourusername/arblens/internal/models"
	"github.com/yourusername/arblens/internal/repository"
	chrepo "github.com/yourusername/arblens/internal/repository/clickhouse"
)

var (
	configFile string

	startDate    string
	endDate      string
	minSpread    float64
	minLiquidity float64
	venues       string
	output       string
	format       string
	persist      bool
	name         string
	userID       string

	syncBatchSize int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&startDate, "start", "", "First day of the window (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVar(&endDate, "end", "", "Last day of the window (YYYY-MM-DD)")

	rootCmd.Flags().Float64Var(&minSpread, "min-spread", -1, "Minimum net spread percentage (default from config)")
	rootCmd.Flags().Float64Var(&minLiquidity, "min-liquidity", -1, "Minimum tradable amount in USD (default from config)")
	rootCmd.Flags().StringVar(&venues, "venues", "", "Comma-separated venue names")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Write the daily return series to this path")
	rootCmd.Flags().StringVar(&format, "format", backtest.FormatJSON, "Export format: json, csv or parquet")
	rootCmd.Flags().BoolVar(&persist, "persist", false, "Store the run as a backtest row")
	rootCmd.Flags().StringVar(&name, "name", "cli backtest", "Backtest name when persisting")
	rootCmd.Flags().StringVar(&userID, "user-id", "cli", "Owner when persisting")

	syncCmd.Flags().IntVar(&syncBatchSize, "batch-size", 5000, "Rows per ClickHouse insert")

	_ = rootCmd.MarkPersistentFlagRequired("start")
	_ = rootCmd.MarkPersistentFlagRequired("end")

	rootCmd.AddCommand(syncCmd)
}

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical arbitrage opportunities",
	Long: `Replays the opportunities recorded in a date window and prints the
resulting metrics. The daily return series can be exported as JSON, CSV or
Parquet, and the run can be stored as a backtest row.`,
	SilenceUsage: true,
	RunE:         runBacktest,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy opportunity history from PostgreSQL into ClickHouse",
	RunE:  runSync,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseWindow() (time.Time, time.Time, error) {
	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse(models.DateLayout, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
	}
	return start, end, nil
}

func buildSpec(cfg *config.Config) (models.BacktestSpec, error) {
	start, end, err := parseWindow()
	if err != nil {
		return models.BacktestSpec{}, err
	}

	spec := models.BacktestSpec{
		Name:            name,
		UserID:          userID,
		StartDate:       start,
		EndDate:         end,
		MinSpreadPct:    cfg.Backtest.DefaultMinSpreadPct,
		MinLiquidityUSD: cfg.Backtest.DefaultMinLiquidityUSD,
		VenueFilter:     []string{},
	}
	if minSpread >= 0 {
		spec.MinSpreadPct = minSpread
	}
	if minLiquidity >= 0 {
		spec.MinLiquidityUSD = minLiquidity
	}
	for _, v := range strings.Split(venues, ",") {
		if v = strings.TrimSpace(v); v != "" {
			spec.VenueFilter = append(spec.VenueFilter, v)
		}
	}

	return spec, spec.Validate(time.Now())
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	appLog := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)

	spec, err := buildSpec(cfg)
	if err != nil {
		return err
	}

	stores, err := openStores(ctx, cfg, cfg.Backtest.HistorySource == config.HistorySourceClickHouse)
	if err != nil {
		return err
	}
	defer stores.close()

	if persist && stores.repos == nil {
		return fmt.Errorf("--persist requires a configured database")
	}

	btConfig, err := backtest.FromConfig(&cfg.Backtest)
	if err != nil {
		return fmt.Errorf("invalid backtest config: %w", err)
	}
	engine, err := backtest.NewEngine(btConfig, stores.history(), stores.resultStore(), appLog)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	appLog.WithFields(logrus.Fields{
		"start":  spec.StartDate.Format(models.DateLayout),
		"end":    spec.EndDate.Format(models.DateLayout),
		"venues": spec.VenueFilter,
	}).Info("Starting backtest")

	result, series, err := engine.Replay(ctx, spec)
	if err != nil {
		return err
	}
	fmt.Print(backtest.GenerateConsoleReport(spec, result, series))

	if output != "" {
		if err := backtest.ExportDailySeries(series, output, format); err != nil {
			return fmt.Errorf("failed to export daily series: %w", err)
		}
		appLog.WithFields(logrus.Fields{"path": output, "format": format}).Info("Daily series exported")
	}

	if persist {
		bt := models.NewBacktest(spec)
		if err := stores.repos.Backtest.Create(ctx, bt); err != nil {
			return fmt.Errorf("failed to create backtest: %w", err)
		}
		// Run recomputes inside the stored status lifecycle
		if _, err := engine.Run(ctx, bt.ID, spec); err != nil {
			return err
		}
		appLog.WithField("backtest_id", bt.ID.String()).Info("Backtest persisted")
	}

	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	appLog := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)

	start, end, err := parseWindow()
	if err != nil {
		return err
	}
	if cfg.ClickHouse.DSN == "" {
		return fmt.Errorf("clickhouse.dsn is required for sync")
	}

	stores, err := openStores(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer stores.close()
	if stores.repos == nil {
		return fmt.Errorf("sync requires a configured database")
	}

	// Each day is read and written separately to bound memory
	warehouse := chrepo.NewHistoryRepository(stores.ch)
	total := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		records, err := stores.repos.Opportunity.FetchHistory(ctx, repository.HistoryQuery{
			Start: day,
			End:   day.Add(24*time.Hour - time.Nanosecond),
		})
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", day.Format(models.DateLayout), err)
		}

		for i := 0; i < len(records); i += syncBatchSize {
			j := min(i+syncBatchSize, len(records))
			if err := warehouse.InsertBatch(ctx, records[i:j]); err != nil {
				return fmt.Errorf("failed to write %s: %w", day.Format(models.DateLayout), err)
			}
		}
		total += len(records)

		appLog.WithFields(logrus.Fields{
			"day":  day.Format(models.DateLayout),
			"rows": len(records),
		}).Debug("Synced day")
	}

	appLog.WithField("rows", total).Info("Opportunity history synced to ClickHouse")
	return nil
}

// stores holds whichever connections the command opened
type stores struct {
	db    *database.DB
	repos *repository.Repositories
	ch    *chrepo.Conn
}

func openStores(ctx context.Context, cfg *config.Config, withClickHouse bool) (*stores, error) {
	s := &stores{}
	if cfg.Database.Configured() {
		db, err := database.NewDB(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		if s.repos, err = repository.NewRepositories(db); err != nil {
			s.close()
			return nil, err
		}
	}

	if withClickHouse {
		conn, err := chrepo.NewConn(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
		}
		s.ch = conn
	}

	if s.repos == nil && s.ch == nil {
		return nil, fmt.Errorf("no history source configured")
	}
	return s, nil
}

func (s *stores) history() backtest.HistoricalSource {
	if s.ch != nil {
		return chrepo.NewHistoryRepository(s.ch)
	}
	return s.repos.Opportunity
}

// resultStore falls back to a store that refuses writes when no database is configured
func (s *stores) resultStore() backtest.ResultStore {
	if s.repos != nil {
		return s.repos.Backtest
	}
	return readOnlyStore{}
}

func (s *stores) close() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

var errNoDatabase = errors.New("no database configured")

// readOnlyStore lets Replay run against ClickHouse alone
type readOnlyStore struct{}

func (readOnlyStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Backtest, error) {
	return nil, errNoDatabase
}

func (readOnlyStore) MarkRunning(ctx context.Context, id uuid.UUID) error { return errNoDatabase }

func (readOnlyStore) SaveResult(ctx context.Context, id uuid.UUID, result models.BacktestResult) error {
	return errNoDatabase
}

func (readOnlyStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return errNoDatabase
}

func (readOnlyStore) MarkRetrying(ctx context.Context, id uuid.UUID, reason string) error {
	return errNoDatabase
}
