// Package main provides the entry point for the ArbLens API service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/arblens/internal/config"
	"github.com/yourusername/arblens/internal/database"
	"github.com/yourusername/arblens/internal/logger"
	chrepo "github.com/yourusername/arblens/internal/repository/clickhouse"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile       string
	migrationsDir    string
	clickhouseSchema string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "./migrations", "Directory holding PostgreSQL migrations")
	migrateCmd.Flags().StringVar(&clickhouseSchema, "clickhouse-dir", "./migrations/clickhouse", "Directory holding ClickHouse DDL")

	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "arblens-api",
	Short: "ArbLens arbitrage opportunity API",
	Long: `Serves arbitrage opportunities, venues, markets and platform statistics,
and runs historical backtests on a background worker pool.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, worker pool and recovery scheduler",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("arblens-api %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// loadConfig reads the config file, overlays AWS secrets and validates the result
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
	if Version != "dev" {
		cfg.App.Version = Version
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	appLog := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	appLog.WithFields(logrus.Fields{
		"environment":    cfg.App.Environment,
		"version":        cfg.App.Version,
		"queue_backend":  cfg.Queue.Backend,
		"history_source": cfg.Backtest.HistorySource,
	}).Info("ArbLens API starting")

	a, err := newApp(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(ctx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	appLog := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	audit := logger.NewAuditLogger(appLog)

	if !cfg.Database.Configured() {
		return fmt.Errorf("database is not configured")
	}

	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	applied, err := db.Migrate(ctx, migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	audit.LogMigrationsApplied(applied)

	if cfg.ClickHouse.DSN != "" {
		conn, err := chrepo.NewConn(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to clickhouse: %w", err)
		}
		defer conn.Close()

		versions, err := conn.ApplySchema(ctx, clickhouseSchema)
		if err != nil {
			return fmt.Errorf("failed to apply clickhouse schema: %w", err)
		}
		appLog.WithField("files", versions).Info("ClickHouse schema applied")
	}

	return nil
}
