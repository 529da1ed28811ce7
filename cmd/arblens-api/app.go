package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/arblens/internal/api"
	"github.com/yourusername/arblens/internal/backtest"
	"github.com/yourusername/arblens/internal/config"
	"github.com/yourusername/arblens/internal/database"
	"github.com/yourusername/arblens/internal/health"
	"github.com/yourusername/arblens/internal/jobs"
	"github.com/yourusername/arblens/internal/metrics"
	"github.com/yourusername/arblens/internal/notifier"
	"github.com/yourusername/arblens/internal/repository"
	chrepo "github.com/yourusername/arblens/internal/repository/clickhouse"
	"github.com/yourusername/arblens/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

// app owns every long-lived component of the service
type app struct {
	cfg *config.Config
	log *logrus.Logger

	db     *database.DB
	ch     *chrepo.Conn
	redis  *redis.Client
	queue  jobs.Queue
	pool   *jobs.Pool
	notify *notifier.WebhookNotifier
	sched  *scheduler.Scheduler
	health *health.Server
	api    *api.Server
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	deps := api.Dependencies{Config: cfg, Logger: log}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.Handler()
	}

	if !cfg.Database.Configured() {
		log.Warn("Database URL not configured; data endpoints will return errors")
	} else {
		if err := a.initBacktesting(ctx, &deps); err != nil {
			a.close()
			return nil, err
		}
	}

	server, err := api.NewServer(deps)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create api server: %w", err)
	}
	a.api = server
	a.health = health.NewServer(a.healthConfig())

	return a, nil
}

// initBacktesting connects the stores and builds the engine, queue, pool and scheduler
func (a *app) initBacktesting(ctx context.Context, deps *api.Dependencies) error {
	db, err := database.NewDB(ctx, &a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	a.log.Info("Database connection established")

	repos, err := repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}

	history, err := a.historySource(ctx, repos)
	if err != nil {
		return err
	}

	btConfig, err := backtest.FromConfig(&a.cfg.Backtest)
	if err != nil {
		return fmt.Errorf("invalid backtest config: %w", err)
	}
	engine, err := backtest.NewEngine(btConfig, history, repos.Backtest, a.log)
	if err != nil {
		return fmt.Errorf("failed to create backtest engine: %w", err)
	}

	if a.cfg.Notifier.WebhookURL != "" {
		a.notify, err = notifier.NewWebhookNotifier(notifier.FromConfig(a.cfg.Notifier), a.log)
		if err != nil {
			return fmt.Errorf("failed to create webhook notifier: %w", err)
		}
		engine.SetNotifier(a.notify)
	}

	a.queue, err = a.newQueue(ctx)
	if err != nil {
		return err
	}

	a.pool, err = jobs.NewPool(a.queue, engine, jobs.PoolConfig{
		Workers:      a.cfg.Queue.Workers,
		MaxAttempts:  a.cfg.Queue.MaxAttempts,
		BackoffMin:   a.cfg.Queue.RetryBackoffMin,
		BackoffMax:   a.cfg.Queue.RetryBackoffMax,
		JobTimeout:   a.cfg.Queue.JobTimeout,
		DispatchRate: a.cfg.Queue.DispatchRate,
	}, a.log)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	if a.cfg.Scheduler.Enabled {
		a.sched, err = scheduler.NewScheduler(repos.Backtest, a.pool, scheduler.FromConfig(a.cfg.Scheduler), a.log)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		if err := a.sched.ScheduleRecovery(); err != nil {
			return fmt.Errorf("failed to schedule recovery sweep: %w", err)
		}
	}

	deps.DB = db
	deps.Repositories = repos
	deps.Submitter = a.pool
	return nil
}

// historySource picks the store the engine replays from
func (a *app) historySource(ctx context.Context, repos *repository.Repositories) (backtest.HistoricalSource, error) {
	if a.cfg.Backtest.HistorySource != config.HistorySourceClickHouse {
		return repos.Opportunity, nil
	}

	conn, err := chrepo.NewConn(ctx, a.cfg.ClickHouse.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	a.ch = conn
	a.log.Info("Replaying backtests from ClickHouse")
	return chrepo.NewHistoryRepository(conn), nil
}

func (a *app) newQueue(ctx context.Context) (jobs.Queue, error) {
	if a.cfg.Queue.Backend != config.QueueBackendRedis {
		return jobs.NewMemoryQueue(a.cfg.Queue.Capacity), nil
	}

	opts, err := redis.ParseURL(a.cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if a.cfg.Redis.Password != "" {
		opts.Password = a.cfg.Redis.Password
	}
	if a.cfg.Redis.DB > 0 {
		opts.DB = a.cfg.Redis.DB
	}
	a.redis = redis.NewClient(opts)

	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	queue, err := jobs.NewRedisQueue(ctx, a.redis, jobs.RedisQueueConfig{
		Stream:   a.cfg.Queue.StreamKey,
		Group:    a.cfg.Queue.ConsumerGroup,
		Consumer: consumerName(),

		// past the longest a live worker holds an entry: one run plus the retry backoff
		ClaimIdle: a.cfg.Queue.JobTimeout + a.cfg.Queue.RetryBackoffMax + time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis queue: %w", err)
	}
	a.log.WithField("stream", a.cfg.Queue.StreamKey).Info("Using Redis job queue")
	return queue, nil
}

// consumerName is stable across restarts of the same instance so its pending
// entries stay with it
func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "arblens"
	}
	return host
}

func (a *app) healthConfig() health.Config {
	checks := map[string]health.Pinger{}
	if a.db != nil {
		checks["postgres"] = health.PingFunc(a.db.HealthCheck)
	}
	if a.redis != nil {
		checks["redis"] = health.PingFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.ch != nil {
		checks["clickhouse"] = health.PingFunc(a.ch.HealthCheck)
	}

	cfg := health.Config{
		ServiceName: a.cfg.App.Name,
		Version:     a.cfg.App.Version,
		Port:        a.cfg.Health.Port,
		GRPCPort:    a.cfg.Health.GRPCPort,
		Logger:      a.log,
		Checks:      checks,
	}
	if a.cfg.Metrics.Enabled {
		cfg.Metrics = metrics.Handler()
		cfg.MetricsPath = a.cfg.Metrics.Path
	}
	return cfg
}

// run starts every component and blocks until ctx is cancelled or the API
// server fails. The health server stops with the errgroup context.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := a.health.Start(gctx); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	if a.pool != nil {
		if err := a.pool.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker pool: %w", err)
		}
	}
	if a.sched != nil {
		if err := a.sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	g.Go(func() error {
		return a.api.Start(gctx)
	})

	a.health.SetReady(true)
	a.log.WithField("port", a.cfg.Server.Port).Info("ArbLens API ready")

	err := g.Wait()
	a.health.SetReady(false)
	a.log.Info("Initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.shutdown(shutdownCtx)

	a.log.Info("ArbLens API shut down")
	return err
}

func (a *app) shutdown(ctx context.Context) {
	if err := a.api.Shutdown(ctx); err != nil {
		a.log.WithError(err).Error("API server shutdown failed")
	}
	if a.sched != nil {
		if err := a.sched.Stop(ctx); err != nil {
			a.log.WithError(err).Error("Scheduler shutdown failed")
		}
	}
	if a.pool != nil {
		if err := a.pool.Stop(ctx); err != nil {
			a.log.WithError(err).Error("Worker pool did not drain before timeout")
		}
	}
}

// close releases the stores. Safe to call on a partially built app.
func (a *app) close() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close job queue")
		}
	}
	if a.notify != nil {
		_ = a.notify.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
