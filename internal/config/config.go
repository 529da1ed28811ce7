// Package config provides configuration management for the ArbLens API.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Backtest   BacktestConfig   `mapstructure:"backtest" validate:"required"`
	Queue      QueueConfig      `mapstructure:"queue" validate:"required"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Health     HealthConfig     `mapstructure:"health"`
	AWS        AWSConfig        `mapstructure:"aws"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	Version     string `mapstructure:"version" validate:"required"`
}

// ServerConfig represents the HTTP API server configuration
type ServerConfig struct {
	Port               int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	CORSOrigins        []string      `mapstructure:"cors_origins"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	StatsCacheTTL      time.Duration `mapstructure:"stats_cache_ttl" validate:"gte=0"`
	StreamPollInterval time.Duration `mapstructure:"stream_poll_interval" validate:"gt=0"`
}

// DatabaseConfig represents PostgreSQL configuration. URL takes precedence
// over the individual connection fields when set. An empty configuration is
// allowed; the API then reports the database as not configured.
type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"gte=0,lt=65536"`
	Name           string `mapstructure:"name" validate:"required_with=Host"`
	User           string `mapstructure:"user" validate:"required_with=Host"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"gte=0"`
	MinConnections int    `mapstructure:"min_connections" validate:"gte=0"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

// Configured reports whether any connection settings are present
func (c DatabaseConfig) Configured() bool {
	return c.URL != "" || c.Host != ""
}

// RedisConfig represents Redis configuration for the durable job queue
type RedisConfig struct {
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// ClickHouseConfig represents the historical warehouse configuration
type ClickHouseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// BacktestConfig represents backtest engine configuration
type BacktestConfig struct {
	HistorySource          string  `mapstructure:"history_source" validate:"required,historysource"`
	DefaultMinSpreadPct    float64 `mapstructure:"default_min_spread_pct" validate:"gte=0"`
	DefaultMinLiquidityUSD float64 `mapstructure:"default_min_liquidity_usd" validate:"gte=0"`
	ApplyVenueFilter       bool    `mapstructure:"apply_venue_filter"`
	OutputPath             string  `mapstructure:"output_path"`
}

// QueueConfig represents the job queue and worker pool configuration
type QueueConfig struct {
	Backend         string        `mapstructure:"backend" validate:"required,queuebackend"`
	Workers         int           `mapstructure:"workers" validate:"required,gt=0"`
	Capacity        int           `mapstructure:"capacity" validate:"required,gt=0"`
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"required,gt=0"`
	RetryBackoffMin time.Duration `mapstructure:"retry_backoff_min" validate:"gt=0"`
	RetryBackoffMax time.Duration `mapstructure:"retry_backoff_max" validate:"gt=0"`
	JobTimeout      time.Duration `mapstructure:"job_timeout" validate:"gt=0"`
	DispatchRate    float64       `mapstructure:"dispatch_rate" validate:"gte=0"`
	StreamKey       string        `mapstructure:"stream_key"`
	ConsumerGroup   string        `mapstructure:"consumer_group"`
}

// SchedulerConfig represents the stale backtest recovery sweep
type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	RecoveryCron string        `mapstructure:"recovery_cron" validate:"required_if=Enabled true"`
	StaleAfter   time.Duration `mapstructure:"stale_after" validate:"gte=0"`
	BatchSize    int           `mapstructure:"batch_size" validate:"gte=0"`
}

// NotifierConfig represents completion webhook configuration
type NotifierConfig struct {
	WebhookURL string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit  float64       `mapstructure:"rate_limit" validate:"gte=0"`
}

// MetricsConfig represents Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// HealthConfig represents the standalone health and metrics listeners
type HealthConfig struct {
	Port     int `mapstructure:"port" validate:"gte=0,lt=65536"`
	GRPCPort int `mapstructure:"grpc_port" validate:"gte=0,lt=65536"`
}

// AWSConfig locates the optional secrets overlay
type AWSConfig struct {
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
