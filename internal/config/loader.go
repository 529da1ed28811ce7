// Package config provides configuration management for the ArbLens API.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "ARBLENS"
	defaultConfigPath = "config/config.yaml"
)

// Load reads and parses the configuration from file and environment variables.
// ${VAR} placeholders in the YAML file are expanded before parsing.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return unmarshal(v)
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing config file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Platform-provided variables used by common hosting providers
	_ = v.BindEnv("database.url", envPrefix+"_DATABASE_URL", "DATABASE_URL", "SUPABASE_DB_URL")
	_ = v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("app.environment", envPrefix+"_APP_ENVIRONMENT", "ENVIRONMENT")
	_ = v.BindEnv("redis.url", envPrefix+"_REDIS_URL", "REDIS_URL")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arblens-api")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.request_timeout", "5s")
	v.SetDefault("server.stats_cache_ttl", "30s")
	v.SetDefault("server.stream_poll_interval", "1s")

	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 1)

	v.SetDefault("backtest.history_source", "postgres")
	v.SetDefault("backtest.default_min_spread_pct", 1.0)
	v.SetDefault("backtest.default_min_liquidity_usd", 500.0)
	v.SetDefault("backtest.apply_venue_filter", true)
	v.SetDefault("backtest.output_path", "./output")

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.capacity", 256)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.retry_backoff_min", "1s")
	v.SetDefault("queue.retry_backoff_max", "30s")
	v.SetDefault("queue.job_timeout", "5m")
	v.SetDefault("queue.stream_key", "arblens:backtests")
	v.SetDefault("queue.consumer_group", "backtest-workers")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.recovery_cron", "@every 5m")
	v.SetDefault("scheduler.stale_after", "15m")
	v.SetDefault("scheduler.batch_size", 50)

	v.SetDefault("notifier.timeout", "10s")
	v.SetDefault("notifier.max_retries", 3)
	v.SetDefault("notifier.rate_limit", 5.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.port", 8081)
	v.SetDefault("health.grpc_port", 0)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Server.CORSOrigins = withFrontendOrigins(cfg.Server.CORSOrigins)
	return cfg, nil
}

// withFrontendOrigins appends FRONTEND_URL and FRONTEND_DOMAIN to the allowed origins
func withFrontendOrigins(origins []string) []string {
	seen := make(map[string]bool, len(origins))
	out := make([]string, 0, len(origins)+2)
	add := func(origin string) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" || seen[origin] {
			return
		}
		seen[origin] = true
		out = append(out, origin)
	}

	for _, origin := range origins {
		add(origin)
	}
	add(os.Getenv("FRONTEND_URL"))
	if domain := os.Getenv("FRONTEND_DOMAIN"); domain != "" {
		if !strings.Contains(domain, "://") {
			domain = "https://" + domain
		}
		add(domain)
	}
	return out
}
