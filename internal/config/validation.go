// Package config provides configuration management for the ArbLens API.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// Queue backends and history sources understood by the application
const (
	QueueBackendMemory      = "memory"
	QueueBackendRedis       = "redis"
	HistorySourcePostgres   = "postgres"
	HistorySourceClickHouse = "clickhouse"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("queuebackend", validateQueueBackend)
	_ = v.RegisterValidation("historysource", validateHistorySource)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production", "test":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateQueueBackend(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case QueueBackendMemory, QueueBackendRedis:
		return true
	default:
		return false
	}
}

func validateHistorySource(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case HistorySourcePostgres, HistorySourceClickHouse:
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	if cfg.IsProduction() && cfg.Database.URL == "" && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	if cfg.Queue.Backend == QueueBackendRedis && cfg.Redis.URL == "" {
		return fmt.Errorf("redis queue backend requires redis.url")
	}

	if cfg.Backtest.HistorySource == HistorySourceClickHouse && cfg.ClickHouse.DSN == "" {
		return fmt.Errorf("clickhouse history source requires clickhouse.dsn")
	}

	if cfg.Queue.RetryBackoffMax < cfg.Queue.RetryBackoffMin {
		return fmt.Errorf("retry_backoff_max cannot be less than retry_backoff_min")
	}

	if cfg.Database.MinConnections > cfg.Database.MaxConnections && cfg.Database.MaxConnections > 0 {
		return fmt.Errorf("min_connections cannot exceed max_connections")
	}

	if cfg.Scheduler.Enabled {
		if _, err := cron.ParseStandard(cfg.Scheduler.RecoveryCron); err != nil {
			return fmt.Errorf("invalid scheduler recovery_cron %q: %w", cfg.Scheduler.RecoveryCron, err)
		}
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_with", "required_if":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "url":
			fmt.Fprintf(&b, "- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' must be one of [%s], got '%v'\n", field, fieldError.Param(), value)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: development, staging, production, test\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "queuebackend":
			fmt.Fprintf(&b, "- Field '%s' must be one of: memory, redis\n", field)
		case "historysource":
			fmt.Fprintf(&b, "- Field '%s' must be one of: postgres, clickhouse\n", field)
		default:
			fmt.Fprintf(&b, "- Field '%s' validation failed on tag '%s'\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}
