package worker

import (
	"crawlorch/internal/pkg/config"
	"fmt"
	"log/slog"
	"time"
)

// WorkerConfig holds the configuration for the worker component: the
// scheduler poll interval and dispatch concurrency, the default
// timezone applied to crawlers that don't set their own, and the
// ports the health/metrics servers listen on.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
type WorkerConfig struct {
	// PollInterval controls how often the scheduler checks for due crawlers.
	// Default: 30s
	PollInterval time.Duration

	// Timezone is the IANA timezone name applied when a crawler doesn't
	// specify its own. Default: "UTC"
	Timezone string

	// MaxConcurrentDispatch bounds how many due crawlers the scheduler
	// dispatches at once. Range: 1-50. Default: 4
	MaxConcurrentDispatch int

	// DefaultTaskTimeout bounds how long a single task run may take before
	// its context is cancelled. Default: 30 minutes
	DefaultTaskTimeout time.Duration

	// HealthPort is the port for the health check HTTP server.
	// Range: 1024-65535. Default: 9091
	HealthPort int
}

// DefaultConfig returns a WorkerConfig with sensible default values.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:          30 * time.Second,
		Timezone:              "UTC",
		MaxConcurrentDispatch: 4,
		DefaultTaskTimeout:    30 * time.Minute,
		HealthPort:            9091,
	}
}

// Validate checks if the configuration values are valid, collecting and
// returning every violation rather than failing on the first.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateDuration(c.PollInterval, time.Second, time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("poll interval: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxConcurrentDispatch, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("max concurrent dispatch: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.DefaultTaskTimeout); err != nil {
		errs = append(errs, fmt.Errorf("default task timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to default values on failure.
// It never returns an error: every invalid or missing field silently
// falls back to its default, logging a warning and recording a metric.
//
// Environment variables:
//   - SCHEDULER_POLL_INTERVAL: Duration string, e.g. "30s" (default: 30s)
//   - WORKER_TIMEZONE: IANA timezone name (default: "UTC")
//   - SCHEDULER_MAX_CONCURRENT_DISPATCH: Integer 1-50 (default: 4)
//   - DEFAULT_TASK_TIMEOUT: Duration string (default: 30m)
//   - WORKER_HEALTH_PORT: Integer 1024-65535 (default: 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	warn := func(field string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied", slog.String("field", field), slog.String("warning", warning))
		}
	}

	result := config.LoadEnvDuration("SCHEDULER_POLL_INTERVAL", cfg.PollInterval, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, time.Hour)
	})
	cfg.PollInterval = result.Value.(time.Duration)
	warn("poll_interval", result)

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	warn("timezone", result)

	result = config.LoadEnvInt("SCHEDULER_MAX_CONCURRENT_DISPATCH", cfg.MaxConcurrentDispatch, func(v int) error {
		return config.ValidateIntRange(v, 1, 50)
	})
	cfg.MaxConcurrentDispatch = result.Value.(int)
	warn("max_concurrent_dispatch", result)

	result = config.LoadEnvDuration("DEFAULT_TASK_TIMEOUT", cfg.DefaultTaskTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Minute, 4*time.Hour)
	})
	cfg.DefaultTaskTimeout = result.Value.(time.Duration)
	warn("default_task_timeout", result)

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	warn("health_port", result)

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
