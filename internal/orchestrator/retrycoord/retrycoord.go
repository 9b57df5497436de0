// Package retrycoord adapts the resilience/retry package's exponential
// backoff primitive into the task-scoped, cancellation-aware retry
// contract the orchestrator needs: a flat delay between attempts, a
// cancellation check that runs before every attempt (including the
// first) and never consumes a delay, and a bounded attempt count sourced
// from a task's task_args.
package retrycoord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crawlorch/internal/domain/entity"
)

// CancelChecker reports whether the task identified by taskID has been
// asked to cancel. The Task Runner's per-task cancel-flag map satisfies
// this interface directly.
type CancelChecker interface {
	IsCancelled(taskID int64) bool
}

// Config bounds one coordinated retry sequence.
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
}

// FromTaskArgs builds a Config from a validated task_args map, falling
// back to entity.DefaultTaskArgs for any key the caller omitted.
func FromTaskArgs(args map[string]any) Config {
	cfg := Config{MaxRetries: 3, RetryDelay: 2 * time.Second}
	if v, ok := args["max_retries"].(int); ok {
		cfg.MaxRetries = v
	}
	switch v := args["retry_delay"].(type) {
	case float64:
		cfg.RetryDelay = time.Duration(v * float64(time.Second))
	case time.Duration:
		cfg.RetryDelay = v
	}
	return cfg
}

// Operation is a unit of work attempted under the coordinator. It may
// return entity.ErrCancelled itself; Run always checks cancellation
// before invoking it regardless.
type Operation func(ctx context.Context, attempt int) error

// Run attempts op up to cfg.MaxRetries times, sleeping cfg.RetryDelay
// between attempts. Before every attempt — including the first — it
// asks checker whether taskID has been cancelled; if so it returns
// entity.ErrCancelled immediately without consuming a delay or counting
// an attempt. If every attempt fails, the last error is wrapped in
// entity.ErrRetryExhausted.
func Run(ctx context.Context, checker CancelChecker, taskID int64, cfg Config, op Operation) error {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if checker != nil && checker.IsCancelled(taskID) {
			return entity.ErrCancelled
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, entity.ErrCancelled) {
			return entity.ErrCancelled
		}

		if attempt == cfg.MaxRetries {
			break
		}

		slog.Warn("operation failed, will retry",
			slog.Int64("task_id", taskID),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", cfg.MaxRetries),
			slog.Duration("retry_delay", cfg.RetryDelay),
			slog.Any("error", lastErr))

		select {
		case <-time.After(cfg.RetryDelay):
		case <-ctx.Done():
			return entity.ErrCancelled
		}
	}

	return fmt.Errorf("%w: %v", entity.ErrRetryExhausted, lastErr)
}
