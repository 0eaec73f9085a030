// Package retry provides the exponential-backoff executor used by all
// network-facing calls.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/translive/internal/core/domain"
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"multiple"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxAttempts:     5,
	InitialDelay:    1 * time.Second,
	MaxDelay:        60 * time.Second,
	BackoffMultiple: 2.0,
}

// Operation is a call that may suspend on network I/O.
type Operation func(ctx context.Context) error

// AttemptObserver is invoked before each retry wait with the attempt number
// (1-based) and the delay about to be applied. Used for UI/metrics display.
type AttemptObserver func(attempt int, delay time.Duration)

// Do executes op, retrying network errors with exponential backoff.
// Auth, validation, and state errors stop immediately; context cancellation
// aborts the backoff wait.
func Do(ctx context.Context, cfg Config, op Operation, onAttempt AttemptObserver) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig.InitialDelay
	}
	if cfg.BackoffMultiple <= 1 {
		cfg.BackoffMultiple = DefaultConfig.BackoffMultiple
	}

	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !domain.Retryable(err) {
			return err // Stop immediately, do not retry
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := Backoff(attempt, cfg)
		if onAttempt != nil {
			onAttempt(attempt+1, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// Backoff returns the delay for a given 0-based attempt, capped at MaxDelay.
func Backoff(attempt int, cfg Config) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
