// Package retry centralizes the exponential-backoff-with-jitter retry loop
// used for LLM completion calls by the summarizer and the extraction
// executor. The blob store's HTTP fetch uses its own fixed schedule.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Config parameterizes a retry loop.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// JitterFraction adds up to this fraction of the computed delay as
	// random jitter (0.0 to 1.0).
	JitterFraction float64
}

// DefaultConfig mirrors the service's general-purpose upstream-call policy:
// three attempts, starting at one second, capped at thirty.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.3,
	}
}

// IsRetryable classifies an error as worth retrying. Callers supply one per
// collaborator since "retryable" means different things to an HTTP client
// (429/5xx) than to a database driver (connection reset).
type IsRetryable func(error) bool

// AlwaysRetryable retries on every non-nil error; useful for collaborators
// with no structured error classification.
func AlwaysRetryable(error) bool { return true }

// Do runs fn, retrying up to cfg.MaxAttempts times while isRetryable(err) and
// the context is not done. A non-retryable error is returned as is; when
// every attempt fails it returns the last error wrapped as "failed after N
// attempts"; if the context is done it returns ctx.Err().
func Do(ctx context.Context, cfg Config, isRetryable IsRetryable, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if isRetryable == nil {
		isRetryable = AlwaysRetryable
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := cfg.BaseDelay * (1 << attempt)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		if cfg.JitterFraction > 0 {
			jitter := time.Duration(float64(delay) * cfg.JitterFraction * rand.Float64())
			delay += jitter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
