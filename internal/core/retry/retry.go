// Package retry implements the exponential-backoff retry scheduler the
// sync engine wraps every remote operation in.
package retry

import (
	"context"
	"math"
	"time"

	pperrors "github.com/pulsepoint/kvsync/pkg/errors"
)

// Config configures a retry schedule.
type Config struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	RetryOnStatusCodes []int
}

// DefaultConfig returns a schedule of up to 5 attempts, starting at
// 500ms and doubling up to a 30s cap.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       5,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Classifier decides whether err is worth retrying and, if it carries an
// HTTP-ish status code, what that code is (0 if none).
type Classifier func(err error) (retryable bool, statusCode int)

// DefaultClassifier treats *errors.SyncError.Retryable and the
// configured/transient status codes as retryable.
func DefaultClassifier(cfg Config) Classifier {
	return func(err error) (bool, int) {
		se, ok := err.(*pperrors.SyncError)
		if !ok {
			return false, 0
		}
		if se.Retryable {
			return true, se.StatusCode
		}
		return pperrors.IsRetryableStatusCode(se.StatusCode, cfg.RetryOnStatusCodes), se.StatusCode
	}
}

// Op is the operation a retry schedule protects.
type Op func(ctx context.Context) error

// Do runs op, retrying per cfg/classify on failure with exponential
// backoff, until it succeeds, a non-retryable error is returned, attempts
// are exhausted, or ctx is cancelled.
func Do(ctx context.Context, cfg Config, classify Classifier, op Op) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		retryable, statusCode := classify(err)
		if !retryable && !pperrors.IsRetryableStatusCode(statusCode, cfg.RetryOnStatusCodes) {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := backoffDelay(cfg, attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func backoffDelay(cfg Config, attempt int) time.Duration {
	mult := cfg.BackoffMultiplier
	if mult <= 0 {
		mult = 2
	}
	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
