package adsb

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryConfig configures retry behavior with exponential backoff.
// Rate limit errors are not special: callers that must not hammer a quota
// reject them in Retryable.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first
	MaxRetries int

	// InitialDelay is the first backoff delay
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay
	MaxDelay time.Duration

	// Multiplier grows the delay after each attempt (1.0 keeps it flat)
	Multiplier float64

	// Retryable decides whether an error is worth another attempt.
	// nil retries every error.
	Retryable func(error) bool

	// OnRetry is called before each backoff sleep. Optional.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// RetryWithBackoffResult executes a function with exponential backoff and returns a result.
// An error rejected by cfg.Retryable is returned unwrapped and immediately.
//
// Example usage:
//
//	positions, err := RetryWithBackoffResult(ctx, cfg, func() ([]PositionRecord, error) {
//	    return source.FetchPositions(ctx, center, radiusKm)
//	})
func RetryWithBackoffResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// First attempt (no delay)
		if attempt > 0 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, lastErr, delay)
			}
			select {
			case <-ctx.Done():
				return result, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}

		result = res
		lastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return result, err
		}

		// Last attempt - don't calculate next delay
		if attempt == cfg.MaxRetries {
			break
		}

		// delay = min(InitialDelay * Multiplier^attempt, MaxDelay)
		nextDelay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
		if nextDelay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		} else {
			delay = nextDelay
		}
	}

	return result, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
