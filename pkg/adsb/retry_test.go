package adsb

import (
	"context"
	"errors"
	"testing"
	"time"
)

// retry runs fn through RetryWithBackoffResult with no result value.
func retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithBackoffResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TestRetryWithBackoffResult tests basic retry logic.
func TestRetryWithBackoffResult(t *testing.T) {
	t.Run("Success on first attempt", func(t *testing.T) {
		attempts := 0
		err := retry(context.Background(), fastRetryConfig(3), func() error {
			attempts++
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Success after retries", func(t *testing.T) {
		attempts := 0
		err := retry(context.Background(), fastRetryConfig(3), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("temporary error")
			}
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("Max retries exceeded preserves cause", func(t *testing.T) {
		cause := errors.New("persistent error")
		attempts := 0
		err := retry(context.Background(), fastRetryConfig(2), func() error {
			attempts++
			return cause
		})

		if !errors.Is(err, cause) {
			t.Errorf("Expected wrapped cause, got: %v", err)
		}
		// initial + 2 retries
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("Zero retries", func(t *testing.T) {
		attempts := 0
		_ = retry(context.Background(), fastRetryConfig(0), func() error {
			attempts++
			return errors.New("error")
		})
		if attempts != 1 {
			t.Errorf("Expected 1 attempt with 0 retries, got %d", attempts)
		}
	})

	t.Run("Context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		attempts := 0
		err := retry(ctx, fastRetryConfig(3), func() error {
			attempts++
			return errors.New("error")
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Max delay cap", func(t *testing.T) {
		cfg := RetryConfig{
			MaxRetries:   4,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     10 * time.Millisecond,
			Multiplier:   4.0,
		}

		var delays []time.Duration
		cfg.OnRetry = func(_ int, _ error, d time.Duration) { delays = append(delays, d) }

		_ = retry(context.Background(), cfg, func() error { return errors.New("error") })

		if len(delays) != 4 {
			t.Fatalf("Expected 4 backoff sleeps, got %d", len(delays))
		}
		for i, d := range delays {
			if d > 10*time.Millisecond {
				t.Errorf("Delay %d exceeded cap: %v", i, d)
			}
		}
	})
}

// TestRetryableFilter tests that non-retryable errors stop immediately.
func TestRetryableFilter(t *testing.T) {
	transient := errors.New("truncated body")
	fatal := errors.New("bad request")

	cfg := fastRetryConfig(5)
	cfg.Retryable = func(err error) bool { return errors.Is(err, transient) }

	t.Run("Fatal error returned as-is", func(t *testing.T) {
		attempts := 0
		_, err := RetryWithBackoffResult(context.Background(), cfg, func() (int, error) {
			attempts++
			return 0, fatal
		})

		if err != fatal {
			t.Errorf("Expected the unwrapped fatal error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Transient error retried", func(t *testing.T) {
		attempts := 0
		got, err := RetryWithBackoffResult(context.Background(), cfg, func() (string, error) {
			attempts++
			if attempts == 1 {
				return "", transient
			}
			return "ok", nil
		})

		if err != nil {
			t.Fatalf("Expected success, got: %v", err)
		}
		if got != "ok" || attempts != 2 {
			t.Errorf("Expected ok after 2 attempts, got %q after %d", got, attempts)
		}
	})
}

// TestRetryRateLimitNotSpecial tests that a Retry-After hint does not
// change the backoff and that Retryable can reject rate limits outright.
func TestRetryRateLimitNotSpecial(t *testing.T) {
	limited := &RateLimitError{StatusCode: 429, RetryAfter: time.Hour}

	t.Run("Backoff unchanged", func(t *testing.T) {
		cfg := fastRetryConfig(1)
		var observed time.Duration
		cfg.OnRetry = func(_ int, _ error, d time.Duration) { observed = d }

		attempts := 0
		_ = retry(context.Background(), cfg, func() error {
			attempts++
			if attempts == 1 {
				return limited
			}
			return nil
		})

		if observed != cfg.InitialDelay {
			t.Errorf("Expected initial delay %v, got %v", cfg.InitialDelay, observed)
		}
	})

	t.Run("Rejected by Retryable", func(t *testing.T) {
		cfg := fastRetryConfig(3)
		cfg.Retryable = func(err error) bool {
			_, ok := IsRateLimitError(err)
			return !ok
		}

		attempts := 0
		err := retry(context.Background(), cfg, func() error {
			attempts++
			return limited
		})

		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
		if _, ok := IsRateLimitError(err); !ok {
			t.Errorf("Expected rate limit error, got %v", err)
		}
	})
}
