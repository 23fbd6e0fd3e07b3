package bybit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryConfig bounds the retry loop used for idempotent gateway reads.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the retry configuration used for market-data
// and account reads. Order placement and amendment are never retried here;
// the execution engine owns that decision.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// retryRead executes fn with bounded exponential backoff, retrying only
// errors classified as retryable.
func retryRead(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == config.MaxRetries || !IsRetryable(err) {
			break
		}

		delay := config.InitialDelay
		if attempt > 0 {
			delay = time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt)))
		}
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if lastErr != nil {
		return fmt.Errorf("retry exhausted: %w", lastErr)
	}
	return lastErr
}
