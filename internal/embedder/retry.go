package embedder

import (
	"context"
	"errors"
	"time"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int           // Total attempts, including the first
	BaseDelay  time.Duration // Delay before the second attempt
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the backoff used by the remote providers
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

// retryWithBackoff runs fn until it succeeds, the attempts run out, the
// context ends or fn returns an error that cannot succeed on retry.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := config.BaseDelay

	attempts := config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !isRetryable(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
			backoff = time.Duration(float64(backoff) * config.Multiplier)
			if backoff > config.MaxDelay {
				backoff = config.MaxDelay
			}
		}
	}

	return zero, lastErr
}

// isRetryable treats client-side API rejections as permanent
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}
