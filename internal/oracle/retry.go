package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Retry wraps a Completer with bounded retries for transient failures.
// Connectivity and timeout errors are retried; protocol errors (malformed
// responses, HTTP-level failures) pass through on the first attempt.
type Retry struct {
	inner    Completer
	attempts int
	delay    time.Duration
}

// RetryConfig configures the retry wrapper.
type RetryConfig struct {
	// Attempts is the total number of tries (default 3).
	Attempts int

	// Delay is the pause between tries (default 1s).
	Delay time.Duration
}

// NewRetry wraps inner with retry behavior.
func NewRetry(inner Completer, cfg RetryConfig) *Retry {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	return &Retry{inner: inner, attempts: cfg.Attempts, delay: cfg.Delay}
}

// Complete implements Completer.
func (r *Retry) Complete(ctx context.Context, conversation []Message, temperature float64, maxTokens int) (string, error) {
	var lastErr error

	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.delay):
			}
		}

		text, err := r.inner.Complete(ctx, conversation, temperature, maxTokens)
		if err == nil {
			return text, nil
		}
		if !retryable(err) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("oracle: %d attempts exhausted: %w", r.attempts, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrUnavailable)
}
