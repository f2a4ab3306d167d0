package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// ErrPermanent, when wrapped by fn's error, ends Retry at once.
var ErrPermanent = errors.New("permanent failure")

// RetryConfig shapes the exponential backoff between attempts. Zero fields
// fall back to 3 attempts, 100ms doubling to at most 10s, with 10% jitter.
// ShouldRetry, when set, vetoes retrying errors it returns false for.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	ShouldRetry    func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

// delay is the pause after the given failed attempt, starting at 1.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for range attempt - 1 {
		d *= c.Multiplier
		if d >= float64(c.MaxDelay) {
			break
		}
	}
	d += d * c.JitterFraction * (2*rand.Float64() - 1)
	return time.Duration(min(max(d, 0), float64(c.MaxDelay)))
}

func (c RetryConfig) retryable(err error) bool {
	switch {
	case errors.Is(err, ErrPermanent),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	case c.ShouldRetry != nil:
		return c.ShouldRetry(err)
	default:
		return true
	}
}

// Retry calls fn until it returns nil, an error that is not retryable, or
// the attempts run out. Cancelling ctx stops it between attempts.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	for attempt := 1; ; attempt++ {
		err := fn()
		switch {
		case err == nil:
			if attempt > 1 {
				logger.Info("recovered", "attempts", attempt)
			}
			return nil
		case attempt == cfg.MaxAttempts:
			return fmt.Errorf("%s: gave up after %d attempts: %w", name, attempt, err)
		case !cfg.retryable(err):
			return fmt.Errorf("%s: not retrying: %w", name, err)
		case ctx.Err() != nil:
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}

		wait := cfg.delay(attempt)
		logger.Warn("attempt failed", "attempt", attempt, "of", cfg.MaxAttempts, "error", err, "backoff", wait)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
	}
}
