// Package resilience retries storage writes that fail for transient reasons
// and stops calling a backend that keeps failing.
package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openmarket/marketplace/core"
)

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *core.RetryConfig {
	return &core.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
	}
}

type retryOptions struct {
	logger    core.Logger
	op        string
	retryable func(error) bool
	jitter    bool
}

// RetryOption customizes a single Retry call.
type RetryOption func(*retryOptions)

// WithLogger logs each failed attempt at WARN under the given operation name.
func WithLogger(logger core.Logger, op string) RetryOption {
	return func(o *retryOptions) {
		o.logger = logger
		o.op = op
	}
}

// WithRetryIf replaces the predicate deciding whether an error is worth
// another attempt. The default is core.IsRetryable.
func WithRetryIf(fn func(error) bool) RetryOption {
	return func(o *retryOptions) {
		if fn != nil {
			o.retryable = fn
		}
	}
}

// WithoutJitter disables the jitter added to each delay.
func WithoutJitter() RetryOption {
	return func(o *retryOptions) {
		o.jitter = false
	}
}

// Retry executes fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. Delays grow by config.Multiplier up to
// config.MaxInterval.
func Retry(ctx context.Context, config *core.RetryConfig, fn func() error, opts ...RetryOption) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	o := retryOptions{retryable: core.IsRetryable, jitter: true}
	for _, opt := range opts {
		opt(&o)
	}

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	multiplier := config.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	var lastErr error
	delay := config.InitialInterval

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !o.retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * multiplier)
			if config.MaxInterval > 0 && delay > config.MaxInterval {
				delay = config.MaxInterval
			}
		}

		wait := delay
		if o.jitter {
			wait += time.Duration(float64(delay) * 0.1 * math.Sin(float64(attempt)))
		}

		if o.logger != nil {
			o.logger.WarnWithContext(ctx, "Retrying after failure", map[string]interface{}{
				"operation": o.op,
				"attempt":   attempt,
				"max":       attempts,
				"delay_ms":  wait.Milliseconds(),
				"error":     err.Error(),
			})
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w: %w", attempts, core.ErrMaxRetriesExceeded, lastErr)
}
