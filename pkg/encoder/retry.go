package encoder

import (
	"context"
	"math"
	"time"
)

// SleepFunc blocks for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first (default: 3)
	MaxAttempts int
	// InitialDelay is the delay before the second attempt (default: 1 second)
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between attempts (default: 60 seconds)
	MaxDelay time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff (default: 2.0)
	BackoffMultiplier float64
	// Sleep waits between attempts (default: a context-aware timer)
	Sleep SleepFunc
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
		Sleep:             sleepContext,
	}
}

// normalize returns a copy of c with sensible defaults filled in.
func (c *RetryConfig) normalize() RetryConfig {
	if c == nil {
		return *DefaultRetryConfig()
	}
	out := *c
	if out.MaxAttempts < 1 {
		out.MaxAttempts = 3
	}
	if out.InitialDelay <= 0 {
		out.InitialDelay = 1 * time.Second
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 60 * time.Second
	}
	if out.MaxDelay < out.InitialDelay {
		out.MaxDelay = out.InitialDelay
	}
	if out.BackoffMultiplier <= 0 {
		out.BackoffMultiplier = 2.0
	}
	if out.Sleep == nil {
		out.Sleep = sleepContext
	}
	return out
}

// delay returns the wait before the given retry (1 for the first retry)
// using exponential backoff: InitialDelay * (BackoffMultiplier ^ (retry - 1)).
func (c *RetryConfig) delay(retry int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(retry-1))

	// Cap at MaxDelay
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}

	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
