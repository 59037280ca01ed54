// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package textgen

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig configures retry behavior with exponential backoff.
type BackoffConfig struct {
	// MaxAttempts is the maximum number of calls made (including the first).
	// Default: 4
	MaxAttempts int

	// InitialDelay is the wait before the first retry.
	// Default: 2s
	InitialDelay time.Duration

	// MaxDelay is the ceiling on the wait between retries.
	// Default: 60s
	MaxDelay time.Duration

	// GrowthFactor is the multiplier applied per retry.
	// Default: 2.0
	GrowthFactor float64

	// JitterFactor is the maximum jitter as a fraction of the delay (0-1).
	// Spreads retries from concurrent callers apart. Default: 0.2
	JitterFactor float64
}

// DefaultBackoffConfig returns the defaults tuned for a free-tier
// quota-limited service: four total attempts spanning roughly 2s+4s+8s
// of waiting.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:  4,
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		GrowthFactor: 2.0,
		JitterFactor: 0.2,
	}
}

// Validate checks the configuration for usable values.
func (c BackoffConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("backoff: MaxAttempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.InitialDelay <= 0 {
		return fmt.Errorf("backoff: InitialDelay must be positive, got %s", c.InitialDelay)
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("backoff: MaxDelay %s is below InitialDelay %s", c.MaxDelay, c.InitialDelay)
	}
	if c.GrowthFactor < 1.0 {
		return fmt.Errorf("backoff: GrowthFactor must be >= 1.0, got %v", c.GrowthFactor)
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return fmt.Errorf("backoff: JitterFactor must be in [0,1], got %v", c.JitterFactor)
	}
	return nil
}

// BackoffController decides whether a failed generation call is retried and
// how long to wait before the retry. It is stateless per request: all
// per-request state (the attempt count) lives with the caller.
type BackoffController struct {
	config BackoffConfig
}

// NewBackoffController validates the config and returns a controller.
func NewBackoffController(config BackoffConfig) (*BackoffController, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &BackoffController{config: config}, nil
}

// Config returns the controller's configuration for status reporting.
func (b *BackoffController) Config() BackoffConfig {
	return b.config
}

// NextDelay returns the wait before retry number `retry` (0-based):
// InitialDelay * GrowthFactor^retry, capped at MaxDelay, then jittered by
// up to ±JitterFactor. With JitterFactor zero the series is non-decreasing.
func (b *BackoffController) NextDelay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	raw := float64(b.config.InitialDelay) * math.Pow(b.config.GrowthFactor, float64(retry))
	if raw > float64(b.config.MaxDelay) {
		raw = float64(b.config.MaxDelay)
	}
	return applyJitter(time.Duration(raw), b.config.JitterFactor)
}

// ShouldRetry reports whether another call is allowed after `attempt` calls
// (1-based) have already failed with err. Only transient error kinds are
// retried, and never once the attempt budget is spent.
func (b *BackoffController) ShouldRetry(attempt int, err error) bool {
	if attempt >= b.config.MaxAttempts {
		return false
	}
	return IsTransient(err)
}

// RetryResult contains the outcome of a retried operation.
type RetryResult struct {
	// Attempts is the number of calls made.
	Attempts int

	// TotalDuration is the total time spent including waits.
	TotalDuration time.Duration

	// LastError is the error from the final call (nil if successful).
	LastError error
}

// RetryableFunc is one generation attempt. attempt is 1-based.
type RetryableFunc func(ctx context.Context, attempt int) error

// Retry executes fn until it succeeds, returns a non-transient error, the
// attempt budget is spent, or ctx is canceled. Waits between attempts follow
// NextDelay and are interruptible by ctx.
func (b *BackoffController) Retry(ctx context.Context, fn RetryableFunc) (RetryResult, error) {
	start := time.Now()
	result := RetryResult{}

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastError = err
			result.TotalDuration = time.Since(start)
			return result, err
		}

		err := fn(ctx, attempt)
		if err == nil {
			result.TotalDuration = time.Since(start)
			return result, nil
		}

		result.LastError = err

		if !b.ShouldRetry(attempt, err) {
			result.TotalDuration = time.Since(start)
			return result, err
		}

		waitTime := b.NextDelay(attempt - 1)

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result, ctx.Err()
		case <-time.After(waitTime):
		}
	}

	result.TotalDuration = time.Since(start)
	return result, result.LastError
}

// applyJitter scales d by a random multiplier in [1-jitterFactor, 1+jitterFactor].
func applyJitter(d time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return d
	}

	jitter := (rand.Float64()*2 - 1) * jitterFactor
	multiplier := 1.0 + jitter

	return time.Duration(float64(d) * multiplier)
}
