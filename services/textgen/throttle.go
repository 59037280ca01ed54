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
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig configures outbound call pacing.
type ThrottleConfig struct {
	// MinInterval is the minimum spacing between issued calls, measured
	// from the start of one call to the start of the next. Default: 6s
	MinInterval time.Duration

	// MaxInFlight is the maximum number of calls in flight at once.
	// Default: 1
	MaxInFlight int
}

// DefaultThrottleConfig returns pacing suited to a free-tier text service:
// one call at a time, at most ten per minute.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MinInterval: 6 * time.Second,
		MaxInFlight: 1,
	}
}

// Validate checks the configuration for usable values.
func (c ThrottleConfig) Validate() error {
	if c.MinInterval < 0 {
		return fmt.Errorf("throttle: MinInterval must be >= 0, got %s", c.MinInterval)
	}
	if c.MaxInFlight < 1 {
		return fmt.Errorf("throttle: MaxInFlight must be >= 1, got %d", c.MaxInFlight)
	}
	return nil
}

// RequestThrottler spaces outbound generation calls and bounds how many are
// in flight at once. Acquire blocks until both constraints admit the call;
// every successful Acquire must be paired with a Release.
//
// The interval gate measures from when a call was issued, not when it
// completed, so a slow call does not stall the schedule beyond its slot.
//
// Thread Safety: Safe for concurrent use.
type RequestThrottler struct {
	config  ThrottleConfig
	limiter *rate.Limiter
	slots   chan struct{}

	mu           sync.Mutex
	closed       bool
	lastIssuedAt time.Time
	totalIssued  uint64
}

// NewRequestThrottler creates a throttler with the given pacing.
func NewRequestThrottler(config ThrottleConfig) (*RequestThrottler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if config.MinInterval > 0 {
		limit = rate.Every(config.MinInterval)
	}

	return &RequestThrottler{
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		slots:   make(chan struct{}, config.MaxInFlight),
	}, nil
}

// Acquire blocks until a concurrency slot is free and the minimum interval
// since the last issued call has elapsed, or until ctx is done.
//
// Outputs:
//   - error: Non-nil if the context ended first or the throttler is closed.
func (t *RequestThrottler) Acquire(ctx context.Context) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrThrottleClosed
	}

	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := t.limiter.Wait(ctx); err != nil {
		t.Release()
		return err
	}

	t.mu.Lock()
	t.lastIssuedAt = time.Now()
	t.totalIssued++
	t.mu.Unlock()

	return nil
}

// Release returns the concurrency slot taken by Acquire.
// Must be called exactly once per successful Acquire.
func (t *RequestThrottler) Release() {
	select {
	case <-t.slots:
	default:
		// Slot count went negative - this is a bug in the caller
		panic("throttle: release without acquire")
	}
}

// Close marks the throttler closed. Subsequent Acquire calls fail with
// ErrThrottleClosed; slots already held may still be released.
func (t *RequestThrottler) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// ThrottleSnapshot is a point-in-time view of throttler state.
type ThrottleSnapshot struct {
	// MinInterval is the configured spacing between calls.
	MinInterval time.Duration `json:"min_interval"`

	// MaxInFlight is the configured concurrency ceiling.
	MaxInFlight int `json:"max_in_flight"`

	// InFlight is the number of slots currently held.
	InFlight int `json:"in_flight"`

	// LastIssuedAt is when the most recent call was issued.
	// Zero if no call has been issued yet.
	LastIssuedAt time.Time `json:"last_issued_at"`

	// TotalIssued is the number of calls issued since creation.
	TotalIssued uint64 `json:"total_issued"`
}

// Snapshot returns the current throttler state for status reporting.
func (t *RequestThrottler) Snapshot() ThrottleSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return ThrottleSnapshot{
		MinInterval:  t.config.MinInterval,
		MaxInFlight:  t.config.MaxInFlight,
		InFlight:     len(t.slots),
		LastIssuedAt: t.lastIssuedAt,
		TotalIssued:  t.totalIssued,
	}
}
