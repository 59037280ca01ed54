// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package textgen wraps an external text-generation service with the
// controls a quota-limited deployment needs: a TTL response cache, call
// pacing, a daily budget, and retry with exponential backoff. Pipeline
// stages consume the Generator interface and treat generation failures as
// degraded output, never as a reason to fail a run.
package textgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("marketpulse.textgen")

// Generator is the narrative-generation surface consumed by pipeline stages.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Request is one generation task.
type Request struct {
	// Subject keys the fingerprint, normally a ticker symbol.
	Subject string

	// Snapshot is the day stamp of the inputs (YYYY-MM-DD). Requests for
	// the same subject and snapshot share a cache entry regardless of
	// numeric noise in the prompt.
	Snapshot string

	// Prompt is the full prompt sent to the backend.
	Prompt string
}

// Result carries generated or cached text.
type Result struct {
	// Text is the narrative.
	Text string

	// FromCache is true when the text was served without a backend call.
	FromCache bool

	// Fingerprint identifies the cache entry.
	Fingerprint Fingerprint

	// Attempts is the number of backend calls made (0 on a cache hit).
	Attempts int
}

// ClientConfig bundles the pacing, retry, and budget settings.
type ClientConfig struct {
	// Backoff controls retry behavior for transient failures.
	Backoff BackoffConfig

	// Throttle controls call spacing and concurrency.
	Throttle ThrottleConfig

	// DailyCallLimit caps backend calls per UTC day. 0 disables the cap.
	// Default: 1000
	DailyCallLimit int
}

// DefaultClientConfig returns settings tuned for a free-tier provider.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Backoff:        DefaultBackoffConfig(),
		Throttle:       DefaultThrottleConfig(),
		DailyCallLimit: 1000,
	}
}

// Client implements Generator. Each Generate call runs the same sequence:
// cache lookup, budget check, throttled backend call, retry on transient
// failure, cache store. The concurrency slot is released before any backoff
// sleep so other requests are not starved while one waits out a 429.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	backend   Backend
	cache     *ResponseCache
	throttler *RequestThrottler
	backoff   *BackoffController
	limit     int

	mu        sync.Mutex
	dayKey    string
	callsUsed int

	now func() time.Time
}

var _ Generator = (*Client)(nil)

// NewClient wires a backend and cache into a throttled, retrying client.
// The cache may be nil, which disables caching (every call hits the backend).
func NewClient(backend Backend, cache *ResponseCache, cfg ClientConfig) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("textgen: backend must not be nil")
	}
	if cfg.DailyCallLimit < 0 {
		return nil, fmt.Errorf("textgen: DailyCallLimit must be >= 0, got %d", cfg.DailyCallLimit)
	}

	backoff, err := NewBackoffController(cfg.Backoff)
	if err != nil {
		return nil, err
	}
	throttler, err := NewRequestThrottler(cfg.Throttle)
	if err != nil {
		return nil, err
	}

	return &Client{
		backend:   backend,
		cache:     cache,
		throttler: throttler,
		backoff:   backoff,
		limit:     cfg.DailyCallLimit,
		now:       time.Now,
	}, nil
}

// Generate returns narrative text for the request, serving from cache when
// a live entry exists. On failure the error wraps ErrGenerationFailed so
// callers can substitute placeholder text and keep going.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "Client.Generate")
	defer span.End()

	subject := strings.ToUpper(strings.TrimSpace(req.Subject))
	if subject == "" {
		return Result{}, fmt.Errorf("%w: empty subject", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return Result{}, fmt.Errorf("%w: empty prompt", ErrInvalidRequest)
	}

	fp := NewFingerprint(c.backend.Model(), subject, req.Snapshot)
	span.SetAttributes(
		attribute.String("textgen.subject", subject),
		attribute.String("textgen.backend", c.backend.Name()),
	)

	if c.cache != nil {
		text, ok, err := c.cache.Get(fp)
		if err != nil {
			// Treat storage trouble as a miss, the backend still works
			slog.Warn("cache lookup failed", "subject", subject, "error", err)
		} else if ok {
			slog.Debug("serving generation from cache", "subject", subject)
			span.SetAttributes(attribute.Bool("textgen.cache_hit", true))
			return Result{Text: text, FromCache: true, Fingerprint: fp}, nil
		}
	}
	span.SetAttributes(attribute.Bool("textgen.cache_hit", false))

	var text string
	retryResult, err := c.backoff.Retry(ctx, func(ctx context.Context, attempt int) error {
		if err := c.consumeBudget(); err != nil {
			return err
		}
		if err := c.throttler.Acquire(ctx); err != nil {
			return err
		}

		out, callErr := c.backend.Complete(ctx, req.Prompt)

		// Free the slot before any backoff sleep
		c.throttler.Release()

		if callErr != nil {
			slog.Warn("generation attempt failed",
				"subject", subject,
				"attempt", attempt,
				"error", callErr,
			)
			return callErr
		}
		text = out
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("generation failed",
			"subject", subject,
			"attempts", retryResult.Attempts,
			"error", err,
		)
		return Result{Fingerprint: fp, Attempts: retryResult.Attempts},
			fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	if c.cache != nil {
		if err := c.cache.Put(fp, text); err != nil {
			slog.Warn("failed to cache generated text", "subject", subject, "error", err)
		}
	}

	slog.Debug("generation succeeded",
		"subject", subject,
		"attempts", retryResult.Attempts,
		"chars", len(text),
	)
	return Result{Text: text, Fingerprint: fp, Attempts: retryResult.Attempts}, nil
}

// consumeBudget takes one unit of the daily call budget, rolling the
// counter over at UTC midnight.
func (c *Client) consumeBudget() error {
	if c.limit <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	day := c.now().UTC().Format("2006-01-02")
	if day != c.dayKey {
		c.dayKey = day
		c.callsUsed = 0
	}
	if c.callsUsed >= c.limit {
		return fmt.Errorf("%w: %d of %d calls used", ErrBudgetExhausted, c.callsUsed, c.limit)
	}
	c.callsUsed++
	return nil
}

// QuotaSnapshot is a point-in-time view of the client's spend and pacing,
// served by the quota endpoint.
type QuotaSnapshot struct {
	// Backend and Model identify the provider in use.
	Backend string `json:"backend"`
	Model   string `json:"model"`

	// DailyLimit is the configured cap on backend calls per UTC day.
	// 0 means uncapped.
	DailyLimit int `json:"daily_limit"`

	// CallsUsed is the number of calls issued in the current UTC day.
	CallsUsed int `json:"calls_used"`

	// ResetsAt is the next UTC midnight, when the counter rolls over.
	ResetsAt time.Time `json:"resets_at"`

	// Throttle reports pacing state.
	Throttle ThrottleSnapshot `json:"throttle"`

	// Cache reports response-cache effectiveness. Zero value when the
	// client runs without a cache.
	Cache CacheStats `json:"cache"`
}

// Quota returns the current spend, pacing, and cache state.
func (c *Client) Quota() (QuotaSnapshot, error) {
	c.mu.Lock()
	nowUTC := c.now().UTC()
	day := nowUTC.Format("2006-01-02")
	used := c.callsUsed
	if day != c.dayKey {
		used = 0
	}
	c.mu.Unlock()

	snap := QuotaSnapshot{
		Backend:    c.backend.Name(),
		Model:      c.backend.Model(),
		DailyLimit: c.limit,
		CallsUsed:  used,
		ResetsAt:   nowUTC.Truncate(24 * time.Hour).Add(24 * time.Hour),
		Throttle:   c.throttler.Snapshot(),
	}

	if c.cache != nil {
		stats, err := c.cache.Stats()
		if err != nil {
			return QuotaSnapshot{}, err
		}
		snap.Cache = stats
	}
	return snap, nil
}

// BackoffConfig returns the retry policy in effect.
func (c *Client) BackoffConfig() BackoffConfig {
	return c.backoff.Config()
}

// Close shuts down the throttler. The cache is owned by the caller and is
// closed separately.
func (c *Client) Close() {
	c.throttler.Close()
}
