// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
)

// =============================================================================
// Interval Scheduler
// =============================================================================

// SchedulerConfig holds configuration for the background run scheduler.
//
// # Fields
//
//   - Interval: How often to start a run. Default: 1 hour.
//   - RunOnStart: Whether to run immediately at startup rather than
//     waiting a full interval. Default behavior in DefaultSchedulerConfig: true.
//   - FastMode: Whether scheduled runs skip the AI summary stage.
type SchedulerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	FastMode   bool
}

// DefaultSchedulerConfig returns production defaults: hourly runs,
// an immediate run at boot, full (non-fast) mode.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:   1 * time.Hour,
		RunOnStart: true,
		FastMode:   false,
	}
}

// Scheduler starts pipeline runs at a fixed interval.
//
// # Description
//
// Manages the lifecycle of a background goroutine that periodically
// starts a pipeline run. Uses the ticker + done channel pattern for
// graceful shutdown. A tick that lands while a run is still executing
// is skipped, never queued: the single-flight runner refuses it and
// the scheduler logs and waits for the next tick.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Scheduler struct {
	runner *Runner
	config SchedulerConfig

	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler over the given runner.
func NewScheduler(runner *Runner, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = 1 * time.Hour
	}
	return &Scheduler{
		runner: runner,
		config: config,
		done:   make(chan struct{}),
	}
}

// Start begins the background scheduler.
//
// # Outputs
//
//   - error: Non-nil if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // Reset done channel for potential restart
	s.mu.Unlock()

	slog.Info("Pipeline scheduler starting",
		"interval", s.config.Interval.String(),
		"run_on_start", s.config.RunOnStart,
		"fast_mode", s.config.FastMode,
	)

	go s.runLoop(ctx)
	return nil
}

// Stop gracefully stops the scheduler. Safe to call multiple times.
// An in-progress run is not interrupted.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil // Already stopped
	}

	slog.Info("Pipeline scheduler stopping")
	close(s.done)
	s.running = false
	return nil
}

// runLoop is the main scheduler goroutine.
func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.executeRun(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Pipeline scheduler stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("Pipeline scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.executeRun(ctx)
		}
	}
}

// executeRun starts one scheduled run with error handling, so run
// failures never crash the scheduler.
func (s *Scheduler) executeRun(ctx context.Context) {
	rec, err := s.runner.Run(ctx, RunOptions{
		Fast:    s.config.FastMode,
		Trigger: observability.TriggerScheduled,
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, ErrRunInProgress):
			slog.Info("Scheduled run skipped, pipeline busy")
		default:
			slog.Error("Scheduled run failed", "error", err, "progress", rec.Progress())
		}
		return
	}

	slog.Debug("Scheduled run finished", "run_id", rec.RunID, "progress", rec.Progress())
}
