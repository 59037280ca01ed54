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

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/status"
	"github.com/AleutianAI/MarketPulse/services/marketdata"
)

var tracer = otel.Tracer("marketpulse.pipeline")

// RunOptions selects how a run executes.
type RunOptions struct {
	// Fast skips stages that opt out of fast mode (the AI summary
	// stage), refreshing market computations without quota spend.
	Fast bool

	// Trigger labels the run for metrics: scheduled or manual.
	Trigger observability.Trigger
}

// RunnerConfig holds the runner's collaborators and policy.
//
// # Fields
//
//   - Stages: Executed in order. Must not be empty.
//   - Status: Persists the lifecycle record before and after stages.
//   - Metrics: Optional. Nil disables metric recording.
//   - Cooldown: Minimum gap between TriggerAsync runs. Default: 60s.
type RunnerConfig struct {
	Stages   []Stage
	Status   *status.Store
	Metrics  *observability.PipelineMetrics
	Cooldown time.Duration
}

// Runner executes the stage sequence with single-flight semantics.
//
// # Description
//
// One run holds the pipeline at a time; concurrent starts are refused
// with ErrRunInProgress. Before each stage the runner persists a
// running record (completed/total counts), so pollers watching the
// status file see "[i/N]" progress. A stage error stops the run and
// persists a failed record; finishing every stage persists completed.
//
// Status persistence is best-effort: a failed save is logged and the
// run continues, because losing a progress write must not kill the
// market computations themselves.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Runner struct {
	stages   []Stage
	status   *status.Store
	metrics  *observability.PipelineMetrics
	cooldown time.Duration

	mu           sync.Mutex
	running      bool
	lastFinished time.Time

	// now is swapped out by tests exercising the cooldown window.
	now func() time.Time
}

// NewRunner validates the config and builds a runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("pipeline: at least one stage is required")
	}
	if cfg.Status == nil {
		return nil, fmt.Errorf("pipeline: status store is required")
	}
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = 60 * time.Second
	}
	return &Runner{
		stages:   cfg.Stages,
		status:   cfg.Status,
		metrics:  cfg.Metrics,
		cooldown: cooldown,
		now:      time.Now,
	}, nil
}

// Running reports whether a run currently holds the pipeline.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// CooldownRemaining reports how long the cooldown gate would hold a
// new trigger. Zero when a trigger would be admitted now.
func (r *Runner) CooldownRemaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastFinished.IsZero() {
		return 0
	}
	if wait := r.cooldown - r.now().Sub(r.lastFinished); wait > 0 {
		return wait
	}
	return 0
}

// Status returns the persisted lifecycle record. Corrupt status files
// degrade to idle with a warning rather than failing the poll.
func (r *Runner) Status() status.Record {
	rec, err := r.status.Load()
	if err != nil {
		slog.Warn("status load failed, reporting idle", "error", err)
	}
	return rec
}

// Run executes the pipeline synchronously.
//
// # Outputs
//
//   - status.Record: The terminal record (completed or failed).
//   - error: ErrRunInProgress if another run holds the pipeline, or
//     ErrStageFailed wrapping the stage error.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (status.Record, error) {
	runID, err := r.begin(false)
	if err != nil {
		return status.Record{}, err
	}
	defer r.finish()
	return r.execute(ctx, runID, opts)
}

// TriggerAsync starts a run in the background and returns immediately.
//
// # Description
//
// Applies the cooldown window: triggers landing within Cooldown of the
// last finished run are refused with ErrCooldown, which keeps a
// poll-happy client from burning the generation budget. The run itself
// executes on ctx, so pass a long-lived context, not a request context.
//
// # Outputs
//
//   - string: The accepted run's ID.
//   - error: ErrRunInProgress or ErrCooldown when refused.
func (r *Runner) TriggerAsync(ctx context.Context, opts RunOptions) (string, error) {
	runID, err := r.begin(true)
	if err != nil {
		return "", err
	}

	go func() {
		defer r.finish()
		if _, err := r.execute(ctx, runID, opts); err != nil {
			slog.Error("Triggered pipeline run failed", "run_id", runID, "error", err)
		}
	}()

	return runID, nil
}

// begin acquires the single-flight slot and mints a run ID.
func (r *Runner) begin(enforceCooldown bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return "", ErrRunInProgress
	}
	if enforceCooldown && !r.lastFinished.IsZero() {
		if wait := r.cooldown - r.now().Sub(r.lastFinished); wait > 0 {
			return "", fmt.Errorf("%w: retry in %s", ErrCooldown, wait.Round(time.Second))
		}
	}

	r.running = true
	return uuid.NewString(), nil
}

// finish releases the slot and stamps the cooldown clock.
func (r *Runner) finish() {
	r.mu.Lock()
	r.running = false
	r.lastFinished = r.now()
	r.mu.Unlock()
}

// execute walks the stages, persisting progress around each one.
func (r *Runner) execute(ctx context.Context, runID string, opts RunOptions) (status.Record, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Bool("run.fast_mode", opts.Fast),
			attribute.String("run.trigger", string(opts.Trigger)),
		),
	)
	defer span.End()

	total := len(r.stages)
	started := r.now()

	slog.Info("Pipeline run starting",
		"run_id", runID,
		"stages", total,
		"fast_mode", opts.Fast,
		"trigger", opts.Trigger,
	)
	if r.metrics != nil {
		r.metrics.RunStarted()
	}

	for i, stage := range r.stages {
		rec := status.Record{
			RunID:     runID,
			State:     status.StateRunning,
			Stage:     stage.Name(),
			Detail:    stage.Description(),
			Completed: i,
			Total:     total,
			FastMode:  opts.Fast,
		}

		if opts.Fast && stage.SkipInFastMode() {
			rec.Detail = "skipped in fast mode"
			r.saveStatus(rec)
			slog.Info("Stage skipped", "run_id", runID, "stage", stage.Name())
			continue
		}

		r.saveStatus(rec)
		stageStart := r.now()
		err := r.runStage(ctx, stage)
		elapsed := r.now().Sub(stageStart)

		if err != nil {
			code := classifyStageError(err)
			if r.metrics != nil {
				r.metrics.RecordStageError(stage.Name(), code)
				r.metrics.RunEnded(r.now())
				r.metrics.RecordRun(opts.Trigger, false)
			}

			failed := status.Record{
				RunID:     runID,
				State:     status.StateFailed,
				Stage:     stage.Name(),
				Error:     err.Error(),
				Completed: i,
				Total:     total,
				FastMode:  opts.Fast,
			}
			r.saveStatus(failed)

			span.RecordError(err)
			span.SetStatus(codes.Error, "stage failed")
			slog.Error("Pipeline run failed",
				"run_id", runID,
				"stage", stage.Name(),
				"completed", i,
				"total", total,
				"error", err,
			)
			return failed, fmt.Errorf("%w: stage %s: %w", ErrStageFailed, stage.Name(), err)
		}

		if r.metrics != nil {
			r.metrics.RecordStageDuration(stage.Name(), elapsed)
		}
		slog.Debug("Stage completed", "run_id", runID, "stage", stage.Name(), "elapsed", elapsed)
	}

	completed := status.Record{
		RunID:     runID,
		State:     status.StateCompleted,
		Detail:    "all stages completed",
		Completed: total,
		Total:     total,
		FastMode:  opts.Fast,
	}
	r.saveStatus(completed)

	if r.metrics != nil {
		r.metrics.RunEnded(r.now())
		r.metrics.RecordRun(opts.Trigger, true)
	}
	slog.Info("Pipeline run completed",
		"run_id", runID,
		"stages", total,
		"elapsed", r.now().Sub(started),
	)
	return completed, nil
}

// runStage executes one stage, converting panics to errors so a bad
// stage cannot take down the service.
func (r *Runner) runStage(ctx context.Context, st Stage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage panic: %v", rec)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return st.Run(ctx)
}

// saveStatus persists best-effort; a lost progress write is logged,
// never fatal.
func (r *Runner) saveStatus(rec status.Record) {
	if err := r.status.Save(rec); err != nil {
		slog.Warn("status persistence failed", "state", rec.State, "error", err)
	}
}

// classifyStageError maps a stage error to its metrics label.
func classifyStageError(err error) observability.ErrorCode {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return observability.ErrorCodeTimeout
	case errors.Is(err, marketdata.ErrNoData):
		return observability.ErrorCodeFetch
	default:
		return observability.ErrorCodeCompute
	}
}
