// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/status"
	"github.com/AleutianAI/MarketPulse/services/marketdata"
)

// fakeStage is a scriptable stage for runner tests.
type fakeStage struct {
	name     string
	skipFast bool
	err      error
	onRun    func(ctx context.Context) error

	runs atomic.Int64
}

func (s *fakeStage) Name() string        { return s.name }
func (s *fakeStage) Description() string { return "running " + s.name }
func (s *fakeStage) SkipInFastMode() bool {
	return s.skipFast
}

func (s *fakeStage) Run(ctx context.Context) error {
	s.runs.Add(1)
	if s.onRun != nil {
		return s.onRun(ctx)
	}
	return s.err
}

func newTestRunner(t *testing.T, stages ...Stage) (*Runner, *status.Store) {
	t.Helper()

	store, err := status.NewStore(filepath.Join(t.TempDir(), "pipeline_status.json"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	runner, err := NewRunner(RunnerConfig{
		Stages: stages,
		Status: store,
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return runner, store
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestNewRunner_Validation(t *testing.T) {
	store, err := status.NewStore(filepath.Join(t.TempDir(), "s.json"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if _, err := NewRunner(RunnerConfig{Status: store}); err == nil {
		t.Error("NewRunner() with no stages: error = nil, want error")
	}
	if _, err := NewRunner(RunnerConfig{Stages: []Stage{&fakeStage{name: "x"}}}); err == nil {
		t.Error("NewRunner() with no status store: error = nil, want error")
	}
}

func TestRun_CompletesAllStages(t *testing.T) {
	first := &fakeStage{name: "first"}
	second := &fakeStage{name: "second"}
	third := &fakeStage{name: "third"}
	runner, store := newTestRunner(t, first, second, third)

	rec, err := runner.Run(context.Background(), RunOptions{Trigger: observability.TriggerManual})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rec.State != status.StateCompleted {
		t.Errorf("State = %q, want completed", rec.State)
	}
	if rec.Completed != 3 || rec.Total != 3 {
		t.Errorf("progress = %d/%d, want 3/3", rec.Completed, rec.Total)
	}
	if rec.RunID == "" {
		t.Error("RunID is empty")
	}

	for _, s := range []*fakeStage{first, second, third} {
		if got := s.runs.Load(); got != 1 {
			t.Errorf("stage %s ran %d times, want 1", s.name, got)
		}
	}

	// The terminal record is persisted.
	persisted, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if persisted.State != status.StateCompleted || persisted.Progress() != "[3/3]" {
		t.Errorf("persisted = %+v, want completed [3/3]", persisted)
	}
}

func TestRun_PersistsProgressBeforeEachStage(t *testing.T) {
	var observed status.Record
	var store *status.Store
	first := &fakeStage{name: "first"}
	third := &fakeStage{name: "third"}

	// The middle stage reads the status file while it is running: the
	// record written before it started must already name it.
	second := &fakeStage{name: "second", onRun: func(ctx context.Context) error {
		rec, err := store.Load()
		if err != nil {
			return err
		}
		observed = rec
		return nil
	}}

	runner, store := newTestRunner(t, first, second, third)

	if _, err := runner.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if observed.State != status.StateRunning {
		t.Errorf("observed state = %q, want running", observed.State)
	}
	if observed.Stage != "second" {
		t.Errorf("observed stage = %q, want second", observed.Stage)
	}
	if observed.Progress() != "[1/3]" {
		t.Errorf("observed progress = %q, want [1/3]", observed.Progress())
	}
	if observed.Detail != "running second" {
		t.Errorf("observed detail = %q, want the stage description", observed.Detail)
	}
}

func TestRun_StageFailureStopsRun(t *testing.T) {
	first := &fakeStage{name: "first"}
	second := &fakeStage{name: "second", err: errors.New("upstream closed the tap")}
	third := &fakeStage{name: "third"}
	runner, store := newTestRunner(t, first, second, third)

	rec, err := runner.Run(context.Background(), RunOptions{})
	if !errors.Is(err, ErrStageFailed) {
		t.Fatalf("Run() error = %v, want ErrStageFailed", err)
	}

	if rec.State != status.StateFailed {
		t.Errorf("State = %q, want failed", rec.State)
	}
	if rec.Stage != "second" {
		t.Errorf("Stage = %q, want second", rec.Stage)
	}
	if rec.Progress() != "[1/3]" {
		t.Errorf("Progress() = %q, want [1/3]", rec.Progress())
	}
	if !strings.Contains(rec.Error, "upstream closed the tap") {
		t.Errorf("Error = %q, want the stage error text", rec.Error)
	}

	if got := third.runs.Load(); got != 0 {
		t.Errorf("third stage ran %d times after failure, want 0", got)
	}

	persisted, loadErr := store.Load()
	if loadErr != nil {
		t.Fatalf("Load() error = %v", loadErr)
	}
	if persisted.State != status.StateFailed {
		t.Errorf("persisted state = %q, want failed", persisted.State)
	}
}

func TestRun_FastModeSkipsOptedStages(t *testing.T) {
	compute := &fakeStage{name: "macro"}
	summarize := &fakeStage{name: "summaries", skipFast: true}
	runner, _ := newTestRunner(t, compute, summarize)

	rec, err := runner.Run(context.Background(), RunOptions{Fast: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := compute.runs.Load(); got != 1 {
		t.Errorf("compute stage ran %d times, want 1", got)
	}
	if got := summarize.runs.Load(); got != 0 {
		t.Errorf("summary stage ran %d times in fast mode, want 0", got)
	}

	// Skipped stages still count toward the total.
	if rec.State != status.StateCompleted || rec.Progress() != "[2/2]" {
		t.Errorf("record = %+v, want completed [2/2]", rec)
	}
	if !rec.FastMode {
		t.Error("FastMode = false on the terminal record, want true")
	}
}

func TestRun_FullModeRunsEveryStage(t *testing.T) {
	compute := &fakeStage{name: "macro"}
	summarize := &fakeStage{name: "summaries", skipFast: true}
	runner, _ := newTestRunner(t, compute, summarize)

	if _, err := runner.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := summarize.runs.Load(); got != 1 {
		t.Errorf("summary stage ran %d times in full mode, want 1", got)
	}
}

func TestRun_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	blocking := &fakeStage{name: "slow", onRun: func(ctx context.Context) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
	runner, _ := newTestRunner(t, blocking)

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(context.Background(), RunOptions{})
		done <- err
	}()

	if !waitFor(t, 2*time.Second, runner.Running) {
		t.Fatal("first run never started")
	}

	// A second run while the first holds the pipeline is refused.
	_, err := runner.Run(context.Background(), RunOptions{})
	if !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent Run() error = %v, want ErrRunInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first Run() error = %v", err)
	}
	if runner.Running() {
		t.Error("Running() = true after the run finished")
	}
}

func TestRun_PanicBecomesStageFailure(t *testing.T) {
	angry := &fakeStage{name: "angry", onRun: func(ctx context.Context) error {
		panic("index out of range")
	}}
	calm := &fakeStage{name: "calm"}
	runner, _ := newTestRunner(t, angry)

	rec, err := runner.Run(context.Background(), RunOptions{})
	if !errors.Is(err, ErrStageFailed) {
		t.Fatalf("Run() error = %v, want ErrStageFailed", err)
	}
	if !strings.Contains(rec.Error, "panic") {
		t.Errorf("record error = %q, want panic text", rec.Error)
	}

	// The runner survives and accepts the next run.
	runner2, _ := newTestRunner(t, calm)
	if _, err := runner2.Run(context.Background(), RunOptions{}); err != nil {
		t.Errorf("follow-up Run() error = %v", err)
	}
	if runner.Running() {
		t.Error("Running() = true after panic, slot leaked")
	}
}

func TestTriggerAsync_AcceptsAndRuns(t *testing.T) {
	stage := &fakeStage{name: "only"}
	runner, store := newTestRunner(t, stage)

	runID, err := runner.TriggerAsync(context.Background(), RunOptions{Trigger: observability.TriggerManual})
	if err != nil {
		t.Fatalf("TriggerAsync() error = %v", err)
	}
	if runID == "" {
		t.Fatal("TriggerAsync() returned empty run ID")
	}

	ok := waitFor(t, 2*time.Second, func() bool {
		rec, loadErr := store.Load()
		return loadErr == nil && rec.State == status.StateCompleted && rec.RunID == runID
	})
	if !ok {
		t.Errorf("async run never completed; stage runs = %d", stage.runs.Load())
	}
}

func TestTriggerAsync_CooldownWindow(t *testing.T) {
	stage := &fakeStage{name: "only"}
	runner, _ := newTestRunner(t, stage)

	base := time.Now()
	runner.now = func() time.Time { return base }

	if _, err := runner.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Inside the 60s default window: refused with the wait remaining.
	runner.now = func() time.Time { return base.Add(10 * time.Second) }
	_, err := runner.TriggerAsync(context.Background(), RunOptions{})
	if !errors.Is(err, ErrCooldown) {
		t.Fatalf("TriggerAsync() error = %v, want ErrCooldown", err)
	}
	if !strings.Contains(err.Error(), "retry in") {
		t.Errorf("cooldown error = %q, want remaining wait", err.Error())
	}

	// Past the window: accepted.
	runner.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := runner.TriggerAsync(context.Background(), RunOptions{}); err != nil {
		t.Errorf("TriggerAsync() after cooldown error = %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return !runner.Running() })
}

func TestTriggerAsync_BusyBeatsCooldown(t *testing.T) {
	release := make(chan struct{})
	blocking := &fakeStage{name: "slow", onRun: func(ctx context.Context) error {
		<-release
		return nil
	}}
	runner, _ := newTestRunner(t, blocking)

	if _, err := runner.TriggerAsync(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first TriggerAsync() error = %v", err)
	}
	if !waitFor(t, 2*time.Second, runner.Running) {
		t.Fatal("first run never started")
	}

	_, err := runner.TriggerAsync(context.Background(), RunOptions{})
	if !errors.Is(err, ErrRunInProgress) {
		t.Errorf("TriggerAsync() while busy error = %v, want ErrRunInProgress", err)
	}

	close(release)
	waitFor(t, 2*time.Second, func() bool { return !runner.Running() })
}

func TestStatus_CorruptFileReportsIdle(t *testing.T) {
	stage := &fakeStage{name: "only"}
	runner, store := newTestRunner(t, stage)

	if err := os.WriteFile(store.Path(), []byte("{broken"), 0o640); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	rec := runner.Status()
	if rec.State != status.StateIdle {
		t.Errorf("Status() state = %q, want idle fallback", rec.State)
	}
}

func TestClassifyStageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want observability.ErrorCode
	}{
		{
			name: "tagged stage error",
			err:  NewStageError(observability.ErrorCodeGeneration, errors.New("backend down")),
			want: observability.ErrorCodeGeneration,
		},
		{
			name: "wrapped tagged error",
			err:  fmt.Errorf("summaries: %w", NewStageError(observability.ErrorCodePersistence, errors.New("disk full"))),
			want: observability.ErrorCodePersistence,
		},
		{
			name: "no market data",
			err:  fmt.Errorf("macro: %w", marketdata.ErrNoData),
			want: observability.ErrorCodeFetch,
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: observability.ErrorCodeTimeout,
		},
		{
			name: "untagged",
			err:  errors.New("divide by zero"),
			want: observability.ErrorCodeCompute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStageError(tt.err); got != tt.want {
				t.Errorf("classifyStageError() = %q, want %q", got, tt.want)
			}
		})
	}
}
