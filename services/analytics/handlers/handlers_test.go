// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/pipeline"
	"github.com/AleutianAI/MarketPulse/services/analytics/stages"
	"github.com/AleutianAI/MarketPulse/services/analytics/status"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// perform runs one request through the router and captures the response.
func perform(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req = httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func newArtifactStore(t *testing.T) *artifacts.Store {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

// fakeStage is a scriptable pipeline stage.
type fakeStage struct {
	name     string
	skipFast bool
	err      error
	gate     chan struct{}

	runs atomic.Int64
}

func (s *fakeStage) Name() string         { return s.name }
func (s *fakeStage) Description() string  { return "running " + s.name }
func (s *fakeStage) SkipInFastMode() bool { return s.skipFast }

func (s *fakeStage) Run(ctx context.Context) error {
	if s.gate != nil {
		<-s.gate
	}
	s.runs.Add(1)
	return s.err
}

func newTestRunner(t *testing.T, st ...pipeline.Stage) *pipeline.Runner {
	t.Helper()
	store, err := status.NewStore(filepath.Join(t.TempDir(), "pipeline_status.json"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Stages: st,
		Status: store,
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return runner
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

// fakeSummarizer satisfies jobs.Summarizer.
type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, ticker string, source observability.SummarySource) (stages.SummaryEntry, error) {
	return stages.SummaryEntry{Summary: "entry for " + ticker, Updated: time.Now()}, nil
}
