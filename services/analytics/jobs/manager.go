// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jobs runs on-demand summary generation outside the pipeline.
// A submission is acknowledged immediately and processed in the
// background; results land in the same ai_summaries.json document the
// pipeline writes, so readers never care which path produced an entry.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/MarketPulse/pkg/validation"
	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/stages"
)

var tracer = otel.Tracer("marketpulse.jobs")

// ErrNoValidTickers rejects a submission in which nothing survived
// ticker sanitization.
var ErrNoValidTickers = errors.New("jobs: no valid tickers in submission")

// Summarizer produces one ticker's narrative entry. Satisfied by
// stages.Summarizer.
type Summarizer interface {
	Summarize(ctx context.Context, ticker string, source observability.SummarySource) (stages.SummaryEntry, error)
}

// Ack acknowledges an accepted submission. Rejected echoes the inputs
// that did not survive sanitization, in submission order.
type Ack struct {
	JobID    string   `json:"job_id"`
	Accepted []string `json:"accepted"`
	Rejected []string `json:"rejected"`
}

// Manager owns the background job goroutines.
//
// # Description
//
// Each accepted submission becomes one goroutine that summarizes its
// tickers sequentially; the shared throttle underneath the summarizer
// paces the backend, so jobs need no pool of their own. Duplicate
// tickers in one submission are deliberately kept: resubmitting a
// symbol is how callers force a regeneration attempt.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Manager struct {
	summarizer Summarizer
	store      *artifacts.Store
	metrics    *observability.PipelineMetrics

	mu     sync.Mutex
	active int
	wg     sync.WaitGroup
}

// NewManager wires a job manager. metrics may be nil.
func NewManager(summarizer Summarizer, store *artifacts.Store, metrics *observability.PipelineMetrics) *Manager {
	return &Manager{
		summarizer: summarizer,
		store:      store,
		metrics:    metrics,
	}
}

// Submit sanitizes the tickers and, when at least one survives, starts
// a background job for them.
//
// # Description
//
// The job executes on ctx, so pass a long-lived context, not a request
// context. Inputs are sanitized, not validated: "bad$ticker" is
// accepted as BADTICKER, while inputs with nothing salvageable are
// echoed back in Ack.Rejected.
//
// # Outputs
//
//   - Ack: Job ID plus the accepted/rejected partition.
//   - error: ErrNoValidTickers when every input was rejected.
func (m *Manager) Submit(ctx context.Context, tickers []string) (Ack, error) {
	accepted, rejected := validation.SanitizeTickers(tickers)
	if len(accepted) == 0 {
		return Ack{Rejected: rejected}, ErrNoValidTickers
	}

	jobID := uuid.NewString()
	if m.metrics != nil {
		m.metrics.RecordJob("accepted")
	}

	m.mu.Lock()
	m.active++
	m.mu.Unlock()
	m.wg.Add(1)
	go m.run(ctx, jobID, accepted)

	slog.Info("Summary job accepted", "job_id", jobID, "accepted", len(accepted), "rejected", len(rejected))
	return Ack{JobID: jobID, Accepted: accepted, Rejected: rejected}, nil
}

// Active returns the number of jobs currently running.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Wait blocks until every submitted job has finished. Used at
// shutdown so in-flight generations are not abandoned mid-write.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// run processes one job: summarize each ticker, upsert the entry.
// A summarize error means the context died and aborts the job; a
// failed artifact write skips to the next ticker.
func (m *Manager) run(ctx context.Context, jobID string, tickers []string) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	ctx, span := tracer.Start(ctx, "jobs.run",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.Int("job.tickers", len(tickers)),
		),
	)
	defer span.End()

	failures := 0
	for _, ticker := range tickers {
		entry, err := m.summarizer.Summarize(ctx, ticker, observability.SourceOnDemand)
		if err != nil {
			slog.Warn("Summary job aborted", "job_id", jobID, "ticker", ticker, "error", err)
			failures++
			break
		}

		if err := m.store.Merge(artifacts.FileSummaries, ticker, entry); err != nil {
			slog.Error("Summary job write failed", "job_id", jobID, "ticker", ticker, "error", err)
			if m.metrics != nil {
				m.metrics.RecordArtifactWrite(artifacts.FileSummaries, false)
			}
			failures++
			continue
		}
		if m.metrics != nil {
			m.metrics.RecordArtifactWrite(artifacts.FileSummaries, true)
		}
	}

	status := "completed"
	if failures > 0 {
		status = "failed"
	}
	if m.metrics != nil {
		m.metrics.RecordJob(status)
	}
	slog.Info("Summary job finished", "job_id", jobID, "status", status, "tickers", len(tickers), "failures", failures)
}
