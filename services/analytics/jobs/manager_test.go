// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/stages"
)

// fakeSummarizer returns a canned entry per ticker and records calls.
type fakeSummarizer struct {
	mu      sync.Mutex
	calls   []string
	sources []observability.SummarySource
	err     error
	gate    chan struct{}
}

func (f *fakeSummarizer) Summarize(ctx context.Context, ticker string, source observability.SummarySource) (stages.SummaryEntry, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.calls = append(f.calls, ticker)
	f.sources = append(f.sources, source)
	f.mu.Unlock()

	if f.err != nil {
		return stages.SummaryEntry{}, f.err
	}
	return stages.SummaryEntry{Summary: "entry for " + ticker}, nil
}

func (f *fakeSummarizer) calledWith() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newJobStore(t *testing.T) *artifacts.Store {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func loadSummaryDoc(t *testing.T, store *artifacts.Store) map[string]stages.SummaryEntry {
	t.Helper()
	data, err := store.Load(artifacts.FileSummaries)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var doc map[string]stages.SummaryEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return doc
}

func TestSubmit_SanitizesAndRuns(t *testing.T) {
	summarizer := &fakeSummarizer{}
	store := newJobStore(t)
	m := NewManager(summarizer, store, nil)

	ack, err := m.Submit(context.Background(), []string{"AAPL", "bad$ticker"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	m.Wait()

	if _, err := uuid.Parse(ack.JobID); err != nil {
		t.Errorf("JobID %q is not a UUID: %v", ack.JobID, err)
	}
	if len(ack.Accepted) != 2 || ack.Accepted[0] != "AAPL" || ack.Accepted[1] != "BADTICKER" {
		t.Errorf("Accepted = %v, want [AAPL BADTICKER]", ack.Accepted)
	}
	if len(ack.Rejected) != 0 {
		t.Errorf("Rejected = %v, want empty", ack.Rejected)
	}

	doc := loadSummaryDoc(t, store)
	if doc["AAPL"].Summary != "entry for AAPL" {
		t.Errorf("AAPL = %+v, want generated entry", doc["AAPL"])
	}
	if _, ok := doc["BADTICKER"]; !ok {
		t.Error("BADTICKER entry missing")
	}

	// Jobs report the on-demand source, not the pipeline one.
	for _, src := range summarizer.sources {
		if src != observability.SourceOnDemand {
			t.Errorf("source = %q, want %q", src, observability.SourceOnDemand)
		}
	}
}

func TestSubmit_AllRejected(t *testing.T) {
	m := NewManager(&fakeSummarizer{}, newJobStore(t), nil)

	ack, err := m.Submit(context.Background(), []string{"$$$", "  "})
	if !errors.Is(err, ErrNoValidTickers) {
		t.Fatalf("Submit() error = %v, want ErrNoValidTickers", err)
	}
	if len(ack.Rejected) != 2 {
		t.Errorf("Rejected = %v, want both inputs echoed", ack.Rejected)
	}
	if ack.JobID != "" {
		t.Errorf("JobID = %q, want empty for a refused submission", ack.JobID)
	}
}

func TestSubmit_KeepsDuplicates(t *testing.T) {
	summarizer := &fakeSummarizer{}
	m := NewManager(summarizer, newJobStore(t), nil)

	ack, err := m.Submit(context.Background(), []string{"AAPL", "AAPL"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	m.Wait()

	if len(ack.Accepted) != 2 {
		t.Errorf("Accepted = %v, want the duplicate kept", ack.Accepted)
	}
	if calls := summarizer.calledWith(); len(calls) != 2 {
		t.Errorf("summarizer calls = %v, want 2", calls)
	}
}

func TestSubmit_AbortsOnSummarizeError(t *testing.T) {
	summarizer := &fakeSummarizer{err: context.Canceled}
	store := newJobStore(t)
	m := NewManager(summarizer, store, nil)

	if _, err := m.Submit(context.Background(), []string{"AAPL", "MSFT"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	m.Wait()

	// The first failure aborts the job; the second ticker is never tried.
	if calls := summarizer.calledWith(); len(calls) != 1 {
		t.Errorf("summarizer calls = %v, want 1", calls)
	}
	if _, err := store.Load(artifacts.FileSummaries); err == nil {
		t.Error("summaries artifact written, want nothing persisted")
	}
}

func TestActive(t *testing.T) {
	gate := make(chan struct{})
	summarizer := &fakeSummarizer{gate: gate}
	m := NewManager(summarizer, newJobStore(t), nil)

	if _, err := m.Submit(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := m.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1 while the job is gated", got)
	}

	close(gate)
	m.Wait()
	if got := m.Active(); got != 0 {
		t.Errorf("Active() = %d, want 0 after drain", got)
	}
}
