// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/pipeline"
)

// SummaryStage generates AI narrative summaries for the top portfolio
// tickers and upserts them into ai_summaries.json one by one, so a
// partial run still leaves usable entries behind.
//
// The stage is the only one skipped in fast mode: everything else is
// local math, this one spends generation quota.
type SummaryStage struct {
	summarizer *Summarizer
	store      *artifacts.Store
	metrics    *observability.PipelineMetrics
	portfolio  []string
	topN       int
}

var _ pipeline.Stage = (*SummaryStage)(nil)

// NewSummaryStage wires the summary stage. topN caps how many
// portfolio tickers get a narrative per run; zero or negative means
// the whole portfolio.
func NewSummaryStage(summarizer *Summarizer, store *artifacts.Store, metrics *observability.PipelineMetrics, portfolio []string, topN int) *SummaryStage {
	if topN <= 0 || topN > len(portfolio) {
		topN = len(portfolio)
	}
	return &SummaryStage{
		summarizer: summarizer,
		store:      store,
		metrics:    metrics,
		portfolio:  portfolio,
		topN:       topN,
	}
}

func (s *SummaryStage) Name() string         { return "summaries" }
func (s *SummaryStage) Description() string  { return "Generating AI summaries" }
func (s *SummaryStage) SkipInFastMode() bool { return true }

// Run summarizes the top-N tickers sequentially; the shared throttle
// paces the backend calls, so fanning out here would gain nothing.
// Degraded entries (generation failed) do not fail the stage; an
// artifact write failure does.
func (s *SummaryStage) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "SummaryStage.Run")
	defer span.End()

	tickers := s.portfolio[:s.topN]
	if len(tickers) == 0 {
		return pipeline.NewStageError(observability.ErrorCodeValidation,
			fmt.Errorf("portfolio is empty"))
	}

	for i, ticker := range tickers {
		slog.Info("Summarizing ticker", "ticker", ticker, "position", fmt.Sprintf("[%d/%d]", i+1, len(tickers)))

		entry, err := s.summarizer.Summarize(ctx, ticker, observability.SourcePipeline)
		if err != nil {
			// Only context cancellation reaches here.
			return pipeline.NewStageError(observability.ErrorCodeTimeout, err)
		}

		if err := s.store.Merge(artifacts.FileSummaries, ticker, entry); err != nil {
			recordWrite(s.metrics, artifacts.FileSummaries, false)
			return pipeline.NewStageError(observability.ErrorCodePersistence, err)
		}
		recordWrite(s.metrics, artifacts.FileSummaries, true)
	}

	slog.Info("AI summaries updated", "tickers", len(tickers))
	return nil
}
