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
	"strings"
	"time"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/marketdata"
	"github.com/AleutianAI/MarketPulse/services/textgen"
)

// DegradedSummaryText is stored when generation fails for a ticker.
// Consumers key off this string to retry on a later run.
const DegradedSummaryText = "Summary generation failed."

// promptContextLimit caps the prompt body in characters. Stats blocks
// are small today, but on-demand callers can feed arbitrarily long
// context, so the clamp is unconditional.
const promptContextLimit = 2000

// SummaryEntry is one ticker's record inside ai_summaries.json.
type SummaryEntry struct {
	Summary   string    `json:"summary"`
	Updated   time.Time `json:"updated"`
	Snapshot  string    `json:"snapshot,omitempty"`
	FromCache bool      `json:"from_cache,omitempty"`
	Degraded  bool      `json:"degraded,omitempty"`
}

// Summarizer produces one ticker's narrative entry: fetch recent
// quotes, assemble a stats prompt, generate through the shared text
// client. Both the pipeline summary stage and on-demand jobs run
// through it, so throttle, cache, and metrics behavior is identical
// for either path.
//
// Thread Safety: Safe for concurrent use.
type Summarizer struct {
	data      *marketdata.Client
	generator textgen.Generator
	metrics   *observability.PipelineMetrics
	now       func() time.Time
}

// NewSummarizer wires a summarizer over the shared dependencies.
func NewSummarizer(data *marketdata.Client, generator textgen.Generator, metrics *observability.PipelineMetrics) *Summarizer {
	return &Summarizer{
		data:      data,
		generator: generator,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Summarize returns the narrative entry for one ticker. Generation
// failure is a degraded outcome, not an error: the returned entry
// carries the placeholder text and Degraded=true. The error return is
// reserved for context cancellation.
func (s *Summarizer) Summarize(ctx context.Context, ticker string, source observability.SummarySource) (SummaryEntry, error) {
	ctx, span := tracer.Start(ctx, "Summarizer.Summarize")
	defer span.End()

	series, err := s.data.FetchChart(ctx, ticker, marketdata.ChartQuery{Range: "3mo"})
	if err != nil {
		if ctx.Err() != nil {
			return SummaryEntry{}, ctx.Err()
		}
		slog.Warn("Quote fetch failed, summarizing without stats", "ticker", ticker, "error", err)
		series = nil
	}

	snapshot := s.snapshotDay(series)
	prompt := clampPrompt(buildSummaryPrompt(ticker, statsBlock(series)))

	res, err := s.generator.Generate(ctx, textgen.Request{
		Subject:  ticker,
		Snapshot: snapshot,
		Prompt:   prompt,
	})
	recordAttempts(s.metrics, res.Attempts)

	if err != nil {
		if ctx.Err() != nil {
			return SummaryEntry{}, ctx.Err()
		}
		slog.Warn("Summary generation failed", "ticker", ticker, "attempts", res.Attempts, "error", err)
		recordSummary(s.metrics, source, observability.OutcomeDegraded)
		return SummaryEntry{
			Summary:  DegradedSummaryText,
			Updated:  s.now(),
			Snapshot: snapshot,
			Degraded: true,
		}, nil
	}

	outcome := observability.OutcomeFresh
	if res.FromCache {
		outcome = observability.OutcomeCached
	}
	recordSummary(s.metrics, source, outcome)
	recordCacheLookup(s.metrics, res.FromCache)

	return SummaryEntry{
		Summary:   res.Text,
		Updated:   s.now(),
		Snapshot:  snapshot,
		FromCache: res.FromCache,
	}, nil
}

// snapshotDay stamps the cache fingerprint with the data day: the last
// bar's date when quotes were fetched, else today (UTC). Requests for
// the same ticker and day share a cache entry.
func (s *Summarizer) snapshotDay(series *marketdata.Series) string {
	if series != nil {
		if t, ok := series.LastTime(); ok {
			return t.UTC().Format("2006-01-02")
		}
	}
	return s.now().UTC().Format("2006-01-02")
}

// statsBlock renders the prompt's data section from a fetched series.
func statsBlock(series *marketdata.Series) string {
	if series == nil {
		return "No recent price data available."
	}

	var b strings.Builder
	if close, ok := series.LastClose(); ok {
		fmt.Fprintf(&b, "Last close: %.2f\n", close)
	}
	if chg, ok := series.ChangePercent(lookback1D); ok {
		fmt.Fprintf(&b, "1-day change: %.2f%%\n", chg)
	}
	if chg, ok := series.ChangePercent(lookback1W); ok {
		fmt.Fprintf(&b, "1-week change: %.2f%%\n", chg)
	}
	if chg, ok := series.ChangePercent(lookback1M); ok {
		fmt.Fprintf(&b, "1-month change: %.2f%%\n", chg)
	}
	if vol, ok := series.AnnualizedVolatility(); ok {
		fmt.Fprintf(&b, "Annualized volatility: %.1f%%\n", vol)
	}
	if dd, ok := series.MaxDrawdown(); ok {
		fmt.Fprintf(&b, "Max drawdown (3mo): %.1f%%\n", dd)
	}
	if b.Len() == 0 {
		return "No recent price data available."
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildSummaryPrompt assembles the generation prompt for one ticker.
func buildSummaryPrompt(ticker, stats string) string {
	return fmt.Sprintf(`Stock Ticker: %s
Recent Market Data:
%s

Task: Provide a concise (3-4 sentence) investment summary for this stock.
Highlight recent price action, volatility, and drawdown risk.
Tone: Professional, objective, and analytical.
Language: English only.`, ticker, stats)
}

// clampPrompt caps the prompt at promptContextLimit characters using a
// recursive character splitter, so the cut lands on a natural boundary
// instead of mid-sentence.
func clampPrompt(prompt string) string {
	if len(prompt) <= promptContextLimit {
		return prompt
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(promptContextLimit),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(prompt)
	if err != nil || len(chunks) == 0 {
		// Degenerate input; hard cut.
		return prompt[:promptContextLimit]
	}
	return chunks[0]
}
