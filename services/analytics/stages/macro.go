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
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/pipeline"
	"github.com/AleutianAI/MarketPulse/services/marketdata"
)

// macroFetchLimit bounds concurrent indicator fetches. The indicator
// set is small; four keeps us polite to the quote API.
const macroFetchLimit = 4

// macroIndicator pairs an instrument symbol with its artifact label.
type macroIndicator struct {
	Label  string
	Symbol string
}

// macroIndicators is the fixed watch list. Labels are stable keys in
// the artifact; consumers key off them, not the raw symbols.
var macroIndicators = []macroIndicator{
	{Label: "VIX", Symbol: "^VIX"},
	{Label: "DXY", Symbol: "DX-Y.NYB"},
	{Label: "2Y_Yield", Symbol: "^IRX"},
	{Label: "10Y_Yield", Symbol: "^TNX"},
	{Label: "GOLD", Symbol: "GC=F"},
	{Label: "OIL", Symbol: "CL=F"},
	{Label: "BTC", Symbol: "BTC-USD"},
	{Label: "SPY", Symbol: "SPY"},
	{Label: "QQQ", Symbol: "QQQ"},
}

// IndicatorReading is one indicator's entry in the macro artifact.
type IndicatorReading struct {
	Symbol      string  `json:"symbol"`
	Label       string  `json:"label"`
	Value       float64 `json:"value"`
	Change1DPct float64 `json:"change_1d_pct"`
}

// MacroArtifact is the document written to macro_analysis.json.
type MacroArtifact struct {
	Timestamp  time.Time                   `json:"timestamp"`
	NextUpdate time.Time                   `json:"next_update"`
	Indicators map[string]IndicatorReading `json:"macro_indicators"`
	Regime     string                      `json:"regime"`
}

// MacroStage collects the macro indicator snapshot: spot value and
// one-day change for each instrument on the watch list, plus the
// derived 2s10s yield spread and a coarse risk regime hint.
type MacroStage struct {
	data    *marketdata.Client
	store   *artifacts.Store
	metrics *observability.PipelineMetrics
	now     func() time.Time
}

var _ pipeline.Stage = (*MacroStage)(nil)

// NewMacroStage wires the macro indicator stage.
func NewMacroStage(data *marketdata.Client, store *artifacts.Store, metrics *observability.PipelineMetrics) *MacroStage {
	return &MacroStage{
		data:    data,
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *MacroStage) Name() string        { return "macro" }
func (s *MacroStage) Description() string { return "Collecting macro indicators" }

// SkipInFastMode is false: fast runs still refresh market data.
func (s *MacroStage) SkipInFastMode() bool { return false }

// Run fetches every indicator in parallel, tolerating individual
// failures. An indicator that cannot be fetched is omitted from the
// artifact; the stage fails only when nothing at all came back.
func (s *MacroStage) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "MacroStage.Run")
	defer span.End()

	readings := make(map[string]IndicatorReading, len(macroIndicators)+1)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(macroFetchLimit)

	for _, ind := range macroIndicators {
		ind := ind
		g.Go(func() error {
			series, err := s.data.FetchChart(gctx, ind.Symbol, marketdata.ChartQuery{Range: "5d"})
			if err != nil {
				slog.Warn("Macro indicator fetch failed", "label", ind.Label, "symbol", ind.Symbol, "error", err)
				return nil // omit, don't sink the batch
			}

			value, ok := series.LastClose()
			if !ok {
				slog.Warn("Macro indicator has no close", "label", ind.Label, "symbol", ind.Symbol)
				return nil
			}
			change, _ := series.ChangePercent(1)

			mu.Lock()
			readings[ind.Label] = IndicatorReading{
				Symbol:      ind.Symbol,
				Label:       ind.Label,
				Value:       round2(value),
				Change1DPct: round2(change),
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return pipeline.NewStageError(observability.ErrorCodeFetch, err)
	}
	if len(readings) == 0 {
		return pipeline.NewStageError(observability.ErrorCodeCompute,
			fmt.Errorf("no macro indicators available"))
	}

	// Derived 2s10s spread. Change is not meaningful for a difference
	// of two yields, so it is reported as zero.
	if long, okL := readings["10Y_Yield"]; okL {
		if short, okS := readings["2Y_Yield"]; okS {
			readings["YieldSpread"] = IndicatorReading{
				Symbol: "10Y-2Y",
				Label:  "YieldSpread",
				Value:  round2(long.Value - short.Value),
			}
		}
	}

	now := s.now()
	doc := MacroArtifact{
		Timestamp:  now,
		NextUpdate: now.Add(time.Hour),
		Indicators: readings,
		Regime:     classifyRegime(readings),
	}

	if err := s.store.Save(artifacts.FileMacro, doc); err != nil {
		recordWrite(s.metrics, artifacts.FileMacro, false)
		return pipeline.NewStageError(observability.ErrorCodePersistence, err)
	}
	recordWrite(s.metrics, artifacts.FileMacro, true)

	slog.Info("Macro analysis saved", "indicators", len(readings), "regime", doc.Regime)
	return nil
}

// classifyRegime maps the VIX level and yield spread to a coarse hint.
// Thresholds follow the common 20/25 VIX reading; an inverted curve
// downgrades risk-on to neutral.
func classifyRegime(readings map[string]IndicatorReading) string {
	vix, ok := readings["VIX"]
	if !ok {
		return "unknown"
	}
	spread, hasSpread := readings["YieldSpread"]

	switch {
	case vix.Value >= 25:
		return "risk-off"
	case vix.Value < 20:
		if hasSpread && spread.Value < 0 {
			return "neutral"
		}
		return "risk-on"
	default:
		return "neutral"
	}
}
