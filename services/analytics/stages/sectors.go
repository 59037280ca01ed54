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
	"sort"
	"time"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/pipeline"
	"github.com/AleutianAI/MarketPulse/services/marketdata"
)

// benchmarkSymbol anchors the relative-performance column.
const benchmarkSymbol = "SPY"

// Lookbacks in trading days for the heatmap return columns.
const (
	lookback1D = 1
	lookback1W = 5
	lookback1M = 21
)

// sectorETFs maps the S&P sector ETFs to their display names.
var sectorETFs = map[string]string{
	"XLK":  "Technology",
	"XLF":  "Financials",
	"XLV":  "Healthcare",
	"XLE":  "Energy",
	"XLY":  "Consumer Discretionary",
	"XLP":  "Consumer Staples",
	"XLI":  "Industrials",
	"XLB":  "Materials",
	"XLU":  "Utilities",
	"XLRE": "Real Estate",
	"XLC":  "Communication Services",
}

// SectorRow is one ETF's heatmap entry.
type SectorRow struct {
	Symbol        string  `json:"symbol"`
	Sector        string  `json:"sector"`
	Price         float64 `json:"price"`
	Change1DPct   float64 `json:"change_1d_pct"`
	Change1WPct   float64 `json:"change_1w_pct"`
	Change1MPct   float64 `json:"change_1m_pct"`
	RelativeToSPY float64 `json:"relative_to_spy_pct"`
}

// SectorArtifact is the document written to sector_heatmap.json.
// Rows are sorted by one-day change, best first.
type SectorArtifact struct {
	Timestamp time.Time   `json:"timestamp"`
	Benchmark SectorRow   `json:"benchmark"`
	Rows      []SectorRow `json:"rows"`
	Leaders   []string    `json:"leaders"`
	Laggards  []string    `json:"laggards"`
}

// SectorStage computes sector ETF performance over three windows and
// each sector's one-day performance relative to SPY.
type SectorStage struct {
	data    *marketdata.Client
	store   *artifacts.Store
	metrics *observability.PipelineMetrics
	now     func() time.Time
}

var _ pipeline.Stage = (*SectorStage)(nil)

// NewSectorStage wires the sector heatmap stage.
func NewSectorStage(data *marketdata.Client, store *artifacts.Store, metrics *observability.PipelineMetrics) *SectorStage {
	return &SectorStage{
		data:    data,
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *SectorStage) Name() string         { return "sectors" }
func (s *SectorStage) Description() string  { return "Computing sector heatmap" }
func (s *SectorStage) SkipInFastMode() bool { return false }

// Run batch-fetches every sector ETF plus the benchmark, derives the
// return columns, and persists the heatmap. ETFs that fail to fetch
// are omitted; a missing benchmark zeroes the relative column rather
// than failing the stage.
func (s *SectorStage) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "SectorStage.Run")
	defer span.End()

	symbols := make([]string, 0, len(sectorETFs)+1)
	for symbol := range sectorETFs {
		symbols = append(symbols, symbol)
	}
	symbols = append(symbols, benchmarkSymbol)

	// 3 months of daily bars comfortably covers the 21-day lookback.
	results := s.data.FetchMany(ctx, symbols, marketdata.ChartQuery{Range: "3mo"})

	benchmark, haveBenchmark := buildSectorRow(results[benchmarkSymbol], "Benchmark")
	if !haveBenchmark {
		slog.Warn("Benchmark fetch failed, relative column will be zero", "symbol", benchmarkSymbol)
	}

	rows := make([]SectorRow, 0, len(sectorETFs))
	for symbol, sector := range sectorETFs {
		row, ok := buildSectorRow(results[symbol], sector)
		if !ok {
			slog.Warn("Sector ETF omitted", "symbol", symbol, "error", results[symbol].Err)
			continue
		}
		if haveBenchmark {
			row.RelativeToSPY = round2(row.Change1DPct - benchmark.Change1DPct)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return pipeline.NewStageError(observability.ErrorCodeCompute,
			fmt.Errorf("no sector data available"))
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Change1DPct > rows[j].Change1DPct })

	doc := SectorArtifact{
		Timestamp: s.now(),
		Benchmark: benchmark,
		Rows:      rows,
		Leaders:   topSectors(rows, 3),
		Laggards:  bottomSectors(rows, 3),
	}

	if err := s.store.Save(artifacts.FileSectors, doc); err != nil {
		recordWrite(s.metrics, artifacts.FileSectors, false)
		return pipeline.NewStageError(observability.ErrorCodePersistence, err)
	}
	recordWrite(s.metrics, artifacts.FileSectors, true)

	slog.Info("Sector heatmap saved", "sectors", len(rows), "leaders", doc.Leaders)
	return nil
}

// buildSectorRow derives the return columns for one fetched symbol.
// ok is false when the fetch failed or the series is too short for a
// one-day change.
func buildSectorRow(res marketdata.FetchResult, sector string) (SectorRow, bool) {
	if res.Err != nil || res.Series == nil {
		return SectorRow{}, false
	}
	price, ok := res.Series.LastClose()
	if !ok {
		return SectorRow{}, false
	}
	change1d, ok := res.Series.ChangePercent(lookback1D)
	if !ok {
		return SectorRow{}, false
	}

	// Longer windows degrade to zero when history is short.
	change1w, _ := res.Series.ChangePercent(lookback1W)
	change1m, _ := res.Series.ChangePercent(lookback1M)

	return SectorRow{
		Symbol:      res.Symbol,
		Sector:      sector,
		Price:       round2(price),
		Change1DPct: round2(change1d),
		Change1WPct: round2(change1w),
		Change1MPct: round2(change1m),
	}, true
}

func topSectors(rows []SectorRow, n int) []string {
	if n > len(rows) {
		n = len(rows)
	}
	names := make([]string, 0, n)
	for _, row := range rows[:n] {
		names = append(names, row.Symbol)
	}
	return names
}

func bottomSectors(rows []SectorRow, n int) []string {
	if n > len(rows) {
		n = len(rows)
	}
	names := make([]string, 0, n)
	for _, row := range rows[len(rows)-n:] {
		names = append(names, row.Symbol)
	}
	return names
}
