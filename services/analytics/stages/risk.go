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
	"math"
	"sort"
	"time"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/pipeline"
	"github.com/AleutianAI/MarketPulse/services/marketdata"
)

// highCorrelationThreshold flags pairs that move together closely
// enough to undermine diversification.
const highCorrelationThreshold = 0.75

// TickerRisk is one portfolio member's risk entry.
type TickerRisk struct {
	AnnualizedVolatilityPct float64 `json:"annualized_volatility_pct"`
	MaxDrawdownPct          float64 `json:"max_drawdown_pct"`
	CorrelationToSPY        float64 `json:"correlation_to_spy"`
}

// CorrelationPair names two tickers whose return correlation exceeds
// the threshold.
type CorrelationPair struct {
	Tickers     []string `json:"tickers"`
	Correlation float64  `json:"correlation"`
}

// RiskArtifact is the document written to portfolio_risk.json.
type RiskArtifact struct {
	Timestamp              time.Time                     `json:"timestamp"`
	Portfolio              []string                      `json:"portfolio"`
	PortfolioVolatilityPct float64                       `json:"portfolio_volatility_pct"`
	DiversificationStatus  string                        `json:"diversification_status"`
	HighCorrelations       []CorrelationPair             `json:"high_correlations"`
	Tickers                map[string]TickerRisk         `json:"tickers"`
	CorrelationMatrix      map[string]map[string]float64 `json:"correlation_matrix"`
}

// RiskStage computes per-ticker volatility and drawdown, the pairwise
// correlation matrix, and an equally-weighted portfolio volatility for
// the configured holdings.
type RiskStage struct {
	data      *marketdata.Client
	store     *artifacts.Store
	metrics   *observability.PipelineMetrics
	recorder  *marketdata.Recorder
	portfolio []string
	now       func() time.Time
}

var _ pipeline.Stage = (*RiskStage)(nil)

// NewRiskStage wires the portfolio risk stage. recorder may be nil;
// when set, fetched bars are mirrored to InfluxDB on a best-effort
// basis.
func NewRiskStage(data *marketdata.Client, store *artifacts.Store, metrics *observability.PipelineMetrics, recorder *marketdata.Recorder, portfolio []string) *RiskStage {
	return &RiskStage{
		data:      data,
		store:     store,
		metrics:   metrics,
		recorder:  recorder,
		portfolio: portfolio,
		now:       time.Now,
	}
}

func (s *RiskStage) Name() string         { return "risk" }
func (s *RiskStage) Description() string  { return "Analyzing portfolio risk" }
func (s *RiskStage) SkipInFastMode() bool { return false }

// Run fetches six months of history for the portfolio plus SPY,
// computes the statistics, and persists the artifact. Tickers whose
// fetch failed are omitted; the stage fails only when fewer than two
// return series survive.
func (s *RiskStage) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RiskStage.Run")
	defer span.End()

	if len(s.portfolio) == 0 {
		return pipeline.NewStageError(observability.ErrorCodeValidation,
			fmt.Errorf("portfolio is empty"))
	}

	symbols := append([]string{}, s.portfolio...)
	symbols = append(symbols, benchmarkSymbol)

	// Six months gives the correlation estimate something to chew on.
	results := s.data.FetchMany(ctx, symbols, marketdata.ChartQuery{Range: "6mo"})

	returns := make(map[string][]float64, len(s.portfolio))
	risks := make(map[string]TickerRisk, len(s.portfolio))

	var spyReturns []float64
	if res := results[benchmarkSymbol]; res.Err == nil && res.Series != nil {
		spyReturns = res.Series.DailyReturns()
	}

	for _, ticker := range s.portfolio {
		res := results[ticker]
		if res.Err != nil || res.Series == nil {
			slog.Warn("Portfolio ticker omitted from risk analysis", "ticker", ticker, "error", res.Err)
			continue
		}

		s.recordBars(ctx, res.Series)

		vol, okVol := res.Series.AnnualizedVolatility()
		dd, okDD := res.Series.MaxDrawdown()
		if !okVol || !okDD {
			slog.Warn("Portfolio ticker history too short", "ticker", ticker)
			continue
		}

		r := res.Series.DailyReturns()
		returns[ticker] = r

		corrSPY := 0.0
		if c, ok := marketdata.Correlation(r, spyReturns); ok {
			corrSPY = c
		}

		risks[ticker] = TickerRisk{
			AnnualizedVolatilityPct: round2(vol),
			MaxDrawdownPct:          round2(dd),
			CorrelationToSPY:        round4(corrSPY),
		}
	}

	if len(returns) < 2 {
		return pipeline.NewStageError(observability.ErrorCodeCompute,
			fmt.Errorf("risk analysis needs at least two fetchable tickers, got %d", len(returns)))
	}

	tickers := make([]string, 0, len(returns))
	for ticker := range returns {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	matrix, highPairs := correlationMatrix(tickers, returns)

	status := "Concentrated"
	if float64(len(highPairs)) < float64(len(tickers))/2 {
		status = "Diversified"
	}

	doc := RiskArtifact{
		Timestamp:              s.now(),
		Portfolio:              tickers,
		PortfolioVolatilityPct: round2(portfolioVolatility(tickers, returns)),
		DiversificationStatus:  status,
		HighCorrelations:       highPairs,
		Tickers:                risks,
		CorrelationMatrix:      matrix,
	}

	if err := s.store.Save(artifacts.FileRisk, doc); err != nil {
		recordWrite(s.metrics, artifacts.FileRisk, false)
		return pipeline.NewStageError(observability.ErrorCodePersistence, err)
	}
	recordWrite(s.metrics, artifacts.FileRisk, true)

	slog.Info("Portfolio risk saved",
		"tickers", len(risks),
		"portfolio_vol_pct", doc.PortfolioVolatilityPct,
		"status", status,
	)
	return nil
}

// recordBars mirrors a fetched series to InfluxDB when a recorder is
// configured. Failures log and continue; persistence is best-effort.
func (s *RiskStage) recordBars(ctx context.Context, series *marketdata.Series) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.WriteSeries(ctx, series); err != nil {
		slog.Warn("InfluxDB write failed", "symbol", series.Symbol, "error", err)
	}
}

// correlationMatrix computes the pairwise Pearson matrix and collects
// the pairs above the threshold.
func correlationMatrix(tickers []string, returns map[string][]float64) (map[string]map[string]float64, []CorrelationPair) {
	matrix := make(map[string]map[string]float64, len(tickers))
	for _, t := range tickers {
		matrix[t] = make(map[string]float64, len(tickers))
		matrix[t][t] = 1
	}

	var highPairs []CorrelationPair
	for i := 0; i < len(tickers); i++ {
		for j := i + 1; j < len(tickers); j++ {
			a, b := tickers[i], tickers[j]
			c, ok := marketdata.Correlation(returns[a], returns[b])
			if !ok {
				continue
			}
			c = round4(c)
			matrix[a][b] = c
			matrix[b][a] = c
			if c > highCorrelationThreshold {
				highPairs = append(highPairs, CorrelationPair{
					Tickers:     []string{a, b},
					Correlation: round2(c),
				})
			}
		}
	}
	return matrix, highPairs
}

// portfolioVolatility annualizes the standard deviation of the
// equally-weighted daily portfolio return, as a percent. Return
// series are aligned on their trailing overlap.
func portfolioVolatility(tickers []string, returns map[string][]float64) float64 {
	minLen := -1
	for _, t := range tickers {
		if minLen == -1 || len(returns[t]) < minLen {
			minLen = len(returns[t])
		}
	}
	if minLen < 2 {
		return 0
	}

	daily := make([]float64, minLen)
	for _, t := range tickers {
		r := returns[t]
		r = r[len(r)-minLen:]
		for i, v := range r {
			daily[i] += v / float64(len(tickers))
		}
	}

	m := 0.0
	for _, v := range daily {
		m += v
	}
	m /= float64(len(daily))

	var sq float64
	for _, v := range daily {
		d := v - m
		sq += d * d
	}
	sd := math.Sqrt(sq / float64(len(daily)-1))
	return sd * math.Sqrt(252) * 100
}
