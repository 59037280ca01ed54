// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stages implements the analytics pipeline stages: macro
// indicators, sector heatmap, portfolio risk, the weekly calendar, and
// AI narrative summaries. Each stage fetches or derives its inputs,
// computes a small documented statistic set, and writes exactly one
// JSON artifact. Stage math is intentionally simple; the interesting
// behavior lives in the orchestration around it.
package stages

import (
	"math"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
)

var tracer = otel.Tracer("marketpulse.stages")

// round2 rounds to two decimals for artifact values.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// round4 keeps four decimals for correlation values.
func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// Metrics may be nil in tests; these guards keep call sites short.

func recordWrite(m *observability.PipelineMetrics, artifact string, ok bool) {
	if m != nil {
		m.RecordArtifactWrite(artifact, ok)
	}
}

func recordSummary(m *observability.PipelineMetrics, source observability.SummarySource, outcome observability.SummaryOutcome) {
	if m != nil {
		m.RecordSummary(source, outcome)
	}
}

func recordAttempts(m *observability.PipelineMetrics, n int) {
	if m != nil {
		m.AddGenerationAttempts(n)
	}
}

func recordCacheLookup(m *observability.PipelineMetrics, hit bool) {
	if m != nil {
		m.RecordCacheLookup(hit)
	}
}
