// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// analytics service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring pipeline
// runs and AI summary generation. Metrics include:
//   - Run counters (by trigger and status)
//   - Per-stage duration histograms and error counters
//   - Summary outcome counters (fresh, cached, degraded)
//   - Narrative cache hit/miss counters and quota gauges
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "marketpulse"

// Subsystem for pipeline metrics
const pipelineSubsystem = "pipeline"

// PipelineMetrics holds all Prometheus metrics for pipeline operations.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring run health,
// stage latency, and AI quota consumption. Initialize once at startup
// via InitMetrics().
//
// # Fields
//
//   - RunsTotal: Counter of completed runs by trigger and status
//   - StageDurationSeconds: Histogram of per-stage wall time
//   - StageErrorsTotal: Counter of stage failures by stage and error type
//   - RunInProgress: Gauge that is 1 while a run holds the pipeline
//   - SummariesTotal: Counter of summary outcomes by source and result
//   - CacheLookupsTotal: Counter of narrative cache hits and misses
//   - GenerationAttemptsTotal: Counter of upstream text-generation attempts
//   - QuotaCallsUsed: Gauge of today's consumed call budget
//   - ArtifactWritesTotal: Counter of artifact persistence by name and status
//   - JobsTotal: Counter of on-demand summary jobs by outcome
//   - LastRunUnixSeconds: Gauge of the last completed run's finish time
//
// # Thread Safety
//
// All operations are thread-safe.
type PipelineMetrics struct {
	// RunsTotal counts completed pipeline runs.
	// Labels: trigger (scheduled, manual), status (success, error)
	RunsTotal *prometheus.CounterVec

	// StageDurationSeconds measures how long each stage ran.
	// Labels: stage (macro, sectors, risk, calendar, summaries)
	StageDurationSeconds *prometheus.HistogramVec

	// StageErrorsTotal counts stage failures by error type.
	// Labels: stage, error_code (fetch, compute, generation, persistence)
	StageErrorsTotal *prometheus.CounterVec

	// RunInProgress is 1 while the pipeline holds a run, else 0.
	RunInProgress prometheus.Gauge

	// SummariesTotal counts produced summaries by source and outcome.
	// Labels: source (pipeline, on_demand), outcome (fresh, cached, degraded)
	SummariesTotal *prometheus.CounterVec

	// CacheLookupsTotal counts narrative cache lookups.
	// Labels: result (hit, miss)
	CacheLookupsTotal *prometheus.CounterVec

	// GenerationAttemptsTotal counts calls issued to the text backend,
	// including retries.
	GenerationAttemptsTotal prometheus.Counter

	// QuotaCallsUsed tracks today's consumed daily call budget.
	QuotaCallsUsed prometheus.Gauge

	// ArtifactWritesTotal counts artifact persistence attempts.
	// Labels: artifact, status (success, error)
	ArtifactWritesTotal *prometheus.CounterVec

	// JobsTotal counts on-demand summary jobs.
	// Labels: status (accepted, completed, failed)
	JobsTotal *prometheus.CounterVec

	// LastRunUnixSeconds is the finish time of the last completed run.
	LastRunUnixSeconds prometheus.Gauge
}

// DefaultMetrics is the singleton instance of PipelineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after Prometheus registry is available.
//
// # Outputs
//
//   - *PipelineMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by trigger and status",
			},
			[]string{"trigger", "status"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Wall time per pipeline stage in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),

		StageErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "stage_errors_total",
				Help:      "Total stage failures by stage and error type",
			},
			[]string{"stage", "error_code"},
		),

		RunInProgress: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "run_in_progress",
				Help:      "1 while a pipeline run is executing, else 0",
			},
		),

		SummariesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "summaries_total",
				Help:      "Total AI summaries produced by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		CacheLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "cache_lookups_total",
				Help:      "Narrative cache lookups by result",
			},
			[]string{"result"},
		),

		GenerationAttemptsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "generation_attempts_total",
				Help:      "Calls issued to the text-generation backend, retries included",
			},
		),

		QuotaCallsUsed: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "quota_calls_used",
				Help:      "Consumed share of today's text-generation call budget",
			},
		),

		ArtifactWritesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "artifact_writes_total",
				Help:      "Artifact persistence attempts by artifact and status",
			},
			[]string{"artifact", "status"},
		),

		JobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "jobs_total",
				Help:      "On-demand summary jobs by outcome",
			},
			[]string{"status"},
		),

		LastRunUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "last_run_unix_seconds",
				Help:      "Finish time of the last completed run as a Unix timestamp",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeFetch indicates a market data download failure.
	ErrorCodeFetch ErrorCode = "fetch"

	// ErrorCodeCompute indicates a stage computation failure.
	ErrorCodeCompute ErrorCode = "compute"

	// ErrorCodeGeneration indicates the text backend failed after retries.
	ErrorCodeGeneration ErrorCode = "generation"

	// ErrorCodePersistence indicates an artifact or status write failure.
	ErrorCodePersistence ErrorCode = "persistence"

	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeTimeout indicates operation timeout.
	ErrorCodeTimeout ErrorCode = "timeout"
)

// =============================================================================
// Label Values
// =============================================================================

// Trigger labels how a run was started.
type Trigger string

const (
	// TriggerScheduled marks runs started by the interval scheduler.
	TriggerScheduled Trigger = "scheduled"

	// TriggerManual marks runs started by the run endpoint or CLI.
	TriggerManual Trigger = "manual"
)

// SummarySource labels which path produced a summary.
type SummarySource string

const (
	// SourcePipeline marks summaries produced during a pipeline run.
	SourcePipeline SummarySource = "pipeline"

	// SourceOnDemand marks summaries produced by a submitted job.
	SourceOnDemand SummarySource = "on_demand"
)

// SummaryOutcome labels how a summary was satisfied.
type SummaryOutcome string

const (
	// OutcomeFresh marks a summary generated by a backend call.
	OutcomeFresh SummaryOutcome = "fresh"

	// OutcomeCached marks a summary served from the narrative cache.
	OutcomeCached SummaryOutcome = "cached"

	// OutcomeDegraded marks a placeholder written after generation failed.
	OutcomeDegraded SummaryOutcome = "degraded"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRun records a finished pipeline run.
//
// # Inputs
//
//   - trigger: How the run was started.
//   - success: Whether every stage completed.
func (m *PipelineMetrics) RecordRun(trigger Trigger, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(string(trigger), status).Inc()
}

// RecordStageDuration records one stage's wall time.
//
// # Inputs
//
//   - stage: The stage name.
//   - d: How long the stage ran.
func (m *PipelineMetrics) RecordStageDuration(stage string, d time.Duration) {
	m.StageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordStageError records a stage failure.
//
// # Inputs
//
//   - stage: The stage that failed.
//   - code: The error type code.
func (m *PipelineMetrics) RecordStageError(stage string, code ErrorCode) {
	m.StageErrorsTotal.WithLabelValues(stage, string(code)).Inc()
}

// RunStarted flips the in-progress gauge on.
func (m *PipelineMetrics) RunStarted() {
	m.RunInProgress.Set(1)
}

// RunEnded flips the in-progress gauge off and stamps the finish time.
func (m *PipelineMetrics) RunEnded(finished time.Time) {
	m.RunInProgress.Set(0)
	m.LastRunUnixSeconds.Set(float64(finished.Unix()))
}

// RecordSummary records one produced summary.
//
// # Inputs
//
//   - source: Which path produced it.
//   - outcome: fresh, cached, or degraded.
func (m *PipelineMetrics) RecordSummary(source SummarySource, outcome SummaryOutcome) {
	m.SummariesTotal.WithLabelValues(string(source), string(outcome)).Inc()
}

// RecordCacheLookup records a narrative cache lookup.
//
// # Inputs
//
//   - hit: Whether the fingerprint was found.
func (m *PipelineMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// AddGenerationAttempts adds backend attempts from a finished call.
//
// # Inputs
//
//   - n: Attempt count, retries included.
func (m *PipelineMetrics) AddGenerationAttempts(n int) {
	if n > 0 {
		m.GenerationAttemptsTotal.Add(float64(n))
	}
}

// SetQuotaUsed updates the consumed-budget gauge.
//
// # Inputs
//
//   - used: Calls consumed so far today.
func (m *PipelineMetrics) SetQuotaUsed(used int) {
	m.QuotaCallsUsed.Set(float64(used))
}

// RecordArtifactWrite records an artifact persistence attempt.
//
// # Inputs
//
//   - artifact: The artifact file name.
//   - success: Whether the write landed.
func (m *PipelineMetrics) RecordArtifactWrite(artifact string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ArtifactWritesTotal.WithLabelValues(artifact, status).Inc()
}

// RecordJob records an on-demand job outcome.
//
// # Inputs
//
//   - status: accepted, completed, or failed.
func (m *PipelineMetrics) RecordJob(status string) {
	m.JobsTotal.WithLabelValues(status).Inc()
}
