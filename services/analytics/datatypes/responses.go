// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"time"

	"github.com/AleutianAI/MarketPulse/services/textgen"
)

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status  string    `json:"status"`
	Service string    `json:"service"`
	Time    time.Time `json:"time"`
}

// PipelineRunResponse acknowledges a manual pipeline trigger.
//
// Status is one of started, busy, or cooldown. RetryAfterSeconds is
// set only for cooldown refusals.
type PipelineRunResponse struct {
	Status            string `json:"status"`
	RunID             string `json:"run_id,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	Detail            string `json:"detail,omitempty"`
}

// BackoffSettings mirrors the retry policy in the quota payload.
type BackoffSettings struct {
	MaxAttempts         int     `json:"max_attempts"`
	InitialDelaySeconds float64 `json:"initial_delay_seconds"`
	MaxDelaySeconds     float64 `json:"max_delay_seconds"`
	GrowthFactor        float64 `json:"growth_factor"`
}

// BackoffSettingsFrom converts the internal retry config to its quota
// payload shape.
func BackoffSettingsFrom(cfg textgen.BackoffConfig) BackoffSettings {
	return BackoffSettings{
		MaxAttempts:         cfg.MaxAttempts,
		InitialDelaySeconds: cfg.InitialDelay.Seconds(),
		MaxDelaySeconds:     cfg.MaxDelay.Seconds(),
		GrowthFactor:        cfg.GrowthFactor,
	}
}

// QuotaResponse is the GET /v1/quota payload: the text client's spend,
// pacing, and cache snapshot plus the retry policy and the number of
// background summary jobs in flight.
type QuotaResponse struct {
	textgen.QuotaSnapshot
	Backoff    BackoffSettings `json:"backoff"`
	ActiveJobs int             `json:"active_jobs"`
}
