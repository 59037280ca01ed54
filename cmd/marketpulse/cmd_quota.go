// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/MarketPulse/pkg/ux"
)

// quotaPayload mirrors the GET /v1/quota payload. Durations arrive as
// nanosecond integers, Go's default encoding for time.Duration.
type quotaPayload struct {
	Backend    string    `json:"backend"`
	Model      string    `json:"model"`
	DailyLimit int       `json:"daily_limit"`
	CallsUsed  int       `json:"calls_used"`
	ResetsAt   time.Time `json:"resets_at"`
	Throttle   struct {
		MinInterval  time.Duration `json:"min_interval"`
		MaxInFlight  int           `json:"max_in_flight"`
		InFlight     int           `json:"in_flight"`
		LastIssuedAt time.Time     `json:"last_issued_at"`
	} `json:"throttle"`
	Cache struct {
		Hits    int64         `json:"hits"`
		Misses  int64         `json:"misses"`
		Entries int           `json:"entries"`
		TTL     time.Duration `json:"ttl"`
	} `json:"cache"`
	Backoff struct {
		MaxAttempts         int     `json:"max_attempts"`
		InitialDelaySeconds float64 `json:"initial_delay_seconds"`
		MaxDelaySeconds     float64 `json:"max_delay_seconds"`
		GrowthFactor        float64 `json:"growth_factor"`
	} `json:"backoff"`
	ActiveJobs int `json:"active_jobs"`
}

func fetchQuota() quotaPayload {
	baseURL := getServiceBaseURL()

	var q quotaPayload
	if err := getJSON(fmt.Sprintf("%s/v1/quota", baseURL), &q); err != nil {
		log.Fatalf("Failed to fetch quota: %v", err)
	}
	return q
}

func runQuota(cmd *cobra.Command, args []string) {
	q := fetchQuota()

	ux.Title("AI Backend Quota")
	ux.Info(fmt.Sprintf("Backend: %s (%s)", q.Backend, q.Model))

	if q.DailyLimit > 0 {
		line := fmt.Sprintf("Calls used today: %d / %d", q.CallsUsed, q.DailyLimit)
		if q.CallsUsed >= q.DailyLimit {
			ux.Warning(line + " (limit reached)")
		} else {
			ux.Info(line)
		}
		ux.Muted(fmt.Sprintf("Counter resets at %s", q.ResetsAt.Local().Format("2006-01-02 15:04")))
	} else {
		ux.Info(fmt.Sprintf("Calls used today: %d (no daily limit)", q.CallsUsed))
	}

	ux.Info(fmt.Sprintf("Pacing: at least %s between calls, %d/%d in flight",
		q.Throttle.MinInterval, q.Throttle.InFlight, q.Throttle.MaxInFlight))
	ux.Info(fmt.Sprintf("Retries: up to %d attempts, %.0fs to %.0fs delay",
		q.Backoff.MaxAttempts, q.Backoff.InitialDelaySeconds, q.Backoff.MaxDelaySeconds))

	renderCacheStats(q)

	if q.ActiveJobs > 0 {
		ux.Info(fmt.Sprintf("Summary jobs in flight: %d", q.ActiveJobs))
	}
}

// renderCacheStats prints the cache section of a quota payload. Shared
// with the cache stats command.
func renderCacheStats(q quotaPayload) {
	lookups := q.Cache.Hits + q.Cache.Misses
	if lookups == 0 {
		ux.Info("Cache: no lookups yet")
		ux.Muted(fmt.Sprintf("Entry TTL: %s", q.Cache.TTL))
		return
	}

	rate := float64(q.Cache.Hits) / float64(lookups) * 100
	ux.Info(fmt.Sprintf("Cache: %d hits / %d misses (%.0f%% hit rate), %d entries",
		q.Cache.Hits, q.Cache.Misses, rate, q.Cache.Entries))
	ux.Muted(fmt.Sprintf("Entry TTL: %s", q.Cache.TTL))
}
