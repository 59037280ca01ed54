// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MarketPulse/services/analytics/datatypes"
	"github.com/AleutianAI/MarketPulse/services/analytics/jobs"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/textgen"
)

// QuotaSource reports the text client's spend and pacing. Satisfied by
// textgen.Client.
type QuotaSource interface {
	Quota() (textgen.QuotaSnapshot, error)
	BackoffConfig() textgen.BackoffConfig
}

// GetQuota serves the generation budget view: daily spend, throttle
// state, cache effectiveness, retry policy, and in-flight jobs.
func GetQuota(source QuotaSource, manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := source.Quota()
		if err != nil {
			slog.Error("Quota snapshot failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "quota snapshot failed"})
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.SetQuotaUsed(snap.CallsUsed)
		}

		c.JSON(http.StatusOK, datatypes.QuotaResponse{
			QuotaSnapshot: snap,
			Backoff:       datatypes.BackoffSettingsFrom(source.BackoffConfig()),
			ActiveJobs:    manager.Active(),
		})
	}
}
