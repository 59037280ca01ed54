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
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MarketPulse/services/analytics/datatypes"
	"github.com/AleutianAI/MarketPulse/services/analytics/jobs"
)

// SubmitSummaries accepts an on-demand summary job.
//
// # Description
//
// Tickers are sanitized rather than validated: dirty-but-salvageable
// inputs are accepted in cleaned form and the rest are echoed back in
// the 202 ack's rejected list. Only a submission in which nothing
// survives is a 400. The job executes on base so it outlives the
// request.
func SubmitSummaries(base context.Context, manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SummaryJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		ack, err := manager.Submit(base, req.Tickers)
		if errors.Is(err, jobs.ErrNoValidTickers) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":    "no valid tickers in request",
				"rejected": ack.Rejected,
			})
			return
		}

		c.JSON(http.StatusAccepted, ack)
	}
}
