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
	"log/slog"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MarketPulse/services/analytics/datatypes"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/pipeline"
)

// RunPipeline triggers a background pipeline run.
//
// # Description
//
// The body is optional; {"fast": true} skips the AI summary stage.
// Every outcome answers 202 because the trigger itself succeeded; the
// Status field tells the caller whether a run started, another run
// holds the pipeline, or the cooldown gate refused the trigger. The
// run executes on base, not the request context, so it survives the
// client disconnecting.
func RunPipeline(base context.Context, runner *pipeline.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.PipelineRunRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}

		runID, err := runner.TriggerAsync(base, pipeline.RunOptions{
			Fast:    req.Fast,
			Trigger: observability.TriggerManual,
		})

		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			c.JSON(http.StatusAccepted, datatypes.PipelineRunResponse{
				Status: "busy",
				Detail: "a run is already in progress",
			})
		case errors.Is(err, pipeline.ErrCooldown):
			retry := int(math.Ceil(runner.CooldownRemaining().Seconds()))
			c.JSON(http.StatusAccepted, datatypes.PipelineRunResponse{
				Status:            "cooldown",
				RetryAfterSeconds: retry,
				Detail:            "pipeline finished recently",
			})
		case err != nil:
			slog.Error("Pipeline trigger failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to trigger pipeline"})
		default:
			c.JSON(http.StatusAccepted, datatypes.PipelineRunResponse{
				Status: "started",
				RunID:  runID,
			})
		}
	}
}

// PipelineStatus serves the persisted run record. A service that has
// never run reports idle.
func PipelineStatus(runner *pipeline.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, runner.Status())
	}
}
