// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes assembles the analytics API route table.
package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/analytics/handlers"
	"github.com/AleutianAI/MarketPulse/services/analytics/jobs"
	"github.com/AleutianAI/MarketPulse/services/analytics/pipeline"
)

// SetupRoutes registers every endpoint on the router.
//
// base is the service lifecycle context; background work triggered by
// a request (pipeline runs, summary jobs) executes on it rather than
// on the request context, so it survives client disconnects.
func SetupRoutes(
	base context.Context,
	router *gin.Engine,
	store *artifacts.Store,
	watcher *artifacts.Watcher,
	runner *pipeline.Runner,
	manager *jobs.Manager,
	quota handlers.QuotaSource,
	quotes *handlers.QuoteHandler,
) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/artifacts", handlers.ListArtifacts(watcher))
		v1.GET("/artifacts/:name", handlers.GetArtifact(store))

		v1.POST("/pipeline/run", handlers.RunPipeline(base, runner))
		v1.GET("/pipeline/status", handlers.PipelineStatus(runner))

		v1.POST("/summaries", handlers.SubmitSummaries(base, manager))
		v1.GET("/quota", handlers.GetQuota(quota, manager))

		v1.GET("/quotes/:ticker", quotes.Get())
	}
}
