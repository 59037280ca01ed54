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
	"github.com/AleutianAI/MarketPulse/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	fastRun          bool   // pipeline run: skip the AI summary stage
	purgeYes         bool   // cache purge: skip the confirmation prompt
	purgeLocal       bool   // cache purge: operate on the local cache directory
	quoteRange       string // quote: Yahoo range token (1d/5d/1mo/3mo/6mo/1y)
	publishBucket    string // artifacts publish: GCS bucket override
	publishPrefix    string // artifacts publish: GCS object prefix override
	personalityLevel string // UX personality level (rich/plain/machine)

	rootCmd = &cobra.Command{
		Use:   "marketpulse",
		Short: "A cli to operate the MarketPulse analytics service",
		Long: `MarketPulse is a tool for operating the market analytics daemon:
				triggering and watching pipeline runs, requesting on-demand ticker
				summaries, and inspecting the AI call quota and response cache.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Status ---
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the pipeline's last run state",
		Run:   runStatus, // Defined in cmd_status.go
	}

	// --- Pipeline ---
	pipelineCmd = &cobra.Command{
		Use:   "pipeline",
		Short: "Trigger and observe analytics pipeline runs",
	}
	pipelineRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Trigger a pipeline run on the service",
		Run:   runPipelineRun, // Defined in cmd_pipeline.go
	}
	pipelineWatchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow a pipeline run live until it finishes",
		Run:   runPipelineWatch, // Defined in cmd_pipeline.go
	}

	// --- Summaries ---
	summarizeCmd = &cobra.Command{
		Use:   "summarize [tickers]",
		Short: "Request AI narrative summaries for specific tickers",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSummarize, // Defined in cmd_summarize.go
	}

	// --- Quotes ---
	quoteCmd = &cobra.Command{
		Use:   "quote [ticker]",
		Short: "Fetch an on-demand price series for one ticker",
		Args:  cobra.ExactArgs(1),
		Run:   runQuote, // Defined in cmd_quote.go
	}

	// --- Quota ---
	quotaCmd = &cobra.Command{
		Use:   "quota",
		Short: "Show AI backend spend, pacing, and cache effectiveness",
		Run:   runQuota, // Defined in cmd_quota.go
	}

	// --- Cache ---
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the narrative response cache",
	}
	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache hit/miss counters and entry count",
		Run:   runCacheStats, // Defined in cmd_cache.go
	}
	cachePurgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "DANGER: Delete every cached narrative from the local cache directory",
		Long: `Drops all entries from the narrative cache on local disk. The next
				pipeline run regenerates summaries through the AI backend, which
				spends quota. The service must not be running: it holds an
				exclusive lock on the cache directory.`,
		Run: runCachePurge, // Defined in cmd_cache.go
	}

	// --- Artifacts ---
	artifactsCmd = &cobra.Command{
		Use:   "artifacts",
		Short: "List and publish the service's analysis artifacts",
	}
	artifactsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List generated artifact documents",
		Run:   runArtifactsList, // Defined in cmd_artifacts.go
	}
	artifactsPublishCmd = &cobra.Command{
		Use:   "publish",
		Short: "Upload the local artifact documents to Google Cloud Storage",
		Run:   runArtifactsPublish, // Defined in cmd_artifacts.go
	}
)

// init runs when the Go program starts
func init() {
	// Global UX personality flag
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: rich (default), plain, or machine (scripting)")

	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)
	pipelineCmd.AddCommand(pipelineWatchCmd)
	pipelineRunCmd.Flags().BoolVar(&fastRun, "fast", false,
		"Skip the AI summary stage (no backend calls)")

	rootCmd.AddCommand(summarizeCmd)

	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().StringVar(&quoteRange, "range", "3mo",
		"Bar history range: 1d, 5d, 1mo, 3mo, 6mo, or 1y")

	rootCmd.AddCommand(quotaCmd)

	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	cachePurgeCmd.Flags().BoolVar(&purgeYes, "yes", false,
		"Skip the confirmation prompt")
	cachePurgeCmd.Flags().BoolVar(&purgeLocal, "local", false,
		"Required: purge operates on the local cache directory from the CLI config")

	rootCmd.AddCommand(artifactsCmd)
	artifactsCmd.AddCommand(artifactsListCmd)
	artifactsCmd.AddCommand(artifactsPublishCmd)
	artifactsPublishCmd.Flags().StringVar(&publishBucket, "bucket", "",
		"GCS bucket name (defaults to gcs.bucket from the CLI config)")
	artifactsPublishCmd.Flags().StringVar(&publishPrefix, "prefix", "",
		"GCS object prefix (defaults to gcs.prefix from the CLI config)")
}
