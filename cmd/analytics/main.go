// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command analytics starts the MarketPulse analytics HTTP server.
//
// This is the main entry point for the containerized analytics service.
// It reads configuration from environment variables and starts the
// pipeline scheduler plus the HTTP API.
//
// # Environment Variables
//
//   - ANALYTICS_PORT: HTTP server port (default: 12310)
//   - MARKETPULSE_LOG_DIR: enables file logging to this directory (default: stderr only)
//   - MARKETPULSE_DATA_DIR: artifacts + status directory (default: ./data)
//   - MARKETPULSE_CACHE_DIR: badger response cache directory (default: <data>/narrative_cache)
//   - MARKETPULSE_RUN_INTERVAL: scheduler period (default: 1h)
//   - MARKETPULSE_RUN_COOLDOWN: manual trigger cooldown (default: 60s)
//   - MARKETPULSE_FAST_MODE: scheduled runs skip the AI stage (default: false)
//   - MARKETPULSE_RUN_ON_START: run immediately on boot (default: true)
//   - MARKETPULSE_SUMMARY_TTL: AI response cache TTL (default: 24h)
//   - MARKETPULSE_MIN_CALL_INTERVAL: AI call spacing (default: 6s)
//   - MARKETPULSE_MAX_INFLIGHT: concurrent AI calls (default: 1)
//   - MARKETPULSE_DAILY_CALL_LIMIT: AI calls per UTC day (default: 1000)
//   - MARKETPULSE_PORTFOLIO: comma-separated tickers (default: AAPL,MSFT,GOOGL,AMZN,NVDA)
//   - MARKETPULSE_SUMMARY_TOP_N: summaries per run (default: 5)
//   - TEXTGEN_BACKEND: openai or ollama (default: openai)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: stdout tracing)
//   - INFLUXDB_URL / INFLUXDB_TOKEN / INFLUXDB_ORG / INFLUXDB_BUCKET: optional bar retention
//
// # Usage
//
//	# Build
//	go build -o analytics ./cmd/analytics
//
//	# Run
//	./analytics
//
//	# Or via container
//	podman-compose up analytics
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/MarketPulse/pkg/logging"
	"github.com/AleutianAI/MarketPulse/services/analytics"
)

func main() {
	// Setup structured logging. MARKETPULSE_LOG_DIR additionally enables
	// file logging for unattended deployments.
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "analytics",
		JSON:    true,
		LogDir:  os.Getenv("MARKETPULSE_LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := analytics.Config{
		Port:            getEnvInt("ANALYTICS_PORT", 12310),
		DataDir:         getEnvString("MARKETPULSE_DATA_DIR", "./data"),
		CacheDir:        os.Getenv("MARKETPULSE_CACHE_DIR"),
		RunInterval:     getEnvDuration("MARKETPULSE_RUN_INTERVAL", 1*time.Hour),
		RunCooldown:     getEnvDuration("MARKETPULSE_RUN_COOLDOWN", 60*time.Second),
		FastMode:        getEnvBool("MARKETPULSE_FAST_MODE", false),
		SkipInitialRun:  !getEnvBool("MARKETPULSE_RUN_ON_START", true),
		SummaryTTL:      getEnvDuration("MARKETPULSE_SUMMARY_TTL", 24*time.Hour),
		MinCallInterval: getEnvDuration("MARKETPULSE_MIN_CALL_INTERVAL", 6*time.Second),
		MaxInFlight:     getEnvInt("MARKETPULSE_MAX_INFLIGHT", 1),
		DailyCallLimit:  getEnvInt("MARKETPULSE_DAILY_CALL_LIMIT", 1000),
		Portfolio:       getEnvList("MARKETPULSE_PORTFOLIO", nil),
		SummaryTopN:     getEnvInt("MARKETPULSE_SUMMARY_TOP_N", 5),
		OTelEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	slog.Info("Starting analytics",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"run_interval", cfg.RunInterval.String(),
		"fast_mode", cfg.FastMode,
	)

	svc, err := analytics.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create analytics service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Analytics service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a
// default. Accepts anything time.ParseDuration does ("90s", "1h30m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("Ignoring unparseable duration", "var", key, "value", value)
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		slog.Warn("Ignoring unparseable bool", "var", key, "value", value)
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable, trimming
// whitespace and dropping empty elements.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
