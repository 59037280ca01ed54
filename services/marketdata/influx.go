// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Recorder mirrors fetched bars into InfluxDB for long-term retention.
// The analytics pipeline works entirely from in-process series; the
// recorder is an optional sink on the side.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewRecorderFromEnv builds a recorder from INFLUXDB_URL, INFLUXDB_TOKEN,
// INFLUXDB_ORG and INFLUXDB_BUCKET. It returns nil when INFLUXDB_URL is
// unset: history retention is opt-in.
func NewRecorderFromEnv() *Recorder {
	influxURL := os.Getenv("INFLUXDB_URL")
	if influxURL == "" {
		return nil
	}

	token := os.Getenv("INFLUXDB_TOKEN")
	if token == "" {
		slog.Warn("INFLUXDB_URL is set but INFLUXDB_TOKEN is empty, skipping price retention")
		return nil
	}

	org := os.Getenv("INFLUXDB_ORG")
	if org == "" {
		org = "aleutian-finance"
	}
	bucket := os.Getenv("INFLUXDB_BUCKET")
	if bucket == "" {
		bucket = "financial-data"
	}

	client := influxdb2.NewClient(influxURL, token)
	return &Recorder{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		org:      org,
		bucket:   bucket,
	}
}

// Ping checks the InfluxDB health endpoint once. Callers treat a
// failure as a warning, not a boot error.
func (r *Recorder) Ping(ctx context.Context) error {
	health, err := r.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("InfluxDB health check failed: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("InfluxDB is not healthy: %s", health.Status)
	}
	return nil
}

// WriteSeries persists every bar of the series as stock_prices points.
func (r *Recorder) WriteSeries(ctx context.Context, s *Series) error {
	if len(s.Bars) == 0 {
		return nil
	}

	// Crypto pairs are tagged in exchange form (BTC-USD -> BTCUSDT).
	tag := strings.ReplaceAll(s.Symbol, "-USD", "USDT")

	points := make([]*write.Point, 0, len(s.Bars))
	for _, bar := range s.Bars {
		p := influxdb2.NewPoint(
			"stock_prices",
			map[string]string{"ticker": tag},
			map[string]interface{}{
				"open":      bar.Open,
				"high":      bar.High,
				"low":       bar.Low,
				"close":     bar.Close,
				"adj_close": bar.AdjClose,
				"volume":    bar.Volume,
			},
			bar.Time,
		)
		points = append(points, p)
	}

	if err := r.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write points for %s: %w", s.Symbol, err)
	}
	return nil
}

// Close releases the underlying HTTP resources.
func (r *Recorder) Close() {
	r.client.Close()
}
