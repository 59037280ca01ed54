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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MarketPulse/pkg/validation"
	"github.com/AleutianAI/MarketPulse/services/marketdata"
)

// chartCacheTTL keeps on-demand quote responses warm. Daily bars only
// change once a day; an hour matches the pipeline's own refresh rhythm.
const chartCacheTTL = time.Hour

// allowedRanges whitelists the Yahoo range tokens the endpoint accepts.
var allowedRanges = map[string]bool{
	"1d":  true,
	"5d":  true,
	"1mo": true,
	"3mo": true,
	"6mo": true,
	"1y":  true,
}

type chartEntry struct {
	series   *marketdata.Series
	storedAt time.Time
}

// QuoteHandler serves on-demand quote lookups with a TTL'd in-memory
// cache, so a dashboard refreshing one ticker doesn't hammer the
// upstream API.
//
// # Thread Safety
//
// Safe for concurrent use.
type QuoteHandler struct {
	data *marketdata.Client
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]chartEntry
}

// NewQuoteHandler wires the quote endpoint's handler state.
func NewQuoteHandler(data *marketdata.Client) *QuoteHandler {
	return &QuoteHandler{
		data:    data,
		ttl:     chartCacheTTL,
		now:     time.Now,
		entries: make(map[string]chartEntry),
	}
}

// Get serves GET /v1/quotes/:ticker?range=3mo.
//
// # Description
//
// Unlike the summary endpoint, the ticker here is validated strictly:
// a malformed symbol is a 400, not a sanitize-and-continue. A fetch
// that answers without data is a 404; an unreachable upstream is a 502.
func (h *QuoteHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
		if err := validation.ValidateTicker(ticker); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rng := c.DefaultQuery("range", "3mo")
		if !allowedRanges[rng] {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported range %q", rng)})
			return
		}

		key := ticker + "|" + rng
		if series, ok := h.cached(key); ok {
			c.JSON(http.StatusOK, gin.H{"ticker": ticker, "range": rng, "cached": true, "series": series})
			return
		}

		series, err := h.data.FetchChart(c.Request.Context(), ticker, marketdata.ChartQuery{Range: rng})
		if err != nil {
			if errors.Is(err, marketdata.ErrNoData) {
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no data for %s", ticker)})
				return
			}
			slog.Warn("Quote fetch failed", "ticker", ticker, "range", rng, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "quote source unavailable"})
			return
		}

		h.put(key, series)
		c.JSON(http.StatusOK, gin.H{"ticker": ticker, "range": rng, "cached": false, "series": series})
	}
}

func (h *QuoteHandler) cached(key string) (*marketdata.Series, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.entries[key]
	if !ok {
		return nil, false
	}
	if h.now().Sub(entry.storedAt) > h.ttl {
		delete(h.entries, key)
		return nil, false
	}
	return entry.series, true
}

func (h *QuoteHandler) put(key string, series *marketdata.Series) {
	h.mu.Lock()
	h.entries[key] = chartEntry{series: series, storedAt: h.now()}
	h.mu.Unlock()
}
