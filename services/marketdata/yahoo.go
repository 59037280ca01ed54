// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package marketdata fetches daily price history from the Yahoo Finance
// chart API and provides the series math the analytics stages run on it.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/AleutianAI/MarketPulse/pkg/validation"
)

const (
	// numWorkers is the number of parallel fetches per batch request.
	numWorkers = 8

	defaultBaseURL = "https://query1.finance.yahoo.com"

	// Yahoo rejects requests without a browser-looking agent.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// ErrNoData indicates the chart API answered but carried no usable bars.
var ErrNoData = errors.New("no chart data")

// HTTPClient interface allows injecting mock HTTP clients for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches price history from the Yahoo Finance v8 chart API.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	httpClient HTTPClient
	baseURL    string
}

// NewClient returns a client with a 30s transport timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

// NewClientWith returns a client with a custom transport and base URL.
// Used by tests to point at a stub server.
func NewClientWith(httpClient HTTPClient, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// ChartQuery selects the window and resolution of a fetch.
type ChartQuery struct {
	// Range is a Yahoo range token ("5d", "1mo", "3mo", "6mo", "1y").
	// Used when Start is zero.
	Range string

	// Start and End bound the window explicitly when Start is non-zero.
	Start time.Time
	End   time.Time

	// Interval is the bar width ("1d", "1wk", "1mo"). Default: "1d".
	Interval string
}

// --- Yahoo Finance structs ---

type yahooChartResponse struct {
	Chart struct {
		Result []yahooResult `json:"result"`
		Error  interface{}   `json:"error"`
	} `json:"chart"`
}

type yahooResult struct {
	Meta       yahooMeta       `json:"meta"`
	Timestamp  []int64         `json:"timestamp"`
	Indicators yahooIndicators `json:"indicators"`
}

type yahooMeta struct {
	Currency string `json:"currency"`
	Symbol   string `json:"symbol"`
}

type yahooIndicators struct {
	Quote []struct {
		Open   []float64 `json:"open"`
		High   []float64 `json:"high"`
		Low    []float64 `json:"low"`
		Close  []float64 `json:"close"`
		Volume []int64   `json:"volume"`
	} `json:"quote"`
	AdjClose []struct {
		AdjClose []float64 `json:"adjclose"`
	} `json:"adjclose"`
}

// FetchChart downloads one symbol's bar history.
//
// Outputs:
//   - *Series: Bars in ascending time order.
//   - error: ErrNoData when the API answers without bars, otherwise the
//     transport or decode failure.
func (c *Client) FetchChart(ctx context.Context, symbol string, q ChartQuery) (*Series, error) {
	if err := validation.ValidateInstrument(symbol); err != nil {
		return nil, fmt.Errorf("invalid symbol %q: %w", symbol, err)
	}

	interval := q.Interval
	if interval == "" {
		interval = "1d"
	}

	params := url.Values{}
	params.Set("interval", interval)
	params.Set("events", "history")
	if q.Start.IsZero() {
		rng := q.Range
		if rng == "" {
			rng = "3mo"
		}
		params.Set("range", rng)
	} else {
		end := q.End
		if end.IsZero() {
			end = time.Now()
		}
		params.Set("period1", strconv.FormatInt(q.Start.Unix(), 10))
		params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	}

	chartURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", chartURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Yahoo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Yahoo API returned status %s for %s", resp.Status, symbol)
	}

	var chartData yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartData); err != nil {
		return nil, fmt.Errorf("failed to decode Yahoo JSON: %w", err)
	}

	if chartData.Chart.Error != nil {
		return nil, fmt.Errorf("Yahoo API error for %s: %v", symbol, chartData.Chart.Error)
	}
	if len(chartData.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: no results for %s", ErrNoData, symbol)
	}

	res := chartData.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: incomplete indicators for %s", ErrNoData, symbol)
	}

	quoteData := res.Indicators.Quote[0]
	var adjCloseData []float64
	if len(res.Indicators.AdjClose) > 0 {
		adjCloseData = res.Indicators.AdjClose[0].AdjClose
	}

	series := &Series{
		Symbol:   symbol,
		Currency: res.Meta.Currency,
		Bars:     make([]Bar, 0, len(res.Timestamp)),
	}

	for i, ts := range res.Timestamp {
		if len(quoteData.Close) <= i ||
			len(quoteData.Open) <= i ||
			len(quoteData.High) <= i ||
			len(quoteData.Low) <= i ||
			len(quoteData.Volume) <= i {
			continue
		}

		bar := Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   quoteData.Open[i],
			High:   quoteData.High[i],
			Low:    quoteData.Low[i],
			Close:  quoteData.Close[i],
			Volume: quoteData.Volume[i],
		}
		if len(adjCloseData) > i {
			bar.AdjClose = adjCloseData[i]
		}
		series.Bars = append(series.Bars, bar)
	}

	if len(series.Bars) == 0 {
		return nil, fmt.Errorf("%w: empty bar set for %s", ErrNoData, symbol)
	}
	return series, nil
}

// FetchResult is one symbol's outcome from a batch fetch.
type FetchResult struct {
	Symbol string
	Series *Series
	Err    error
}

// FetchMany downloads several symbols in parallel over a bounded worker
// pool. Every requested symbol appears in the result map; failures are
// carried per symbol so one bad instrument does not sink the batch.
func (c *Client) FetchMany(ctx context.Context, symbols []string, q ChartQuery) map[string]FetchResult {
	jobs := make(chan string, len(symbols))
	results := make(chan FetchResult, len(symbols))

	var wg sync.WaitGroup
	workers := numWorkers
	if len(symbols) < workers {
		workers = len(symbols)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for symbol := range jobs {
				slog.Debug("Worker fetching chart", "worker_id", id, "symbol", symbol)
				series, err := c.FetchChart(ctx, symbol, q)
				results <- FetchResult{Symbol: symbol, Series: series, Err: err}
			}
		}(i)
	}

	for _, symbol := range symbols {
		jobs <- symbol
	}
	close(jobs)

	wg.Wait()
	close(results)

	out := make(map[string]FetchResult, len(symbols))
	for res := range results {
		out[res.Symbol] = res
	}
	return out
}
