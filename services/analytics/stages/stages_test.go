// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/marketdata"
	"github.com/AleutianAI/MarketPulse/services/textgen"
)

// chartBody renders a minimal Yahoo chart payload for the given daily
// closes. Open/high/low track the close; volume is constant.
func chartBody(closes []float64) string {
	ts := make([]string, len(closes))
	cs := make([]string, len(closes))
	vs := make([]string, len(closes))
	base := int64(1700000000)
	for i, c := range closes {
		ts[i] = fmt.Sprintf("%d", base+int64(i)*86400)
		cs[i] = fmt.Sprintf("%g", c)
		vs[i] = "1000"
	}
	quotes := strings.Join(cs, ", ")
	return fmt.Sprintf(`{
	  "chart": {
	    "result": [
	      {
	        "meta": {"currency": "USD"},
	        "timestamp": [%s],
	        "indicators": {
	          "quote": [
	            {"open": [%s], "high": [%s], "low": [%s], "close": [%s], "volume": [%s]}
	          ]
	        }
	      }
	    ],
	    "error": null
	  }
	}`, strings.Join(ts, ", "), quotes, quotes, quotes, quotes, strings.Join(vs, ", "))
}

// fakeQuotes serves canned chart payloads keyed by symbol. Symbols
// absent from the map get a 404.
type fakeQuotes struct {
	mu     sync.Mutex
	closes map[string][]float64
	calls  int
}

func (f *fakeQuotes) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	symbol := path.Base(req.URL.Path)
	f.mu.Lock()
	closes, ok := f.closes[symbol]
	f.mu.Unlock()

	status := http.StatusOK
	body := ""
	if !ok {
		status = http.StatusNotFound
		body = "not found"
	} else {
		body = chartBody(closes)
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}, nil
}

func newQuoteClient(closes map[string][]float64) *marketdata.Client {
	return marketdata.NewClientWith(&fakeQuotes{closes: closes}, "http://stub")
}

func newStageStore(t *testing.T) *artifacts.Store {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

// fakeGenerator is a scriptable textgen.Generator.
type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	requests  []textgen.Request
	text      string
	fromCache bool
	err       error
}

func (g *fakeGenerator) Generate(ctx context.Context, req textgen.Request) (textgen.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.requests = append(g.requests, req)
	if g.err != nil {
		return textgen.Result{Attempts: 1}, g.err
	}
	attempts := 1
	if g.fromCache {
		attempts = 0
	}
	return textgen.Result{Text: g.text, FromCache: g.fromCache, Attempts: attempts}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGenerator) lastRequest() textgen.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return textgen.Request{}
	}
	return g.requests[len(g.requests)-1]
}

// fixedTime pins a stage's clock for deterministic artifacts.
func fixedTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
