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
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/MarketPulse/pkg/ux"
)

// quotePayload mirrors the GET /v1/quotes/:ticker payload.
type quotePayload struct {
	Ticker string `json:"ticker"`
	Range  string `json:"range"`
	Cached bool   `json:"cached"`
	Series struct {
		Symbol   string `json:"symbol"`
		Currency string `json:"currency"`
		Bars     []struct {
			Time   time.Time `json:"time"`
			Close  float64   `json:"close"`
			Volume int64     `json:"volume"`
		} `json:"bars"`
	} `json:"series"`
}

// runQuote implements `marketpulse quote TICKER`.
func runQuote(cmd *cobra.Command, args []string) {
	ticker := strings.ToUpper(strings.TrimSpace(args[0]))
	baseURL := getServiceBaseURL()

	var q quotePayload
	url := fmt.Sprintf("%s/v1/quotes/%s?range=%s", baseURL, ticker, quoteRange)
	if err := getJSON(url, &q); err != nil {
		log.Fatalf("Failed to fetch quote: %v", err)
	}

	bars := q.Series.Bars
	if len(bars) == 0 {
		ux.Warning(fmt.Sprintf("No bars returned for %s", ticker))
		return
	}

	last := bars[len(bars)-1]
	changePct := 0.0
	if first := bars[0].Close; first != 0 {
		changePct = (last.Close - first) / first * 100
	}

	ux.Title(fmt.Sprintf("%s (%s)", q.Series.Symbol, q.Range))
	ux.Info(fmt.Sprintf("Last close: %.2f %s  %s", last.Close, q.Series.Currency, ux.ChangePct(changePct)))
	ux.Info(fmt.Sprintf("Bars: %d  As of: %s", len(bars), last.Time.Format("2006-01-02")))
	if q.Cached {
		ux.Muted("served from the service's quote cache")
	}
}
