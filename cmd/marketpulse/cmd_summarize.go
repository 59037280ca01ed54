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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/MarketPulse/pkg/ux"
)

// summaryAck mirrors the POST /v1/summaries payload.
type summaryAck struct {
	JobID    string   `json:"job_id"`
	Accepted []string `json:"accepted"`
	Rejected []string `json:"rejected"`
}

func runSummarize(cmd *cobra.Command, args []string) {
	// Accept both "summarize AAPL MSFT" and "summarize AAPL,MSFT".
	var tickers []string
	for _, arg := range args {
		for _, t := range strings.Split(arg, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tickers = append(tickers, t)
			}
		}
	}
	if len(tickers) == 0 {
		log.Fatalf("No tickers given")
	}

	baseURL := getServiceBaseURL()
	payload := map[string]interface{}{"tickers": tickers}

	var ack summaryAck
	if err := postJSON(fmt.Sprintf("%s/v1/summaries", baseURL), payload, &ack); err != nil {
		log.Fatalf("Failed to submit the summary job: %v", err)
	}

	ux.Success(fmt.Sprintf("Summary job %s queued", ack.JobID))
	for _, t := range ack.Accepted {
		ux.FileStatus(t, ux.IconSuccess, "")
	}
	for _, t := range ack.Rejected {
		ux.FileStatus(t, ux.IconError, "not a valid ticker")
	}
	ux.Summary(len(ack.Accepted), len(ack.Rejected), len(ack.Accepted)+len(ack.Rejected))
	ux.Muted("Summaries land in ai_summaries.json when the job finishes.")
}
