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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/MarketPulse/pkg/ux"
)

// statusRecord mirrors the GET /v1/pipeline/status payload.
type statusRecord struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	State     string    `json:"state"`
	Stage     string    `json:"stage"`
	Detail    string    `json:"detail"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	FastMode  bool      `json:"fast_mode"`
	Error     string    `json:"error"`
}

// progress renders "[completed/total]", or "" when the record carries
// no stage counts.
func (r statusRecord) progress() string {
	if r.Total <= 0 {
		return ""
	}
	return fmt.Sprintf("[%d/%d]", r.Completed, r.Total)
}

func runStatus(cmd *cobra.Command, args []string) {
	baseURL := getServiceBaseURL()

	var rec statusRecord
	if err := getJSON(fmt.Sprintf("%s/v1/pipeline/status", baseURL), &rec); err != nil {
		log.Fatalf("Failed to fetch pipeline status: %v", err)
	}

	ux.Title("MarketPulse Pipeline")
	renderStatusRecord(rec)
}

// renderStatusRecord prints one status record. Shared between the
// status command and the watch command's final report.
func renderStatusRecord(rec statusRecord) {
	mode := ""
	if rec.FastMode {
		mode = " (fast mode)"
	}

	switch rec.State {
	case "completed":
		ux.Success(fmt.Sprintf("Last run completed %s%s", rec.progress(), mode))
	case "failed":
		ux.Error(fmt.Sprintf("Last run failed at stage %q %s%s", rec.Stage, rec.progress(), mode))
		if rec.Error != "" {
			ux.Info("Error: " + rec.Error)
		}
	case "running":
		ux.Info(fmt.Sprintf("Run in progress, stage %q %s%s", rec.Stage, rec.progress(), mode))
	default:
		ux.Info("No run recorded yet")
		return
	}

	if rec.RunID != "" {
		ux.Muted("Run ID: " + rec.RunID)
	}
	if rec.Detail != "" {
		ux.Muted(rec.Detail)
	}
	if !rec.Timestamp.IsZero() {
		ux.Muted("Updated: " + rec.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
}
