// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response bodies for the
// analytics HTTP API.
package datatypes

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxTickersPerJob is the maximum number of tickers in one
	// summary submission. Each ticker costs a generation call, so the
	// cap protects the daily budget from a single oversized request.
	MaxTickersPerJob = 25

	// maxRawTickerBytes bounds a single caller-supplied ticker before
	// sanitization.
	maxRawTickerBytes = 32
)

// analyticsValidate is the validator instance for analytics datatypes.
// Initialized in init() with custom validators.
var analyticsValidate *validator.Validate

func init() {
	analyticsValidate = validator.New()
	_ = analyticsValidate.RegisterValidation("rawticker", validateRawTicker)
}

// validateRawTicker bounds a raw ticker input: non-blank and small.
// Shape rules are deliberately not enforced here; sanitization decides
// what survives, so "bad$ticker" is a valid input that becomes
// BADTICKER downstream.
func validateRawTicker(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	return strings.TrimSpace(raw) != "" && len(raw) <= maxRawTickerBytes
}

// SummaryJobRequest asks for on-demand narrative generation.
//
// # Description
//
// Body of POST /v1/summaries. Tickers are sanitized, not validated:
// entries with illegal characters are stripped and kept when something
// salvageable remains, so the request only fails validation on
// structural problems (empty list, oversized list, blank or oversized
// entries).
//
// # Validation
//
//   - Tickers: required, 1-25 elements
//   - Tickers[]: non-blank, at most 32 bytes each
type SummaryJobRequest struct {
	Tickers []string `json:"tickers" validate:"required,min=1,max=25,dive,rawticker"`
}

// Validate validates the request after JSON binding.
func (r *SummaryJobRequest) Validate() error {
	return analyticsValidate.Struct(r)
}

// PipelineRunRequest selects options for a manual pipeline trigger.
// The body is optional; the zero value requests a full run.
type PipelineRunRequest struct {
	// Fast skips the AI summary stage, refreshing market computations
	// without spending generation quota.
	Fast bool `json:"fast"`
}
