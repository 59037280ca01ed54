// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
)

var (
	// ErrRunInProgress indicates a run already holds the pipeline.
	ErrRunInProgress = errors.New("pipeline run already in progress")

	// ErrCooldown indicates a trigger arrived too soon after the last run.
	ErrCooldown = errors.New("pipeline trigger inside cooldown window")

	// ErrStageFailed wraps the stage error that stopped a run.
	ErrStageFailed = errors.New("pipeline stage failed")
)

// StageError carries a metrics error code alongside the cause, so the
// runner can label stage failures without inspecting stage internals.
type StageError struct {
	Code observability.ErrorCode
	Err  error
}

// NewStageError wraps err with a classification code.
func NewStageError(code observability.ErrorCode, err error) *StageError {
	return &StageError{Code: code, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
