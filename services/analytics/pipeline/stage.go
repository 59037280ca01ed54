// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline owns the analytics run lifecycle: the stage
// contract, the single-flight runner with its persisted status
// records, and the interval scheduler.
package pipeline

import "context"

// Stage is one unit of pipeline work. Stages own their dependencies
// (data client, artifact store, text generator) and write their own
// artifact; the runner only sequences them and records progress.
type Stage interface {
	// Name is the short identifier used in status records and metrics
	// labels, e.g. "macro".
	Name() string

	// Description is the human line shown while the stage runs,
	// e.g. "Computing sector heatmap".
	Description() string

	// SkipInFastMode reports whether a fast run bypasses this stage.
	// Only the AI summary stage opts in: fast runs refresh the market
	// computations without spending generation quota.
	SkipInFastMode() bool

	// Run executes the stage. A non-nil error fails the whole run;
	// wrap it in a StageError to control the metrics label.
	Run(ctx context.Context) error
}
