// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package textgen

import (
	"errors"
)

// Error taxonomy for external generation calls. Transport errors from the
// backends are mapped onto these sentinels so the retry policy can be decided
// with errors.Is instead of string matching.
var (
	// ErrQuotaExceeded indicates the external service rejected the call for
	// rate or quota reasons (HTTP 429). Transient: retryable with backoff.
	ErrQuotaExceeded = errors.New("generation quota exceeded")

	// ErrServiceUnavailable indicates a transient server-side failure
	// (HTTP 5xx, timeouts, connection resets). Retryable with backoff.
	ErrServiceUnavailable = errors.New("generation service unavailable")

	// ErrInvalidRequest indicates the request itself was malformed or
	// referenced an unknown model (HTTP 400/404). Never retried.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrAuthFailure indicates the credentials were rejected (HTTP 401/403).
	// Never retried; retrying cannot succeed without operator action.
	ErrAuthFailure = errors.New("generation auth failure")

	// ErrGenerationFailed is the degraded terminal outcome of a generate
	// call: retries exhausted or a fatal error kind. Callers treat this as
	// missing narrative, not as a pipeline failure.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrEmptyCompletion indicates the service answered successfully but
	// returned no usable text. Not retried.
	ErrEmptyCompletion = errors.New("empty completion")

	// ErrThrottleClosed is returned by Acquire after the throttler has been
	// shut down.
	ErrThrottleClosed = errors.New("throttler closed")

	// ErrBudgetExhausted indicates the local daily call budget is spent.
	// Not retried: the budget resets at UTC midnight, far beyond any
	// backoff window.
	ErrBudgetExhausted = errors.New("daily call budget exhausted")
)

// IsTransient reports whether err is an error kind worth retrying.
// Only quota and transient service failures qualify; everything else
// propagates immediately.
func IsTransient(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrServiceUnavailable)
}

// IsGenerationFailed reports whether err is the degraded generation
// outcome. Callers substitute placeholder text for these rather than
// propagating a failure.
func IsGenerationFailed(err error) bool {
	return errors.Is(err, ErrGenerationFailed)
}
