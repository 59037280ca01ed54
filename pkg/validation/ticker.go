// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for caller-supplied market
// identifiers.
//
// Ticker symbols arrive from HTTP requests and CLI arguments and end up in
// external quote queries, cache fingerprints, and artifact keys. Validating
// them here prevents query injection and keeps artifact keys to a known
// character set.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// tickerPattern matches valid exchange-listed ticker symbols.
// Allows: uppercase letters, digits, dots (BRK.A), hyphens (BF-B)
// Max length: 10 characters (covers most exchanges)
var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// instrumentPattern matches the wider set of symbols the market data feed
// understands: indices (^VIX), futures (GC=F), FX-style pairs (DX-Y.NYB),
// and crypto pairs (BTC-USD). Only used for symbols defined in code or
// configuration, never for raw user input.
var instrumentPattern = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9.\-=]{0,11}$`)

// disallowedTickerChars matches every character a sanitized ticker may not
// contain. Stripping with this is the inverse of tickerPattern's class.
var disallowedTickerChars = regexp.MustCompile(`[^A-Z0-9.\-]`)

// ValidateTicker validates a caller-supplied stock ticker symbol.
//
// Valid tickers:
//   - 1-10 characters
//   - Uppercase letters A-Z
//   - Digits 0-9
//   - Dots (.) for class shares like BRK.A
//   - Hyphens (-) for class shares like BF-B
//
// Returns an error if the ticker is invalid.
//
// Example:
//
//	if err := validation.ValidateTicker(ticker); err != nil {
//	    return nil, fmt.Errorf("invalid ticker: %w", err)
//	}
//	// Safe to use in quote queries and artifact keys
func ValidateTicker(ticker string) error {
	if ticker == "" {
		return fmt.Errorf("ticker cannot be empty")
	}

	if !tickerPattern.MatchString(ticker) {
		return fmt.Errorf("invalid ticker format: %q (must be 1-10 uppercase alphanumeric chars, dots, or hyphens)", ticker)
	}

	return nil
}

// ValidateTickers validates multiple ticker symbols.
// Returns an error listing all invalid tickers if any fail validation.
func ValidateTickers(tickers []string) error {
	var invalid []string
	for _, t := range tickers {
		if err := ValidateTicker(t); err != nil {
			invalid = append(invalid, t)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid tickers: %v", invalid)
	}
	return nil
}

// ValidateInstrument validates a market data symbol against the permissive
// instrument rule. Indices, futures, and crypto pairs pass here but are
// rejected by ValidateTicker.
func ValidateInstrument(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}

	if !instrumentPattern.MatchString(symbol) {
		return fmt.Errorf("invalid instrument symbol: %q", symbol)
	}

	return nil
}

// SanitizeTicker normalizes a caller-supplied ticker and strips every
// character outside the allowed set before validating what remains.
//
// The rule is strip-then-validate: "bad$ticker" becomes "BADTICKER" and is
// accepted; an input that is empty after stripping, or that still fails the
// shape rule (too long, leading dot or hyphen), is rejected.
//
//	safe, err := validation.SanitizeTicker(" aapl ")
//	// safe == "AAPL"
func SanitizeTicker(ticker string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))
	stripped := disallowedTickerChars.ReplaceAllString(normalized, "")

	if stripped == "" {
		return "", fmt.Errorf("ticker %q has no valid characters", ticker)
	}
	if err := ValidateTicker(stripped); err != nil {
		return "", err
	}
	return stripped, nil
}

// SanitizeTickers sanitizes a list of tickers, partitioning it into the
// symbols that survived sanitization and the original inputs that did not.
// Order is preserved within each partition.
func SanitizeTickers(tickers []string) (accepted []string, rejected []string) {
	for _, t := range tickers {
		safe, err := SanitizeTicker(t)
		if err != nil {
			rejected = append(rejected, t)
			continue
		}
		accepted = append(accepted, safe)
	}
	return accepted, rejected
}
