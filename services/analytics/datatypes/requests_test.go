// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummaryJobRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tickers []string
		wantErr bool
	}{
		{"single ticker", []string{"AAPL"}, false},
		{"dirty ticker passes shape-agnostic validation", []string{"bad$ticker"}, false},
		{"mixed", []string{"AAPL", "msft", "BRK.B"}, false},
		{"nil list", nil, true},
		{"empty list", []string{}, true},
		{"blank entry", []string{"AAPL", "   "}, true},
		{"oversized entry", []string{strings.Repeat("A", 33)}, true},
		{"too many tickers", make([]string, MaxTickersPerJob+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "too many tickers" {
				for i := range tt.tickers {
					tt.tickers[i] = "AAPL"
				}
			}
			req := SummaryJobRequest{Tickers: tt.tickers}
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSummaryJobRequest_AtCap(t *testing.T) {
	tickers := make([]string, MaxTickersPerJob)
	for i := range tickers {
		tickers[i] = "AAPL"
	}
	req := SummaryJobRequest{Tickers: tickers}
	assert.NoError(t, req.Validate())
}
