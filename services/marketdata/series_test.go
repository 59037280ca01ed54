// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package marketdata

import (
	"math"
	"testing"
	"time"
)

func mkSeries(closes ...float64) *Series {
	s := &Series{Symbol: "TEST", Currency: "USD"}
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		s.Bars = append(s.Bars, Bar{
			Time:  base.AddDate(0, 0, i),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		})
	}
	return s
}

func within(t *testing.T, got, want, eps float64, label string) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Errorf("%s = %v, want %v (±%v)", label, got, want, eps)
	}
}

func TestLastClose(t *testing.T) {
	if _, ok := mkSeries().LastClose(); ok {
		t.Error("LastClose() ok = true on empty series, want false")
	}

	got, ok := mkSeries(100, 105).LastClose()
	if !ok || got != 105 {
		t.Errorf("LastClose() = %v, %v, want 105, true", got, ok)
	}
}

func TestChangePercent(t *testing.T) {
	s := mkSeries(100, 110, 99)

	got, ok := s.ChangePercent(1)
	if !ok {
		t.Fatal("ChangePercent(1) ok = false")
	}
	within(t, got, -10.0, 1e-9, "ChangePercent(1)")

	got, ok = s.ChangePercent(2)
	if !ok {
		t.Fatal("ChangePercent(2) ok = false")
	}
	within(t, got, -1.0, 1e-9, "ChangePercent(2)")

	if _, ok := s.ChangePercent(3); ok {
		t.Error("ChangePercent(3) ok = true on a 3-bar series, want false")
	}
	if _, ok := s.ChangePercent(0); ok {
		t.Error("ChangePercent(0) ok = true, want false")
	}
}

func TestChangePercent_PrefersAdjustedClose(t *testing.T) {
	s := mkSeries(100, 110)
	s.Bars[0].AdjClose = 50
	s.Bars[1].AdjClose = 55

	got, ok := s.ChangePercent(1)
	if !ok {
		t.Fatal("ChangePercent(1) ok = false")
	}
	within(t, got, 10.0, 1e-9, "ChangePercent(1) on adjusted closes")
}

func TestDailyReturns(t *testing.T) {
	returns := mkSeries(100, 110, 99).DailyReturns()
	if len(returns) != 2 {
		t.Fatalf("len(returns) = %d, want 2", len(returns))
	}
	within(t, returns[0], 0.10, 1e-9, "returns[0]")
	within(t, returns[1], -0.10, 1e-9, "returns[1]")

	if got := mkSeries(100).DailyReturns(); got != nil {
		t.Errorf("DailyReturns() on single bar = %v, want nil", got)
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	// Returns +10% then -10%: mean 0, sample stddev sqrt(0.02).
	got, ok := mkSeries(100, 110, 99).AnnualizedVolatility()
	if !ok {
		t.Fatal("AnnualizedVolatility() ok = false")
	}
	want := math.Sqrt(0.02) * math.Sqrt(252) * 100
	within(t, got, want, 1e-6, "AnnualizedVolatility()")

	// A constant growth rate has zero return variance.
	got, ok = mkSeries(100, 101, 102.01).AnnualizedVolatility()
	if !ok {
		t.Fatal("AnnualizedVolatility() ok = false on steady series")
	}
	within(t, got, 0, 1e-9, "AnnualizedVolatility() on steady series")

	if _, ok := mkSeries(100, 110).AnnualizedVolatility(); ok {
		t.Error("AnnualizedVolatility() ok = true with a single return, want false")
	}
}

func TestMaxDrawdown(t *testing.T) {
	got, ok := mkSeries(100, 120, 90, 110).MaxDrawdown()
	if !ok {
		t.Fatal("MaxDrawdown() ok = false")
	}
	within(t, got, -25.0, 1e-9, "MaxDrawdown()")

	// Monotonic rise never draws down.
	got, ok = mkSeries(100, 105, 111).MaxDrawdown()
	if !ok {
		t.Fatal("MaxDrawdown() ok = false on rising series")
	}
	within(t, got, 0, 1e-9, "MaxDrawdown() on rising series")

	if _, ok := mkSeries(100).MaxDrawdown(); ok {
		t.Error("MaxDrawdown() ok = true on single bar, want false")
	}
}

func TestCorrelation(t *testing.T) {
	a := []float64{0.01, -0.02, 0.03, 0.01}

	got, ok := Correlation(a, a)
	if !ok {
		t.Fatal("Correlation(a, a) ok = false")
	}
	within(t, got, 1.0, 1e-9, "Correlation(a, a)")

	inv := make([]float64, len(a))
	for i, v := range a {
		inv[i] = -v
	}
	got, ok = Correlation(a, inv)
	if !ok {
		t.Fatal("Correlation(a, -a) ok = false")
	}
	within(t, got, -1.0, 1e-9, "Correlation(a, -a)")
}

func TestCorrelation_TrimsFromFront(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{9, 1, 2, 3}

	got, ok := Correlation(a, b)
	if !ok {
		t.Fatal("Correlation() ok = false")
	}
	within(t, got, 1.0, 1e-9, "Correlation() after trimming")
}

func TestCorrelation_Degenerate(t *testing.T) {
	if _, ok := Correlation([]float64{1}, []float64{1}); ok {
		t.Error("Correlation() ok = true with one observation, want false")
	}
	if _, ok := Correlation([]float64{1, 1, 1}, []float64{1, 2, 3}); ok {
		t.Error("Correlation() ok = true with zero variance, want false")
	}
}
