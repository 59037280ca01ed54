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
	"time"
)

// tradingDaysPerYear scales daily volatility to an annual figure.
const tradingDaysPerYear = 252

// Bar is one OHLCV observation.
type Bar struct {
	Time     time.Time `json:"time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// Series is one symbol's bar history in ascending time order.
type Series struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	Bars     []Bar  `json:"bars"`
}

// prices returns the adjusted close per bar, falling back to the raw
// close when Yahoo omitted the adjusted column.
func (s *Series) prices() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		if b.AdjClose > 0 {
			out[i] = b.AdjClose
		} else {
			out[i] = b.Close
		}
	}
	return out
}

// LastClose returns the most recent close. ok is false for an empty series.
func (s *Series) LastClose() (float64, bool) {
	if len(s.Bars) == 0 {
		return 0, false
	}
	return s.Bars[len(s.Bars)-1].Close, true
}

// LastTime returns the timestamp of the most recent bar.
func (s *Series) LastTime() (time.Time, bool) {
	if len(s.Bars) == 0 {
		return time.Time{}, false
	}
	return s.Bars[len(s.Bars)-1].Time, true
}

// ChangePercent returns the percent change between the close lookback
// bars ago and the latest close. lookback=1 is the one-bar change.
// ok is false when the series is too short.
func (s *Series) ChangePercent(lookback int) (float64, bool) {
	p := s.prices()
	if lookback < 1 || len(p) < lookback+1 {
		return 0, false
	}
	base := p[len(p)-1-lookback]
	if base == 0 {
		return 0, false
	}
	return (p[len(p)-1]/base - 1) * 100, true
}

// DailyReturns returns the simple bar-over-bar returns. A series of n
// bars yields n-1 returns. Bars with a zero prior price are skipped.
func (s *Series) DailyReturns() []float64 {
	p := s.prices()
	if len(p) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(p)-1)
	for i := 1; i < len(p); i++ {
		if p[i-1] == 0 {
			continue
		}
		returns = append(returns, p[i]/p[i-1]-1)
	}
	return returns
}

// AnnualizedVolatility returns the standard deviation of the bar
// returns scaled to a year, as a percent. ok is false when fewer than
// two returns exist.
func (s *Series) AnnualizedVolatility() (float64, bool) {
	returns := s.DailyReturns()
	if len(returns) < 2 {
		return 0, false
	}
	sd := stddev(returns)
	return sd * math.Sqrt(tradingDaysPerYear) * 100, true
}

// MaxDrawdown returns the deepest peak-to-trough decline over the
// series as a negative percent (-12.4 means a 12.4% decline). ok is
// false for series shorter than two bars.
func (s *Series) MaxDrawdown() (float64, bool) {
	p := s.prices()
	if len(p) < 2 {
		return 0, false
	}
	peak := p[0]
	worst := 0.0
	for _, price := range p[1:] {
		if price > peak {
			peak = price
			continue
		}
		if peak == 0 {
			continue
		}
		dd := (price - peak) / peak
		if dd < worst {
			worst = dd
		}
	}
	return worst * 100, true
}

// Correlation returns the Pearson correlation of two return slices.
// When lengths differ the longer slice is trimmed from the front so
// the most recent observations line up. ok is false with fewer than
// two paired observations or when either side has zero variance.
func Correlation(a, b []float64) (float64, bool) {
	if len(a) > len(b) {
		a = a[len(a)-len(b):]
	} else if len(b) > len(a) {
		b = b[len(b)-len(a):]
	}
	n := len(a)
	if n < 2 {
		return 0, false
	}

	meanA := mean(a)
	meanB := mean(b)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(xs []float64) float64 {
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}
