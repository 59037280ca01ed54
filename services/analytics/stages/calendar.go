// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stages

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
	"github.com/AleutianAI/MarketPulse/services/analytics/observability"
	"github.com/AleutianAI/MarketPulse/services/analytics/pipeline"
)

// calendarWindowDays is the look-ahead of the weekly calendar.
const calendarWindowDays = 7

// fomcMonths approximates the eight scheduled FOMC meetings per year.
// The exact dates shift year to year; the third Wednesday of these
// months lands inside or adjacent to the published meeting windows.
var fomcMonths = map[time.Month]bool{
	time.January:   true,
	time.March:     true,
	time.May:       true,
	time.June:      true,
	time.July:      true,
	time.September: true,
	time.October:   true,
	time.December:  true,
}

// CalendarEvent is one scheduled US release in the weekly calendar.
type CalendarEvent struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Event       string `json:"event"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
}

// CalendarArtifact is the document written to weekly_calendar.json.
type CalendarArtifact struct {
	Updated   time.Time       `json:"updated"`
	WeekStart string          `json:"week_start"`
	Events    []CalendarEvent `json:"events"`
}

// CalendarStage derives the upcoming week's recurring US macro events
// from fixed scheduling rules. Pure time math, no network: CPI on the
// second Wednesday, payrolls on the first Friday, FOMC decisions on
// the third Wednesday of meeting months, jobless claims every
// Thursday.
type CalendarStage struct {
	store   *artifacts.Store
	metrics *observability.PipelineMetrics
	now     func() time.Time
}

var _ pipeline.Stage = (*CalendarStage)(nil)

// NewCalendarStage wires the weekly calendar stage.
func NewCalendarStage(store *artifacts.Store, metrics *observability.PipelineMetrics) *CalendarStage {
	return &CalendarStage{
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *CalendarStage) Name() string         { return "calendar" }
func (s *CalendarStage) Description() string  { return "Building weekly calendar" }
func (s *CalendarStage) SkipInFastMode() bool { return false }

// Run writes the calendar for the window starting today. The window
// always spans a Thursday, so the event list is never empty.
func (s *CalendarStage) Run(ctx context.Context) error {
	_, span := tracer.Start(ctx, "CalendarStage.Run")
	defer span.End()

	now := s.now()
	doc := CalendarArtifact{
		Updated:   now,
		WeekStart: now.Format("2006-01-02"),
		Events:    upcomingEvents(now),
	}

	if err := s.store.Save(artifacts.FileCalendar, doc); err != nil {
		recordWrite(s.metrics, artifacts.FileCalendar, false)
		return pipeline.NewStageError(observability.ErrorCodePersistence, err)
	}
	recordWrite(s.metrics, artifacts.FileCalendar, true)

	slog.Info("Weekly calendar saved", "events", len(doc.Events), "week_start", doc.WeekStart)
	return nil
}

// upcomingEvents applies the scheduling rules to each day of the
// window beginning at from (inclusive).
func upcomingEvents(from time.Time) []CalendarEvent {
	var events []CalendarEvent

	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for i := 0; i < calendarWindowDays; i++ {
		d := day.AddDate(0, 0, i)
		date := d.Format("2006-01-02")

		if d.Weekday() == time.Thursday {
			events = append(events, CalendarEvent{
				Date:        date,
				Time:        "08:30 ET",
				Event:       "Initial Jobless Claims",
				Impact:      "Medium",
				Description: "Weekly unemployment insurance filings.",
			})
		}

		if sameDay(d, nthWeekday(d.Year(), d.Month(), time.Friday, 1)) {
			events = append(events, CalendarEvent{
				Date:        date,
				Time:        "08:30 ET",
				Event:       "Nonfarm Payrolls (Employment Situation)",
				Impact:      "High",
				Description: "Monthly jobs report; moves rate expectations.",
			})
		}

		if sameDay(d, nthWeekday(d.Year(), d.Month(), time.Wednesday, 2)) {
			events = append(events, CalendarEvent{
				Date:        date,
				Time:        "08:30 ET",
				Event:       "CPI (Consumer Price Index)",
				Impact:      "High",
				Description: "Headline and core inflation print.",
			})
		}

		if fomcMonths[d.Month()] && sameDay(d, nthWeekday(d.Year(), d.Month(), time.Wednesday, 3)) {
			events = append(events, CalendarEvent{
				Date:        date,
				Time:        "14:00 ET",
				Event:       "FOMC Rate Decision",
				Impact:      "High",
				Description: "Federal funds target announcement and statement.",
			})
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Event < events[j].Event
	})
	return events
}

// nthWeekday returns the nth occurrence of a weekday in the month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

func sameDay(a, b time.Time) bool {
	return a.Day() == b.Day() && a.Month() == b.Month() && a.Year() == b.Year()
}
