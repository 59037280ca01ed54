// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	"testing"
	"time"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
)

func findEvent(events []CalendarEvent, name string) (CalendarEvent, bool) {
	for _, e := range events {
		if e.Event == name {
			return e, true
		}
	}
	return CalendarEvent{}, false
}

func TestCalendarStage_WritesArtifact(t *testing.T) {
	store := newStageStore(t)
	stage := NewCalendarStage(store, nil)
	// Monday June 2, 2025: the week holds Thursday claims and the
	// first-Friday payrolls print.
	stage.now = fixedTime(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))

	if err := stage.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var got CalendarArtifact
	if err := store.LoadInto(artifacts.FileCalendar, &got); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}

	if got.WeekStart != "2025-06-02" {
		t.Errorf("WeekStart = %q, want 2025-06-02", got.WeekStart)
	}
	if len(got.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2: %+v", len(got.Events), got.Events)
	}
	if got.Events[0].Event != "Initial Jobless Claims" || got.Events[0].Date != "2025-06-05" {
		t.Errorf("Events[0] = %+v, want claims on 2025-06-05", got.Events[0])
	}
	if got.Events[1].Event != "Nonfarm Payrolls (Employment Situation)" || got.Events[1].Date != "2025-06-06" {
		t.Errorf("Events[1] = %+v, want payrolls on 2025-06-06", got.Events[1])
	}
	if got.Events[1].Impact != "High" {
		t.Errorf("payrolls impact = %q, want High", got.Events[1].Impact)
	}
}

func TestUpcomingEvents_CPIWeek(t *testing.T) {
	// Second Wednesday of June 2025 is the 11th.
	events := upcomingEvents(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC))

	cpi, ok := findEvent(events, "CPI (Consumer Price Index)")
	if !ok {
		t.Fatalf("no CPI event in %+v", events)
	}
	if cpi.Date != "2025-06-11" {
		t.Errorf("CPI date = %q, want 2025-06-11", cpi.Date)
	}
	if cpi.Impact != "High" {
		t.Errorf("CPI impact = %q, want High", cpi.Impact)
	}
}

func TestUpcomingEvents_FOMCWeek(t *testing.T) {
	// June is a meeting month; the third Wednesday is the 18th.
	events := upcomingEvents(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))

	fomc, ok := findEvent(events, "FOMC Rate Decision")
	if !ok {
		t.Fatalf("no FOMC event in %+v", events)
	}
	if fomc.Date != "2025-06-18" {
		t.Errorf("FOMC date = %q, want 2025-06-18", fomc.Date)
	}
	if fomc.Time != "14:00 ET" {
		t.Errorf("FOMC time = %q, want 14:00 ET", fomc.Time)
	}
}

func TestUpcomingEvents_NonMeetingMonth(t *testing.T) {
	// April's third Wednesday (the 16th) falls in this window, but
	// April is not a meeting month.
	events := upcomingEvents(time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC))

	if _, ok := findEvent(events, "FOMC Rate Decision"); ok {
		t.Errorf("unexpected FOMC event in %+v", events)
	}
	claims, ok := findEvent(events, "Initial Jobless Claims")
	if !ok {
		t.Fatalf("no claims event in %+v", events)
	}
	if claims.Date != "2025-04-17" {
		t.Errorf("claims date = %q, want 2025-04-17", claims.Date)
	}
}

func TestUpcomingEvents_CrossesMonthBoundary(t *testing.T) {
	// Window starting Thursday July 31 reaches August's first Friday.
	events := upcomingEvents(time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC))

	nfp, ok := findEvent(events, "Nonfarm Payrolls (Employment Situation)")
	if !ok {
		t.Fatalf("no payrolls event in %+v", events)
	}
	if nfp.Date != "2025-08-01" {
		t.Errorf("payrolls date = %q, want 2025-08-01", nfp.Date)
	}
}

func TestUpcomingEvents_NeverEmpty(t *testing.T) {
	// Any 7-day window includes a Thursday, so claims always appear.
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		events := upcomingEvents(start.AddDate(0, 0, i))
		if _, ok := findEvent(events, "Initial Jobless Claims"); !ok {
			t.Errorf("window starting %s has no claims event", start.AddDate(0, 0, i).Format("2006-01-02"))
		}
	}
}
