// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// Helper to capture stdout
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// Helper to capture stderr
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func withLevel(t *testing.T, level PersonalityLevel) {
	t.Helper()
	orig := GetPersonality()
	t.Cleanup(func() { SetPersonality(orig) })
	SetPersonalityLevel(level)
}

func TestIcon_Render_NonEmpty(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconUp, IconDown, IconFlat} {
		if icon.Render() == "" {
			t.Errorf("expected non-empty render for %q", icon)
		}
	}
}

func TestDirectionIcon(t *testing.T) {
	if got := DirectionIcon(1.25); got != IconUp {
		t.Errorf("positive change: got %q, want %q", got, IconUp)
	}
	if got := DirectionIcon(-0.4); got != IconDown {
		t.Errorf("negative change: got %q, want %q", got, IconDown)
	}
	if got := DirectionIcon(0); got != IconFlat {
		t.Errorf("zero change: got %q, want %q", got, IconFlat)
	}
}

func TestTitle_MachineModeSuppressed(t *testing.T) {
	withLevel(t, PersonalityMachine)

	output := captureStdout(func() {
		Title("Market Overview")
	})
	if output != "" {
		t.Errorf("expected no output in machine mode, got %q", output)
	}
}

func TestSuccess_MachineModePrefix(t *testing.T) {
	withLevel(t, PersonalityMachine)

	output := captureStdout(func() {
		Success("pipeline run accepted")
	})
	if output != "OK: pipeline run accepted\n" {
		t.Errorf("unexpected machine output: %q", output)
	}
}

func TestWarning_MachineModeGoesToStderr(t *testing.T) {
	withLevel(t, PersonalityMachine)

	errOut := captureStderr(func() {
		Warning("quota nearly exhausted")
	})
	if errOut != "WARN: quota nearly exhausted\n" {
		t.Errorf("unexpected stderr: %q", errOut)
	}
}

func TestError_MachineModeGoesToStderr(t *testing.T) {
	withLevel(t, PersonalityMachine)

	errOut := captureStderr(func() {
		Error("service unreachable")
	})
	if errOut != "ERROR: service unreachable\n" {
		t.Errorf("unexpected stderr: %q", errOut)
	}
}

func TestInfo_MachineModePlain(t *testing.T) {
	withLevel(t, PersonalityMachine)

	output := captureStdout(func() {
		Info("cache hit rate 92%")
	})
	if output != "cache hit rate 92%\n" {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestMuted_MachineModeSuppressed(t *testing.T) {
	withLevel(t, PersonalityMachine)

	output := captureStdout(func() {
		Muted("press q to quit")
	})
	if output != "" {
		t.Errorf("expected no output, got %q", output)
	}
}

func TestFileStatus_MachineModeTabSeparated(t *testing.T) {
	withLevel(t, PersonalityMachine)

	output := captureStdout(func() {
		FileStatus("macro_analysis.json", IconSuccess, "4.2 KB")
	})
	want := "✓\tmacro_analysis.json\t4.2 KB\n"
	if output != want {
		t.Errorf("got %q, want %q", output, want)
	}
}

func TestFileStatus_PlainModeOmitsDetail(t *testing.T) {
	withLevel(t, PersonalityPlain)

	output := captureStdout(func() {
		FileStatus("NVDA", IconSuccess, "queued")
	})
	if strings.Contains(output, "queued") {
		t.Errorf("plain mode should omit detail, got %q", output)
	}
	if !strings.Contains(output, "NVDA") {
		t.Errorf("expected ticker in output, got %q", output)
	}
}

func TestSummary_MachineModeParseable(t *testing.T) {
	withLevel(t, PersonalityMachine)

	output := captureStdout(func() {
		Summary(3, 1, 4)
	})
	if output != "SUMMARY: accepted=3 rejected=1 total=4\n" {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestSummary_RichModeContainsCounts(t *testing.T) {
	withLevel(t, PersonalityRich)

	output := captureStdout(func() {
		Summary(5, 2, 7)
	})
	for _, want := range []string{"5", "2", "7", "accepted", "rejected", "total"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got %q", want, output)
		}
	}
}

func TestChangePct_MachineModeBare(t *testing.T) {
	withLevel(t, PersonalityMachine)

	if got := ChangePct(1.234); got != "+1.23%" {
		t.Errorf("got %q, want +1.23%%", got)
	}
	if got := ChangePct(-0.5); got != "-0.50%" {
		t.Errorf("got %q, want -0.50%%", got)
	}
}

func TestChangePct_RichModeIncludesArrow(t *testing.T) {
	withLevel(t, PersonalityRich)

	if got := ChangePct(2.0); !strings.Contains(got, string(IconUp)) {
		t.Errorf("expected up arrow in %q", got)
	}
	if got := ChangePct(-2.0); !strings.Contains(got, string(IconDown)) {
		t.Errorf("expected down arrow in %q", got)
	}
}
