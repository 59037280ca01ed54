// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	cases := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := tc.level.slogLevel(); got != tc.want {
			t.Errorf("Level(%d).slogLevel() = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestDefault_NotNil(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}
	defer logger.Close()
	if logger.Slog() == nil {
		t.Fatal("Slog() returned nil")
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "analytics",
		Quiet:   true,
	})

	logger.Info("run started", "run_id", "abc123")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	name := "analytics_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "run started") {
		t.Errorf("log file missing message: %s", content)
	}
	if !strings.Contains(content, "abc123") {
		t.Errorf("log file missing attribute: %s", content)
	}
	if !strings.Contains(content, `"service":"analytics"`) {
		t.Errorf("log file missing service attribute: %s", content)
	}
}

func TestNew_DefaultServiceFilename(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Quiet: true})
	logger.Info("hello")
	logger.Close()

	name := "marketpulse_" + time.Now().Format("2006-01-02") + ".log"
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Errorf("expected log file %s: %v", name, err)
	}
}

func TestNew_BadLogDirStillLogs(t *testing.T) {
	// An unwritable log dir must not prevent construction.
	logger := New(Config{LogDir: "/proc/definitely/not/writable", Quiet: true})
	defer logger.Close()
	logger.Info("still alive")
}

func TestLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "analytics",
		Quiet:   true,
	})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	logger.Close()

	name := "analytics_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "debug message") || strings.Contains(content, "info message") {
		t.Errorf("below-threshold messages leaked: %s", content)
	}
	if !strings.Contains(content, "warn message") || !strings.Contains(content, "error message") {
		t.Errorf("expected warn and error messages: %s", content)
	}
}

func TestLogger_With(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "analytics", Quiet: true})

	child := logger.With("run_id", "run-42")
	child.Info("stage completed")
	logger.Close()

	name := "analytics_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "run-42") {
		t.Errorf("child attribute missing: %s", data)
	}
}

// waitForEntries polls the exporter until it holds want entries or the
// deadline passes. Exports run on their own goroutine.
func waitForEntries(t *testing.T, exporter *BufferedExporter, want int) []LogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entries := exporter.Entries(); len(entries) >= want {
			return entries
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d exported entries, have %d", want, len(exporter.Entries()))
	return nil
}

func TestLogger_Export(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "analytics",
		Quiet:    true,
		Exporter: exporter,
	})
	defer logger.Close()

	logger.Info("artifact written", "name", "macro_analysis.json")

	entries := waitForEntries(t, exporter, 1)
	entry := entries[0]
	if entry.Message != "artifact written" {
		t.Errorf("got message %q", entry.Message)
	}
	if entry.Level != LevelInfo {
		t.Errorf("got level %v", entry.Level)
	}
	if entry.Service != "analytics" {
		t.Errorf("got service %q", entry.Service)
	}
	if entry.Attrs["name"] != "macro_analysis.json" {
		t.Errorf("got attrs %v", entry.Attrs)
	}
}

func TestLogger_ExportRespectsLevel(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelWarn,
		Quiet:    true,
		Exporter: exporter,
	})
	defer logger.Close()

	logger.Info("should not export")
	logger.Warn("should export")

	entries := waitForEntries(t, exporter, 1)
	for _, e := range entries {
		if e.Message == "should not export" {
			t.Error("below-threshold entry was exported")
		}
	}
}

func TestTeeHandler_FansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h1 := slog.NewTextHandler(&buf1, nil)
	h2 := slog.NewJSONHandler(&buf2, nil)

	logger := slog.New(&teeHandler{handlers: []slog.Handler{h1, h2}})
	logger.Info("fan out", "key", "value")

	if !strings.Contains(buf1.String(), "fan out") {
		t.Errorf("first handler missed record: %q", buf1.String())
	}
	if !strings.Contains(buf2.String(), "fan out") {
		t.Errorf("second handler missed record: %q", buf2.String())
	}
}

func TestTeeHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	tee := &teeHandler{handlers: []slog.Handler{h}}

	withAttrs := tee.WithAttrs([]slog.Attr{slog.String("service", "cli")})
	if _, ok := withAttrs.(*teeHandler); !ok {
		t.Fatal("WithAttrs should return *teeHandler")
	}
	slog.New(withAttrs).Info("tagged")
	if !strings.Contains(buf.String(), `"service":"cli"`) {
		t.Errorf("attribute missing: %q", buf.String())
	}
}

func TestTeeHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	tee := &teeHandler{handlers: []slog.Handler{h}}

	ctx := context.Background()
	if tee.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should be disabled")
	}
	if !tee.Enabled(ctx, slog.LevelError) {
		t.Error("error should be enabled")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandHome(~/logs) = %q", got)
	}
	if got := expandHome("/var/log"); got != "/var/log" {
		t.Errorf("expandHome(/var/log) = %q", got)
	}
	if got := expandHome(""); got != "" {
		t.Errorf("expandHome(\"\") = %q", got)
	}
}

func TestAttrsFromArgs(t *testing.T) {
	got := attrsFromArgs([]any{"ticker", "AAPL", "bars", 63})
	if got["ticker"] != "AAPL" || got["bars"] != 63 {
		t.Errorf("unexpected map: %v", got)
	}

	// Dangling key and non-string keys are skipped.
	got = attrsFromArgs([]any{"key", "value", "dangling"})
	if len(got) != 1 {
		t.Errorf("dangling key should be dropped: %v", got)
	}
	got = attrsFromArgs([]any{42, "value"})
	if len(got) != 0 {
		t.Errorf("non-string key should be dropped: %v", got)
	}
}

func TestNopExporter(t *testing.T) {
	var e NopExporter
	ctx := context.Background()
	if err := e.Export(ctx, LogEntry{}); err != nil {
		t.Errorf("Export: %v", err)
	}
	if err := e.Flush(ctx); err != nil {
		t.Errorf("Flush: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestBufferedExporter_CopiesEntries(t *testing.T) {
	e := NewBufferedExporter()
	e.Export(context.Background(), LogEntry{Message: "one"})

	entries := e.Entries()
	entries[0].Message = "mutated"
	if e.Entries()[0].Message != "one" {
		t.Error("Entries() must return a copy")
	}
}
