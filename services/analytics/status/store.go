// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package status persists the pipeline's lifecycle record.
//
// A single JSON document holds the latest state. Writers replace it
// whole, last writer wins, so pollers always see one coherent record
// and never a partially written file.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State enumerates the pipeline lifecycle.
type State string

const (
	// StateIdle means no run has started since boot (or ever).
	StateIdle State = "idle"

	// StateRunning means a run is executing stages.
	StateRunning State = "running"

	// StateCompleted means the last run finished every stage.
	StateCompleted State = "completed"

	// StateFailed means the last run stopped at a stage error.
	StateFailed State = "failed"
)

// Record is the persisted pipeline status document.
//
// Completed counts the stages already finished; Total is the stage
// count of the run. A running record written before stage i reports
// Completed=i-1, so pollers can render "[2/5]" style progress.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	State     State     `json:"state"`
	Stage     string    `json:"stage,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	FastMode  bool      `json:"fast_mode,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Progress renders the record's position as "[completed/total]".
// Returns "" when the record carries no stage counts.
func (r Record) Progress() string {
	if r.Total <= 0 {
		return ""
	}
	return fmt.Sprintf("[%d/%d]", r.Completed, r.Total)
}

// Terminal reports whether the record describes a finished run.
func (r Record) Terminal() bool {
	return r.State == StateCompleted || r.State == StateFailed
}

// Idle returns the record pollers see before any run has happened.
func Idle() Record {
	return Record{State: StateIdle}
}

// Store writes and reads the status record at a fixed path.
//
// Thread Safety: Safe for concurrent use. Saves are serialized and
// land via temp file + rename so a crash never leaves a torn record.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore prepares a store at path, creating the parent directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("status: path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create status directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the record's location on disk.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the persisted record. A zero Timestamp is stamped
// with the current time.
func (s *Store) Save(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write atomically: temp file + rename
	dir := filepath.Dir(s.path)
	tempFile, err := os.CreateTemp(dir, ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	// Ensure cleanup on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("write status: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync status: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close status: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("rename status: %w", err)
	}

	success = true
	return nil
}

// Load reads the persisted record. A missing file yields the idle
// record with no error. A corrupt file also yields the idle record,
// but with the parse error so callers can log it.
func (s *Store) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Idle(), nil
	}
	if err != nil {
		return Idle(), fmt.Errorf("read status: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Idle(), fmt.Errorf("unmarshal status: %w", err)
	}
	return rec, nil
}
