// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package artifacts persists the JSON documents the pipeline produces
// and serves them back to the HTTP layer.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Artifact file names produced by the pipeline stages.
const (
	FileMacro     = "macro_analysis.json"
	FileSectors   = "sector_heatmap.json"
	FileRisk      = "portfolio_risk.json"
	FileCalendar  = "weekly_calendar.json"
	FileSummaries = "ai_summaries.json"
)

// KnownFiles lists every artifact a full run writes, in stage order.
func KnownFiles() []string {
	return []string{FileMacro, FileSectors, FileRisk, FileCalendar, FileSummaries}
}

var (
	// ErrNotFound indicates the requested artifact does not exist yet.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName indicates the artifact name is not a plain JSON
	// file name. Rejects traversal attempts from the HTTP layer.
	ErrInvalidName = errors.New("invalid artifact name")
)

// validNamePattern permits plain file names only: no separators, no
// traversal, must end in .json.
var validNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.json$`)

// Info describes one stored artifact.
type Info struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Store reads and writes artifact documents under a single directory.
//
// Writes are atomic (temp file + rename) so readers polling the
// directory never observe a half-written document.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore prepares the artifact directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifacts: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// ValidateName checks that name is a plain artifact file name.
func ValidateName(name string) error {
	if !validNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Save marshals v with indentation and replaces the named artifact.
func (s *Store) Save(name string, v any) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", name, err)
	}
	return s.SaveRaw(name, data)
}

// SaveRaw replaces the named artifact with pre-marshaled bytes.
func (s *Store) SaveRaw(name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(name, data)
}

// writeLocked performs the atomic write. Caller must hold s.mu.
func (s *Store) writeLocked(name string, data []byte) error {
	// Write atomically: temp file + rename
	tempFile, err := os.CreateTemp(s.dir, ".artifact-*.tmp")
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
		return fmt.Errorf("write artifact %s: %w", name, err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync artifact %s: %w", name, err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close artifact %s: %w", name, err)
	}

	if err := os.Rename(tempPath, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("rename artifact %s: %w", name, err)
	}

	success = true
	return nil
}

// Merge replaces a single top-level key of the named artifact, creating
// the document when it does not exist yet. The read-modify-write runs
// under the store lock so concurrent merges never drop each other's
// entries.
func (s *Store) Merge(name, key string, v any) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("artifacts: merge key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := make(map[string]json.RawMessage)
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("unmarshal artifact %s: %w", name, err)
		}
	case os.IsNotExist(err):
		// Start from an empty document.
	default:
		return fmt.Errorf("read artifact %s: %w", name, err)
	}

	entry, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal merge entry for %s: %w", name, err)
	}
	doc[key] = entry

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", name, err)
	}
	return s.writeLocked(name, out)
}

// Load returns the named artifact's raw bytes.
func (s *Store) Load(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return data, nil
}

// LoadInto unmarshals the named artifact into v.
func (s *Store) LoadInto(name string, v any) error {
	data, err := s.Load(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal artifact %s: %w", name, err)
	}
	return nil
}

// List returns the stored artifacts sorted by name. Temp files and
// non-JSON entries are skipped.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:     name,
			Size:     fi.Size(),
			Modified: fi.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
