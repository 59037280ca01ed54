// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package artifacts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"known artifact", "macro_analysis.json", false},
		{"hyphenated", "my-doc.json", false},
		{"missing extension", "macro_analysis", true},
		{"wrong extension", "macro.yaml", true},
		{"path separator", "sub/doc.json", true},
		{"traversal", "../secrets.json", true},
		{"dotfile", ".hidden.json", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("error = %v, want ErrInvalidName", err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	doc := map[string]any{"as_of": "2025-06-02", "instruments": []string{"^VIX", "SPY"}}
	if err := store.Save(FileMacro, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var got map[string]any
	if err := store.LoadInto(FileMacro, &got); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}
	if got["as_of"] != "2025-06-02" {
		t.Errorf("as_of = %v, want 2025-06-02", got["as_of"])
	}
}

func TestLoad_Missing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(FileRisk)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestSave_RejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	err := store.Save("../evil.json", map[string]string{"x": "y"})
	if !errors.Is(err, ErrInvalidName) {
		t.Errorf("Save() error = %v, want ErrInvalidName", err)
	}

	// Nothing may have escaped the artifact directory.
	if _, statErr := os.Stat(filepath.Join(store.Dir(), "..", "evil.json")); statErr == nil {
		t.Error("traversal write landed outside the artifact directory")
	}
}

func TestSave_ReplacesWhole(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(FileSectors, map[string]string{"version": "first"}); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	if err := store.Save(FileSectors, map[string]string{"version": "second"}); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	var got map[string]string
	if err := store.LoadInto(FileSectors, &got); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}
	if got["version"] != "second" {
		t.Errorf("version = %q, want second", got["version"])
	}
}

func TestMerge_CreatesDocument(t *testing.T) {
	store := newTestStore(t)

	entry := map[string]any{"summary": "Shares rallied.", "news_count": 3}
	if err := store.Merge(FileSummaries, "AAPL", entry); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	var got map[string]map[string]any
	if err := store.LoadInto(FileSummaries, &got); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}
	if got["AAPL"]["summary"] != "Shares rallied." {
		t.Errorf("AAPL summary = %v, want merged entry", got["AAPL"])
	}
}

func TestMerge_PreservesOtherKeys(t *testing.T) {
	store := newTestStore(t)

	seed := map[string]any{
		"AAPL": map[string]any{"summary": "old apple"},
		"MSFT": map[string]any{"summary": "old microsoft"},
	}
	if err := store.Save(FileSummaries, seed); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Merge(FileSummaries, "AAPL", map[string]any{"summary": "new apple"}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	var got map[string]map[string]any
	if err := store.LoadInto(FileSummaries, &got); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}
	if got["AAPL"]["summary"] != "new apple" {
		t.Errorf("AAPL summary = %v, want new apple", got["AAPL"]["summary"])
	}
	if got["MSFT"]["summary"] != "old microsoft" {
		t.Errorf("MSFT summary = %v, merge dropped a sibling key", got["MSFT"]["summary"])
	}
}

func TestMerge_RejectsEmptyKey(t *testing.T) {
	store := newTestStore(t)

	if err := store.Merge(FileSummaries, "", map[string]string{"summary": "x"}); err == nil {
		t.Error("Merge() with empty key succeeded, want error")
	}
}

func TestList(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(FileSummaries, map[string]string{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(FileMacro, map[string]string{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Non-JSON and dotted entries are invisible to the listing.
	if err := os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0o640); err != nil {
		t.Fatalf("seed stray file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Dir(), ".artifact-zzz.tmp"), []byte("x"), 0o640); err != nil {
		t.Fatalf("seed temp file: %v", err)
	}

	infos, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(infos))
	}

	// Sorted by name: ai_summaries.json before macro_analysis.json.
	if infos[0].Name != FileSummaries || infos[1].Name != FileMacro {
		t.Errorf("List() order = [%s %s], want [%s %s]",
			infos[0].Name, infos[1].Name, FileSummaries, FileMacro)
	}
	if infos[0].Size == 0 && infos[1].Size == 0 {
		t.Error("List() sizes are all zero, want file sizes")
	}
}

func TestKnownFiles(t *testing.T) {
	files := KnownFiles()
	if len(files) != 5 {
		t.Fatalf("len(KnownFiles()) = %d, want 5", len(files))
	}
	for _, name := range files {
		if err := ValidateName(name); err != nil {
			t.Errorf("KnownFiles() contains invalid name %q: %v", name, err)
		}
	}
}
