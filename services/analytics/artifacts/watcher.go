// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package artifacts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// UpdateHandler is called with the fresh listing after debounced changes.
type UpdateHandler func(infos []Info)

// Watcher keeps an in-memory listing of the artifact directory current.
//
// # Description
//
// The pipeline replaces artifacts via rename, so a run produces a burst
// of directory events. The watcher batches them with a debounce window
// and refreshes its snapshot once per burst, letting the HTTP listing
// endpoint answer from memory instead of hitting the disk per request.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	handler  UpdateHandler
	debounce time.Duration

	changes  chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	snapshot []Info
	watching bool
}

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more changes before refreshing.
	// Default: 200ms
	DebounceWindow time.Duration

	// OnUpdate is called with the new listing after each refresh. Optional.
	OnUpdate UpdateHandler
}

// NewWatcher creates a watcher over the store's directory.
func NewWatcher(store *Store, opts *WatcherOptions) (*Watcher, error) {
	debounce := 200 * time.Millisecond
	var handler UpdateHandler
	if opts != nil {
		if opts.DebounceWindow > 0 {
			debounce = opts.DebounceWindow
		}
		handler = opts.OnUpdate
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		store:    store,
		watcher:  fsw,
		handler:  handler,
		debounce: debounce,
		changes:  make(chan struct{}, 64),
		done:     make(chan struct{}),
	}, nil
}

// Start loads the initial snapshot and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.store.Dir()); err != nil {
		return err
	}

	w.refresh()

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// Snapshot returns the current listing without touching the disk.
func (w *Watcher) Snapshot() []Info {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Info, len(w.snapshot))
	copy(out, w.snapshot)
	return out
}

// refresh reloads the listing from disk and notifies the handler.
func (w *Watcher) refresh() {
	infos, err := w.store.List()
	if err != nil {
		slog.Warn("artifact listing refresh failed", "error", err)
		return
	}

	w.mu.Lock()
	w.snapshot = infos
	handler := w.handler
	w.mu.Unlock()

	if handler != nil {
		handler(infos)
	}
}

// processEvents forwards relevant directory events to the debouncer.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Renames land the final artifact; writes cover the temp
			// file churn we debounce away.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			select {
			case w.changes <- struct{}{}:
			default:
				// Buffer full: a refresh is already pending.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("artifact watcher error", "error", err)
		}
	}
}

// debounceLoop refreshes the snapshot after a quiet period.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.changes:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			w.refresh()
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
}
