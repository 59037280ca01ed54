// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package textgen

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// CacheConfig holds configuration for the response cache.
type CacheConfig struct {
	// Path is the directory for cache files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// TTL is how long a stored response stays servable.
	// Entries older than this read as misses. Default: 24h
	TTL time.Duration

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5
	GCDiscardRatio float64

	// Logger receives badger's internal log output.
	// If nil, badger's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultCacheConfig returns sensible defaults for production use.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:            24 * time.Hour,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryCacheConfig returns configuration optimized for testing.
func InMemoryCacheConfig() CacheConfig {
	return CacheConfig{
		InMemory:   true,
		TTL:        24 * time.Hour,
		SyncWrites: false,
		GCInterval: 0, // disabled
	}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// ResponseCache stores generated text keyed by request fingerprint, with a
// TTL so stale narratives age out instead of being served forever. Entries
// survive process restarts when backed by a directory.
//
// Thread Safety: All methods are safe for concurrent use.
type ResponseCache struct {
	db  *badger.DB
	ttl time.Duration

	gcStop chan struct{}
	gcDone chan struct{}

	// Stats (atomic for lock-free reads)
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResponseCache opens the cache at the configured path, creating the
// directory if needed. Caller must call Close() when done.
func NewResponseCache(cfg CacheConfig) (*ResponseCache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("cache: path is required for persistent cache")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("cache: TTL must be positive, got %s", cfg.TTL)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil) // Disable badger's internal logging
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	cache := &ResponseCache{
		db:  db,
		ttl: cfg.TTL,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio > 1 {
			ratio = 0.5
		}
		cache.gcStop = make(chan struct{})
		cache.gcDone = make(chan struct{})
		go cache.runGC(cfg.GCInterval, ratio, cfg.Logger)
	}

	return cache, nil
}

// Get returns the cached text for the fingerprint. Entries past their TTL
// read as misses.
//
// Outputs:
//   - string: The cached text (empty on miss).
//   - bool: True on a hit.
//   - error: Non-nil only for storage failures, never for a plain miss.
func (c *ResponseCache) Get(fp Fingerprint) (string, bool, error) {
	var text string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fp))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			text = string(val)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		c.misses.Add(1)
		return "", false, nil
	}
	if err != nil {
		c.misses.Add(1)
		return "", false, fmt.Errorf("cache lookup: %w", err)
	}

	c.hits.Add(1)
	return text, true, nil
}

// Put stores text under the fingerprint with the cache's configured TTL.
// Storing the same fingerprint again replaces the entry and restarts its
// TTL.
func (c *ResponseCache) Put(fp Fingerprint, text string) error {
	return c.PutWithTTL(fp, text, c.ttl)
}

// PutWithTTL stores text with an explicit lifetime, overriding the
// configured default for this entry only.
func (c *ResponseCache) PutWithTTL(fp Fingerprint, text string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache: TTL must be positive, got %s", ttl)
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(fp), []byte(text)).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// Len returns the number of live entries. Expired entries are skipped by
// the iterator and not counted.
func (c *ResponseCache) Len() (int, error) {
	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache scan: %w", err)
	}
	return count, nil
}

// Purge drops every entry and resets the hit/miss counters.
func (c *ResponseCache) Purge() error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("cache purge: %w", err)
	}
	c.hits.Store(0)
	c.misses.Store(0)
	return nil
}

// TTL returns the configured entry lifetime.
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}

// CacheStats summarizes cache effectiveness for status reporting.
type CacheStats struct {
	// Hits is the number of lookups served from the cache.
	Hits int64 `json:"hits"`

	// Misses is the number of lookups that found nothing live.
	Misses int64 `json:"misses"`

	// Entries is the number of live entries at snapshot time.
	Entries int `json:"entries"`

	// TTL is the configured entry lifetime.
	TTL time.Duration `json:"ttl"`
}

// Stats returns hit/miss counters and the live entry count.
func (c *ResponseCache) Stats() (CacheStats, error) {
	entries, err := c.Len()
	if err != nil {
		return CacheStats{}, err
	}
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
		TTL:     c.ttl,
	}, nil
}

// Close stops garbage collection and closes the database.
// Safe to call once; the cache is unusable afterwards.
func (c *ResponseCache) Close() error {
	if c.gcStop != nil {
		close(c.gcStop)
		<-c.gcDone
	}
	return c.db.Close()
}

func (c *ResponseCache) runGC(interval time.Duration, ratio float64, logger *slog.Logger) {
	defer close(c.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.gcStop:
			return
		case <-ticker.C:
			// RunValueLogGC returns nil if GC was triggered, ErrNoRewrite if not needed
			err := c.db.RunValueLogGC(ratio)
			if err == nil {
				if logger != nil {
					logger.Debug("cache value log GC completed")
				}
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				if logger != nil {
					logger.Warn("cache value log GC error", slog.String("error", err.Error()))
				}
			}
		}
	}
}
