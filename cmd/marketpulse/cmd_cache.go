// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/MarketPulse/cmd/marketpulse/config"
	"github.com/AleutianAI/MarketPulse/pkg/ux"
)

// cacheSubdir is where the service keeps the narrative cache under its
// data directory.
const cacheSubdir = "narrative_cache"

func runCacheStats(cmd *cobra.Command, args []string) {
	q := fetchQuota()

	ux.Title("Narrative Cache")
	renderCacheStats(q)
}

func runCachePurge(cmd *cobra.Command, args []string) {
	if !purgeLocal {
		ux.Error("The service does not expose a purge endpoint.")
		ux.Info("Stop the service, then purge its local cache directory:")
		ux.Info("  marketpulse cache purge --local")
		os.Exit(1)
	}

	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load CLI config: %v", err)
	}
	cacheDir := filepath.Join(config.Global.Data.Dir, cacheSubdir)

	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		ux.Info(fmt.Sprintf("No cache directory at %s, nothing to purge.", cacheDir))
		return
	}

	if !purgeYes {
		confirmed := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Purge the narrative cache?").
					Description(fmt.Sprintf("All cached summaries under %s will be deleted.\nThe next run regenerates them through the AI backend.", cacheDir)).
					Affirmative("Purge").
					Negative("Cancel").
					Value(&confirmed),
			),
		)
		if err := form.Run(); err != nil {
			log.Fatalf("Confirmation prompt failed: %v", err)
		}
		if !confirmed {
			ux.Info("Purge cancelled.")
			return
		}
	}

	opts := badger.DefaultOptions(cacheDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		// The usual cause is the running service holding the lock.
		log.Fatalf("Failed to open cache at %s (is the service running?): %v", cacheDir, err)
	}

	dropErr := db.DropAll()
	if closeErr := db.Close(); closeErr != nil {
		ux.Warning(fmt.Sprintf("Failed to close cache cleanly: %v", closeErr))
	}
	if dropErr != nil {
		log.Fatalf("Failed to purge cache: %v", dropErr)
	}

	ux.Success("Narrative cache purged.")
}
