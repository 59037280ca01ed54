// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
)

// ListArtifacts serves the artifact manifest from the watcher's
// in-memory snapshot, so a polling dashboard never touches the disk.
func ListArtifacts(watcher *artifacts.Watcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos := watcher.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"artifacts": infos,
			"count":     len(infos),
		})
	}
}

// GetArtifact serves one artifact document verbatim. The ".json"
// suffix is optional in the URL. Names outside the known artifact set
// are refused before any disk access.
func GetArtifact(store *artifacts.Store) gin.HandlerFunc {
	known := make(map[string]bool)
	for _, name := range artifacts.KnownFiles() {
		known[name] = true
	}

	return func(c *gin.Context) {
		name := c.Param("name")
		if !strings.HasSuffix(name, ".json") {
			name += ".json"
		}
		if !known[name] {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown artifact %q", c.Param("name"))})
			return
		}

		data, err := store.Load(name)
		if errors.Is(err, artifacts.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": name + " not generated yet"})
			return
		}
		if err != nil {
			slog.Error("Artifact read failed", "artifact", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read artifact"})
			return
		}

		c.Data(http.StatusOK, "application/json", data)
	}
}
