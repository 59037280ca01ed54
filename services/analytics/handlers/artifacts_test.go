// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/MarketPulse/services/analytics/artifacts"
)

func TestListArtifacts(t *testing.T) {
	store := newArtifactStore(t)
	require.NoError(t, store.Save(artifacts.FileMacro, map[string]string{"regime": "neutral"}))

	watcher, err := artifacts.NewWatcher(store, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	router := gin.New()
	router.GET("/v1/artifacts", ListArtifacts(watcher))

	rec := perform(router, http.MethodGet, "/v1/artifacts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Artifacts []artifacts.Info `json:"artifacts"`
		Count     int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Artifacts, 1)
	assert.Equal(t, artifacts.FileMacro, body.Artifacts[0].Name)
	assert.Positive(t, body.Artifacts[0].Size)
}

func TestGetArtifact(t *testing.T) {
	store := newArtifactStore(t)
	require.NoError(t, store.Save(artifacts.FileMacro, map[string]string{"regime": "risk-on"}))

	router := gin.New()
	router.GET("/v1/artifacts/:name", GetArtifact(store))

	rec := perform(router, http.MethodGet, "/v1/artifacts/macro_analysis.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var doc map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "risk-on", doc["regime"])
}

func TestGetArtifact_SuffixOptional(t *testing.T) {
	store := newArtifactStore(t)
	require.NoError(t, store.Save(artifacts.FileSectors, map[string]string{"benchmark": "SPY"}))

	router := gin.New()
	router.GET("/v1/artifacts/:name", GetArtifact(store))

	rec := perform(router, http.MethodGet, "/v1/artifacts/sector_heatmap", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetArtifact_UnknownName(t *testing.T) {
	router := gin.New()
	router.GET("/v1/artifacts/:name", GetArtifact(newArtifactStore(t)))

	rec := perform(router, http.MethodGet, "/v1/artifacts/shadow_config.json", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown artifact")
}

func TestGetArtifact_NotGeneratedYet(t *testing.T) {
	router := gin.New()
	router.GET("/v1/artifacts/:name", GetArtifact(newArtifactStore(t)))

	rec := perform(router, http.MethodGet, "/v1/artifacts/portfolio_risk.json", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not generated yet")
}
