// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/MarketPulse/services/analytics/jobs"
	"github.com/AleutianAI/MarketPulse/services/textgen"
)

type fakeQuotaSource struct {
	snap textgen.QuotaSnapshot
	err  error
}

func (f fakeQuotaSource) Quota() (textgen.QuotaSnapshot, error) {
	return f.snap, f.err
}

func (f fakeQuotaSource) BackoffConfig() textgen.BackoffConfig {
	return textgen.DefaultBackoffConfig()
}

func TestGetQuota(t *testing.T) {
	source := fakeQuotaSource{snap: textgen.QuotaSnapshot{
		Backend:    "openai",
		Model:      "gpt-4o-mini",
		DailyLimit: 200,
		CallsUsed:  42,
	}}
	manager := jobs.NewManager(fakeSummarizer{}, newArtifactStore(t), nil)

	router := gin.New()
	router.GET("/v1/quota", GetQuota(source, manager))

	rec := perform(router, http.MethodGet, "/v1/quota", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	var limit int
	require.NoError(t, json.Unmarshal(body["daily_limit"], &limit))
	assert.Equal(t, 200, limit)

	var backoff map[string]float64
	require.NoError(t, json.Unmarshal(body["backoff"], &backoff))
	assert.Equal(t, float64(4), backoff["max_attempts"])
	assert.Equal(t, float64(2), backoff["initial_delay_seconds"])

	var active int
	require.NoError(t, json.Unmarshal(body["active_jobs"], &active))
	assert.Equal(t, 0, active)
}

func TestGetQuota_SnapshotError(t *testing.T) {
	source := fakeQuotaSource{err: errors.New("cache unavailable")}
	manager := jobs.NewManager(fakeSummarizer{}, newArtifactStore(t), nil)

	router := gin.New()
	router.GET("/v1/quota", GetQuota(source, manager))

	rec := perform(router, http.MethodGet, "/v1/quota", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
