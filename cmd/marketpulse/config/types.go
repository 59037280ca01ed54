// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
)

// DefaultServicePort must stay in step with the analytics service
// default.
const DefaultServicePort = 12310

type MarketPulseConfig struct {
	// Service: where the analytics daemon listens
	Service ServiceConfig `yaml:"service"`

	// Data: the service's on-disk layout, for commands that operate on
	// local files (cache purge, artifacts publish)
	Data DataConfig `yaml:"data"`

	// GCS: destination for artifacts publish
	GCS GCSConfig `yaml:"gcs"`
}

type ServiceConfig struct {
	URL string `yaml:"url"` // e.g. http://localhost:12310
}

type DataConfig struct {
	// Dir holds the artifact documents; the narrative cache lives in
	// its narrative_cache subdirectory.
	Dir string `yaml:"dir"`
}

type GCSConfig struct {
	ProjectID string `yaml:"project_id"`
	Bucket    string `yaml:"bucket"`
	SAKeyPath string `yaml:"sa_key_path"`
	Prefix    string `yaml:"prefix"`
}

func DefaultConfig() MarketPulseConfig {
	return MarketPulseConfig{
		Service: ServiceConfig{
			URL: fmt.Sprintf("http://localhost:%d", DefaultServicePort),
		},
		Data: DataConfig{
			Dir: "./data",
		},
		GCS: GCSConfig{
			Prefix: "marketpulse/artifacts",
		},
	}
}
