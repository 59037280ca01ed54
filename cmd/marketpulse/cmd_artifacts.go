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
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/MarketPulse/cmd/marketpulse/config"
	"github.com/AleutianAI/MarketPulse/cmd/marketpulse/gcs"
	"github.com/AleutianAI/MarketPulse/pkg/ux"
)

// artifactEntry mirrors one element of the GET /v1/artifacts manifest.
type artifactEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

type artifactManifest struct {
	Artifacts []artifactEntry `json:"artifacts"`
	Count     int             `json:"count"`
}

func runArtifactsList(cmd *cobra.Command, args []string) {
	baseURL := getServiceBaseURL()

	var manifest artifactManifest
	if err := getJSON(fmt.Sprintf("%s/v1/artifacts", baseURL), &manifest); err != nil {
		log.Fatalf("Failed to fetch artifacts: %v", err)
	}

	if manifest.Count == 0 {
		ux.Info("No artifacts generated yet. Trigger a run with: marketpulse pipeline run")
		return
	}

	ux.Title("Analysis Artifacts")
	for _, a := range manifest.Artifacts {
		detail := fmt.Sprintf("%s, %s", humanSize(a.Size), a.Modified.Local().Format("2006-01-02 15:04"))
		ux.FileStatus(a.Name, ux.IconSuccess, detail)
	}
	ux.Muted(fmt.Sprintf("%d artifact(s)", manifest.Count))
}

func runArtifactsPublish(cmd *cobra.Command, args []string) {
	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load CLI config: %v", err)
	}

	bucket := publishBucket
	if bucket == "" {
		bucket = config.Global.GCS.Bucket
	}
	if bucket == "" {
		ux.Error("No GCS bucket configured.")
		ux.Info("Pass --bucket or set gcs.bucket in ~/.marketpulse/marketpulse.yaml")
		return
	}

	prefix := publishPrefix
	if prefix == "" {
		prefix = config.Global.GCS.Prefix
	}

	keyPath := config.Global.GCS.SAKeyPath
	if keyPath == "" {
		ux.Error("No GCS service account key configured.")
		ux.Info("Set gcs.sa_key_path in ~/.marketpulse/marketpulse.yaml")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := gcs.NewClient(ctx, config.Global.GCS.ProjectID, bucket, keyPath)
	if err != nil {
		log.Fatalf("Failed to create GCS client: %v", err)
	}

	dataDir := config.Global.Data.Dir
	ux.Info(fmt.Sprintf("Publishing artifacts from %s to gs://%s/%s", dataDir, bucket, prefix))

	count, err := client.PublishArtifacts(ctx, dataDir, prefix)
	if err != nil {
		log.Fatalf("Publish failed: %v", err)
	}
	if count == 0 {
		ux.Warning("No artifact documents found to publish.")
		return
	}
	ux.Success(fmt.Sprintf("Published %d artifact(s) to gs://%s/%s", count, bucket, prefix))
}

// humanSize renders a byte count with a binary unit suffix.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
