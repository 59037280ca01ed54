// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package textgen

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Backend is a single text-generation provider. Implementations translate
// provider failures into the package error taxonomy so the retry layer can
// tell transient faults from fatal ones.
type Backend interface {
	// Complete generates text for the prompt. Decoding parameters are
	// owned by the backend.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name identifies the provider for logging.
	Name() string

	// Model returns the model identifier, used in request fingerprints.
	Model() string
}

// NewBackendFromEnv constructs the backend named by TEXTGEN_BACKEND.
// Supported values are "openai" (default) and "ollama".
func NewBackendFromEnv() (Backend, error) {
	name := strings.ToLower(strings.TrimSpace(os.Getenv("TEXTGEN_BACKEND")))
	switch name {
	case "", "openai":
		return NewOpenAIBackend()
	case "ollama":
		return NewOllamaBackend()
	default:
		return nil, fmt.Errorf("unknown TEXTGEN_BACKEND %q (want openai or ollama)", name)
	}
}
