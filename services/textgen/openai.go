// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package textgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend generates text with the OpenAI chat completion API.
//
// The API key stays sealed in a KeyVault. Each call builds a short-lived
// client around a shared HTTP transport, so the key string only exists for
// the duration of the request while pooled connections are reused.
type OpenAIBackend struct {
	vault      *KeyVault
	httpClient *http.Client
	model      string
}

// NewOpenAIBackend reads OPENAI_API_KEY from the environment, falling back
// to the Podman secret file, and seals it.
func NewOpenAIBackend() (*OpenAIBackend, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API key from Podman secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}

	vault, err := NewKeyVault([]byte(apiKey))
	if err != nil {
		return nil, fmt.Errorf("seal OpenAI API key: %w", err)
	}

	slog.Info("Initializing OpenAI backend", "model", model, "secure_key", vault.Secure())
	return &OpenAIBackend{
		vault:      vault,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		model:      model,
	}, nil
}

// Name implements the Backend interface.
func (o *OpenAIBackend) Name() string { return "openai" }

// Model implements the Backend interface.
func (o *OpenAIBackend) Model() string { return o.model }

// Complete implements the Backend interface.
func (o *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	slog.Debug("Generating text via OpenAI", "model", o.model)

	persona := os.Getenv("TEXTGEN_PERSONA")
	if persona == "" {
		persona = "You are a concise market analyst. Write plain prose, no hype, no investment advice."
	}
	// Same options the Ollama backend sends: low temperature for steady
	// phrasing, completion clamp to keep summaries short.
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: persona},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:         0.3,
		MaxCompletionTokens: 600,
	}

	var resp openai.ChatCompletionResponse
	err := o.vault.WithSecret(func(secret string) error {
		cfg := openai.DefaultConfig(secret)
		cfg.HTTPClient = o.httpClient
		client := openai.NewClientWithConfig(cfg)

		var callErr error
		resp, callErr = client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return "", ErrEmptyCompletion
	}

	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError maps a provider failure onto the package error
// taxonomy. Network faults and timeouts count as transient; a canceled
// context passes through so callers stop instead of retrying.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	if status, ok := openAIStatusCode(err); ok {
		switch {
		case status == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthFailure, err)
		case status >= 500:
			return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		case status >= 400:
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

// openAIStatusCode extracts the HTTP status from go-openai's error types.
func openAIStatusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
