// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTP backend limits.
const (
	// DefaultHTTPTimeout bounds a single inference request.
	DefaultHTTPTimeout = 60 * time.Second

	// MaxResponseSize caps the response body read into memory.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

// Errors returned by the HTTP backend.
var (
	// ErrNotConfigured indicates the base URL is not set.
	ErrNotConfigured = errors.New("inference service URL not configured")

	// ErrAuthFailed indicates the service rejected our credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the service is shedding load.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model is not served.
	ErrModelNotFound = errors.New("model not found")
)

// APIError is a non-OK response from the inference service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("inference service error (HTTP %d): %s", e.Status, e.Message)
}

// HTTPConfig holds connection settings for a remote inference service.
type HTTPConfig struct {
	// BaseURL is the service root, for example "http://localhost:11434".
	BaseURL string `toml:"base_url" json:"base_url"`
	// APIKey is sent as a bearer token when set.
	APIKey string `toml:"api_key" json:"api_key"`
	// Timeout bounds each request. Non-positive uses DefaultHTTPTimeout.
	Timeout time.Duration `toml:"timeout" json:"timeout"`
}

// generateRequest is the body for the /api/generate endpoint.
type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// generateResponse is the non-streaming /api/generate response.
type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// apiErrorResponse is the service's error body shape.
type apiErrorResponse struct {
	Error string `json:"error"`
}

// HTTP serves a tier from a remote inference service speaking the
// generate API. Each invocation is a single attempt: retries are a
// caller decision, and the router deliberately makes none.
type HTTP struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTP returns an HTTP invoker for the given service.
func NewHTTP(cfg HTTPConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTP{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Kind implements Invoker.
func (h *HTTP) Kind() Kind { return KindHTTP }

// BaseURL returns the configured service root.
func (h *HTTP) BaseURL() string { return h.baseURL }

// Invoke implements Invoker. The model and token budget come from the
// tier the router selected.
func (h *HTTP) Invoke(ctx context.Context, req Request) (string, error) {
	if h.baseURL == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{
		Model:   req.Tier.Model,
		Prompt:  req.Query,
		Stream:  false,
		Options: &generateOptions{NumPredict: req.Tier.MaxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	h.setHeaders(httpReq)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", handleErrorResponse(resp.StatusCode, respBody)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("parse generate response: %w", err)
	}
	return genResp.Response, nil
}

func (h *HTTP) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "valvegate/0.1")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
}

// readResponse reads the body under the size cap so a misbehaving service
// cannot exhaust memory.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse maps HTTP error statuses to backend errors.
func handleErrorResponse(statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		message = apiErr.Error
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	default:
		return &APIError{Status: statusCode, Message: message}
	}
}
