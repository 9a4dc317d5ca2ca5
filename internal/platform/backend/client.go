// Package backend is the HTTP client for the school REST API. Every call
// carries the caller's bearer credential and decodes the API envelope.
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

// ErrUnavailable wraps transport failures reaching the API.
var ErrUnavailable = errors.New("backend: unavailable")

// Envelope is the response wrapper used by every API endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is returned when the API answers with a failure.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.Status)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
}

// Rejected reports whether the API refused the request itself: a 400 or 401,
// or a 2xx envelope with success=false. Other statuses mean the API could not
// answer properly.
func (e *APIError) Rejected() bool {
	switch {
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnauthorized:
		return true
	case e.Status >= 200 && e.Status <= 299:
		return true
	}
	return false
}

// Client talks to the API under baseURL.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client. A zero timeout leaves the http.Client default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Do sends body as JSON to path and decodes the envelope data into out.
// token may be empty for anonymous calls.
func (c *Client) Do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{Status: res.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return fmt.Errorf("backend: decode envelope: %w", decodeErr)
	}
	if !env.Success {
		return &APIError{Status: res.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("backend: decode data: %w", err)
	}
	return nil
}
