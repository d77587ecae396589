// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/metrics"
)

// maxErrorBodySize limits the maximum amount of response body read for error reporting
const maxErrorBodySize = 64 * 1024 // 64KB

// Classified upstream failures. Callers match them with errors.Is.
var (
	// ErrUpstreamAuth means TMDB rejected the credential (401/403).
	// Every later call would fail the same way, so runs abort on it.
	ErrUpstreamAuth = errors.New("tmdb rejected credentials")

	// ErrNotFound means the requested item does not exist (404).
	ErrNotFound = errors.New("tmdb item not found")

	// ErrRateLimited means TMDB kept answering 429 after every retry.
	ErrRateLimited = errors.New("tmdb rate limit exceeded")

	// ErrMalformedResponse means a 200 response did not match the schema.
	ErrMalformedResponse = errors.New("tmdb response malformed")
)

// StatusError carries an unexpected upstream status with a capped body.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// readBodyForError reads the response body for error reporting (max 64KB)
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// apiRequest holds parameters for a TMDB API request
type apiRequest struct {
	endpoint string // metric label, e.g. "discover"
	path     string
	params   url.Values
}

func newAPIRequest(endpoint, path string) *apiRequest {
	return &apiRequest{
		endpoint: endpoint,
		path:     path,
		params:   url.Values{},
	}
}

// addParam adds a parameter to the request
func (r *apiRequest) addParam(key, value string) *apiRequest {
	if value != "" {
		r.params.Set(key, value)
	}
	return r
}

// addIntParam adds an integer parameter to the request (only if > 0)
func (r *apiRequest) addIntParam(key string, value int) *apiRequest {
	if value > 0 {
		r.params.Set(key, strconv.Itoa(value))
	}
	return r
}

// buildURL constructs the full URL with the static api_key credential.
func (r *apiRequest) buildURL(baseURL, apiKey string) string {
	params := url.Values{}
	for k, v := range r.params {
		params[k] = v
	}
	params.Set("api_key", apiKey)
	return strings.TrimRight(baseURL, "/") + r.path + "?" + params.Encode()
}

// retryable reports whether a status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryDelay returns the wait before the next attempt. A Retry-After header
// given in seconds wins over the exponential schedule.
func retryDelay(resp *http.Response, base time.Duration, attempt int) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return base * time.Duration(1<<uint(attempt))
}

// doRequestWithRetry performs a paced GET and retries 429 and 5xx answers
// with exponential backoff. The returned response always has status 200;
// any other final status is converted into a classified error.
func (c *TMDBClient) doRequestWithRetry(ctx context.Context, req *apiRequest) (*http.Response, error) {
	reqURL := req.buildURL(c.baseURL, c.apiKey)

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.client.Do(httpReq)
		if err != nil {
			metrics.RecordTMDBRequest(req.endpoint, 0, time.Since(start))
			return nil, fmt.Errorf("%s request failed: %w", req.endpoint, err)
		}
		metrics.RecordTMDBRequest(req.endpoint, resp.StatusCode, time.Since(start))

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		if !retryable(resp.StatusCode) || attempt >= c.maxRetries {
			defer resp.Body.Close()
			return nil, classifyStatus(req.endpoint, resp)
		}

		delay := retryDelay(resp, c.retryBaseDelay, attempt)
		_ = resp.Body.Close()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// classifyStatus maps a final non-200 response onto the sentinel errors.
func classifyStatus(endpoint string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w (status %d)", endpoint, ErrUpstreamAuth, resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", endpoint, ErrRateLimited)
	}
	return &StatusError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Body:       string(readBodyForError(resp.Body)),
	}
}

// getJSON executes req and decodes the body into T.
func getJSON[T any](ctx context.Context, c *TMDBClient, req *apiRequest) (*T, error) {
	resp, err := c.doRequestWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", req.endpoint, ErrMalformedResponse, err)
	}
	return &result, nil
}
