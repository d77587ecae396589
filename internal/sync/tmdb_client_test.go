// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/reelsync/internal/config"
)

// newTestTMDBClient returns a client pointed at srv with fast retries and
// no pacing.
func newTestTMDBClient(t *testing.T, srv *httptest.Server) *TMDBClient {
	t.Helper()
	client, err := NewTMDBClient(&config.TMDBConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		Timeout:        5 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewTMDBClient: %v", err)
	}
	return client
}

func TestNewTMDBClient_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewTMDBClient(&config.TMDBConfig{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestTMDBClient_DiscoverQuery(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":603,"title":"The Matrix"}],"total_pages":1,"total_results":1}`))
	}))
	defer srv.Close()

	client := newTestTMDBClient(t, srv)
	page, err := client.Discover(context.Background(), DiscoverParams{
		Page:           1,
		ReleaseDateGTE: "2025-01-01",
		ReleaseDateLTE: "2025-12-31",
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if gotPath != "/discover/movie" {
		t.Errorf("path = %q, want /discover/movie", gotPath)
	}
	want := map[string]string{
		"api_key":                  "test-key",
		"sort_by":                  "popularity.desc",
		"include_adult":            "false",
		"page":                     "1",
		"primary_release_date.gte": "2025-01-01",
		"primary_release_date.lte": "2025-12-31",
	}
	for k, v := range want {
		if got := gotQuery.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
	if len(page.Results) != 1 || page.Results[0].ID != 603 {
		t.Errorf("unexpected results: %+v", page.Results)
	}
}

func TestTMDBClient_DiscoverOmitsEmptyDateBounds(t *testing.T) {
	t.Parallel()

	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"page":1,"results":[],"total_pages":1}`))
	}))
	defer srv.Close()

	if _, err := newTestTMDBClient(t, srv).Discover(context.Background(), DiscoverParams{Page: 1}); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if strings.Contains(rawQuery, "primary_release_date") {
		t.Errorf("query should not carry date bounds: %s", rawQuery)
	}
}

func TestTMDBClient_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantErr   error
		wantCalls int32
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUpstreamAuth, 1},
		{"forbidden", http.StatusForbidden, ErrUpstreamAuth, 1},
		{"not found", http.StatusNotFound, ErrNotFound, 1},
		{"rate limited after retries", http.StatusTooManyRequests, ErrRateLimited, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestTMDBClient(t, srv).MovieDetail(context.Background(), 42)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestTMDBClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":42,"title":"Answer"}`))
	}))
	defer srv.Close()

	detail, err := newTestTMDBClient(t, srv).MovieDetail(context.Background(), 42)
	if err != nil {
		t.Fatalf("MovieDetail: %v", err)
	}
	if detail.Title != "Answer" {
		t.Errorf("title = %q", detail.Title)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestTMDBClient_ServerErrorExhaustsRetries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := newTestTMDBClient(t, srv).MovieDetail(context.Background(), 1)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || statusErr.Body != "upstream down" {
		t.Errorf("unexpected status error: %+v", statusErr)
	}
	if structural(context.Background(), err) != nil {
		t.Error("a 5xx must not be structural")
	}
}

func TestTMDBClient_MalformedResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		call func(*TMDBClient) error
	}{
		{
			name: "invalid json",
			body: `{"id":`,
			call: func(c *TMDBClient) error {
				_, err := c.MovieDetail(context.Background(), 1)
				return err
			},
		},
		{
			name: "detail without id",
			body: `{"title":"No Id"}`,
			call: func(c *TMDBClient) error {
				_, err := c.MovieDetail(context.Background(), 1)
				return err
			},
		},
		{
			name: "discover without results",
			body: `{"page":1,"total_pages":3}`,
			call: func(c *TMDBClient) error {
				_, err := c.Discover(context.Background(), DiscoverParams{Page: 1})
				return err
			},
		},
		{
			name: "changes with invalid id",
			body: `{"page":1,"results":[{"id":0}],"total_pages":1}`,
			call: func(c *TMDBClient) error {
				_, err := c.Changes(context.Background(), time.Now(), 1)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := tt.call(newTestTMDBClient(t, srv))
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("err = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestTMDBClient_ChangesStartDate(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"page":2,"results":[{"id":7,"adult":null}],"total_pages":2}`))
	}))
	defer srv.Close()

	since := time.Date(2025, 3, 9, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	page, err := newTestTMDBClient(t, srv).Changes(context.Background(), since, 2)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if got := gotQuery.Get("start_date"); got != "2025-03-10" {
		t.Errorf("start_date = %q, want UTC day 2025-03-10", got)
	}
	if got := gotQuery.Get("page"); got != "2" {
		t.Errorf("page = %q", got)
	}
	if page.Results[0].Adult != nil {
		t.Error("null adult should decode to nil")
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	resp := &http.Response{Header: http.Header{}}
	if got := retryDelay(resp, 100*time.Millisecond, 2); got != 400*time.Millisecond {
		t.Errorf("exponential delay = %v, want 400ms", got)
	}

	resp.Header.Set("Retry-After", "3")
	if got := retryDelay(resp, 100*time.Millisecond, 0); got != 3*time.Second {
		t.Errorf("Retry-After delay = %v, want 3s", got)
	}
}

func TestReadBodyForError_Truncates(t *testing.T) {
	t.Parallel()

	body := readBodyForError(strings.NewReader(strings.Repeat("x", maxErrorBodySize+100)))
	if !strings.HasSuffix(string(body), "(truncated)") {
		t.Error("expected truncation marker")
	}

	short := readBodyForError(strings.NewReader("short"))
	if string(short) != "short" {
		t.Errorf("body = %q", short)
	}
}
