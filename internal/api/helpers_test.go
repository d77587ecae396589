// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/cache"
	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/models"
)

var apiNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

const testAdminToken = "s3cret-admin"

// mockSyncRunner is a test double for SyncRunner.
type mockSyncRunner struct {
	mu        sync.Mutex
	requests  []models.SyncRequest
	result    *models.SyncResult
	err       error
	status    *models.SyncStatus
	statusErr error
}

func (m *mockSyncRunner) Run(_ context.Context, req models.SyncRequest) (*models.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.result, m.err
}

func (m *mockSyncRunner) Status(context.Context) (*models.SyncStatus, error) {
	return m.status, m.statusErr
}

func (m *mockSyncRunner) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// memoryDurable is an in-memory cache.DurableTier.
type memoryDurable struct {
	mu       sync.Mutex
	counters map[string]models.CachedCounter
	err      error
}

func newMemoryDurable() *memoryDurable {
	return &memoryDurable{counters: make(map[string]models.CachedCounter)}
}

func (d *memoryDurable) GetCounter(_ context.Context, subject string) (*models.CachedCounter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c, ok := d.counters[subject]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (d *memoryDurable) PutCounter(_ context.Context, c *models.CachedCounter) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.counters[c.Subject] = *c
	return nil
}

// fakeCatalog is an in-memory CatalogStore.
type fakeCatalog struct {
	pingErr  error
	movieErr error
	movies   map[int64]models.MovieRecord
}

func (c *fakeCatalog) Ping(context.Context) error { return c.pingErr }

func (c *fakeCatalog) GetMovie(_ context.Context, id int64) (*models.MovieRecord, error) {
	if c.movieErr != nil {
		return nil, c.movieErr
	}
	m, ok := c.movies[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

type testServer struct {
	handler http.Handler
	runner  *mockSyncRunner
	durable *memoryDurable
	catalog *fakeCatalog
	clock   *time.Time
}

type serverOption func(*serverSetup)

type serverSetup struct {
	cacheEnabled bool
	adminToken   string
	writeLimit   int
	pingErr      error
}

func withCacheDisabled() serverOption { return func(s *serverSetup) { s.cacheEnabled = false } }
func withAdminToken(t string) serverOption {
	return func(s *serverSetup) { s.adminToken = t }
}
func withWriteLimit(n int) serverOption { return func(s *serverSetup) { s.writeLimit = n } }
func withPingError(err error) serverOption {
	return func(s *serverSetup) { s.pingErr = err }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	setup := serverSetup{cacheEnabled: true, writeLimit: 6}
	for _, opt := range opts {
		opt(&setup)
	}

	now := apiNow
	clock := &now
	nowFn := func() time.Time { return *clock }

	durable := newMemoryDurable()
	counters := cache.NewCounterCache(durable, cache.NewMemoryTier(100), cache.CounterCacheOptions{
		Enabled:       setup.cacheEnabled,
		FastTTL:       12 * time.Hour,
		RefreshWindow: 12 * time.Hour,
		FastTimeout:   50 * time.Millisecond,
		Now:           nowFn,
	})
	limiter := cache.NewSlidingWindowLimiter(setup.writeLimit, 10*time.Minute, cache.WithClock(nowFn))

	runner := &mockSyncRunner{}
	catalog := &fakeCatalog{pingErr: setup.pingErr, movies: make(map[int64]models.MovieRecord)}
	h := NewHandler(runner, counters, limiter, catalog, &config.CacheConfig{MaxPayloadBytes: 1024})
	h.now = nowFn

	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.AdminToken = setup.adminToken
	mwCfg.RateLimitDisabled = true

	return &testServer{
		handler: NewRouter(h, NewChiMiddleware(mwCfg)).SetupChi(),
		runner:  runner,
		durable: durable,
		catalog: catalog,
		clock:   clock,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(t *testing.T, path string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, path, mustMarshal(t, v), nil)
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	if raw, ok := v.(string); ok {
		return []byte(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// decodedResponse is APIResponse with raw data for per-test decoding.
type decodedResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string                 `json:"code"`
		Message   string                 `json:"message"`
		Details   map[string]interface{} `json:"details"`
		RequestID string                 `json:"request_id"`
	} `json:"error"`
	Meta *APIMeta `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) decodedResponse {
	t.Helper()
	var resp decodedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) decodedResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	resp := decode(t, rec)
	if resp.Success || resp.Error == nil {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	if resp.Error.Code != code {
		t.Fatalf("error code = %s, want %s", resp.Error.Code, code)
	}
	return resp
}

var errBoom = errors.New("boom")
