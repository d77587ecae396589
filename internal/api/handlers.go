// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

// Package api is the HTTP surface: sync triggers, sync status, and the
// watchlist counter endpoints, routed with chi.
package api

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tomtom215/reelsync/internal/cache"
	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/models"
)

// SyncRunner runs sync modes and reports cursor state.
type SyncRunner interface {
	Run(ctx context.Context, req models.SyncRequest) (*models.SyncResult, error)
	Status(ctx context.Context) (*models.SyncStatus, error)
}

// CounterStore reads and writes watchlist counters.
type CounterStore interface {
	Enabled() bool
	Get(ctx context.Context, subject string) (*models.CachedCounter, error)
	Set(ctx context.Context, counter *models.CachedCounter) error
}

// CatalogStore is the read side of the mirrored catalog.
type CatalogStore interface {
	Ping(ctx context.Context) error
	// GetMovie returns nil, nil when id is not mirrored.
	GetMovie(ctx context.Context, id int64) (*models.MovieRecord, error)
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, shared helpers
//   - handlers_health.go: liveness and readiness
//   - handlers_sync.go: sync trigger and status
//   - handlers_movies.go: mirrored movie lookup
//   - handlers_counters.go: watchlist counter read and write
type Handler struct {
	sync      SyncRunner
	counters  CounterStore
	limiter   *cache.SlidingWindowLimiter
	db        CatalogStore
	cacheCfg  config.CacheConfig
	startTime time.Time
	now       func() time.Time
}

// NewHandler creates the API handler. limiter may be nil, in which case
// counter writes are not throttled per subject.
func NewHandler(syncRunner SyncRunner, counters CounterStore, limiter *cache.SlidingWindowLimiter, db CatalogStore, cacheCfg *config.CacheConfig) *Handler {
	cfg := *cacheCfg
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = 1024
	}
	return &Handler{
		sync:      syncRunner,
		counters:  counters,
		limiter:   limiter,
		db:        db,
		cacheCfg:  cfg,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// errPayloadTooLarge is returned by readBody when the cap is exceeded.
var errPayloadTooLarge = errors.New("payload too large")

// readBody reads at most limit bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errPayloadTooLarge
		}
		return nil, err
	}
	return body, nil
}

// clientIP returns the remote host without its port. RealIP has already
// replaced RemoteAddr when a trusted forwarding header was present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
