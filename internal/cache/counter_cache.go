// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
	"github.com/tomtom215/reelsync/internal/models"
)

var (
	// ErrCacheDisabled is returned by Set when the cache feature flag is off.
	ErrCacheDisabled = errors.New("watchlist cache disabled")

	// ErrFastTierMiss is returned by a FastTier when the key is absent.
	ErrFastTierMiss = errors.New("fast tier miss")
)

// FastTier is an ephemeral key-value store with per-key TTL.
type FastTier interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// DurableTier is the authoritative counter store. GetCounter returns
// (nil, nil) when the subject has no row.
type DurableTier interface {
	GetCounter(ctx context.Context, subject string) (*models.CachedCounter, error)
	PutCounter(ctx context.Context, c *models.CachedCounter) error
}

// CounterCacheOptions configures a CounterCache. Zero durations take the
// defaults: 12h TTL, 12h refresh window, 250ms fast-tier timeout.
type CounterCacheOptions struct {
	Enabled       bool
	FastTTL       time.Duration
	RefreshWindow time.Duration
	FastTimeout   time.Duration
	Now           func() time.Time
}

// CounterCache selects between the fast and durable tiers.
//
// Thread Safety: Safe for concurrent use if both tiers are.
type CounterCache struct {
	durable DurableTier
	fast    FastTier
	opts    CounterCacheOptions
}

// NewCounterCache creates a tiered counter cache. A nil fast tier makes
// every read go to the durable tier.
func NewCounterCache(durable DurableTier, fast FastTier, opts CounterCacheOptions) *CounterCache {
	if fast == nil {
		fast = missTier{}
	}
	if opts.FastTTL <= 0 {
		opts.FastTTL = 12 * time.Hour
	}
	if opts.RefreshWindow <= 0 {
		opts.RefreshWindow = 12 * time.Hour
	}
	if opts.FastTimeout <= 0 {
		opts.FastTimeout = 250 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CounterCache{durable: durable, fast: fast, opts: opts}
}

// CounterKey is the fast-tier key for subject.
func CounterKey(subject string) string {
	return "watchlist:count:" + subject
}

// Enabled reports the feature flag.
func (c *CounterCache) Enabled() bool {
	return c.opts.Enabled
}

// Get returns the counter for subject, or (nil, nil) when it is unknown or
// the cache is disabled. Only durable-tier failures are returned as errors.
func (c *CounterCache) Get(ctx context.Context, subject string) (*models.CachedCounter, error) {
	if !c.opts.Enabled {
		return nil, nil
	}

	now := c.opts.Now()
	if counter, ok := c.readFast(ctx, subject, now); ok {
		metrics.CacheHits.WithLabelValues("fast").Inc()
		return counter, nil
	}
	metrics.CacheMisses.WithLabelValues("fast").Inc()

	counter, err := c.durable.GetCounter(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("durable read %s: %w", subject, err)
	}
	if counter == nil {
		metrics.CacheMisses.WithLabelValues("durable").Inc()
		return nil, nil
	}
	metrics.CacheHits.WithLabelValues("durable").Inc()

	if !counter.IsFresh(now, c.opts.RefreshWindow) {
		counter.Stale = true
		metrics.CacheStaleServed.Inc()
	}
	return counter, nil
}

// readFast returns a fresh, well-formed fast-tier value. Everything else is
// a miss.
func (c *CounterCache) readFast(ctx context.Context, subject string, now time.Time) (*models.CachedCounter, bool) {
	fctx, cancel := context.WithTimeout(ctx, c.opts.FastTimeout)
	defer cancel()

	raw, err := c.fast.Get(fctx, CounterKey(subject))
	if err != nil {
		if !errors.Is(err, ErrFastTierMiss) {
			metrics.FastTierErrors.WithLabelValues("get").Inc()
			logging.Ctx(ctx).Debug().Err(err).Str("subject", subject).Msg("Fast tier read failed")
		}
		return nil, false
	}

	var counter models.CachedCounter
	if err := json.Unmarshal([]byte(raw), &counter); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("subject", subject).Msg("Fast tier payload malformed")
		return nil, false
	}
	if counter.Subject != subject || counter.Count < 0 {
		logging.Ctx(ctx).Debug().Str("subject", subject).Int64("count", counter.Count).Msg("Fast tier payload rejected")
		return nil, false
	}
	if !counter.IsFresh(now, c.opts.RefreshWindow) {
		return nil, false
	}

	counter.Stale = false
	return &counter, true
}

// Set writes counter to the durable tier and then to the fast tier. A
// fast-tier failure is logged and does not fail the call.
func (c *CounterCache) Set(ctx context.Context, counter *models.CachedCounter) error {
	if !c.opts.Enabled {
		return ErrCacheDisabled
	}

	stored := *counter
	stored.Stale = false
	if stored.Source == "" {
		stored.Source = models.SourceClient
	}
	stored.LastFetchedAt = stored.LastFetchedAt.UTC()

	if err := c.durable.PutCounter(ctx, &stored); err != nil {
		return fmt.Errorf("durable write %s: %w", stored.Subject, err)
	}

	payload, err := json.Marshal(&stored)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("subject", stored.Subject).Msg("Failed to encode counter for fast tier")
		return nil
	}

	fctx, cancel := context.WithTimeout(ctx, c.opts.FastTimeout)
	defer cancel()

	if err := c.fast.Set(fctx, CounterKey(stored.Subject), string(payload), c.opts.FastTTL); err != nil {
		metrics.FastTierErrors.WithLabelValues("set").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("subject", stored.Subject).Msg("Fast tier write failed")
	}
	return nil
}

// missTier stands in for an absent fast tier.
type missTier struct{}

func (missTier) Get(context.Context, string) (string, error) {
	return "", ErrFastTierMiss
}

func (missTier) Set(context.Context, string, string, time.Duration) error {
	return nil
}
