// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package cache serves watchlist counters through two tiers and throttles
counter writes.

# Tiers

CounterCache reads the fast tier first and falls back to the durable tier:

	fast (Redis or in-process)  -->  durable (DuckDB watchlist_counts)

The fast tier is ephemeral: entries expire after cache.fast_tier_ttl and
any fast-tier failure (miss, error, timeout, undecodable payload) is treated
as a miss. The durable tier is authoritative. Writes go to the durable tier
first and then, best effort, to the fast tier.

A durable value older than cache.refresh_window is still served, flagged
Stale, so callers can refresh it in the background.

# Feature Flag

When cache.enabled is false, Get returns (nil, nil) and Set returns
ErrCacheDisabled without touching either tier.

# Rate Limiting

SlidingWindowLimiter counts requests per key in fixed windows held in
process memory. Windows are lost on restart, so the limiter is a soft
throttle, not a quota.

Usage:

	fast := cache.NewRedisTier(redisClient)
	counters := cache.NewCounterCache(db, fast, cache.CounterCacheOptions{
	    Enabled:       cfg.Cache.Enabled,
	    FastTTL:       cfg.Cache.FastTierTTL,
	    RefreshWindow: cfg.Cache.RefreshWindow,
	})

	limiter := cache.NewSlidingWindowLimiter(6, 10*time.Minute)
	if d := limiter.Check(ip + ":" + subject); !d.Allowed {
	    // 429 with d.RetryAfter
	}
*/
package cache
