// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/models"
	"github.com/tomtom215/reelsync/internal/testinfra"
)

func newRedisTier(t *testing.T) *RedisTier {
	t.Helper()
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	container, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	testinfra.CleanupContainer(t, container)

	tier := NewRedisTier(NewRedisClient(&config.CacheConfig{RedisAddr: container.Addr}))
	t.Cleanup(func() { _ = tier.Close() })

	if err := tier.Ping(ctx); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	return tier
}

func TestRedisTier_Integration(t *testing.T) {
	tier := newRedisTier(t)
	ctx := context.Background()

	if _, err := tier.Get(ctx, CounterKey("nobody")); !errors.Is(err, ErrFastTierMiss) {
		t.Fatalf("missing key: err = %v, want ErrFastTierMiss", err)
	}

	if err := tier.Set(ctx, "k", "v", time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := tier.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}

	time.Sleep(1500 * time.Millisecond)
	if _, err := tier.Get(ctx, "k"); !errors.Is(err, ErrFastTierMiss) {
		t.Errorf("expired key: err = %v", err)
	}
}

func TestCounterCache_RedisIntegration(t *testing.T) {
	tier := newRedisTier(t)
	durable := newFakeDurable()
	c := NewCounterCache(durable, tier, CounterCacheOptions{
		Enabled:     true,
		FastTTL:     time.Hour,
		FastTimeout: time.Second,
	})
	ctx := context.Background()

	in := models.CachedCounter{Subject: "dave", Count: 21, LastFetchedAt: time.Now()}
	if err := c.Set(ctx, &in); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "dave")
	if err != nil || got == nil || got.Count != 21 {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if durable.gets != 0 {
		t.Error("Get after Set should be served by Redis")
	}
}
