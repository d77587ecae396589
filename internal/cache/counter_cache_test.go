// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/models"
)

var cacheNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeDurable struct {
	mu       sync.Mutex
	counters map[string]models.CachedCounter
	getErr   error
	putErr   error
	gets     int
	puts     int
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{counters: make(map[string]models.CachedCounter)}
}

func (d *fakeDurable) GetCounter(_ context.Context, subject string) (*models.CachedCounter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gets++
	if d.getErr != nil {
		return nil, d.getErr
	}
	c, ok := d.counters[subject]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (d *fakeDurable) PutCounter(_ context.Context, c *models.CachedCounter) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.puts++
	if d.putErr != nil {
		return d.putErr
	}
	d.counters[c.Subject] = *c
	return nil
}

// fakeFast is a FastTier with injectable failures.
type fakeFast struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
	block  bool
}

func newFakeFast() *fakeFast {
	return &fakeFast{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeFast) Get(ctx context.Context, key string) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", ErrFastTierMiss
	}
	return v, nil
}

func (f *fakeFast) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeFast) put(t *testing.T, c models.CachedCounter) {
	t.Helper()
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	f.values[CounterKey(c.Subject)] = string(b)
}

func newTestCache(durable DurableTier, fast FastTier, enabled bool) *CounterCache {
	return NewCounterCache(durable, fast, CounterCacheOptions{
		Enabled:       enabled,
		FastTTL:       12 * time.Hour,
		RefreshWindow: 12 * time.Hour,
		FastTimeout:   50 * time.Millisecond,
		Now:           func() time.Time { return cacheNow },
	})
}

func counter(subject string, count int64, age time.Duration) models.CachedCounter {
	return models.CachedCounter{
		Subject:       subject,
		Count:         count,
		LastFetchedAt: cacheNow.Add(-age),
		Source:        models.SourceClient,
	}
}

func TestCounterCache_DisabledBypassesTiers(t *testing.T) {
	t.Parallel()

	durable := newFakeDurable()
	fast := newFakeFast()
	c := newTestCache(durable, fast, false)

	got, err := c.Get(context.Background(), "alice")
	if err != nil || got != nil {
		t.Fatalf("Get = %v, %v; want nil, nil", got, err)
	}

	in := counter("alice", 3, 0)
	if err := c.Set(context.Background(), &in); !errors.Is(err, ErrCacheDisabled) {
		t.Fatalf("Set err = %v, want ErrCacheDisabled", err)
	}
	if durable.gets != 0 || durable.puts != 0 || len(fast.values) != 0 {
		t.Error("disabled cache must not touch either tier")
	}
}

func TestCounterCache_FastHit(t *testing.T) {
	t.Parallel()

	durable := newFakeDurable()
	fast := newFakeFast()
	fast.put(t, counter("alice", 42, time.Hour))
	c := newTestCache(durable, fast, true)

	got, err := c.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Count != 42 || got.Stale {
		t.Fatalf("got %+v, want fresh count 42", got)
	}
	if durable.gets != 0 {
		t.Error("fast hit must not read the durable tier")
	}
}

func TestCounterCache_FallsBackToDurable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(*testing.T, *fakeFast)
	}{
		{"miss", func(*testing.T, *fakeFast) {}},
		{"error", func(_ *testing.T, f *fakeFast) { f.getErr = errors.New("connection refused") }},
		{"timeout", func(_ *testing.T, f *fakeFast) { f.block = true }},
		{"empty payload", func(_ *testing.T, f *fakeFast) { f.values[CounterKey("alice")] = "" }},
		{"malformed payload", func(_ *testing.T, f *fakeFast) { f.values[CounterKey("alice")] = "{not json" }},
		{"negative count", func(t *testing.T, f *fakeFast) { f.put(t, counter("alice", -1, 0)) }},
		{"other subject", func(t *testing.T, f *fakeFast) {
			f.values[CounterKey("alice")] = mustJSON(t, counter("bob", 9, 0))
		}},
		{"stale fast value", func(t *testing.T, f *fakeFast) { f.put(t, counter("alice", 99, 13*time.Hour)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			durable := newFakeDurable()
			durable.counters["alice"] = counter("alice", 7, time.Hour)
			fast := newFakeFast()
			tt.prepare(t, fast)
			c := newTestCache(durable, fast, true)

			got, err := c.Get(context.Background(), "alice")
			if err != nil {
				t.Fatalf("fast tier problems must not surface: %v", err)
			}
			if got == nil || got.Count != 7 {
				t.Fatalf("got %+v, want durable count 7", got)
			}
			if durable.gets != 1 {
				t.Errorf("durable gets = %d, want 1", durable.gets)
			}
		})
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestCounterCache_StaleDurableIsServed(t *testing.T) {
	t.Parallel()

	durable := newFakeDurable()
	durable.counters["alice"] = counter("alice", 5, 48*time.Hour)
	c := newTestCache(durable, newFakeFast(), true)

	got, err := c.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || !got.Stale || got.Count != 5 {
		t.Fatalf("got %+v, want stale count 5", got)
	}
}

func TestCounterCache_AbsentAndDurableError(t *testing.T) {
	t.Parallel()

	durable := newFakeDurable()
	c := newTestCache(durable, nil, true)

	got, err := c.Get(context.Background(), "nobody")
	if err != nil || got != nil {
		t.Fatalf("absent subject: got %v, %v", got, err)
	}

	durable.getErr = errors.New("database is closed")
	if _, err := c.Get(context.Background(), "alice"); !errors.Is(err, durable.getErr) {
		t.Fatalf("durable error should be wrapped, got %v", err)
	}
}

func TestCounterCache_SetWritesBothTiers(t *testing.T) {
	t.Parallel()

	durable := newFakeDurable()
	fast := newFakeFast()
	c := newTestCache(durable, fast, true)

	in := models.CachedCounter{Subject: "alice", Count: 12, LastFetchedAt: cacheNow, Stale: true}
	if err := c.Set(context.Background(), &in); err != nil {
		t.Fatalf("Set: %v", err)
	}

	stored := durable.counters["alice"]
	if stored.Count != 12 || stored.Source != models.SourceClient || stored.Stale {
		t.Errorf("durable = %+v", stored)
	}
	if fast.ttls[CounterKey("alice")] != 12*time.Hour {
		t.Errorf("fast ttl = %v", fast.ttls[CounterKey("alice")])
	}

	// The fast copy is now what Get serves.
	got, err := c.Get(context.Background(), "alice")
	if err != nil || got == nil || got.Count != 12 {
		t.Fatalf("Get after Set = %+v, %v", got, err)
	}
	if durable.gets != 0 {
		t.Error("Get after Set should be a fast hit")
	}
}

func TestCounterCache_SetSurvivesBrokenFastTier(t *testing.T) {
	t.Parallel()

	for _, fast := range []*fakeFast{
		{values: map[string]string{}, ttls: map[string]time.Duration{}, setErr: errors.New("READONLY")},
		{values: map[string]string{}, ttls: map[string]time.Duration{}, block: true},
	} {
		durable := newFakeDurable()
		c := newTestCache(durable, fast, true)

		in := counter("alice", 1, 0)
		if err := c.Set(context.Background(), &in); err != nil {
			t.Fatalf("Set with broken fast tier: %v", err)
		}
		if _, ok := durable.counters["alice"]; !ok {
			t.Error("durable write missing")
		}
	}
}

func TestCounterCache_SetDurableFailure(t *testing.T) {
	t.Parallel()

	durable := newFakeDurable()
	durable.putErr = errors.New("disk full")
	fast := newFakeFast()
	c := newTestCache(durable, fast, true)

	in := counter("alice", 1, 0)
	if err := c.Set(context.Background(), &in); !errors.Is(err, durable.putErr) {
		t.Fatalf("Set err = %v, want durable error", err)
	}
	if len(fast.values) != 0 {
		t.Error("fast tier must not be written when the durable write fails")
	}
}

func TestCounterCache_WithMemoryTier(t *testing.T) {
	t.Parallel()

	durable := newFakeDurable()
	c := newTestCache(durable, NewMemoryTier(10), true)

	in := counter("carol", 30, 0)
	if err := c.Set(context.Background(), &in); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(context.Background(), "carol")
	if err != nil || got == nil || got.Count != 30 {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if durable.gets != 0 {
		t.Error("memory tier should answer")
	}
}
