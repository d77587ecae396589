// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package cache

import (
	"sync"
	"time"

	"github.com/tomtom215/reelsync/internal/metrics"
)

// Window is the request count of one key in its current window.
type Window struct {
	Count   int
	ResetAt time.Time
}

// WindowStore holds per-key windows. Implementations need not be safe for
// concurrent use; SlidingWindowLimiter serializes access.
type WindowStore interface {
	Get(key string) (Window, bool)
	Put(key string, w Window)
	Delete(key string)
	Range(fn func(key string, w Window) bool)
	Len() int
}

// MapWindowStore is the default in-memory WindowStore.
type MapWindowStore struct {
	windows map[string]Window
}

// NewMapWindowStore creates an empty store.
func NewMapWindowStore() *MapWindowStore {
	return &MapWindowStore{windows: make(map[string]Window)}
}

func (s *MapWindowStore) Get(key string) (Window, bool) {
	w, ok := s.windows[key]
	return w, ok
}

func (s *MapWindowStore) Put(key string, w Window) {
	s.windows[key] = w
}

func (s *MapWindowStore) Delete(key string) {
	delete(s.windows, key)
}

// Range calls fn for every window until fn returns false. Deleting the
// current key from fn is allowed.
func (s *MapWindowStore) Range(fn func(key string, w Window) bool) {
	for k, w := range s.windows {
		if !fn(k, w) {
			return
		}
	}
}

func (s *MapWindowStore) Len() int {
	return len(s.windows)
}

// Decision is the outcome of one Check.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// LimiterOption configures a SlidingWindowLimiter.
type LimiterOption func(*SlidingWindowLimiter)

// WithClock injects the time source.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *SlidingWindowLimiter) { l.now = now }
}

// WithStore replaces the in-memory window store.
func WithStore(store WindowStore) LimiterOption {
	return func(l *SlidingWindowLimiter) { l.store = store }
}

// WithMaxKeys bounds the number of tracked keys. When a new key arrives at
// capacity, an arbitrary window is evicted. 0 means unbounded.
func WithMaxKeys(n int) LimiterOption {
	return func(l *SlidingWindowLimiter) { l.maxKeys = n }
}

// WithScope sets the label used for the denied-requests metric.
func WithScope(scope string) LimiterOption {
	return func(l *SlidingWindowLimiter) { l.scope = scope }
}

// WithSweepInterval sets the minimum time between full sweeps of expired
// windows. Non-positive values are ignored.
func WithSweepInterval(d time.Duration) LimiterOption {
	return func(l *SlidingWindowLimiter) {
		if d > 0 {
			l.sweepInterval = d
		}
	}
}

// defaultSweepInterval caps how often Check walks every tracked window.
const defaultSweepInterval = time.Second

// SlidingWindowLimiter allows at most limit requests per key per window.
// A key's window starts at its first request and resets after window.
// Expired windows are dropped lazily, at most once per sweep interval.
//
// Thread Safety: Safe for concurrent use.
type SlidingWindowLimiter struct {
	mu            sync.Mutex
	limit         int
	window        time.Duration
	store         WindowStore
	now           func() time.Time
	maxKeys       int
	scope         string
	sweepInterval time.Duration
	lastSweep     time.Time
}

// NewSlidingWindowLimiter creates a limiter. Non-positive arguments take
// the defaults of 6 requests per 10 minutes.
func NewSlidingWindowLimiter(limit int, window time.Duration, opts ...LimiterOption) *SlidingWindowLimiter {
	if limit <= 0 {
		limit = 6
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	l := &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		store:  NewMapWindowStore(),
		now:    time.Now,
		scope:  "counter_write",

		sweepInterval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.sweepInterval > window {
		l.sweepInterval = window
	}
	return l
}

// Check records one request for key and reports whether it is allowed.
func (l *SlidingWindowLimiter) Check(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.sweepLocked(now)
	}

	w, ok := l.store.Get(key)
	if ok && !now.Before(w.ResetAt) {
		l.store.Delete(key)
		ok = false
	}
	if !ok {
		if l.maxKeys > 0 && l.store.Len() >= l.maxKeys {
			l.evictOneLocked()
		}
		w = Window{Count: 1, ResetAt: now.Add(l.window)}
		l.store.Put(key, w)
		metrics.RateLimitTrackedKeys.Set(float64(l.store.Len()))
		return Decision{Allowed: true, Remaining: l.limit - 1, ResetAt: w.ResetAt}
	}

	if w.Count >= l.limit {
		metrics.RateLimitDenied.WithLabelValues(l.scope).Inc()
		return Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    w.ResetAt,
			RetryAfter: w.ResetAt.Sub(now),
		}
	}

	w.Count++
	l.store.Put(key, w)
	return Decision{Allowed: true, Remaining: l.limit - w.Count, ResetAt: w.ResetAt}
}

// Len returns the number of tracked keys.
func (l *SlidingWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Len()
}

// sweepLocked drops windows that have reset. Must be called with lock held.
func (l *SlidingWindowLimiter) sweepLocked(now time.Time) {
	l.lastSweep = now
	var expired []string
	l.store.Range(func(key string, w Window) bool {
		if !now.Before(w.ResetAt) {
			expired = append(expired, key)
		}
		return true
	})
	for _, key := range expired {
		l.store.Delete(key)
	}
	if len(expired) > 0 {
		metrics.RateLimitTrackedKeys.Set(float64(l.store.Len()))
	}
}

// evictOneLocked removes an arbitrary window. Must be called with lock held.
func (l *SlidingWindowLimiter) evictOneLocked() {
	var victim string
	found := false
	l.store.Range(func(key string, _ Window) bool {
		victim, found = key, true
		return false
	})
	if found {
		l.store.Delete(victim)
	}
}
