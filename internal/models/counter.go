// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package models

import "time"

// CounterSource records who produced a counter value.
type CounterSource string

const (
	// SourceClient marks a count submitted by a browser client.
	SourceClient CounterSource = "client"
	// SourceServer marks a count derived by the server itself.
	SourceServer CounterSource = "server"
)

// Valid reports whether s is a known source.
func (s CounterSource) Valid() bool {
	return s == SourceClient || s == SourceServer
}

// CachedCounter is a subject's watchlist size.
//
// The durable tier holds the authoritative copy; the fast tier holds an
// ephemeral copy that may lag or vanish when its TTL expires.
type CachedCounter struct {
	Subject       string        `json:"subject"`
	Count         int64         `json:"count"`
	LastFetchedAt time.Time     `json:"lastFetchedAt"`
	Source        CounterSource `json:"source"`
	ETag          string        `json:"etag,omitempty"`

	// Stale is set on read when LastFetchedAt is past the refresh window.
	// It is never persisted.
	Stale bool `json:"stale,omitempty"`
}

// IsFresh reports whether the counter was fetched within window of now.
func (c *CachedCounter) IsFresh(now time.Time, window time.Duration) bool {
	return !c.LastFetchedAt.IsZero() && now.Sub(c.LastFetchedAt) <= window
}
