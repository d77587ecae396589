// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/reelsync/internal/models"
)

// Validate checks the loaded configuration for values the components cannot run with.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.Sync.ScheduleEnabled && strings.TrimSpace(c.TMDB.APIKey) == "" {
		return fmt.Errorf("tmdb.api_key is required when sync.schedule_enabled is true")
	}
	if c.TMDB.BaseURL == "" {
		return fmt.Errorf("tmdb.base_url is required")
	}
	if c.TMDB.Timeout <= 0 {
		return fmt.Errorf("tmdb.timeout must be positive")
	}
	if c.TMDB.MaxRetries < 0 {
		return fmt.Errorf("tmdb.max_retries must not be negative")
	}
	if c.TMDB.RequestsPerWindow < 1 || c.TMDB.Window <= 0 {
		return fmt.Errorf("tmdb.requests_per_window and tmdb.window must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	s := c.Sync
	positive := map[string]int{
		"sync.default_max_pages":      s.DefaultMaxPages,
		"sync.max_pages_limit":        s.MaxPagesLimit,
		"sync.delta_batch_size":       s.DeltaBatchSize,
		"sync.delta_max_feed_pages":   s.DeltaMaxFeedPages,
		"sync.backfill_batch_size":    s.BackfillBatchSize,
		"sync.incremental_max_movies": s.IncrementalMaxMovies,
		"sync.incremental_max_misses": s.IncrementalMaxMisses,
	}
	for name, v := range positive {
		if v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, v)
		}
	}
	if s.DefaultMaxPages > s.MaxPagesLimit {
		return fmt.Errorf("sync.default_max_pages (%d) exceeds sync.max_pages_limit (%d)", s.DefaultMaxPages, s.MaxPagesLimit)
	}
	if s.ItemDelay < 0 {
		return fmt.Errorf("sync.item_delay must not be negative")
	}
	// A sentinel the detector would flag as missing makes backfill loop forever.
	if s.GenreSentinel != "" && models.IsMissing(&s.GenreSentinel) {
		return fmt.Errorf("sync.genre_sentinel %q must contain a letter", s.GenreSentinel)
	}
	if s.ScheduleEnabled && s.ScheduleInterval < time.Minute {
		return fmt.Errorf("sync.schedule_interval must be at least 1m")
	}
	return nil
}

func (c *Config) validateCache() error {
	cc := c.Cache
	if cc.RateLimitRequests < 1 || cc.RateLimitWindow <= 0 {
		return fmt.Errorf("cache.rate_limit_requests and cache.rate_limit_window must be positive")
	}
	if cc.RefreshWindow <= 0 || cc.FastTierTTL <= 0 || cc.FastTierTimeout <= 0 {
		return fmt.Errorf("cache durations must be positive")
	}
	if cc.MaxPayloadBytes < 64 {
		return fmt.Errorf("cache.max_payload_bytes must be at least 64, got %d", cc.MaxPayloadBytes)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
