// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

// Package config loads ReelSync configuration with Koanf v2.
//
// Sources are layered, highest priority last:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/reelsync/config.yaml)
//  3. Environment variables (see envMappings in koanf.go)
//
// Typed values such as the cache feature flag are parsed once here and passed
// explicitly into the components that need them.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	TMDB     TMDBConfig     `koanf:"tmdb"`
	Sync     SyncConfig     `koanf:"sync"`
	Cache    CacheConfig    `koanf:"cache"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB file. ":memory:" runs without persistence.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage, e.g. "512MB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB worker count; 0 lets DuckDB decide.
	Threads int `koanf:"threads"`
}

// TMDBConfig configures the upstream catalog client.
type TMDBConfig struct {
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`

	// RetryBaseDelay is the first backoff step for 429 and 5xx responses.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// RequestsPerWindow and Window pace outbound calls. TMDB allows roughly
	// 40 requests per 10 seconds; the default leaves a small buffer.
	RequestsPerWindow int           `koanf:"requests_per_window"`
	Window            time.Duration `koanf:"window"`

	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
}

// CircuitBreakerConfig configures the gobreaker wrapper around the TMDB client.
type CircuitBreakerConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxRequests uint32        `koanf:"max_requests"`
	Interval    time.Duration `koanf:"interval"`
	Timeout     time.Duration `koanf:"timeout"`
}

// SyncConfig configures the synchronization engine and its schedule.
type SyncConfig struct {
	DefaultMaxPages int `koanf:"default_max_pages"`
	MaxPagesLimit   int `koanf:"max_pages_limit"`

	DeltaBatchSize    int `koanf:"delta_batch_size"`
	DeltaMaxFeedPages int `koanf:"delta_max_feed_pages"`

	BackfillBatchSize int `koanf:"backfill_batch_size"`

	IncrementalMaxMovies int `koanf:"incremental_max_movies"`
	IncrementalMaxMisses int `koanf:"incremental_max_misses"`

	// ItemDelay separates consecutive detail fetches within one run.
	ItemDelay time.Duration `koanf:"item_delay"`

	// GenreSentinel replaces a genuinely empty upstream genre list so the row
	// is not picked up again by backfill.
	GenreSentinel string `koanf:"genre_sentinel"`

	ScheduleEnabled  bool          `koanf:"schedule_enabled"`
	ScheduleInterval time.Duration `koanf:"schedule_interval"`
}

// CacheConfig configures the watchlist counter cache.
type CacheConfig struct {
	// Enabled is the kill switch for the whole counter subsystem.
	Enabled bool `koanf:"enabled"`

	// RedisAddr is host:port of the fast tier. Empty runs durable-only.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	FastTierTTL     time.Duration `koanf:"fast_tier_ttl"`
	FastTierTimeout time.Duration `koanf:"fast_tier_timeout"`

	// RefreshWindow is how long a counter counts as fresh.
	RefreshWindow time.Duration `koanf:"refresh_window"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitMaxKeys  int           `koanf:"rate_limit_max_keys"`

	MaxPayloadBytes int64 `koanf:"max_payload_bytes"`
}

// SecurityConfig holds boundary protection settings.
type SecurityConfig struct {
	// AdminToken guards sync triggers and counter writes. Empty disables the check.
	AdminToken string `koanf:"admin_token"`

	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from all sources and validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
