// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reelsync/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// sliceConfigPaths are accepted as comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8787,
			Timeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/reelsync.duckdb",
			MaxMemory: "512MB",
		},
		TMDB: TMDBConfig{
			BaseURL:           "https://api.themoviedb.org/3",
			Timeout:           15 * time.Second,
			MaxRetries:        3,
			RetryBaseDelay:    2 * time.Second,
			RequestsPerWindow: 35,
			Window:            10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxRequests: 3,
				Interval:    time.Minute,
				Timeout:     2 * time.Minute,
			},
		},
		Sync: SyncConfig{
			DefaultMaxPages:      10,
			MaxPagesLimit:        500,
			DeltaBatchSize:       100,
			DeltaMaxFeedPages:    5,
			BackfillBatchSize:    200,
			IncrementalMaxMovies: 80,
			IncrementalMaxMisses: 5,
			ItemDelay:            100 * time.Millisecond,
			GenreSentinel:        "Unknown",
			ScheduleEnabled:      false,
			ScheduleInterval:     24 * time.Hour,
		},
		Cache: CacheConfig{
			Enabled:           false,
			RedisDB:           0,
			FastTierTTL:       12 * time.Hour,
			FastTierTimeout:   500 * time.Millisecond,
			RefreshWindow:     12 * time.Hour,
			RateLimitRequests: 6,
			RateLimitWindow:   10 * time.Minute,
			RateLimitMaxKeys:  100000,
			MaxPayloadBytes:   1024,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf layers defaults, the optional config file and the environment.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unlisted variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"tmdb_api_key":             "tmdb.api_key",
	"tmdb_base_url":            "tmdb.base_url",
	"tmdb_timeout":             "tmdb.timeout",
	"tmdb_max_retries":         "tmdb.max_retries",
	"tmdb_requests_per_window": "tmdb.requests_per_window",
	"tmdb_window":              "tmdb.window",
	"tmdb_circuit_breaker":     "tmdb.circuit_breaker.enabled",

	"sync_default_max_pages":      "sync.default_max_pages",
	"sync_max_pages_limit":        "sync.max_pages_limit",
	"sync_delta_batch_size":       "sync.delta_batch_size",
	"sync_delta_max_feed_pages":   "sync.delta_max_feed_pages",
	"sync_backfill_batch_size":    "sync.backfill_batch_size",
	"sync_incremental_max_movies": "sync.incremental_max_movies",
	"sync_incremental_max_misses": "sync.incremental_max_misses",
	"sync_item_delay":             "sync.item_delay",
	"tmdb_genre_sentinel":         "sync.genre_sentinel",
	"sync_schedule_enabled":       "sync.schedule_enabled",
	"sync_schedule_interval":      "sync.schedule_interval",

	"feature_server_watchlist_cache": "cache.enabled",
	"redis_addr":                     "cache.redis_addr",
	"redis_password":                 "cache.redis_password",
	"redis_db":                       "cache.redis_db",
	"cache_fast_tier_ttl":            "cache.fast_tier_ttl",
	"cache_fast_tier_timeout":        "cache.fast_tier_timeout",
	"cache_refresh_window":           "cache.refresh_window",
	"counter_rate_limit_requests":    "cache.rate_limit_requests",
	"counter_rate_limit_window":      "cache.rate_limit_window",
	"counter_max_payload_bytes":      "cache.max_payload_bytes",

	"admin_secret":        "security.admin_token",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps e.g. TMDB_API_KEY to tmdb.api_key.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
