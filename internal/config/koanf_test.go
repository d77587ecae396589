// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Cache.Enabled {
		t.Error("counter cache must be disabled by default")
	}
	if cfg.Sync.GenreSentinel != "Unknown" {
		t.Errorf("GenreSentinel = %q, want Unknown", cfg.Sync.GenreSentinel)
	}
	if cfg.Cache.RateLimitRequests != 6 || cfg.Cache.RateLimitWindow != 10*time.Minute {
		t.Errorf("counter rate limit = %d/%v, want 6/10m", cfg.Cache.RateLimitRequests, cfg.Cache.RateLimitWindow)
	}
	if cfg.Sync.DeltaBatchSize != 100 {
		t.Errorf("DeltaBatchSize = %d, want 100", cfg.Sync.DeltaBatchSize)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"TMDB_API_KEY":                   "tmdb.api_key",
		"FEATURE_SERVER_WATCHLIST_CACHE": "cache.enabled",
		"TMDB_GENRE_SENTINEL":            "sync.genre_sentinel",
		"ADMIN_SECRET":                   "security.admin_token",
		"HOME":                           "",
		"PATH":                           "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadWithKoanfEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("TMDB_API_KEY", "abc123")
	t.Setenv("FEATURE_SERVER_WATCHLIST_CACHE", "true")
	t.Setenv("SYNC_ITEM_DELAY", "250ms")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}
	if cfg.TMDB.APIKey != "abc123" {
		t.Errorf("APIKey = %q", cfg.TMDB.APIKey)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache flag should parse to true")
	}
	if cfg.Sync.ItemDelay != 250*time.Millisecond {
		t.Errorf("ItemDelay = %v, want 250ms", cfg.Sync.ItemDelay)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadWithKoanfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "sync:\n  genre_sentinel: Unclassified\n  delta_batch_size: 25\ncache:\n  enabled: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}
	if cfg.Sync.GenreSentinel != "Unclassified" || cfg.Sync.DeltaBatchSize != 25 {
		t.Errorf("file values not applied: %+v", cfg.Sync)
	}
	if cfg.Sync.BackfillBatchSize != 200 {
		t.Errorf("unset keys should keep defaults, BackfillBatchSize = %d", cfg.Sync.BackfillBatchSize)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"numeric sentinel", func(c *Config) { c.Sync.GenreSentinel = "[]" }, "genre_sentinel"},
		{"zero delta batch", func(c *Config) { c.Sync.DeltaBatchSize = 0 }, "delta_batch_size"},
		{"schedule without key", func(c *Config) { c.Sync.ScheduleEnabled = true }, "tmdb.api_key"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"tiny payload", func(c *Config) { c.Cache.MaxPayloadBytes = 10 }, "max_payload_bytes"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}
