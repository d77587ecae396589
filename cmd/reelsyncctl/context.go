// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/database"
	"github.com/tomtom215/reelsync/internal/logging"
	syncpkg "github.com/tomtom215/reelsync/internal/sync"
)

// commandContext lazily loads the shared configuration and database for the
// subcommands of one invocation.
type commandContext struct {
	configFlag string
	jsonFlag   bool
	logLevel   string

	// loadConfig is replaced in tests.
	loadConfig func() (*config.Config, error)

	configOnce sync.Once
	config     *config.Config
	configErr  error

	db *database.DB
}

func newCommandContext() *commandContext {
	return &commandContext{loadConfig: config.Load}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if path := strings.TrimSpace(c.configFlag); path != "" {
			if _, err := os.Stat(path); err != nil {
				c.configErr = fmt.Errorf("config file: %w", err)
				return
			}
			if err := os.Setenv(config.ConfigPathEnvVar, path); err != nil {
				c.configErr = err
				return
			}
		}
		cfg, err := c.loadConfig()
		if err != nil {
			c.configErr = err
			return
		}
		logging.Init(logging.Config{
			Level:  c.logLevel,
			Format: "console",
			Output: os.Stderr,
		})
		c.config = cfg
	})
	return c.config, c.configErr
}

// database opens the DuckDB file once per invocation.
func (c *commandContext) database() (*database.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	c.db = db
	return db, nil
}

func (c *commandContext) close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// catalog builds the TMDB client the same way the server does.
func (c *commandContext) catalog() (syncpkg.CatalogClient, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := syncpkg.NewTMDBClient(&cfg.TMDB)
	if err != nil {
		return nil, fmt.Errorf("tmdb client: %w (set TMDB_API_KEY)", err)
	}
	if !cfg.TMDB.CircuitBreaker.Enabled {
		return client, nil
	}
	return syncpkg.NewCircuitBreakerClient(client, cfg.TMDB.CircuitBreaker), nil
}
