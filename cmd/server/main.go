// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

// Package main is the entry point for the ReelSync server.
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional config.yaml, environment (Koanf v2)
//  2. Database: DuckDB with the movie, cursor and counter tables
//  3. Catalog client: TMDB client wrapped in a circuit breaker
//  4. Sync: manager plus the optional scheduler
//  5. Counter cache: Redis fast tier when configured, in-process tier otherwise
//  6. HTTP: chi router
//  7. Supervisor tree: maintenance, sync and HTTP services
//
// Shutdown is driven by SIGINT/SIGTERM canceling the root context.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/reelsync/internal/api"
	"github.com/tomtom215/reelsync/internal/cache"
	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/database"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/supervisor"
	"github.com/tomtom215/reelsync/internal/supervisor/services"
	syncpkg "github.com/tomtom215/reelsync/internal/sync"
)

// maintenanceInterval is how often the fast tier is swept and the WAL checkpointed.
const maintenanceInterval = 5 * time.Minute

// memoryTierMaxEntries bounds the in-process fast tier.
const memoryTierMaxEntries = 100000

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().Msg("Starting ReelSync with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("path", cfg.Database.Path).Msg("Database initialized successfully")

	syncRunner, scheduler := initSync(cfg, db)
	counters, fastTier, closeFast := initCounterCache(ctx, &cfg.Cache, db)
	defer closeFast()

	var limiter *cache.SlidingWindowLimiter
	if cfg.Cache.Enabled {
		limiter = cache.NewSlidingWindowLimiter(
			cfg.Cache.RateLimitRequests,
			cfg.Cache.RateLimitWindow,
			cache.WithMaxKeys(cfg.Cache.RateLimitMaxKeys),
		)
	}

	handler := api.NewHandler(syncRunner, counters, limiter, db, &cfg.Cache)
	chiMw := api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security))
	router := api.NewRouter(handler, chiMw)

	if cfg.Security.AdminToken == "" {
		logging.Warn().Msg("ADMIN_SECRET is not set: sync triggers and counter writes are unauthenticated")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Global API rate limiting is DISABLED")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Manual sync runs are synchronous and may take minutes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tasks := []services.MaintenanceTask{
		{Name: "duckdb-checkpoint", Run: db.Checkpoint},
	}
	if mem, ok := fastTier.(*cache.MemoryTier); ok {
		tasks = append(tasks, services.MaintenanceTask{
			Name: "fast-tier-cleanup",
			Run: func(context.Context) error {
				if n := mem.Cleanup(); n > 0 {
					logging.Debug().Int("removed", n).Msg("Expired fast tier entries removed")
				}
				return nil
			},
		})
	}
	tree.AddDataService(services.NewMaintenanceService(maintenanceInterval, tasks...))

	if scheduler != nil {
		tree.AddSyncService(services.NewSyncService(scheduler))
		logging.Info().Dur("interval", cfg.Sync.ScheduleInterval).Msg("Sync scheduler added to supervisor tree")
	} else {
		logging.Info().Msg("Scheduled sync disabled (SYNC_SCHEDULE_ENABLED=false)")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// initSync builds the sync manager. Without a TMDB key the counters and
// sync status still work; every sync run aborts with an upstream error.
func initSync(cfg *config.Config, db *database.DB) (*syncpkg.Manager, *syncpkg.Scheduler) {
	var catalog syncpkg.CatalogClient
	client, err := syncpkg.NewTMDBClient(&cfg.TMDB)
	switch {
	case err != nil:
		logging.Warn().Err(err).Msg("TMDB client unavailable, sync runs will fail")
		catalog = offlineCatalog{err: err}
	case cfg.TMDB.CircuitBreaker.Enabled:
		catalog = syncpkg.NewCircuitBreakerClient(client, cfg.TMDB.CircuitBreaker)
		logging.Info().Msg("TMDB circuit breaker enabled")
	default:
		catalog = client
	}

	manager := syncpkg.NewManager(catalog, db, &cfg.Sync)

	if !cfg.Sync.ScheduleEnabled || err != nil {
		return manager, nil
	}
	return manager, syncpkg.NewScheduler(manager, cfg.Sync.ScheduleInterval)
}

// initCounterCache picks the fast tier: Redis when an address is configured
// and reachable, the in-process tier otherwise.
func initCounterCache(ctx context.Context, cfg *config.CacheConfig, db *database.DB) (*cache.CounterCache, cache.FastTier, func()) {
	opts := cache.CounterCacheOptions{
		Enabled:       cfg.Enabled,
		FastTTL:       cfg.FastTierTTL,
		RefreshWindow: cfg.RefreshWindow,
		FastTimeout:   cfg.FastTierTimeout,
	}
	noop := func() {}

	if !cfg.Enabled {
		logging.Info().Msg("Watchlist counter cache disabled (FEATURE_SERVER_WATCHLIST_CACHE=false)")
		return cache.NewCounterCache(db, nil, opts), nil, noop
	}

	if cfg.RedisAddr != "" {
		redisTier := cache.NewRedisTier(cache.NewRedisClient(cfg))
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisTier.Ping(pingCtx)
		cancel()
		if err == nil {
			logging.Info().Str("addr", cfg.RedisAddr).Msg("Redis fast tier connected")
			closeFn := func() {
				if err := redisTier.Close(); err != nil {
					logging.Warn().Err(err).Msg("Error closing Redis client")
				}
			}
			return cache.NewCounterCache(db, redisTier, opts), redisTier, closeFn
		}
		_ = redisTier.Close()
		logging.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, using in-process fast tier")
	}

	mem := cache.NewMemoryTier(memoryTierMaxEntries)
	return cache.NewCounterCache(db, mem, opts), mem, noop
}

// offlineCatalog stands in for TMDB when no client could be built.
type offlineCatalog struct {
	err error
}

func (o offlineCatalog) Discover(context.Context, syncpkg.DiscoverParams) (*syncpkg.DiscoverPage, error) {
	return nil, fmt.Errorf("%w: %v", syncpkg.ErrUpstreamAuth, o.err)
}

func (o offlineCatalog) MovieDetail(context.Context, int64) (*syncpkg.MovieDetail, error) {
	return nil, fmt.Errorf("%w: %v", syncpkg.ErrUpstreamAuth, o.err)
}

func (o offlineCatalog) Changes(context.Context, time.Time, int) (*syncpkg.ChangesPage, error) {
	return nil, fmt.Errorf("%w: %v", syncpkg.ErrUpstreamAuth, o.err)
}

func (o offlineCatalog) Ping(context.Context) error {
	return fmt.Errorf("%w: %v", syncpkg.ErrUpstreamAuth, o.err)
}
