// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/reelsync/internal/cache"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/models"
	"github.com/tomtom215/reelsync/internal/validation"
)

func newCounterCommand(ctx *commandContext) *cobra.Command {
	counterCmd := &cobra.Command{
		Use:   "counter",
		Short: "Read and write cached watchlist counters",
	}
	counterCmd.AddCommand(newCounterGetCommand(ctx))
	counterCmd.AddCommand(newCounterSetCommand(ctx))
	return counterCmd
}

func newCounterGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <subject>",
		Short: "Show the cached counter for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := parseSubject(args[0])
			if err != nil {
				return err
			}
			counters, closeFn, err := ctx.counterCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			counter, err := counters.Get(cmd.Context(), subject)
			if err != nil {
				return err
			}
			if counter == nil {
				return fmt.Errorf("no counter cached for %q", subject)
			}

			if ctx.jsonFlag {
				return writeJSON(cmd, counter)
			}
			fields := [][2]string{
				{"Subject", counter.Subject},
				{"Count", strconv.FormatInt(counter.Count, 10)},
				{"Last fetched", counter.LastFetchedAt.UTC().Format(time.RFC3339)},
				{"Source", string(counter.Source)},
				{"Stale", yesNo(counter.Stale)},
			}
			if counter.ETag != "" {
				fields = append(fields, [2]string{"ETag", counter.ETag})
			}
			writeFields(cmd, fields)
			return nil
		},
	}
}

func newCounterSetCommand(ctx *commandContext) *cobra.Command {
	var etag string

	cmd := &cobra.Command{
		Use:   "set <subject> <count>",
		Short: "Store a counter as a server-derived value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := parseSubject(args[0])
			if err != nil {
				return err
			}
			count, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil || count < 0 {
				return fmt.Errorf("count must be a non-negative integer, got %q", args[1])
			}

			counters, closeFn, err := ctx.counterCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			counter := &models.CachedCounter{
				Subject:       subject,
				Count:         count,
				LastFetchedAt: time.Now().UTC(),
				Source:        models.SourceServer,
				ETag:          etag,
			}
			if err := counters.Set(cmd.Context(), counter); err != nil {
				if errors.Is(err, cache.ErrCacheDisabled) {
					return errors.New("watchlist counter cache is disabled (FEATURE_SERVER_WATCHLIST_CACHE=false)")
				}
				return err
			}

			if ctx.jsonFlag {
				return writeJSON(cmd, counter)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s = %d\n", subject, count)
			return nil
		},
	}
	cmd.Flags().StringVar(&etag, "etag", "", "Upstream ETag to store with the count")
	return cmd
}

// parseSubject applies the same rules as the HTTP counter endpoints.
func parseSubject(raw string) (string, error) {
	subject := strings.TrimSpace(raw)
	if subject == "" || len(subject) > 50 || !validation.ValidSubject(subject) {
		return "", fmt.Errorf("invalid subject %q: use 1-50 letters, digits, '_' or '-'", raw)
	}
	return strings.ToLower(subject), nil
}

// counterCache wires the durable tier and, when configured and reachable,
// the Redis fast tier so writes keep the server's fast copy current.
func (c *commandContext) counterCache(ctx context.Context) (*cache.CounterCache, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := c.database()
	if err != nil {
		return nil, nil, err
	}

	opts := cache.CounterCacheOptions{
		Enabled:       cfg.Cache.Enabled,
		FastTTL:       cfg.Cache.FastTierTTL,
		RefreshWindow: cfg.Cache.RefreshWindow,
		FastTimeout:   cfg.Cache.FastTierTimeout,
	}
	if !cfg.Cache.Enabled || cfg.Cache.RedisAddr == "" {
		return cache.NewCounterCache(db, nil, opts), func() {}, nil
	}

	tier := cache.NewRedisTier(cache.NewRedisClient(&cfg.Cache))
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := tier.Ping(pingCtx); err != nil {
		_ = tier.Close()
		logging.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis unreachable, using the durable tier only")
		return cache.NewCounterCache(db, nil, opts), func() {}, nil
	}
	closeFn := func() {
		if err := tier.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing Redis client")
		}
	}
	return cache.NewCounterCache(db, tier, opts), closeFn, nil
}
