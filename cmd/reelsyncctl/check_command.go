// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/reelsync/internal/cache"
)

// checkResult is one dependency probe.
type checkResult struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the database, TMDB credential and Redis fast tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := []checkResult{
				probe(cmd.Context(), "database", timeout, func(pctx context.Context) error {
					db, err := ctx.database()
					if err != nil {
						return err
					}
					return db.Ping(pctx)
				}),
				probe(cmd.Context(), "tmdb", timeout, func(pctx context.Context) error {
					catalog, err := ctx.catalog()
					if err != nil {
						return err
					}
					return catalog.Ping(pctx)
				}),
			}

			if cfg.Cache.RedisAddr == "" {
				results = append(results, checkResult{Name: "redis", Skipped: true, Detail: "REDIS_ADDR not set"})
			} else {
				results = append(results, probe(cmd.Context(), "redis", timeout, func(pctx context.Context) error {
					tier := cache.NewRedisTier(cache.NewRedisClient(&cfg.Cache))
					defer func() { _ = tier.Close() }()
					return tier.Ping(pctx)
				}))
			}

			failed := false
			for _, r := range results {
				failed = failed || (!r.OK && !r.Skipped)
			}

			if ctx.jsonFlag {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				fields := make([][2]string, 0, len(results))
				for _, r := range results {
					state := "ok"
					switch {
					case r.Skipped:
						state = "skipped"
					case !r.OK:
						state = "FAILED"
					}
					if r.Detail != "" {
						state += " (" + r.Detail + ")"
					}
					fields = append(fields, [2]string{r.Name, state})
				}
				writeFields(cmd, fields)
			}

			if failed {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Per-check timeout")
	return cmd
}

func probe(parent context.Context, name string, timeout time.Duration, fn func(context.Context) error) checkResult {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return checkResult{Name: name, Detail: err.Error()}
	}
	return checkResult{Name: name, OK: true}
}
