// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/reelsync/internal/models"
	syncpkg "github.com/tomtom215/reelsync/internal/sync"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run catalog sync modes and inspect the mirror",
	}
	syncCmd.AddCommand(newSyncRunCommand(ctx))
	syncCmd.AddCommand(newSyncStatusCommand(ctx))
	return syncCmd
}

func newSyncRunCommand(ctx *commandContext) *cobra.Command {
	var (
		start     string
		end       string
		maxPages  int
		maxMovies int
	)

	cmd := &cobra.Command{
		Use:       "run <full|current_year|delta|backfill|incremental>",
		Short:     "Run one sync mode to completion",
		Args:      cobra.ExactArgs(1),
		ValidArgs: syncTypeNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			db, err := ctx.database()
			if err != nil {
				return err
			}

			manager := syncpkg.NewManager(catalog, db, &cfg.Sync)
			res, err := manager.Run(cmd.Context(), models.SyncRequest{
				Type:             models.SyncType(strings.TrimSpace(args[0])),
				ReleaseYearStart: start,
				ReleaseYearEnd:   end,
				MaxPages:         maxPages,
				MaxMovies:        maxMovies,
			})
			if err != nil {
				return err
			}

			if ctx.jsonFlag {
				return writeJSON(cmd, res)
			}
			fields := [][2]string{
				{"Run", res.RunID},
				{"Mode", string(res.SyncType)},
				{"Checked", strconv.Itoa(res.Checked)},
				{"Updated", strconv.Itoa(res.Updated)},
				{"Skipped", strconv.Itoa(res.Skipped)},
				{"Failed", strconv.Itoa(res.Failed)},
				{"Deferred", strconv.Itoa(res.Deferred)},
				{"Pages", strconv.Itoa(res.Pages)},
			}
			if res.HighestID > 0 {
				fields = append(fields, [2]string{"Highest ID", strconv.FormatInt(res.HighestID, 10)})
			}
			if res.ReleaseYearStart != "" || res.ReleaseYearEnd != "" {
				fields = append(fields, [2]string{"Bounds", res.ReleaseYearStart + " .. " + res.ReleaseYearEnd})
			}
			fields = append(fields, [2]string{"Duration", res.Duration.Round(time.Millisecond).String()})
			writeFields(cmd, fields)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Lower primary release date bound (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Upper primary release date bound (YYYY-MM-DD)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Discovery page budget (0 uses the configured default)")
	cmd.Flags().IntVar(&maxMovies, "max-movies", 0, "Item budget for backfill and incremental runs")
	return cmd
}

func newSyncStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show mirror size and sync cursors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			db, err := ctx.database()
			if err != nil {
				return err
			}

			// Status reads only the store, so no TMDB credential is needed.
			manager := syncpkg.NewManager(nil, db, &cfg.Sync)
			status, err := manager.Status(cmd.Context())
			if err != nil {
				return err
			}

			if ctx.jsonFlag {
				return writeJSON(cmd, status)
			}
			fields := [][2]string{
				{"Movies", strconv.FormatInt(status.TotalMovies, 10)},
				{"Highest synced ID", strconv.FormatInt(status.HighestSyncedID, 10)},
			}
			if status.LastDeltaSync != "" {
				fields = append(fields, [2]string{"Last delta sync", status.LastDeltaSync})
			}
			for _, key := range sortedKeys(status.LastRuns) {
				fields = append(fields, [2]string{key, status.LastRuns[key]})
			}
			writeFields(cmd, fields)
			return nil
		},
	}
}

func syncTypeNames() []string {
	names := make([]string, 0, len(models.AllSyncTypes))
	for _, t := range models.AllSyncTypes {
		names = append(names, string(t))
	}
	return names
}
