// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package sync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/reelsync/internal/models"
)

// full walks discovery pages from 1 up to the page cap.
func (r *run) full(ctx context.Context) error {
	if err := r.walkDiscover(ctx, "", ""); err != nil {
		return err
	}
	return r.stamp(ctx)
}

// currentYear is full bounded by primary release dates. Both bounds are
// required and checked before any upstream call.
func (r *run) currentYear(ctx context.Context) error {
	start := strings.TrimSpace(r.req.ReleaseYearStart)
	end := strings.TrimSpace(r.req.ReleaseYearEnd)
	if start == "" {
		return missingParam("releaseYearStart")
	}
	if end == "" {
		return missingParam("releaseYearEnd")
	}
	r.res.ReleaseYearStart = start
	r.res.ReleaseYearEnd = end

	if err := r.walkDiscover(ctx, start, end); err != nil {
		return err
	}
	return r.stamp(ctx)
}

func (r *run) maxPages() int {
	n := r.req.MaxPages
	if n <= 0 {
		n = r.m.cfg.DefaultMaxPages
	}
	if n > r.m.cfg.MaxPagesLimit {
		n = r.m.cfg.MaxPagesLimit
	}
	return n
}

// walkDiscover processes discovery pages until a short page, the last
// upstream page or the page cap. A failed page is counted and skipped.
func (r *run) walkDiscover(ctx context.Context, gte, lte string) error {
	maxPages := r.maxPages()

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return &SyncError{Kind: KindCanceled, Err: err}
		}

		dp, err := r.m.client.Discover(ctx, DiscoverParams{
			Page:           page,
			ReleaseDateGTE: gte,
			ReleaseDateLTE: lte,
		})
		if err != nil {
			if se := structural(ctx, err); se != nil {
				return se
			}
			r.res.Failed++
			r.log.Warn().Err(err).Int("page", page).Msg("Failed to fetch discover page")
			continue
		}
		r.res.Pages++

		for _, item := range dp.Results {
			if item.Adult {
				r.res.Checked++
				r.res.Skipped++
				continue
			}
			if _, err := r.syncMovie(ctx, item.ID); err != nil {
				return err
			}
		}

		if len(dp.Results) < discoverPageSize || page >= dp.TotalPages {
			r.log.Debug().Int("page", page).Int("total_pages", dp.TotalPages).Msg("Reached end of discover pages")
			break
		}
	}
	return nil
}

// delta replays the change feed since the last delta run. The cursor is
// advanced to the run's start time only after the whole batch has been
// processed, so a crash or abort replays the same window next time.
func (r *run) delta(ctx context.Context) error {
	runStart := r.m.now().UTC()

	since, err := r.deltaSince(ctx, runStart)
	if err != nil {
		return err
	}

	ids, err := r.changedIDs(ctx, since)
	if err != nil {
		return err
	}

	batch := ids
	if limit := r.m.cfg.DeltaBatchSize; len(ids) > limit {
		batch = ids[:limit]
		r.res.Deferred = len(ids) - limit
		r.log.Warn().Int("changed", len(ids)).Int("deferred", r.res.Deferred).Msg("Delta batch capped")
	}

	for _, id := range batch {
		if _, err := r.syncMovie(ctx, id); err != nil {
			return err
		}
	}

	if err := r.m.store.SetCursor(ctx, models.CursorLastDeltaSync, runStart.Format(time.RFC3339)); err != nil {
		return cursorError(models.CursorLastDeltaSync, err)
	}
	return nil
}

// deltaSince reads last_delta_sync. Absent means 24 hours before now.
// Date-only values are accepted for cursors written by older deployments.
func (r *run) deltaSince(ctx context.Context, now time.Time) (time.Time, error) {
	v, ok, err := r.m.store.GetCursor(ctx, models.CursorLastDeltaSync)
	if err != nil {
		return time.Time{}, cursorError(models.CursorLastDeltaSync, err)
	}
	if !ok {
		return now.Add(-24 * time.Hour), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Time{}, cursorError(models.CursorLastDeltaSync, fmt.Errorf("invalid timestamp %q", v))
}

// changedIDs collects de-duplicated ids from the change feed in feed order.
// Any feed failure aborts the run because a partial feed would let the
// cursor skip changes.
func (r *run) changedIDs(ctx context.Context, since time.Time) ([]int64, error) {
	seen := make(map[int64]struct{})
	var ids []int64

	for page := 1; page <= r.m.cfg.DeltaMaxFeedPages; page++ {
		cp, err := r.m.client.Changes(ctx, since, page)
		if err != nil {
			if se := structural(ctx, err); se != nil {
				return nil, se
			}
			return nil, &SyncError{Kind: KindUpstream, Err: fmt.Errorf("change feed page %d: %w", page, err)}
		}
		r.res.Pages++

		for _, item := range cp.Results {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			ids = append(ids, item.ID)
		}

		if page >= cp.TotalPages {
			break
		}
	}

	r.log.Info().Time("since", since).Int("changed", len(ids)).Msg("Change feed collected")
	return ids, nil
}

// backfill re-fetches rows whose genres are missing. Empty upstream genre
// lists are written as the sentinel, which takes the row out of the set.
func (r *run) backfill(ctx context.Context) error {
	ids, err := r.m.store.MissingGenreIDs(ctx, r.m.cfg.BackfillBatchSize)
	if err != nil {
		return &SyncError{Kind: KindStore, Err: fmt.Errorf("select missing genres: %w", err)}
	}
	r.log.Info().Int("candidates", len(ids)).Msg("Backfill candidates selected")

	for _, id := range ids {
		if _, err := r.syncMovie(ctx, id); err != nil {
			return err
		}
	}
	return r.stamp(ctx)
}

// incremental walks ids upward from highest_synced_id. It stops after
// maxMovies ids or after IncrementalMaxMisses consecutive 404s, which marks
// the current end of the catalog.
func (r *run) incremental(ctx context.Context) error {
	start, err := r.m.highestSyncedID(ctx)
	if err != nil {
		return err
	}

	maxMovies := r.req.MaxMovies
	if maxMovies <= 0 {
		maxMovies = r.m.cfg.IncrementalMaxMovies
	}

	highest := start
	misses := 0
	for id, processed := start+1, 0; processed < maxMovies; id, processed = id+1, processed+1 {
		outcome, err := r.syncMovie(ctx, id)
		if err != nil {
			return err
		}

		switch outcome {
		case outcomeUpdated, outcomeSkipped:
			highest = id
			misses = 0
		case outcomeNotFound:
			misses++
		default:
			misses = 0
		}
		if misses >= r.m.cfg.IncrementalMaxMisses {
			r.log.Info().Int64("movie_id", id).Int("misses", misses).Msg("Reached end of TMDB catalog")
			break
		}
	}
	r.res.HighestID = highest

	if highest > start {
		if err := r.m.store.SetCursor(ctx, models.CursorHighestSyncedID, strconv.FormatInt(highest, 10)); err != nil {
			return cursorError(models.CursorHighestSyncedID, err)
		}
	}
	return r.stamp(ctx)
}
