// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
manager.go - Sync Engine

Manager mirrors TMDB into the local store one run at a time. A run has one
mode:

  - full: walk popularity-sorted discovery pages
  - current_year: the same walk bounded by primary release dates
  - delta: replay the upstream change feed since the last delta run
  - backfill: re-fetch rows whose genres are missing
  - incremental: walk ids upward from the highest synced id

Every item is fetched, normalized and upserted by id, so reruns and
overlapping runs are harmless. There is no cross-run lock.

Per-item failures are logged and counted in SyncResult.Failed. Structural
failures (bad credentials, malformed envelopes, an open circuit, cursor
I/O, cancellation) abort the run with a *SyncError, and no cursor is
written for the aborted run.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
	"github.com/tomtom215/reelsync/internal/models"
)

// discoverPageSize is the number of results TMDB returns on a full page.
const discoverPageSize = 20

// MovieStore is the durable side of the engine. *database.DB satisfies it.
type MovieStore interface {
	UpsertMovie(ctx context.Context, m *models.MovieRecord) error
	GetCursor(ctx context.Context, key string) (string, bool, error)
	SetCursor(ctx context.Context, key, value string) error
	MissingGenreIDs(ctx context.Context, limit int) ([]int64, error)
	CountMovies(ctx context.Context) (int64, error)
	ListCursors(ctx context.Context) (map[string]string, error)
}

// runCursorKeys maps each mode to the cursor recording its last success.
var runCursorKeys = map[models.SyncType]string{
	models.SyncTypeFull:        models.CursorLastFullSync,
	models.SyncTypeCurrentYear: models.CursorLastCurrentYear,
	models.SyncTypeDelta:       models.CursorLastDeltaSync,
	models.SyncTypeBackfill:    models.CursorLastBackfill,
	models.SyncTypeIncremental: models.CursorLastIncrementalRun,
}

// Manager runs sync modes against a CatalogClient and a MovieStore.
type Manager struct {
	client CatalogClient
	store  MovieStore
	cfg    config.SyncConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager creates a sync engine. Zero limits in cfg take the built-in
// defaults.
func NewManager(client CatalogClient, store MovieStore, cfg *config.SyncConfig) *Manager {
	m := &Manager{
		client: client,
		store:  store,
		cfg:    withDefaults(*cfg),
		now:    time.Now,
		sleep:  sleepContext,
	}

	logging.Info().
		Int("default_max_pages", m.cfg.DefaultMaxPages).
		Int("delta_batch_size", m.cfg.DeltaBatchSize).
		Int("backfill_batch_size", m.cfg.BackfillBatchSize).
		Dur("item_delay", m.cfg.ItemDelay).
		Str("genre_sentinel", m.cfg.GenreSentinel).
		Msg("Sync manager config loaded")

	return m
}

func withDefaults(cfg config.SyncConfig) config.SyncConfig {
	if cfg.DefaultMaxPages <= 0 {
		cfg.DefaultMaxPages = 10
	}
	if cfg.MaxPagesLimit <= 0 {
		cfg.MaxPagesLimit = 500
	}
	if cfg.DeltaBatchSize <= 0 {
		cfg.DeltaBatchSize = 100
	}
	if cfg.DeltaMaxFeedPages <= 0 {
		cfg.DeltaMaxFeedPages = 5
	}
	if cfg.BackfillBatchSize <= 0 {
		cfg.BackfillBatchSize = 200
	}
	if cfg.IncrementalMaxMovies <= 0 {
		cfg.IncrementalMaxMovies = 80
	}
	if cfg.IncrementalMaxMisses <= 0 {
		cfg.IncrementalMaxMisses = 5
	}
	if cfg.ItemDelay < 0 {
		cfg.ItemDelay = 0
	}
	return cfg
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes one sync. On a structural error the partial result is
// returned together with a *SyncError.
func (m *Manager) Run(ctx context.Context, req models.SyncRequest) (*models.SyncResult, error) {
	if !req.Type.Valid() {
		return nil, &SyncError{Kind: KindInvalidRequest, Err: fmt.Errorf("unknown sync type %q", req.Type)}
	}

	runID := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, runID)

	r := &run{
		m:   m,
		req: req,
		res: &models.SyncResult{
			RunID:     runID,
			SyncType:  req.Type,
			StartedAt: m.now().UTC(),
		},
		log:               logging.Ctx(ctx).With().Str("sync_type", string(req.Type)).Logger(),
		notFoundIsFailure: req.Type != models.SyncTypeIncremental,
	}

	r.log.Info().Int("max_pages", req.MaxPages).Int("max_movies", req.MaxMovies).Msg("Sync run started")

	var err error
	switch req.Type {
	case models.SyncTypeFull:
		err = r.full(ctx)
	case models.SyncTypeCurrentYear:
		err = r.currentYear(ctx)
	case models.SyncTypeDelta:
		err = r.delta(ctx)
	case models.SyncTypeBackfill:
		err = r.backfill(ctx)
	case models.SyncTypeIncremental:
		err = r.incremental(ctx)
	}

	r.res.Duration = m.now().Sub(r.res.StartedAt)
	outcome := metrics.SyncOutcome{
		Updated:  r.res.Updated,
		Skipped:  r.res.Skipped,
		Failed:   r.res.Failed,
		Deferred: r.res.Deferred,
	}

	if err != nil {
		metrics.RecordSyncRun(string(req.Type), r.res.Duration, outcome, errorKind(err))
		r.log.Error().Err(err).
			Int("checked", r.res.Checked).
			Int("updated", r.res.Updated).
			Msg("Sync run aborted")
		return r.res, err
	}

	metrics.RecordSyncRun(string(req.Type), r.res.Duration, outcome, "")
	r.log.Info().
		Int("checked", r.res.Checked).
		Int("updated", r.res.Updated).
		Int("skipped", r.res.Skipped).
		Int("failed", r.res.Failed).
		Int("deferred", r.res.Deferred).
		Int("pages", r.res.Pages).
		Dur("duration", r.res.Duration).
		Msg("Sync run completed")
	return r.res, nil
}

// Status summarizes the mirror and its cursors.
func (m *Manager) Status(ctx context.Context) (*models.SyncStatus, error) {
	total, err := m.store.CountMovies(ctx)
	if err != nil {
		return nil, fmt.Errorf("count movies: %w", err)
	}

	cursors, err := m.store.ListCursors(ctx)
	if err != nil {
		return nil, &SyncError{Kind: KindCursor, Err: fmt.Errorf("list cursors: %w", err)}
	}
	v, ok := cursors[models.CursorHighestSyncedID]
	highest, err := parseHighestSyncedID(v, ok)
	if err != nil {
		return nil, err
	}

	status := &models.SyncStatus{
		TotalMovies:     total,
		HighestSyncedID: highest,
		LastRuns:        make(map[string]string, len(runCursorKeys)),
	}
	for syncType, key := range runCursorKeys {
		if v, ok := cursors[key]; ok {
			status.LastRuns[string(syncType)] = v
		}
	}
	status.LastDeltaSync = status.LastRuns[string(models.SyncTypeDelta)]
	return status, nil
}

// highestSyncedID reads the incremental cursor, 0 when absent.
func (m *Manager) highestSyncedID(ctx context.Context) (int64, error) {
	v, ok, err := m.store.GetCursor(ctx, models.CursorHighestSyncedID)
	if err != nil {
		return 0, cursorError(models.CursorHighestSyncedID, err)
	}
	return parseHighestSyncedID(v, ok)
}

// parseHighestSyncedID decodes the incremental cursor value.
func parseHighestSyncedID(v string, ok bool) (int64, error) {
	if !ok {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0, cursorError(models.CursorHighestSyncedID, fmt.Errorf("invalid value %q", v))
	}
	return id, nil
}

// itemOutcome is the result of processing one id.
type itemOutcome int

const (
	outcomeUpdated itemOutcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeNotFound
)

// run carries the state of one Manager.Run call.
type run struct {
	m       *Manager
	req     models.SyncRequest
	res     *models.SyncResult
	log     zerolog.Logger
	fetched int

	// notFoundIsFailure counts a 404 detail as Failed. The incremental
	// walk expects gaps and tracks them separately.
	notFoundIsFailure bool
}

// pace enforces the inter-item delay and checks for cancellation at the
// item boundary.
func (r *run) pace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &SyncError{Kind: KindCanceled, Err: err}
	}
	if r.fetched > 0 && r.m.cfg.ItemDelay > 0 {
		if err := r.m.sleep(ctx, r.m.cfg.ItemDelay); err != nil {
			return &SyncError{Kind: KindCanceled, Err: err}
		}
	}
	r.fetched++
	return nil
}

// syncMovie fetches, normalizes and upserts one id. The error is non-nil
// only for structural failures.
func (r *run) syncMovie(ctx context.Context, id int64) (itemOutcome, error) {
	if err := r.pace(ctx); err != nil {
		return outcomeFailed, err
	}
	r.res.Checked++

	detail, err := r.m.client.MovieDetail(ctx, id)
	if err != nil {
		if se := structural(ctx, err); se != nil {
			return outcomeFailed, se
		}
		if errors.Is(err, ErrNotFound) {
			if r.notFoundIsFailure {
				r.res.Failed++
			}
			r.log.Debug().Int64("movie_id", id).Msg("Movie not found upstream")
			return outcomeNotFound, nil
		}
		r.res.Failed++
		r.log.Warn().Err(err).Int64("movie_id", id).Msg("Failed to fetch movie detail")
		return outcomeFailed, nil
	}

	if detail.Adult {
		r.res.Skipped++
		return outcomeSkipped, nil
	}

	rec := NormalizeMovie(detail, r.m.cfg.GenreSentinel)
	if err := r.m.store.UpsertMovie(ctx, &rec); err != nil {
		if ctx.Err() != nil {
			return outcomeFailed, &SyncError{Kind: KindCanceled, Err: ctx.Err()}
		}
		r.res.Failed++
		r.log.Warn().Err(err).Int64("movie_id", id).Msg("Failed to upsert movie")
		return outcomeFailed, nil
	}

	r.res.Updated++
	return outcomeUpdated, nil
}

// stamp records the completion time of this run's mode.
func (r *run) stamp(ctx context.Context) error {
	key := runCursorKeys[r.req.Type]
	if err := r.m.store.SetCursor(ctx, key, r.m.now().UTC().Format(time.RFC3339)); err != nil {
		return cursorError(key, err)
	}
	return nil
}
