// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/models"
)

// fakeCatalog is an in-memory CatalogClient. Unknown detail ids answer
// ErrNotFound.
type fakeCatalog struct {
	mu sync.Mutex

	details    map[int64]*MovieDetail
	detailErrs map[int64]error

	discoverPages map[int]*DiscoverPage
	discoverErrs  map[int]error
	discoverCalls []DiscoverParams

	changesPages map[int]*ChangesPage
	changesErrs  map[int]error
	changesSince []time.Time

	detailLog []int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		details:       make(map[int64]*MovieDetail),
		detailErrs:    make(map[int64]error),
		discoverPages: make(map[int]*DiscoverPage),
		discoverErrs:  make(map[int]error),
		changesPages:  make(map[int]*ChangesPage),
		changesErrs:   make(map[int]error),
	}
}

func (f *fakeCatalog) addMovie(id int64, title string, genres ...string) {
	d := &MovieDetail{ID: id, Title: title, ReleaseDate: "2025-06-01"}
	for i, g := range genres {
		d.Genres = append(d.Genres, Genre{ID: i + 1, Name: g})
	}
	f.details[id] = d
}

// addDiscoverPage registers a page with the given ids, all present upstream.
func (f *fakeCatalog) addDiscoverPage(page, totalPages int, ids ...int64) {
	dp := &DiscoverPage{Page: page, TotalPages: totalPages, Results: []DiscoverItem{}}
	for _, id := range ids {
		dp.Results = append(dp.Results, DiscoverItem{ID: id})
		if _, ok := f.details[id]; !ok {
			f.addMovie(id, fmt.Sprintf("Movie %d", id), "Drama")
		}
	}
	f.discoverPages[page] = dp
}

func (f *fakeCatalog) Discover(_ context.Context, params DiscoverParams) (*DiscoverPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discoverCalls = append(f.discoverCalls, params)
	if err := f.discoverErrs[params.Page]; err != nil {
		return nil, err
	}
	if dp, ok := f.discoverPages[params.Page]; ok {
		return dp, nil
	}
	return &DiscoverPage{Page: params.Page, Results: []DiscoverItem{}}, nil
}

func (f *fakeCatalog) MovieDetail(_ context.Context, id int64) (*MovieDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailLog = append(f.detailLog, id)
	if err := f.detailErrs[id]; err != nil {
		return nil, err
	}
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("movie: %w", ErrNotFound)
}

func (f *fakeCatalog) Changes(_ context.Context, since time.Time, page int) (*ChangesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changesSince = append(f.changesSince, since)
	if err := f.changesErrs[page]; err != nil {
		return nil, err
	}
	if cp, ok := f.changesPages[page]; ok {
		return cp, nil
	}
	return &ChangesPage{Page: page, Results: []ChangeItem{}}, nil
}

func (f *fakeCatalog) Ping(context.Context) error { return nil }

func (f *fakeCatalog) detailCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detailLog)
}

func (f *fakeCatalog) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detailLog) + len(f.discoverCalls) + len(f.changesSince)
}

// fakeStore is an in-memory MovieStore.
type fakeStore struct {
	mu sync.Mutex

	movies  map[int64]models.MovieRecord
	cursors map[string]string
	writes  map[string]int

	getCursorErr error
	setCursorErr error
	listCalls    int
	upsertErrs   map[int64]error
	missingErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		movies:     make(map[int64]models.MovieRecord),
		cursors:    make(map[string]string),
		writes:     make(map[string]int),
		upsertErrs: make(map[int64]error),
	}
}

func (s *fakeStore) UpsertMovie(_ context.Context, m *models.MovieRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.upsertErrs[m.ID]; err != nil {
		return err
	}
	s.movies[m.ID] = *m
	return nil
}

func (s *fakeStore) GetCursor(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getCursorErr != nil {
		return "", false, s.getCursorErr
	}
	v, ok := s.cursors[key]
	return v, ok, nil
}

func (s *fakeStore) SetCursor(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setCursorErr != nil {
		return s.setCursorErr
	}
	s.cursors[key] = value
	s.writes[key]++
	return nil
}

func (s *fakeStore) ListCursors(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.getCursorErr != nil {
		return nil, s.getCursorErr
	}
	out := make(map[string]string, len(s.cursors))
	for k, v := range s.cursors {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) MissingGenreIDs(_ context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missingErr != nil {
		return nil, s.missingErr
	}
	var ids []int64
	for id, m := range s.movies {
		g := m.Genres
		if models.IsMissing(&g) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *fakeStore) CountMovies(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.movies)), nil
}

func (s *fakeStore) cursor(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cursors[key]
	return v, ok
}

// testNow is the fixed clock used by manager tests.
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// newTestManager wires a Manager with a fixed clock and no item delay.
func newTestManager(t *testing.T, catalog CatalogClient, store MovieStore, cfg config.SyncConfig) *Manager {
	t.Helper()
	if cfg.GenreSentinel == "" {
		cfg.GenreSentinel = "Unknown"
	}
	m := NewManager(catalog, store, &cfg)
	m.now = func() time.Time { return testNow }
	m.sleep = func(context.Context, time.Duration) error { return nil }
	return m
}

// requireSyncError asserts err is a *SyncError of the given kind.
func requireSyncError(t *testing.T, err error, kind ErrorKind) *SyncError {
	t.Helper()
	var se *SyncError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SyncError(%s), got %v", kind, err)
	}
	if se.Kind != kind {
		t.Fatalf("error kind = %s, want %s (%v)", se.Kind, kind, err)
	}
	return se
}

func idRange(from, to int64) []int64 {
	out := make([]int64, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, id)
	}
	return out
}
