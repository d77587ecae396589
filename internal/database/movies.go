// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomtom215/reelsync/internal/models"
)

const upsertMovieSQL = `
INSERT OR REPLACE INTO tmdb_movies (
	id, title, original_title, release_date, year, overview,
	poster_path, backdrop_path, vote_average, vote_count, popularity,
	adult, genres, director, runtime, status, tagline, last_updated
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectMovieSQL = `
SELECT id, title, original_title, release_date, year, overview,
	poster_path, backdrop_path, vote_average, vote_count, popularity,
	adult, genres, director, runtime, status, tagline, last_updated
FROM tmdb_movies WHERE id = ?`

// UpsertMovie replaces the row for m.ID with m. last_updated is set to the
// current time; every other column comes from m.
func (db *DB) UpsertMovie(ctx context.Context, m *models.MovieRecord) error {
	ctx, cancel, err := db.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	_, err = db.conn.ExecContext(ctx, upsertMovieSQL,
		m.ID, m.Title, m.OriginalTitle, nullable(m.ReleaseDate), nullable(m.Year), m.Overview,
		nullable(m.PosterPath), nullable(m.BackdropPath), m.VoteAverage, m.VoteCount, m.Popularity,
		m.Adult, m.Genres, nullable(m.Director), nullable(m.Runtime), m.Status, m.Tagline, db.now(),
	)
	if err != nil {
		return fmt.Errorf("upsert movie %d: %w", m.ID, err)
	}
	return nil
}

// GetMovie returns the stored row for id, or nil when there is none.
func (db *DB) GetMovie(ctx context.Context, id int64) (*models.MovieRecord, error) {
	ctx, cancel, err := db.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var (
		m                          models.MovieRecord
		originalTitle, overview    sql.NullString
		releaseDate, poster        sql.NullString
		backdrop, genres, director sql.NullString
		status, tagline            sql.NullString
		year, runtime              sql.NullInt64
		voteAverage, popularity    sql.NullFloat64
		voteCount                  sql.NullInt64
	)
	err = db.conn.QueryRowContext(ctx, selectMovieSQL, id).Scan(
		&m.ID, &m.Title, &originalTitle, &releaseDate, &year, &overview,
		&poster, &backdrop, &voteAverage, &voteCount, &popularity,
		&m.Adult, &genres, &director, &runtime, &status, &tagline, &m.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, err)
	}

	m.OriginalTitle = originalTitle.String
	m.Overview = overview.String
	m.Genres = genres.String
	m.Status = status.String
	m.Tagline = tagline.String
	m.VoteAverage = voteAverage.Float64
	m.VoteCount = voteCount.Int64
	m.Popularity = popularity.Float64
	m.ReleaseDate = nullStringPtr(releaseDate)
	m.PosterPath = nullStringPtr(poster)
	m.BackdropPath = nullStringPtr(backdrop)
	m.Director = nullStringPtr(director)
	m.Year = nullIntPtr(year)
	m.Runtime = nullIntPtr(runtime)
	return &m, nil
}

// CountMovies returns the number of mirrored movies.
func (db *DB) CountMovies(ctx context.Context) (int64, error) {
	ctx, cancel, err := db.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tmdb_movies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return n, nil
}

// MissingGenreIDs returns up to limit ids whose genres column is missing,
// lowest id first.
func (db *DB) MissingGenreIDs(ctx context.Context, limit int) ([]int64, error) {
	ctx, cancel, err := db.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `SELECT id FROM tmdb_movies WHERE ` + models.MissingPredicateSQL("genres") + ` ORDER BY id LIMIT ?`
	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query missing genres: %w", err)
	}
	defer closeWithLog(rows, "rows")

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan missing genre id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetCursor returns the value stored under key and whether it exists.
func (db *DB) GetCursor(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel, err := db.begin(ctx)
	if err != nil {
		return "", false, err
	}
	defer cancel()

	var value string
	err = db.conn.QueryRowContext(ctx, `SELECT value FROM sync_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cursor %s: %w", key, err)
	}
	return value, true, nil
}

// SetCursor stores value under key, replacing any previous value.
func (db *DB) SetCursor(ctx context.Context, key, value string) error {
	ctx, cancel, err := db.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	_, err = db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_metadata (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, db.now())
	if err != nil {
		return fmt.Errorf("set cursor %s: %w", key, err)
	}
	return nil
}

// ListCursors returns every cursor row keyed by name.
func (db *DB) ListCursors(ctx context.Context) (map[string]string, error) {
	ctx, cancel, err := db.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT key, value FROM sync_metadata ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// nullable binds a nil pointer as SQL NULL and anything else by value.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullIntPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}
