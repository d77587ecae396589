// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package models

import "time"

// MovieRecord is one row of tmdb_movies.
//
// ID is the only identity. Title plus Year is a fuzzy matching key for
// read-side lookups and is never unique. Rows are replaced whole on every
// sync that touches the ID and are never deleted.
//
// Genres holds the JSON text of an ordered list of genre names. A list that
// was genuinely empty upstream is stored as the configured sentinel, e.g.
// ["Unknown"], so it is distinguishable from a row that was never synced.
type MovieRecord struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	OriginalTitle string    `json:"original_title"`
	ReleaseDate   *string   `json:"release_date,omitempty"`
	Year          *int      `json:"year,omitempty"`
	Overview      string    `json:"overview"`
	PosterPath    *string   `json:"poster_path,omitempty"`
	BackdropPath  *string   `json:"backdrop_path,omitempty"`
	VoteAverage   float64   `json:"vote_average"`
	VoteCount     int64     `json:"vote_count"`
	Popularity    float64   `json:"popularity"`
	Adult         bool      `json:"adult"`
	Genres        string    `json:"genres"`
	Director      *string   `json:"director,omitempty"`
	Runtime       *int      `json:"runtime,omitempty"`
	Status        string    `json:"status"`
	Tagline       string    `json:"tagline"`
	LastUpdated   time.Time `json:"last_updated"`
}
