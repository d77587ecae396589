// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package sync

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/models"
)

// NormalizeMovie maps a detail response onto a storable record.
//
// An empty genre list is stored as [sentinel] so the row is not picked up
// again by backfill; with an empty sentinel it is stored as []. Missing
// optional fields become nil, never errors.
func NormalizeMovie(d *MovieDetail, sentinel string) models.MovieRecord {
	return models.MovieRecord{
		ID:            d.ID,
		Title:         d.Title,
		OriginalTitle: d.OriginalTitle,
		ReleaseDate:   optionalString(d.ReleaseDate),
		Year:          releaseYear(d.ReleaseDate),
		Overview:      d.Overview,
		PosterPath:    optionalString(d.PosterPath),
		BackdropPath:  optionalString(d.BackdropPath),
		VoteAverage:   d.VoteAverage,
		VoteCount:     d.VoteCount,
		Popularity:    d.Popularity,
		Adult:         d.Adult,
		Genres:        genresJSON(d.Genres, sentinel),
		Director:      director(d.Credits),
		Runtime:       optionalInt(d.Runtime),
		Status:        d.Status,
		Tagline:       d.Tagline,
	}
}

// director returns the first crew member credited as Director.
func director(c *Credits) *string {
	if c == nil {
		return nil
	}
	for _, member := range c.Crew {
		if member.Job == "Director" && strings.TrimSpace(member.Name) != "" {
			name := member.Name
			return &name
		}
	}
	return nil
}

func genresJSON(genres []Genre, sentinel string) string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 && sentinel != "" {
		names = append(names, sentinel)
	}

	b, err := json.Marshal(names)
	if err != nil {
		// []string always marshals
		return "[]"
	}
	return string(b)
}

// releaseYear parses the leading YYYY of a YYYY-MM-DD date.
func releaseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	for i := 0; i < 4; i++ {
		if date[i] < '0' || date[i] > '9' {
			return nil
		}
	}
	if len(date) > 4 && date[4] != '-' {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return nil
	}
	return &year
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func optionalInt(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
