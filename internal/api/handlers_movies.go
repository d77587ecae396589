// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// GetMovie returns one mirrored movie record.
//
// Method: GET
// Path: /api/v1/movies/{id}
func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		rw.ValidationError("id must be a positive integer",
			map[string]interface{}{"field": "id", "value": raw})
		return
	}

	movie, err := h.db.GetMovie(r.Context(), id)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if movie == nil {
		rw.NotFound("Movie is not mirrored")
		return
	}
	rw.Success(movie)
}
