// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package models defines the data structures shared by ReelSync packages.

Key types:

  - MovieRecord: canonical catalog entry mirrored from TMDB, keyed by ID
  - CachedCounter: a subject's watchlist count as held by either cache tier
  - SyncRequest, SyncResult, SyncStatus: inputs and reports of sync runs
  - Cursor keys: names of the rows in sync_metadata

The package also owns the missing-field detector (IsMissing) together with
its SQL rendition (MissingPredicateSQL) so that both forms live side by side.
Nothing in this package performs I/O.
*/
package models
