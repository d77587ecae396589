// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package models

import "time"

// SyncType selects a sync mode. Modes are mutually exclusive per run.
type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeCurrentYear SyncType = "current_year"
	SyncTypeDelta       SyncType = "delta"
	SyncTypeBackfill    SyncType = "backfill"
	SyncTypeIncremental SyncType = "incremental"
)

// AllSyncTypes lists every supported mode.
var AllSyncTypes = []SyncType{
	SyncTypeFull,
	SyncTypeCurrentYear,
	SyncTypeDelta,
	SyncTypeBackfill,
	SyncTypeIncremental,
}

// Valid reports whether t is a supported mode.
func (t SyncType) Valid() bool {
	for _, known := range AllSyncTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Keys of sync_metadata rows.
const (
	CursorLastDeltaSync      = "last_delta_sync"
	CursorHighestSyncedID    = "highest_synced_id"
	CursorLastFullSync       = "last_full_sync"
	CursorLastCurrentYear    = "last_current_year_sync"
	CursorLastBackfill       = "last_backfill_sync"
	CursorLastIncrementalRun = "last_incremental_sync"
)

// SyncRequest is the input to one sync run. Zero values mean "use the
// configured default" for the numeric caps.
type SyncRequest struct {
	Type             SyncType
	ReleaseYearStart string
	ReleaseYearEnd   string
	MaxPages         int
	MaxMovies        int
}

// SyncResult reports a finished run. Partial item failures are reported
// through Failed, never as an error.
type SyncResult struct {
	RunID            string        `json:"runId"`
	SyncType         SyncType      `json:"syncType"`
	Checked          int           `json:"checked"`
	Updated          int           `json:"updated"`
	Skipped          int           `json:"skipped"`
	Failed           int           `json:"failed"`
	Deferred         int           `json:"deferred"`
	Pages            int           `json:"pages"`
	ReleaseYearStart string        `json:"releaseYearStart,omitempty"`
	ReleaseYearEnd   string        `json:"releaseYearEnd,omitempty"`
	HighestID        int64         `json:"highestId,omitempty"`
	StartedAt        time.Time     `json:"startedAt"`
	Duration         time.Duration `json:"-"`
}

// SyncStatus summarizes the mirror and its cursors.
type SyncStatus struct {
	TotalMovies     int64             `json:"total_movies"`
	HighestSyncedID int64             `json:"highest_synced_id"`
	LastDeltaSync   string            `json:"last_delta_sync,omitempty"`
	LastRuns        map[string]string `json:"last_runs"`
}
