// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/reelsync/internal/config"
)

// testDBSemaphore serializes DuckDB usage across parallel tests. Concurrent
// CGO connections under CI resource pressure have been seen to hang, so the
// slot is held for the whole test, not just for New().
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates a new in-memory test database with timeout protection.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "256MB",
		Threads:   1,
	}

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := New(cfg)
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			_ = res.db.Close()
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s")
		return nil
	}
}

// checkNoError fails the test if err is not nil
func checkNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewAppliesMigrations(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	version, err := db.CurrentSchemaVersion(context.Background())
	checkNoError(t, err)
	if version != len(migrations) {
		t.Errorf("schema version = %d, want %d", version, len(migrations))
	}

	// A second run applies nothing and does not fail.
	checkNoError(t, db.runVersionedMigrations())
}

func TestNewCreatesDirectory(t *testing.T) {
	t.Parallel()

	testDBSemaphore <- struct{}{}
	defer func() { <-testDBSemaphore }()

	path := filepath.Join(t.TempDir(), "nested", "reelsync.duckdb")
	db, err := New(&config.DatabaseConfig{Path: path, Threads: 1})
	checkNoError(t, err)
	defer func() { _ = db.Close() }()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	checkNoError(t, db.Ping(context.Background()))
}

func TestClosedDatabase(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	checkNoError(t, db.Close())
	checkNoError(t, db.Close())

	ctx := context.Background()
	if err := db.Ping(ctx); !errors.Is(err, ErrDatabaseClosed) {
		t.Errorf("Ping after Close = %v, want ErrDatabaseClosed", err)
	}
	if _, err := db.CountMovies(ctx); !errors.Is(err, ErrDatabaseClosed) {
		t.Errorf("CountMovies after Close = %v, want ErrDatabaseClosed", err)
	}
	if _, err := db.GetCounter(ctx, "alice"); !errors.Is(err, ErrDatabaseClosed) {
		t.Errorf("GetCounter after Close = %v, want ErrDatabaseClosed", err)
	}
}
