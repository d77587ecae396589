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

// GetCounter returns the durable counter for subject, or nil when absent.
func (db *DB) GetCounter(ctx context.Context, subject string) (*models.CachedCounter, error) {
	ctx, cancel, err := db.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var (
		c      models.CachedCounter
		etag   sql.NullString
		source string
	)
	err = db.conn.QueryRowContext(ctx,
		`SELECT subject, count, etag, last_fetched_at, source FROM watchlist_counts WHERE subject = ?`,
		subject,
	).Scan(&c.Subject, &c.Count, &etag, &c.LastFetchedAt, &source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get counter %s: %w", subject, err)
	}

	c.ETag = etag.String
	c.Source = models.CounterSource(source)
	c.LastFetchedAt = c.LastFetchedAt.UTC()
	return &c, nil
}

// PutCounter upserts the durable counter for c.Subject.
func (db *DB) PutCounter(ctx context.Context, c *models.CachedCounter) error {
	ctx, cancel, err := db.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	var etag any
	if c.ETag != "" {
		etag = c.ETag
	}
	source := c.Source
	if source == "" {
		source = models.SourceClient
	}

	_, err = db.conn.ExecContext(ctx, `
INSERT OR REPLACE INTO watchlist_counts (subject, count, etag, last_fetched_at, source, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		c.Subject, c.Count, etag, c.LastFetchedAt.UTC(), string(source), db.now(),
	)
	if err != nil {
		return fmt.Errorf("put counter %s: %w", c.Subject, err)
	}
	return nil
}
