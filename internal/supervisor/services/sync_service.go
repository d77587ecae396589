// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package services

import (
	"context"
	"fmt"
)

// StartStopper matches the lifecycle of sync.Scheduler.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService adapts the sync scheduler's Start/Stop lifecycle to Serve.
// Stop waits for an in-flight tick to return, so a restart never overlaps
// two scheduled runs.
type SyncService struct {
	scheduler StartStopper
	name      string
}

// NewSyncService wraps a scheduler.
func NewSyncService(scheduler StartStopper) *SyncService {
	return &SyncService{
		scheduler: scheduler,
		name:      "sync-scheduler",
	}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("sync scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("sync scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *SyncService) String() string {
	return s.name
}
