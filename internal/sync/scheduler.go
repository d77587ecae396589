// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/models"
)

// Runner executes a single sync run. *Manager satisfies it.
type Runner interface {
	Run(ctx context.Context, req models.SyncRequest) (*models.SyncResult, error)
}

// Scheduler replaces the external cron trigger: every interval it runs a
// delta sync followed by an incremental sync.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	modes    []models.SyncType

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. A non-positive interval defaults to 6h.
func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		modes:    []models.SyncType{models.SyncTypeDelta, models.SyncTypeIncremental},
	}
}

// Start begins the periodic loop and returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("sync scheduler is already running")
	}

	s.running = true
	s.stopChan = make(chan struct{})

	// Add before starting so Stop never waits on an unregistered goroutine
	s.wg.Add(1)
	go s.loop(ctx, s.stopChan)

	logging.Info().Dur("interval", s.interval).Msg("Sync scheduler started")
	return nil
}

// Stop ends the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("sync scheduler is not running")
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info().Msg("Sync scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs each scheduled mode in order. A failed mode does not prevent
// the next one.
func (s *Scheduler) tick(ctx context.Context) {
	for _, mode := range s.modes {
		if ctx.Err() != nil {
			return
		}
		res, err := s.runner.Run(ctx, models.SyncRequest{Type: mode})
		if err != nil {
			logging.Warn().Err(err).Str("sync_type", string(mode)).Msg("Scheduled sync failed")
			continue
		}
		logging.Debug().
			Str("sync_type", string(mode)).
			Str("run_id", res.RunID).
			Int("updated", res.Updated).
			Msg("Scheduled sync finished")
	}
}
