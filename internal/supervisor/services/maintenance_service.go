// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/reelsync/internal/logging"
)

// MaintenanceTask is one periodic housekeeping job.
type MaintenanceTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// MaintenanceService runs its tasks every interval: expiring the in-process
// fast tier and checkpointing the DuckDB WAL. A failing task is logged and
// retried on the next tick; it never restarts the service.
type MaintenanceService struct {
	tasks    []MaintenanceTask
	interval time.Duration
	name     string
}

// NewMaintenanceService creates the service. interval defaults to 5m.
func NewMaintenanceService(interval time.Duration, tasks ...MaintenanceTask) *MaintenanceService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MaintenanceService{
		tasks:    tasks,
		interval: interval,
		name:     "maintenance",
	}
}

// Serve implements suture.Service.
func (m *MaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.runAll(ctx)
		}
	}
}

func (m *MaintenanceService) runAll(ctx context.Context) {
	log := logging.WithComponent("maintenance")
	for _, task := range m.tasks {
		start := time.Now()
		if err := task.Run(ctx); err != nil {
			log.Warn().Err(err).Str("task", task.Name).Msg("Maintenance task failed")
			continue
		}
		log.Debug().Str("task", task.Name).Dur("duration", time.Since(start)).Msg("Maintenance task done")
	}
}

// String names the service in supervisor logs.
func (m *MaintenanceService) String() string {
	return m.name
}
