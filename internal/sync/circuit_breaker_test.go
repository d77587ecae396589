// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/reelsync/internal/config"
)

// TestCircuitBreaker_OpensAfterFailures verifies the circuit opens at the
// failure threshold and then rejects without calling upstream.
func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	catalog := newFakeCatalog()
	cbc := NewCircuitBreakerClient(catalog, config.CircuitBreakerConfig{Timeout: time.Minute})

	if cbc.State() != "closed" {
		t.Fatalf("initial state = %s", cbc.State())
	}

	upstream := &StatusError{Endpoint: "movie", StatusCode: 503}
	for i := int64(1); i <= 10; i++ {
		catalog.detailErrs[i] = upstream
		if _, err := cbc.MovieDetail(context.Background(), i); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	if cbc.State() != "open" {
		t.Fatalf("state after 10 failures = %s, want open", cbc.State())
	}

	before := catalog.detailCalls()
	_, err := cbc.MovieDetail(context.Background(), 11)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open-circuit error, got %v", err)
	}
	if catalog.detailCalls() != before {
		t.Error("open circuit must not call upstream")
	}

	se := structural(context.Background(), err)
	if se == nil || se.Kind != KindCircuitOpen {
		t.Errorf("open circuit should abort the run, got %v", se)
	}
}

// TestCircuitBreaker_NotFoundDoesNotTrip verifies 404s are not counted as
// upstream failures.
func TestCircuitBreaker_NotFoundDoesNotTrip(t *testing.T) {
	catalog := newFakeCatalog()
	cbc := NewCircuitBreakerClient(catalog, config.CircuitBreakerConfig{})

	for i := int64(1); i <= 20; i++ {
		_, err := cbc.MovieDetail(context.Background(), i)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d: err = %v, want ErrNotFound", i, err)
		}
	}
	if cbc.State() != "closed" {
		t.Errorf("state = %s, want closed", cbc.State())
	}
}

func TestIsSuccessful(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{nil, true},
		{fmt.Errorf("movie: %w", ErrNotFound), true},
		{context.Canceled, true},
		{ErrUpstreamAuth, false},
		{&StatusError{StatusCode: 500}, false},
	}
	for _, tt := range tests {
		if got := isSuccessful(tt.err); got != tt.want {
			t.Errorf("isSuccessful(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestStateToString(t *testing.T) {
	t.Parallel()

	if stateToString(gobreaker.StateHalfOpen) != "half-open" {
		t.Error("half-open label")
	}
	if stateToFloat(gobreaker.StateOpen) != 2 {
		t.Error("open value")
	}
}
