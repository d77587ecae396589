// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package sync

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a run-aborting failure.
type ErrorKind string

const (
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindMissingParameter  ErrorKind = "missing_parameter"
	KindUpstreamAuth      ErrorKind = "upstream_auth"
	KindUpstream          ErrorKind = "upstream_unavailable"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindCircuitOpen       ErrorKind = "circuit_open"
	KindCursor            ErrorKind = "cursor"
	KindStore             ErrorKind = "store"
	KindCanceled          ErrorKind = "canceled"
)

// SyncError is a structural failure that aborts a whole run. Per-item
// failures are never reported this way; they are counted in SyncResult.
type SyncError struct {
	Kind  ErrorKind
	Param string // set for KindMissingParameter
	Err   error
}

func (e *SyncError) Error() string {
	switch {
	case e.Kind == KindMissingParameter:
		return fmt.Sprintf("missing required parameter: %s", e.Param)
	case e.Err != nil:
		return fmt.Sprintf("sync aborted (%s): %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("sync aborted (%s)", e.Kind)
	}
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func missingParam(name string) *SyncError {
	return &SyncError{Kind: KindMissingParameter, Param: name}
}

func cursorError(key string, err error) *SyncError {
	return &SyncError{Kind: KindCursor, Err: fmt.Errorf("cursor %s: %w", key, err)}
}

// structural returns a *SyncError when err must abort the run, or nil when
// it only affects the current item. Cancellation is judged by the run's own
// context so an HTTP client timeout on one item stays item-level.
func structural(ctx context.Context, err error) *SyncError {
	var se *SyncError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return se
	case ctx.Err() != nil:
		return &SyncError{Kind: KindCanceled, Err: ctx.Err()}
	case errors.Is(err, ErrUpstreamAuth):
		return &SyncError{Kind: KindUpstreamAuth, Err: err}
	case errors.Is(err, ErrMalformedResponse):
		return &SyncError{Kind: KindMalformedResponse, Err: err}
	case IsCircuitOpen(err):
		return &SyncError{Kind: KindCircuitOpen, Err: err}
	}
	return nil
}

// errorKind returns the metric label for an error returned by Run.
func errorKind(err error) string {
	var se *SyncError
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return "other"
}
