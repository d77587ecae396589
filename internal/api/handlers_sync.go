// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/models"
	syncpkg "github.com/tomtom215/reelsync/internal/sync"
	"github.com/tomtom215/reelsync/internal/validation"
)

// maxSyncRequestBytes caps the sync trigger body.
const maxSyncRequestBytes = 4 << 10

// SyncTriggerRequest is the body of POST /api/v1/sync.
type SyncTriggerRequest struct {
	SyncType         string `json:"syncType" validate:"required,oneof=full current_year delta backfill incremental"`
	ReleaseYearStart string `json:"releaseYearStart" validate:"omitempty,datetime=2006-01-02"`
	ReleaseYearEnd   string `json:"releaseYearEnd" validate:"omitempty,datetime=2006-01-02"`
	MaxPages         int    `json:"maxPages" validate:"omitempty,min=1,max=500"`
	MaxMovies        int    `json:"maxMovies" validate:"omitempty,min=1,max=10000"`
}

// SyncTriggerResponse reports a completed run.
type SyncTriggerResponse struct {
	Success          bool            `json:"success"`
	RunID            string          `json:"runId"`
	SyncType         models.SyncType `json:"syncType"`
	Checked          int             `json:"checked"`
	Updated          int             `json:"updated"`
	Synced           int             `json:"synced"`
	Skipped          int             `json:"skipped"`
	Failed           int             `json:"failed"`
	Deferred         int             `json:"deferred"`
	Pages            int             `json:"pages"`
	HighestID        int64           `json:"highestId,omitempty"`
	ReleaseYearStart string          `json:"releaseYearStart,omitempty"`
	ReleaseYearEnd   string          `json:"releaseYearEnd,omitempty"`
	DurationMs       int64           `json:"durationMs"`
}

func newSyncTriggerResponse(res *models.SyncResult) SyncTriggerResponse {
	return SyncTriggerResponse{
		Success:          true,
		RunID:            res.RunID,
		SyncType:         res.SyncType,
		Checked:          res.Checked,
		Updated:          res.Updated,
		Synced:           res.Updated,
		Skipped:          res.Skipped,
		Failed:           res.Failed,
		Deferred:         res.Deferred,
		Pages:            res.Pages,
		HighestID:        res.HighestID,
		ReleaseYearStart: res.ReleaseYearStart,
		ReleaseYearEnd:   res.ReleaseYearEnd,
		DurationMs:       res.Duration.Milliseconds(),
	}
}

// TriggerSync runs one sync mode synchronously and reports its counters.
//
// Method: POST
// Path: /api/v1/sync
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	body, err := readBody(w, r, maxSyncRequestBytes)
	if errors.Is(err, errPayloadTooLarge) {
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body too large")
		return
	}
	if err != nil {
		rw.BadRequest("Failed to read request body")
		return
	}

	var req SyncTriggerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	start := time.Now()
	res, err := h.sync.Run(r.Context(), models.SyncRequest{
		Type:             models.SyncType(req.SyncType),
		ReleaseYearStart: req.ReleaseYearStart,
		ReleaseYearEnd:   req.ReleaseYearEnd,
		MaxPages:         req.MaxPages,
		MaxMovies:        req.MaxMovies,
	})
	if err != nil {
		h.writeSyncError(rw, r, err, res)
		return
	}

	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	rw.Success(newSyncTriggerResponse(res))
}

// writeSyncError maps a run-aborting error to a response. Partial counters
// are included so an operator can see how far the run got.
func (h *Handler) writeSyncError(rw *ResponseWriter, r *http.Request, err error, partial *models.SyncResult) {
	details := map[string]interface{}{}
	if partial != nil {
		details["partial"] = newSyncTriggerResponse(partial)
	}

	var se *syncpkg.SyncError
	if !errors.As(err, &se) {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Sync failed")
		rw.ErrorWithDetails(http.StatusInternalServerError, ErrCodeSyncFailed, err.Error(), details)
		return
	}

	details["kind"] = se.Kind
	if se.Param != "" {
		details["param"] = se.Param
	}

	if se.Kind == syncpkg.KindInvalidRequest {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest, se.Error(), details)
		return
	}

	logging.Ctx(r.Context()).Error().Err(err).Str("kind", string(se.Kind)).Msg("Sync aborted")
	rw.ErrorWithDetails(http.StatusInternalServerError, ErrCodeSyncFailed, se.Error(), details)
}

// SyncStatus reports cursor state and the mirror size.
//
// Method: GET
// Path: /api/v1/sync/status
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.sync.Status(r.Context())
	if err != nil {
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}
	WriteSuccess(w, r, status)
}
