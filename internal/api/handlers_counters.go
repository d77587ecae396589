// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/cache"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/models"
	"github.com/tomtom215/reelsync/internal/validation"
)

// Accepted skew of a client-reported fetch time.
const (
	maxCounterAge    = 7 * 24 * time.Hour
	maxCounterFuture = 60 * time.Second
)

// counterWriteBody is the wire form of POST /api/v1/counters. Fields are
// kept raw so a wrong-typed value is reported per field.
type counterWriteBody struct {
	Subject       json.RawMessage `json:"subject"`
	Count         json.RawMessage `json:"count"`
	ETag          json.RawMessage `json:"etag"`
	LastFetchedAt json.RawMessage `json:"lastFetchedAt"`
	Source        json.RawMessage `json:"source"`
}

// CounterWriteRequest is the typed body of POST /api/v1/counters.
type CounterWriteRequest struct {
	Subject       string `json:"subject" validate:"required,max=50,subject"`
	Count         int64  `json:"count" validate:"min=0"`
	ETag          string `json:"etag" validate:"omitempty,max=256"`
	LastFetchedAt *int64 `json:"lastFetchedAt" validate:"omitempty,min=0"`
	Source        string `json:"source" validate:"omitempty,eq=client"`
}

// decodeCounterWrite type-checks every field of body and then applies the
// struct rules. All failures are reported together.
func decodeCounterWrite(body *counterWriteBody) (*CounterWriteRequest, *validation.RequestValidationError) {
	var req CounterWriteRequest

	subject, subjectErr := validation.StringField("subject", body.Subject)
	etag, etagErr := validation.StringField("etag", body.ETag)
	source, sourceErr := validation.StringField("source", body.Source)
	count, _, countErr := validation.IntegerField("count", body.Count, true)
	fetched, hasFetched, fetchedErr := validation.IntegerField("lastFetchedAt", body.LastFetchedAt, false)

	req.Subject = strings.TrimSpace(subject)
	req.Count = count
	req.ETag = etag
	req.Source = source
	if hasFetched {
		req.LastFetchedAt = &fetched
	}

	verr := validation.Join(
		subjectErr, countErr, etagErr, fetchedErr, sourceErr,
		validation.ValidateStruct(&req),
	)
	if verr != nil {
		return nil, verr
	}
	return &req, nil
}

// CounterWriteResponse acknowledges a stored counter.
type CounterWriteResponse struct {
	Success bool   `json:"success"`
	Subject string `json:"subject"`
	Count   int64  `json:"count"`
}

// GetCounter returns the cached watchlist count of a subject.
//
// Method: GET
// Path: /api/v1/counters/{subject}
func (h *Handler) GetCounter(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if !h.counters.Enabled() {
		rw.Error(http.StatusServiceUnavailable, ErrCodeCacheDisabled, "Watchlist counter cache is disabled")
		return
	}

	subject := strings.TrimSpace(chi.URLParam(r, "subject"))
	if subject == "" || len(subject) > 50 || !validation.ValidSubject(subject) {
		rw.ValidationError("subject may contain only letters, digits, underscore and hyphen (max 50)",
			map[string]interface{}{"field": "subject", "value": subject})
		return
	}
	subject = strings.ToLower(subject)

	counter, err := h.counters.Get(r.Context(), subject)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if counter == nil {
		rw.NotFound("No counter cached for subject")
		return
	}
	rw.Success(counter)
}

// PutCounter stores a client-reported watchlist count.
//
// Method: POST
// Path: /api/v1/counters
func (h *Handler) PutCounter(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if !h.counters.Enabled() {
		rw.Error(http.StatusServiceUnavailable, ErrCodeCacheDisabled, "Watchlist counter cache is disabled")
		return
	}

	body, err := readBody(w, r, h.cacheCfg.MaxPayloadBytes)
	if errors.Is(err, errPayloadTooLarge) {
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
			fmt.Sprintf("Request body exceeds %d bytes", h.cacheCfg.MaxPayloadBytes))
		return
	}
	if err != nil {
		rw.BadRequest("Failed to read request body")
		return
	}

	var wire counterWriteBody
	if err := json.Unmarshal(body, &wire); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}

	req, verr := decodeCounterWrite(&wire)
	if verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	req.Subject = strings.ToLower(req.Subject)

	now := h.now()
	fetchedAt := now
	if req.LastFetchedAt != nil {
		fetchedAt = time.UnixMilli(*req.LastFetchedAt)
		if fetchedAt.Before(now.Add(-maxCounterAge)) || fetchedAt.After(now.Add(maxCounterFuture)) {
			verr := validation.NewFieldError("lastFetchedAt", "window",
				"lastFetchedAt must be within the last 7 days and at most 60s in the future", *req.LastFetchedAt)
			apiErr := verr.ToAPIError()
			rw.ValidationError(apiErr.Message, apiErr.Details)
			return
		}
	}

	if h.limiter != nil {
		decision := h.limiter.Check(clientIP(r) + ":" + req.Subject)
		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			rw.ErrorWithDetails(http.StatusTooManyRequests, ErrCodeRateLimitExceeded,
				"Too many counter writes for this subject", map[string]interface{}{"retry_after": retryAfter})
			return
		}
	}

	counter := &models.CachedCounter{
		Subject:       req.Subject,
		Count:         req.Count,
		LastFetchedAt: fetchedAt.UTC(),
		Source:        models.SourceClient,
		ETag:          req.ETag,
	}
	if err := h.counters.Set(r.Context(), counter); err != nil {
		if errors.Is(err, cache.ErrCacheDisabled) {
			rw.Error(http.StatusServiceUnavailable, ErrCodeCacheDisabled, "Watchlist counter cache is disabled")
			return
		}
		rw.DatabaseError(err)
		return
	}

	logging.Ctx(r.Context()).Debug().
		Str("subject", counter.Subject).
		Int64("count", counter.Count).
		Msg("Counter stored")

	rw.Success(CounterWriteResponse{
		Success: true,
		Subject: counter.Subject,
		Count:   counter.Count,
	})
}
