// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
tmdb_client.go - TMDB API Client

TMDBClient is the only component that talks to api.themoviedb.org.

Client Features:
  - Static api_key credential on every request
  - Bounded HTTP timeout (tmdb.timeout)
  - Request pacing through golang.org/x/time/rate (35 requests per 10s
    by default, under TMDB's published limit)
  - Retry with exponential backoff on 429 and 5xx, honoring Retry-After
  - Envelope validation at the boundary: pages must carry a results array
    and every id must be positive

Errors are classified into ErrUpstreamAuth, ErrNotFound, ErrRateLimited,
ErrMalformedResponse or *StatusError. CircuitBreakerClient wraps the client
with the same CatalogClient interface.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/reelsync/internal/config"
)

// DefaultTMDBBaseURL is used when tmdb.base_url is empty.
const DefaultTMDBBaseURL = "https://api.themoviedb.org/3"

// CatalogClient is the upstream surface the sync engine depends on.
type CatalogClient interface {
	Discover(ctx context.Context, params DiscoverParams) (*DiscoverPage, error)
	MovieDetail(ctx context.Context, id int64) (*MovieDetail, error)
	Changes(ctx context.Context, since time.Time, page int) (*ChangesPage, error)
	Ping(ctx context.Context) error
}

// TMDBClient handles communication with the TMDB v3 HTTP API.
//
// Thread Safety: Safe for concurrent use. The pacing limiter is shared.
type TMDBClient struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewTMDBClient creates a TMDB client from cfg. The API key is required.
func NewTMDBClient(cfg *config.TMDBConfig) (*TMDBClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("tmdb api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultTMDBBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerWindow > 0 && cfg.Window > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds())
		burst = cfg.RequestsPerWindow
	}

	return &TMDBClient{
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		client:         &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(limit, burst),
		maxRetries:     max(cfg.MaxRetries, 0),
		retryBaseDelay: cfg.RetryBaseDelay,
	}, nil
}

// Discover fetches one page of /discover/movie sorted by popularity with
// adult titles excluded. Date bounds are passed through verbatim.
func (c *TMDBClient) Discover(ctx context.Context, params DiscoverParams) (*DiscoverPage, error) {
	req := newAPIRequest("discover", "/discover/movie").
		addParam("sort_by", "popularity.desc").
		addParam("include_adult", "false").
		addIntParam("page", params.Page).
		addParam("primary_release_date.gte", params.ReleaseDateGTE).
		addParam("primary_release_date.lte", params.ReleaseDateLTE)

	page, err := getJSON[DiscoverPage](ctx, c, req)
	if err != nil {
		return nil, err
	}
	if page.Results == nil {
		return nil, fmt.Errorf("discover page %d: %w: missing results", params.Page, ErrMalformedResponse)
	}
	for _, item := range page.Results {
		if item.ID <= 0 {
			return nil, fmt.Errorf("discover page %d: %w: invalid id %d", params.Page, ErrMalformedResponse, item.ID)
		}
	}
	return page, nil
}

// MovieDetail fetches /movie/{id} with credits appended.
func (c *TMDBClient) MovieDetail(ctx context.Context, id int64) (*MovieDetail, error) {
	req := newAPIRequest("movie", "/movie/"+strconv.FormatInt(id, 10)).
		addParam("append_to_response", "credits")

	detail, err := getJSON[MovieDetail](ctx, c, req)
	if err != nil {
		return nil, err
	}
	if detail.ID <= 0 {
		return nil, fmt.Errorf("movie %d: %w: invalid id %d", id, ErrMalformedResponse, detail.ID)
	}
	return detail, nil
}

// Changes fetches one page of the movie change feed starting at the UTC
// calendar day of since.
func (c *TMDBClient) Changes(ctx context.Context, since time.Time, page int) (*ChangesPage, error) {
	req := newAPIRequest("changes", "/movie/changes").
		addParam("start_date", since.UTC().Format("2006-01-02")).
		addIntParam("page", page)

	changes, err := getJSON[ChangesPage](ctx, c, req)
	if err != nil {
		return nil, err
	}
	if changes.Results == nil {
		return nil, fmt.Errorf("changes page %d: %w: missing results", page, ErrMalformedResponse)
	}
	for _, item := range changes.Results {
		if item.ID <= 0 {
			return nil, fmt.Errorf("changes page %d: %w: invalid id %d", page, ErrMalformedResponse, item.ID)
		}
	}
	return changes, nil
}

// Ping verifies the credential against /configuration.
func (c *TMDBClient) Ping(ctx context.Context) error {
	resp, err := c.doRequestWithRetry(ctx, newAPIRequest("configuration", "/configuration"))
	if err != nil {
		return fmt.Errorf("failed to ping TMDB: %w", err)
	}
	return resp.Body.Close()
}
