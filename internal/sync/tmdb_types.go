// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package sync

// DiscoverParams selects one page of /discover/movie. Empty date bounds are
// omitted from the request.
type DiscoverParams struct {
	Page           int
	ReleaseDateGTE string
	ReleaseDateLTE string
}

// DiscoverItem is one entry of a discovery page.
type DiscoverItem struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Adult       bool    `json:"adult"`
	Popularity  float64 `json:"popularity"`
	GenreIDs    []int   `json:"genre_ids"`
}

// DiscoverPage is the envelope of /discover/movie.
type DiscoverPage struct {
	Page         int            `json:"page"`
	Results      []DiscoverItem `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// Genre is a TMDB genre reference.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CrewMember is one crew credit.
type CrewMember struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// Credits is the appended credits block of a detail response.
type Credits struct {
	Crew []CrewMember `json:"crew"`
}

// MovieDetail is the response of /movie/{id}?append_to_response=credits.
// Optional upstream fields decode to their zero value.
type MovieDetail struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title"`
	ReleaseDate   string   `json:"release_date"`
	Overview      string   `json:"overview"`
	PosterPath    string   `json:"poster_path"`
	BackdropPath  string   `json:"backdrop_path"`
	VoteAverage   float64  `json:"vote_average"`
	VoteCount     int64    `json:"vote_count"`
	Popularity    float64  `json:"popularity"`
	Adult         bool     `json:"adult"`
	Genres        []Genre  `json:"genres"`
	Runtime       int      `json:"runtime"`
	Status        string   `json:"status"`
	Tagline       string   `json:"tagline"`
	Credits       *Credits `json:"credits"`
}

// ChangeItem is one entry of the change feed. Adult is null for some ids.
type ChangeItem struct {
	ID    int64 `json:"id"`
	Adult *bool `json:"adult"`
}

// ChangesPage is the envelope of /movie/changes.
type ChangesPage struct {
	Page         int          `json:"page"`
	Results      []ChangeItem `json:"results"`
	TotalPages   int          `json:"total_pages"`
	TotalResults int          `json:"total_results"`
}
