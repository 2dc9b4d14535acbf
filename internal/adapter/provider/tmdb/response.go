package tmdb

// API response types. Numeric fields TMDB reports as 0 when unknown are
// mapped to nil by the callers.

type searchResponse struct {
	Page         int            `json:"page"`
	Results      []searchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

type searchResult struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Popularity  float64 `json:"popularity"`
	VoteAverage float64 `json:"vote_average"`
}

type detailsResponse struct {
	ID                  int                 `json:"id"`
	Title               string              `json:"title"`
	IMDbID              string              `json:"imdb_id"`
	Genres              []namedItem         `json:"genres"`
	Runtime             int                 `json:"runtime"`
	Budget              int64               `json:"budget"`
	Revenue             int64               `json:"revenue"`
	Popularity          float64             `json:"popularity"`
	VoteAverage         float64             `json:"vote_average"`
	ReleaseDate         string              `json:"release_date"`
	OriginalLanguage    string              `json:"original_language"`
	ProductionCountries []productionCountry `json:"production_countries"`
}

type namedItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type productionCountry struct {
	ISO  string `json:"iso_3166_1"`
	Name string `json:"name"`
}

type creditsResponse struct {
	ID   int          `json:"id"`
	Cast []castMember `json:"cast"`
	Crew []crewMember `json:"crew"`
}

type castMember struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type crewMember struct {
	Name string `json:"name"`
	Job  string `json:"job"`
}

type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
