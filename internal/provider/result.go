// Package provider defines the catalog-agnostic results and error taxonomy
// returned by metadata catalog adapters.
package provider

// MovieResult is the merged search, details and credits data for one film.
// Pointer and slice fields are nil when the catalog did not supply them.
type MovieResult struct {
	CatalogID        int
	Title            string
	IMDbID           *string
	Genres           []string
	Directors        []string
	Cast             []string
	Runtime          *int
	Budget           *int64
	Revenue          *int64
	Popularity       *float64
	VoteAverage      *float64
	ReleaseDate      *string
	Country          *string
	OriginalLanguage *string
}

// Candidate is a single search hit.
type Candidate struct {
	CatalogID   int
	Title       string
	ReleaseDate string
	Popularity  float64
}

// Details holds per-title attributes.
type Details struct {
	CatalogID        int
	Title            string
	IMDbID           *string
	Genres           []string
	Runtime          *int
	Budget           *int64
	Revenue          *int64
	Popularity       *float64
	VoteAverage      *float64
	ReleaseDate      *string
	Country          *string
	OriginalLanguage *string
}

// Credits holds contributor lists.
type Credits struct {
	Directors []string
	Cast      []string
}
