package tmdb

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/heartmarshall/filmstats-backend/internal/domain"
	"github.com/heartmarshall/filmstats-backend/internal/provider"
)

const searchPath = "/search/movie"

// Enrich resolves title/year to a catalog entry and merges its details and credits.
// Returns an error wrapping provider.ErrNotFound when any of the three lookups
// finds nothing.
func (c *Client) Enrich(ctx context.Context, title string, year *int) (*provider.MovieResult, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: empty title", provider.ErrNotFound)
	}

	cand, err := c.Search(ctx, title, year)
	if err != nil {
		return nil, err
	}

	details, err := c.Details(ctx, cand.CatalogID)
	if err != nil {
		return nil, err
	}

	credits, err := c.Credits(ctx, cand.CatalogID)
	if err != nil {
		return nil, err
	}

	c.log.DebugContext(ctx, "tmdb enriched",
		slog.String("title", title),
		slog.Int("tmdb_id", cand.CatalogID),
		slog.Int("genres", len(details.Genres)),
		slog.Int("cast", len(credits.Cast)),
	)

	return mergeResult(cand, details, credits), nil
}

// Search returns the best candidate for title, preferring an exact release-year match.
func (c *Client) Search(ctx context.Context, title string, year *int) (provider.Candidate, error) {
	key := "search:" + domain.NormalizeTitle(title) + ":" + yearKey(year)

	return cached(ctx, c, "search", key, func() (provider.Candidate, error) {
		params := url.Values{}
		params.Set("query", title)
		params.Set("include_adult", "false")
		if year != nil {
			params.Set("year", strconv.Itoa(*year))
		}

		var resp searchResponse
		if err := c.getJSON(ctx, searchPath, params, &resp); err != nil {
			return provider.Candidate{}, err
		}

		cand, ok := pickCandidate(resp.Results, year, c.minPopularity)
		if !ok {
			return provider.Candidate{}, fmt.Errorf("%w: no match for %q (%s)", provider.ErrNotFound, title, yearKey(year))
		}
		return cand, nil
	})
}

// Details returns per-title attributes for a catalog id.
func (c *Client) Details(ctx context.Context, id int) (provider.Details, error) {
	key := "details:" + strconv.Itoa(id)

	return cached(ctx, c, "details", key, func() (provider.Details, error) {
		var resp detailsResponse
		if err := c.getJSON(ctx, "/movie/"+strconv.Itoa(id), nil, &resp); err != nil {
			return provider.Details{}, err
		}
		return mapDetails(resp), nil
	})
}

// Credits returns directors and top-billed cast for a catalog id.
func (c *Client) Credits(ctx context.Context, id int) (provider.Credits, error) {
	key := "credits:" + strconv.Itoa(id)

	return cached(ctx, c, "credits", key, func() (provider.Credits, error) {
		var resp creditsResponse
		if err := c.getJSON(ctx, "/movie/"+strconv.Itoa(id)+"/credits", nil, &resp); err != nil {
			return provider.Credits{}, err
		}
		return mapCredits(resp, c.castLimit), nil
	})
}

// pickCandidate drops low-popularity noise, then prefers an exact year match
// and falls back to the first remaining result.
func pickCandidate(results []searchResult, year *int, minPopularity float64) (provider.Candidate, bool) {
	var first *searchResult
	for i := range results {
		r := &results[i]
		if r.ID == 0 || r.Popularity < minPopularity {
			continue
		}
		if first == nil {
			first = r
		}
		if year != nil && releaseYear(r.ReleaseDate) == *year {
			return toCandidate(*r), true
		}
	}
	if first == nil {
		return provider.Candidate{}, false
	}
	return toCandidate(*first), true
}

func toCandidate(r searchResult) provider.Candidate {
	return provider.Candidate{
		CatalogID:   r.ID,
		Title:       r.Title,
		ReleaseDate: r.ReleaseDate,
		Popularity:  r.Popularity,
	}
}

func mapDetails(resp detailsResponse) provider.Details {
	d := provider.Details{
		CatalogID:        resp.ID,
		Title:            resp.Title,
		IMDbID:           nonEmpty(resp.IMDbID),
		Runtime:          positiveInt(resp.Runtime),
		Budget:           positiveInt64(resp.Budget),
		Revenue:          positiveInt64(resp.Revenue),
		Popularity:       positiveFloat(resp.Popularity),
		VoteAverage:      positiveFloat(resp.VoteAverage),
		ReleaseDate:      nonEmpty(resp.ReleaseDate),
		OriginalLanguage: nonEmpty(resp.OriginalLanguage),
	}

	for _, g := range resp.Genres {
		if g.Name != "" {
			d.Genres = append(d.Genres, g.Name)
		}
	}
	if len(resp.ProductionCountries) > 0 {
		d.Country = nonEmpty(resp.ProductionCountries[0].Name)
	}

	return d
}

func mapCredits(resp creditsResponse, castLimit int) provider.Credits {
	var cr provider.Credits

	seen := make(map[string]struct{})
	for _, m := range resp.Crew {
		if m.Job != "Director" || m.Name == "" {
			continue
		}
		if _, dup := seen[m.Name]; dup {
			continue
		}
		seen[m.Name] = struct{}{}
		cr.Directors = append(cr.Directors, m.Name)
	}

	cast := make([]castMember, 0, len(resp.Cast))
	for _, m := range resp.Cast {
		if m.Name != "" {
			cast = append(cast, m)
		}
	}
	// TMDB returns cast in billing order already; a stable sort keeps ties as given.
	sortByOrder(cast)
	for i := 0; i < len(cast) && i < castLimit; i++ {
		cr.Cast = append(cr.Cast, cast[i].Name)
	}

	return cr
}

func mergeResult(cand provider.Candidate, d provider.Details, cr provider.Credits) *provider.MovieResult {
	title := d.Title
	if title == "" {
		title = cand.Title
	}
	releaseDate := d.ReleaseDate
	if releaseDate == nil {
		releaseDate = nonEmpty(cand.ReleaseDate)
	}

	return &provider.MovieResult{
		CatalogID:        cand.CatalogID,
		Title:            title,
		IMDbID:           d.IMDbID,
		Genres:           d.Genres,
		Directors:        cr.Directors,
		Cast:             cr.Cast,
		Runtime:          d.Runtime,
		Budget:           d.Budget,
		Revenue:          d.Revenue,
		Popularity:       d.Popularity,
		VoteAverage:      d.VoteAverage,
		ReleaseDate:      releaseDate,
		Country:          d.Country,
		OriginalLanguage: d.OriginalLanguage,
	}
}
