package enrichment

import (
	"github.com/heartmarshall/filmstats-backend/internal/domain"
	"github.com/heartmarshall/filmstats-backend/internal/provider"
)

// toMetadata maps a catalog result onto the record's nullable columns.
// Absent fields stay nil; a nil result maps to empty metadata.
func toMetadata(r *provider.MovieResult) domain.Metadata {
	if r == nil {
		return domain.Metadata{}
	}

	m := domain.Metadata{
		IMDbID:           r.IMDbID,
		Genres:           r.Genres,
		Directors:        r.Directors,
		Cast:             r.Cast,
		Runtime:          r.Runtime,
		Budget:           r.Budget,
		Revenue:          r.Revenue,
		Popularity:       r.Popularity,
		VoteAverage:      r.VoteAverage,
		ReleaseDate:      r.ReleaseDate,
		Country:          r.Country,
		OriginalLanguage: r.OriginalLanguage,
	}
	if r.CatalogID > 0 {
		id := r.CatalogID
		m.CatalogID = &id
	}
	return m
}
