package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is a single watched-movie row belonging to a session.
type Record struct {
	ID        int64
	SessionID uuid.UUID

	// Ingested fields.
	Title       string
	Year        *int
	DedupeKey   string
	Rating      *float64
	WatchedDate *time.Time
	Rewatch     bool
	Tags        []string
	Review      *string

	// Enrichment state. Enriched flips false -> true at most once.
	Enriched        bool
	Metadata        Metadata
	EnrichedAt      *time.Time
	EnrichAttempts  int
	LastEnrichError *string

	CreatedAt time.Time
}

// Metadata holds catalog attributes. Every field may be absent.
type Metadata struct {
	CatalogID        *int
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

// Validate checks the fields required before a record is persisted.
func (r *Record) Validate() error {
	var errs []FieldError
	if r.SessionID == uuid.Nil {
		errs = append(errs, FieldError{Field: "session_id", Message: "required"})
	}
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, FieldError{Field: "title", Message: "required"})
	}
	if r.DedupeKey == "" {
		errs = append(errs, FieldError{Field: "dedupe_key", Message: "required"})
	}
	if r.Year != nil && (*r.Year < 1870 || *r.Year > 2200) {
		errs = append(errs, FieldError{Field: "year", Message: "out of range"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}
