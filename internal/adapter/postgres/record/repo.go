// Package record implements the watched-movie record repository using PostgreSQL.
package record

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/filmstats-backend/internal/adapter/postgres"
	"github.com/heartmarshall/filmstats-backend/internal/domain"
)

const entity = "record"

// Repo provides record persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
	psql sq.StatementBuilderType
}

// New creates a new record repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{
		pool: pool,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const recordColumns = `id, session_id, title, year, dedupe_key, rating, watched_date, rewatch, tags, review,
enriched, catalog_id, imdb_id, genres, directors, cast_members, runtime, budget, revenue,
popularity, vote_average, release_date, country, original_language,
enriched_at, enrich_attempts, last_enrich_error, created_at`

const insertSQL = `
INSERT INTO records (session_id, title, year, dedupe_key, rating, watched_date, rewatch, tags, review)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (session_id, dedupe_key) DO NOTHING`

const getByIDSQL = `
SELECT ` + recordColumns + `
FROM records
WHERE id = $1`

const fetchUnenrichedSQL = `
SELECT ` + recordColumns + `
FROM records
WHERE session_id = $1 AND enriched = false AND id > $2
ORDER BY id
LIMIT $3`

const countUnenrichedSQL = `
SELECT count(*) FROM records WHERE session_id = $1 AND enriched = false`

const recordAttemptSQL = `
UPDATE records
SET enrich_attempts = enrich_attempts + 1, last_enrich_error = $2
WHERE id = $1 AND enriched = false`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// BulkInsert inserts records using pgx.Batch. Records whose dedupe key is
// already present in the session are skipped via ON CONFLICT DO NOTHING.
// Returns the number of actually inserted rows.
func (r *Repo) BulkInsert(ctx context.Context, records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for i := range records {
		rec := &records[i]
		if err := rec.Validate(); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(insertSQL,
			rec.SessionID, rec.Title, rec.Year, rec.DedupeKey, rec.Rating,
			rec.WatchedDate, rec.Rewatch, tags, rec.Review,
		)
	}

	return r.sendBatchExec(ctx, batch)
}

// ApplyEnrichment writes metadata and flips enriched to true in one UPDATE.
// It is guarded by enriched = false, so a second apply for the same record
// changes nothing and reports applied = false. Callers must count only
// applied rows toward the session's enriched_count.
func (r *Repo) ApplyEnrichment(ctx context.Context, id int64, m domain.Metadata, at time.Time) (bool, error) {
	sql, args, err := r.psql.
		Update("records").
		SetMap(map[string]any{
			"enriched":          true,
			"enriched_at":       at,
			"catalog_id":        m.CatalogID,
			"imdb_id":           m.IMDbID,
			"genres":            m.Genres,
			"directors":         m.Directors,
			"cast_members":      m.Cast,
			"runtime":           m.Runtime,
			"budget":            m.Budget,
			"revenue":           m.Revenue,
			"popularity":        m.Popularity,
			"vote_average":      m.VoteAverage,
			"release_date":      m.ReleaseDate,
			"country":           m.Country,
			"original_language": m.OriginalLanguage,
			"last_enrich_error": nil,
		}).
		Set("enrich_attempts", sq.Expr("enrich_attempts + 1")).
		Where(sq.Eq{"id": id, "enriched": false}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build apply enrichment query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return false, postgres.MapError(err, entity, id)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordAttempt notes an enrichment attempt that left the record unenriched.
// Already-enriched records are left untouched.
func (r *Repo) RecordAttempt(ctx context.Context, id int64, reason string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)
	if _, err := q.Exec(ctx, recordAttemptSQL, id, reason); err != nil {
		return postgres.MapError(err, entity, id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a record by primary key.
func (r *Repo) GetByID(ctx context.Context, id int64) (*domain.Record, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)
	rec, err := scanRecord(q.QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return nil, postgres.MapError(err, entity, id)
	}
	return rec, nil
}

// FetchUnenriched returns up to limit unenriched records of the session with
// id > afterID, in ascending id order. Pass afterID = 0 to start a pass.
func (r *Repo) FetchUnenriched(ctx context.Context, sessionID uuid.UUID, afterID int64, limit int) ([]domain.Record, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := q.Query(ctx, fetchUnenrichedSQL, sessionID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unenriched records of session %s: %w", sessionID, err)
	}
	defer rows.Close()

	out := make([]domain.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// CountUnenriched returns how many records of the session are still unenriched.
func (r *Repo) CountUnenriched(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	q := postgres.QuerierFromCtx(ctx, r.pool)
	if err := q.QueryRow(ctx, countUnenrichedSQL, sessionID).Scan(&n); err != nil {
		return 0, postgres.MapError(err, "session", sessionID)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (r *Repo) sendBatchExec(ctx context.Context, batch *pgx.Batch) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)
	results := q.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int
	for range batch.Len() {
		tag, err := results.Exec()
		if err != nil {
			return inserted, postgres.MapError(err, entity, "batch")
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

func scanRecord(row pgx.Row) (*domain.Record, error) {
	var (
		rec domain.Record
		m   = &rec.Metadata
	)
	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.Title, &rec.Year, &rec.DedupeKey, &rec.Rating,
		&rec.WatchedDate, &rec.Rewatch, &rec.Tags, &rec.Review,
		&rec.Enriched, &m.CatalogID, &m.IMDbID, &m.Genres, &m.Directors, &m.Cast,
		&m.Runtime, &m.Budget, &m.Revenue, &m.Popularity, &m.VoteAverage,
		&m.ReleaseDate, &m.Country, &m.OriginalLanguage,
		&rec.EnrichedAt, &rec.EnrichAttempts, &rec.LastEnrichError, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
