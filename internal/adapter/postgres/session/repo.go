// Package session implements the upload session store using PostgreSQL.
// Fixed queries are raw SQL constants; the status listing is built with squirrel.
package session

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

const entity = "session"

// Repo provides upload session persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
	psql sq.StatementBuilderType
}

// New creates a new session repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{
		pool: pool,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const sessionColumns = `id, status, total_count, enriched_count, error_message, upload_metadata,
created_at, updated_at, last_accessed_at, expires_at`

const createSQL = `
INSERT INTO sessions (id, status, total_count, enriched_count, upload_metadata,
                      created_at, updated_at, last_accessed_at, expires_at)
VALUES ($1, $2, $3, 0, $4, $5, $5, $5, $6)
RETURNING ` + sessionColumns

const getByIDSQL = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE id = $1`

const getProgressSQL = `
SELECT id, status, total_count, enriched_count, error_message
FROM sessions
WHERE id = $1`

const touchSQL = `
UPDATE sessions
SET last_accessed_at = $2, expires_at = GREATEST(expires_at, $3)
WHERE id = $1`

const transitionSQL = `
UPDATE sessions
SET status = $2, error_message = $3, updated_at = now()
WHERE id = $1 AND status = ANY($4)`

const statusSQL = `SELECT status FROM sessions WHERE id = $1`

const incrementSQL = `
UPDATE sessions
SET enriched_count = enriched_count + $2, updated_at = now()
WHERE id = $1`

const deleteExpiredSQL = `DELETE FROM sessions WHERE expires_at < $1`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new session in status created. TotalCount must already
// reflect the number of records the caller is about to insert.
func (r *Repo) Create(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	now := s.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	expires := s.ExpiresAt
	if expires.IsZero() {
		expires = now.Add(domain.DefaultSessionTTL)
	}
	meta := s.UploadMetadata
	if meta == nil {
		meta = map[string]any{}
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	row := q.QueryRow(ctx, createSQL, s.ID, string(s.Status), s.TotalCount, meta, now, expires)
	created, err := scanSession(row)
	if err != nil {
		return nil, postgres.MapError(err, entity, s.ID)
	}
	return created, nil
}

// Touch records a read of the session and pushes its expiry forward.
// expires_at never moves backwards.
func (r *Repo) Touch(ctx context.Context, id uuid.UUID, accessedAt, expiresAt time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)
	tag, err := q.Exec(ctx, touchSQL, id, accessedAt, expiresAt)
	if err != nil {
		return postgres.MapError(err, entity, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

// TransitionStatus moves the session to next if its current status is an
// allowed predecessor. errMsg is stored as error_message (nil clears it).
// Returns *domain.TransitionError when the current status forbids the edge
// and domain.ErrNotFound when the session does not exist.
func (r *Repo) TransitionStatus(ctx context.Context, id uuid.UUID, next domain.SessionStatus, errMsg *string) error {
	sources := domain.TransitionSources(next)
	if len(sources) == 0 {
		return &domain.TransitionError{To: next}
	}

	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	tag, err := q.Exec(ctx, transitionSQL, id, string(next), errMsg, from)
	if err != nil {
		return postgres.MapError(err, entity, id)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: either the session is gone or it sits in a forbidden state.
	var current string
	if err := q.QueryRow(ctx, statusSQL, id).Scan(&current); err != nil {
		return postgres.MapError(err, entity, id)
	}
	return &domain.TransitionError{From: domain.SessionStatus(current), To: next}
}

// IncrementEnrichedCount atomically adds n to enriched_count. Concurrent
// callers never lose updates. Exceeding total_count violates a CHECK
// constraint and surfaces as domain.ErrValidation.
func (r *Repo) IncrementEnrichedCount(ctx context.Context, id uuid.UUID, n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 {
		return domain.NewValidationError("n", "must be >= 0")
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	tag, err := q.Exec(ctx, incrementSQL, id, n)
	if err != nil {
		return postgres.MapError(err, entity, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes sessions whose expires_at is before now. Their
// records go with them via ON DELETE CASCADE.
func (r *Repo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)
	tag, err := q.Exec(ctx, deleteExpiredSQL, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a session by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)
	s, err := scanSession(q.QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return nil, postgres.MapError(err, entity, id)
	}
	return s, nil
}

// GetProgress reads the denormalized counters without touching records.
func (r *Repo) GetProgress(ctx context.Context, id uuid.UUID) (domain.Progress, error) {
	var (
		p      domain.Progress
		status string
	)
	q := postgres.QuerierFromCtx(ctx, r.pool)
	err := q.QueryRow(ctx, getProgressSQL, id).Scan(
		&p.SessionID, &status, &p.TotalCount, &p.EnrichedCount, &p.ErrorMessage,
	)
	if err != nil {
		return domain.Progress{}, postgres.MapError(err, entity, id)
	}
	p.Status = domain.SessionStatus(status)
	return p, nil
}

// ListByStatus returns up to limit sessions in status, oldest first.
// limit <= 0 means no limit.
func (r *Repo) ListByStatus(ctx context.Context, status domain.SessionStatus, limit int) ([]domain.Session, error) {
	query := r.psql.
		Select(sessionColumns).
		From("sessions").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("created_at ASC", "id ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions by status %s: %w", status, err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		s      domain.Session
		status string
	)
	err := row.Scan(
		&s.ID, &status, &s.TotalCount, &s.EnrichedCount, &s.ErrorMessage, &s.UploadMetadata,
		&s.CreatedAt, &s.UpdatedAt, &s.LastAccessedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SessionStatus(status)
	return &s, nil
}
