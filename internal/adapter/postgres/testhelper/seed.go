package testhelper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/filmstats-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedSession inserts a session in the given status with total_count = total
// and enriched_count = 0. Returns a filled domain.Session.
func SeedSession(t *testing.T, pool *pgxpool.Pool, status domain.SessionStatus, total int) domain.Session {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	s := domain.Session{
		ID:             uuid.New(),
		Status:         status,
		TotalCount:     total,
		UploadMetadata: map[string]any{"source": "test-" + uniqueSuffix()},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(domain.DefaultSessionTTL),
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO sessions (id, status, total_count, enriched_count, upload_metadata,
		                       created_at, updated_at, last_accessed_at, expires_at)
		 VALUES ($1, $2, $3, 0, $4, $5, $5, $5, $6)`,
		s.ID, string(s.Status), s.TotalCount, s.UploadMetadata, now, s.ExpiresAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedSession insert: %v", err)
	}

	return s
}

// SeedRecords inserts titles as unenriched records of sessionID, in order.
// Each record gets a unique dedupe key. Returned records carry their ids.
func SeedRecords(t *testing.T, pool *pgxpool.Pool, sessionID uuid.UUID, titles ...string) []domain.Record {
	t.Helper()
	ctx := context.Background()

	records := make([]domain.Record, 0, len(titles))
	for i, title := range titles {
		rec := domain.Record{
			SessionID: sessionID,
			Title:     title,
			DedupeKey: fmt.Sprintf("letterboxd.com/film/%s-%d-%s", uniqueSuffix(), i, sessionID.String()[:4]),
			Tags:      []string{},
		}
		err := pool.QueryRow(ctx,
			`INSERT INTO records (session_id, title, year, dedupe_key, tags)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			rec.SessionID, rec.Title, rec.Year, rec.DedupeKey, rec.Tags,
		).Scan(&rec.ID, &rec.CreatedAt)
		if err != nil {
			t.Fatalf("testhelper: SeedRecords insert %q: %v", title, err)
		}
		records = append(records, rec)
	}

	return records
}

// SetEnrichedCount overwrites a session's enriched_count directly.
func SetEnrichedCount(t *testing.T, pool *pgxpool.Pool, sessionID uuid.UUID, n int) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`UPDATE sessions SET enriched_count = $2 WHERE id = $1`, sessionID, n)
	if err != nil {
		t.Fatalf("testhelper: SetEnrichedCount: %v", err)
	}
}

// ExpireSession moves a session's expires_at into the past.
func ExpireSession(t *testing.T, pool *pgxpool.Pool, sessionID uuid.UUID) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`UPDATE sessions SET expires_at = now() - interval '1 hour' WHERE id = $1`, sessionID)
	if err != nil {
		t.Fatalf("testhelper: ExpireSession: %v", err)
	}
}
