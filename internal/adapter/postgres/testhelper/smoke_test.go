package testhelper

import (
	"context"
	"testing"

	"github.com/heartmarshall/filmstats-backend/internal/domain"
)

func TestSetupTestDB_Smoke(t *testing.T) {
	pool := SetupTestDB(t)

	session := SeedSession(t, pool, domain.SessionStatusEnriching, 2)
	records := SeedRecords(t, pool, session.ID, "Heat", "Ronin")

	var status string
	err := pool.QueryRow(
		context.Background(),
		`SELECT status FROM sessions WHERE id = $1`,
		session.ID,
	).Scan(&status)
	if err != nil {
		t.Fatalf("expected session in DB, got error: %v", err)
	}
	if status != string(domain.SessionStatusEnriching) {
		t.Fatalf("expected status %q, got %q", domain.SessionStatusEnriching, status)
	}

	var pending int
	err = pool.QueryRow(
		context.Background(),
		`SELECT count(*) FROM records WHERE session_id = $1 AND enriched = false`,
		session.ID,
	).Scan(&pending)
	if err != nil {
		t.Fatalf("count records: %v", err)
	}
	if pending != len(records) {
		t.Fatalf("expected %d pending records, got %d", len(records), pending)
	}
}
