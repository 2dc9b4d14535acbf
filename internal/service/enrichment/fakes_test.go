package enrichment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/filmstats-backend/internal/domain"
	"github.com/heartmarshall/filmstats-backend/internal/provider"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// fakeTx
// ---------------------------------------------------------------------------

// fakeTx runs fn directly and counts transactions.
type fakeTx struct {
	calls atomic.Int64
}

func (f *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.calls.Add(1)
	return fn(ctx)
}

// ---------------------------------------------------------------------------
// fakeStore implements sessionRepo and recordRepo in memory.
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
	records  map[uuid.UUID][]*domain.Record
	nextID   int64

	touched map[uuid.UUID]time.Time

	listErr  error
	fetchErr map[uuid.UUID]error
	// applyFn, when set, overrides the applied result for a record.
	applyFn func(id int64) (bool, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*domain.Session),
		records:  make(map[uuid.UUID][]*domain.Record),
		touched:  make(map[uuid.UUID]time.Time),
		fetchErr: make(map[uuid.UUID]error),
	}
}

// addSession seeds an enriching session holding one record per title.
func (f *fakeStore) addSession(titles ...string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New()
	f.sessions[id] = &domain.Session{
		ID:         id,
		Status:     domain.SessionStatusEnriching,
		TotalCount: len(titles),
		CreatedAt:  time.Now(),
	}
	for _, title := range titles {
		f.nextID++
		f.records[id] = append(f.records[id], &domain.Record{
			ID:        f.nextID,
			SessionID: id,
			Title:     title,
			DedupeKey: fmt.Sprintf("letterboxd.com/film/%d", f.nextID),
		})
	}
	return id
}

func (f *fakeStore) session(id uuid.UUID) domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.sessions[id]
}

func (f *fakeStore) record(sessionID uuid.UUID, title string) domain.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records[sessionID] {
		if r.Title == title {
			return *r
		}
	}
	panic("no record " + title)
}

func (f *fakeStore) ListByStatus(_ context.Context, status domain.SessionStatus, limit int) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []domain.Session
	for _, s := range f.sessions {
		if s.Status == status {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Touch(_ context.Context, id uuid.UUID, _, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	f.touched[id] = expiresAt
	return nil
}

func (f *fakeStore) TransitionStatus(_ context.Context, id uuid.UUID, next domain.SessionStatus, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !s.Status.CanTransitionTo(next) {
		return &domain.TransitionError{From: s.Status, To: next}
	}
	s.Status = next
	s.ErrorMessage = errMsg
	return nil
}

func (f *fakeStore) IncrementEnrichedCount(_ context.Context, id uuid.UUID, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.EnrichedCount+n > s.TotalCount {
		return domain.ErrValidation
	}
	s.EnrichedCount += n
	return nil
}

func (f *fakeStore) FetchUnenriched(_ context.Context, sessionID uuid.UUID, afterID int64, limit int) ([]domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[sessionID]; err != nil {
		return nil, err
	}

	var out []domain.Record
	for _, r := range f.records[sessionID] {
		if !r.Enriched && r.ID > afterID {
			out = append(out, *r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyEnrichment(_ context.Context, id int64, m domain.Metadata, at time.Time) (bool, error) {
	if f.applyFn != nil {
		return f.applyFn(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.findLocked(id)
	if r == nil || r.Enriched {
		return false, nil
	}
	r.Enriched = true
	r.Metadata = m
	r.EnrichedAt = &at
	r.EnrichAttempts++
	return true, nil
}

func (f *fakeStore) RecordAttempt(_ context.Context, id int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.findLocked(id)
	if r == nil || r.Enriched {
		return nil
	}
	r.EnrichAttempts++
	r.LastEnrichError = &reason
	return nil
}

func (f *fakeStore) findLocked(id int64) *domain.Record {
	for _, recs := range f.records {
		for _, r := range recs {
			if r.ID == id {
				return r
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// fakeCatalog
// ---------------------------------------------------------------------------

type fakeCatalog struct {
	enrichFn func(ctx context.Context, title string, year *int) (*provider.MovieResult, error)

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	calls       atomic.Int64
}

func (c *fakeCatalog) Enrich(ctx context.Context, title string, year *int) (*provider.MovieResult, error) {
	c.calls.Add(1)
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.maxInFlight.Load()
		if n <= peak || c.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if c.enrichFn != nil {
		return c.enrichFn(ctx, title, year)
	}
	return &provider.MovieResult{CatalogID: len(title), Title: title}, nil
}

// catalogByTitle returns results from a fixed table; unknown titles succeed.
func catalogByTitle(errs map[string]error) *fakeCatalog {
	return &fakeCatalog{
		enrichFn: func(_ context.Context, title string, _ *int) (*provider.MovieResult, error) {
			if err, ok := errs[title]; ok {
				return nil, err
			}
			return &provider.MovieResult{CatalogID: len(title), Title: title}, nil
		},
	}
}
