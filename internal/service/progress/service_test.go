package progress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/filmstats-backend/internal/domain"
)

type mockSessionRepo struct {
	touchFn       func(ctx context.Context, id uuid.UUID, accessedAt, expiresAt time.Time) error
	getProgressFn func(ctx context.Context, id uuid.UUID) (domain.Progress, error)
}

func (m *mockSessionRepo) Touch(ctx context.Context, id uuid.UUID, accessedAt, expiresAt time.Time) error {
	return m.touchFn(ctx, id, accessedAt, expiresAt)
}

func (m *mockSessionRepo) GetProgress(ctx context.Context, id uuid.UUID) (domain.Progress, error) {
	return m.getProgressFn(ctx, id)
}

type mockTx struct{}

func (mockTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(repo *mockSessionRepo) *Service {
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, mockTx{}, 24*time.Hour)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestService_GetProgress(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	var touchedUntil time.Time
	repo := &mockSessionRepo{
		touchFn: func(_ context.Context, got uuid.UUID, _, expiresAt time.Time) error {
			if got != id {
				t.Errorf("Touch id = %s, want %s", got, id)
			}
			touchedUntil = expiresAt
			return nil
		},
		getProgressFn: func(_ context.Context, _ uuid.UUID) (domain.Progress, error) {
			return domain.Progress{SessionID: id, Status: domain.SessionStatusEnriching, TotalCount: 4, EnrichedCount: 1}, nil
		},
	}

	p, err := newTestService(repo).GetProgress(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if p.EnrichedCount != 1 || p.TotalCount != 4 || p.Status != domain.SessionStatusEnriching {
		t.Errorf("unexpected progress: %+v", p)
	}
	if want := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC); !touchedUntil.Equal(want) {
		t.Errorf("expires_at = %v, want %v", touchedUntil, want)
	}
}

func TestService_GetProgress_NotFound(t *testing.T) {
	t.Parallel()

	repo := &mockSessionRepo{
		touchFn: func(context.Context, uuid.UUID, time.Time, time.Time) error {
			return domain.ErrNotFound
		},
		getProgressFn: func(context.Context, uuid.UUID) (domain.Progress, error) {
			t.Fatal("GetProgress must not run for a missing session")
			return domain.Progress{}, nil
		},
	}

	_, err := newTestService(repo).GetProgress(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestService_GetProgress_NilID(t *testing.T) {
	t.Parallel()

	_, err := newTestService(&mockSessionRepo{}).GetProgress(context.Background(), uuid.Nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}
}
