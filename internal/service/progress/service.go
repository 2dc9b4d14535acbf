// Package progress serves the client-facing progress read for upload sessions.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/filmstats-backend/internal/domain"
)

type sessionRepo interface {
	Touch(ctx context.Context, id uuid.UUID, accessedAt, expiresAt time.Time) error
	GetProgress(ctx context.Context, id uuid.UUID) (domain.Progress, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service reads session progress from the denormalized counters.
type Service struct {
	sessions sessionRepo
	tx       txManager
	ttl      time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewService creates a new progress service. Every read extends the session's
// expiry to now + ttl.
func NewService(log *slog.Logger, sessions sessionRepo, tx txManager, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = domain.DefaultSessionTTL
	}
	return &Service{
		sessions: sessions,
		tx:       tx,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With("service", "progress"),
	}
}

// GetProgress returns status and counters of a session and extends its TTL.
// It never scans the session's records.
func (s *Service) GetProgress(ctx context.Context, sessionID uuid.UUID) (domain.Progress, error) {
	if sessionID == uuid.Nil {
		return domain.Progress{}, domain.NewValidationError("session_id", "required")
	}

	var p domain.Progress
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := s.now().UTC()
		if err := s.sessions.Touch(ctx, sessionID, now, now.Add(s.ttl)); err != nil {
			return err
		}
		var err error
		p, err = s.sessions.GetProgress(ctx, sessionID)
		return err
	})
	if err != nil {
		return domain.Progress{}, fmt.Errorf("get progress: %w", err)
	}

	return p, nil
}
