package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/filmstats-backend/internal/domain"
	"github.com/heartmarshall/filmstats-backend/internal/provider"
	"github.com/heartmarshall/filmstats-backend/pkg/ctxutil"
)

// tick discovers active sessions in a fresh transaction and processes them
// concurrently. A failing session never aborts its siblings.
func (s *Scheduler) tick(ctx context.Context, stop <-chan struct{}) error {
	start := s.now()
	defer func() { s.metrics.tickDone(ctx, s.now().Sub(start)) }()

	var active []domain.Session
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		active, err = s.sessions.ListByStatus(ctx, domain.SessionStatusEnriching, s.cfg.MaxSessionsPerTick)
		return err
	})
	if err != nil {
		return fmt.Errorf("enrichment.tick: list active sessions: %w", err)
	}
	if len(active) == 0 {
		return nil
	}

	s.log.DebugContext(ctx, "tick", slog.Int("sessions", len(active)))

	var g errgroup.Group
	g.SetLimit(s.cfg.SessionConcurrency)
	for _, sess := range active {
		if stopRequested(stop) || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// A queued session may only get a slot after stop was requested.
			if stopRequested(stop) {
				return nil
			}
			s.processSession(ctx, sess.ID, stop)
			return nil
		})
	}
	_ = g.Wait()

	return nil
}

// processSession runs one pass over the session's pending records and
// settles its status. Context cancellation leaves the session untouched.
func (s *Scheduler) processSession(ctx context.Context, id uuid.UUID, stop <-chan struct{}) {
	ctx = ctxutil.WithSessionID(ctx, id)
	log := s.log.With(slog.String("session_id", id.String()))

	defer func() {
		if rec := recover(); rec != nil {
			log.ErrorContext(ctx, "session processing panicked", slog.Any("panic", rec))
			s.fail(ctx, log, id, fmt.Errorf("internal error: %v", rec))
		}
	}()

	err := s.enrichSession(ctx, log, id, stop)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		log.InfoContext(ctx, "session processing interrupted", slog.String("error", err.Error()))
	default:
		s.fail(ctx, log, id, err)
	}
}

func (s *Scheduler) enrichSession(ctx context.Context, log *slog.Logger, id uuid.UUID, stop <-chan struct{}) error {
	now := s.now()
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.sessions.Touch(ctx, id, now, now.Add(s.sessionTTL))
	})
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	var cursor int64
	for {
		if stopRequested(stop) {
			return nil
		}

		var batch []domain.Record
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			batch, err = s.records.FetchUnenriched(ctx, id, cursor, s.cfg.BatchSize)
			return err
		})
		if err != nil {
			return fmt.Errorf("fetch unenriched: %w", err)
		}

		if len(batch) == 0 {
			return s.complete(ctx, log, id)
		}
		cursor = batch[len(batch)-1].ID

		if err := s.processBatch(ctx, log, id, batch); err != nil {
			return err
		}

		if stopRequested(stop) {
			log.InfoContext(ctx, "stop requested, leaving session for next run")
			return nil
		}
		if err := s.sleep(ctx, stop, s.cfg.BatchDelay); err != nil {
			return err
		}
		if stopRequested(stop) {
			return nil
		}
	}
}

type outcome struct {
	result *provider.MovieResult
	err    error
}

// processBatch fans out one catalog lookup per record, waits for all of them,
// then applies the results and the counter increment in a single transaction.
// No transaction is open while lookups are in flight.
func (s *Scheduler) processBatch(ctx context.Context, log *slog.Logger, sessionID uuid.UUID, batch []domain.Record) error {
	outcomes := make([]outcome, len(batch))

	var g errgroup.Group
	g.SetLimit(s.cfg.BatchSize)
	for i, rec := range batch {
		g.Go(func() error {
			res, err := s.catalog.Enrich(ctx, rec.Title, rec.Year)
			outcomes[i] = outcome{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		applied  int
		skipped  int
		fatalErr error
		at       = s.now().UTC()
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		applied, skipped, fatalErr = 0, 0, nil
		for i, rec := range batch {
			o := outcomes[i]
			if o.err == nil {
				ok, err := s.records.ApplyEnrichment(ctx, rec.ID, toMetadata(o.result), at)
				if err != nil {
					return fmt.Errorf("apply enrichment to record %d: %w", rec.ID, err)
				}
				if ok {
					applied++
				}
				continue
			}

			reason := skipReason(o.err)
			if reason == domain.SkipReasonFatal && fatalErr == nil {
				fatalErr = o.err
			}
			if err := s.records.RecordAttempt(ctx, rec.ID, reason.String()+": "+o.err.Error()); err != nil {
				return fmt.Errorf("record attempt for record %d: %w", rec.ID, err)
			}
			skipped++
		}
		return s.sessions.IncrementEnrichedCount(ctx, sessionID, applied)
	})
	if err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}

	for _, o := range outcomes {
		s.metrics.record(ctx, outcomeLabel(o.err))
	}
	s.metrics.batch(ctx)

	log.InfoContext(ctx, "batch applied",
		slog.Int("size", len(batch)),
		slog.Int("enriched", applied),
		slog.Int("skipped", skipped),
	)

	if fatalErr != nil {
		return fatalErr
	}
	return nil
}

func (s *Scheduler) complete(ctx context.Context, log *slog.Logger, id uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.sessions.TransitionStatus(ctx, id, domain.SessionStatusCompleted, nil)
	})
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	s.metrics.transition(ctx, domain.SessionStatusCompleted)
	log.InfoContext(ctx, "session completed")
	return nil
}

func (s *Scheduler) fail(ctx context.Context, log *slog.Logger, id uuid.UUID, cause error) {
	msg := cause.Error()
	log.ErrorContext(ctx, "session failed", slog.String("error", msg))

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.sessions.TransitionStatus(ctx, id, domain.SessionStatusFailed, &msg)
	})
	if err != nil {
		log.ErrorContext(ctx, "mark session failed", slog.String("error", err.Error()))
		return
	}
	s.metrics.transition(ctx, domain.SessionStatusFailed)
}

// sleep waits d, returning early with nil on stop or ctx.Err() on cancellation.
func (s *Scheduler) sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// skipReason classifies a per-record catalog error. Errors outside the
// catalog taxonomy are skipped as transient so they never fail the session.
func skipReason(err error) domain.SkipReason {
	switch {
	case errors.Is(err, provider.ErrNotFound):
		return domain.SkipReasonNotFound
	case errors.Is(err, provider.ErrRateLimited):
		return domain.SkipReasonRateLimited
	case errors.Is(err, provider.ErrFatal):
		return domain.SkipReasonFatal
	default:
		return domain.SkipReasonTransient
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "enriched"
	}
	return skipReason(err).String()
}
