// Package enrichment runs the background scheduler that discovers sessions in
// status enriching, fetches catalog metadata for their pending records and
// drives each session to completed or failed.
package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/heartmarshall/filmstats-backend/internal/config"
	"github.com/heartmarshall/filmstats-backend/internal/domain"
	"github.com/heartmarshall/filmstats-backend/internal/provider"
)

var (
	// ErrAlreadyRunning is returned by Start when the loop is already active.
	ErrAlreadyRunning = errors.New("enrichment: scheduler already running")
	// ErrStopTimeout is returned by Stop when the in-flight work did not drain in time
	// and outbound calls had to be cancelled.
	ErrStopTimeout = errors.New("enrichment: stop timed out")
	// ErrTickInProgress is returned by RunOnce while another tick is active.
	ErrTickInProgress = errors.New("enrichment: tick in progress")
)

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sessionRepo interface {
	ListByStatus(ctx context.Context, status domain.SessionStatus, limit int) ([]domain.Session, error)
	Touch(ctx context.Context, id uuid.UUID, accessedAt, expiresAt time.Time) error
	TransitionStatus(ctx context.Context, id uuid.UUID, next domain.SessionStatus, errMsg *string) error
	IncrementEnrichedCount(ctx context.Context, id uuid.UUID, n int) error
}

type recordRepo interface {
	FetchUnenriched(ctx context.Context, sessionID uuid.UUID, afterID int64, limit int) ([]domain.Record, error)
	ApplyEnrichment(ctx context.Context, id int64, m domain.Metadata, at time.Time) (bool, error)
	RecordAttempt(ctx context.Context, id int64, reason string) error
}

type catalog interface {
	Enrich(ctx context.Context, title string, year *int) (*provider.MovieResult, error)
}

// Scheduler owns the polling loop. Every unit of database work runs in its
// own transaction obtained from txManager; nothing is held between ticks.
type Scheduler struct {
	log        *slog.Logger
	cfg        config.EnrichmentConfig
	sessionTTL time.Duration

	tx       txManager
	sessions sessionRepo
	records  recordRepo
	catalog  catalog

	metrics *schedulerMetrics
	now     func() time.Time

	// tickMu admits a single active tick, whether from the loop or RunOnce.
	tickMu sync.Mutex

	mu  sync.Mutex
	run *runState
}

type runState struct {
	stop     chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMeterProvider sets the OpenTelemetry meter provider for scheduler metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Scheduler) {
		s.metrics = newSchedulerMetrics(mp.Meter("github.com/heartmarshall/filmstats-backend/enrichment"))
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler. Zero-valued cfg fields fall back to defaults.
func NewScheduler(
	log *slog.Logger,
	cfg config.EnrichmentConfig,
	sessionTTL time.Duration,
	tx txManager,
	sessions sessionRepo,
	records recordRepo,
	catalog catalog,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		log:        log.With("service", "enrichment"),
		cfg:        withDefaults(cfg),
		sessionTTL: sessionTTL,
		tx:         tx,
		sessions:   sessions,
		records:    records,
		catalog:    catalog,
		metrics:    newSchedulerMetrics(noop.NewMeterProvider().Meter("")),
		now:        time.Now,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = domain.DefaultSessionTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func withDefaults(cfg config.EnrichmentConfig) config.EnrichmentConfig {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.SessionConcurrency <= 0 {
		cfg.SessionConcurrency = 4
	}
	if cfg.MaxSessionsPerTick <= 0 {
		cfg.MaxSessionsPerTick = 100
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 30 * time.Second
	}
	return cfg
}

// Start spawns the polling loop. The loop runs a tick immediately and then
// one tick per PollInterval. Cancelling ctx has the same effect as a hard stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &runState{
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.run = r

	go s.loop(runCtx, r)

	s.log.InfoContext(ctx, "scheduler started",
		slog.Duration("poll_interval", s.cfg.PollInterval),
		slog.Int("batch_size", s.cfg.BatchSize),
		slog.Int("session_concurrency", s.cfg.SessionConcurrency),
	)
	return nil
}

// Stop asks the loop to finish its in-flight batch and waits up to
// StopTimeout. After the timeout outbound calls are cancelled and
// ErrStopTimeout is returned. Stop on an idle scheduler is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return nil
	}

	r.stopOnce.Do(func() { close(r.stop) })

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-r.done:
	case <-timer.C:
		err = ErrStopTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	r.cancel()
	<-r.done

	s.mu.Lock()
	if s.run == r {
		s.run = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.log.WarnContext(ctx, "scheduler stopped forcefully", slog.String("error", err.Error()))
		return err
	}
	s.log.InfoContext(ctx, "scheduler stopped")
	return nil
}

// Running reports whether the polling loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}

// RunOnce executes exactly one tick synchronously. It returns
// ErrTickInProgress if the loop or another RunOnce is mid-tick.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.tickMu.TryLock() {
		return ErrTickInProgress
	}
	defer s.tickMu.Unlock()

	return s.tick(ctx, nil)
}

func (s *Scheduler) loop(ctx context.Context, r *runState) {
	defer close(r.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.supervisedTick(ctx, r.stop)

		timer.Reset(s.cfg.PollInterval)
	}
}

// supervisedTick runs one tick and keeps the loop alive across panics and errors.
func (s *Scheduler) supervisedTick(ctx context.Context, stop <-chan struct{}) {
	if !s.tickMu.TryLock() {
		s.log.DebugContext(ctx, "tick skipped, another tick is running")
		return
	}
	defer s.tickMu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			s.log.ErrorContext(ctx, "tick panicked", slog.Any("panic", rec))
		}
	}()

	if err := s.tick(ctx, stop); err != nil && ctx.Err() == nil {
		s.log.ErrorContext(ctx, "tick failed", slog.String("error", err.Error()))
	}
}

func stopRequested(stop <-chan struct{}) bool {
	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
