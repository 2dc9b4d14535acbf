// Package app wires configuration, storage, the catalog client, the
// enrichment scheduler and the HTTP server into a running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/heartmarshall/filmstats-backend/internal/adapter/postgres"
	"github.com/heartmarshall/filmstats-backend/internal/adapter/postgres/record"
	"github.com/heartmarshall/filmstats-backend/internal/adapter/postgres/session"
	"github.com/heartmarshall/filmstats-backend/internal/adapter/provider/tmdb"
	"github.com/heartmarshall/filmstats-backend/internal/config"
	"github.com/heartmarshall/filmstats-backend/internal/service/enrichment"
	"github.com/heartmarshall/filmstats-backend/internal/service/progress"
	"github.com/heartmarshall/filmstats-backend/internal/transport/middleware"
	"github.com/heartmarshall/filmstats-backend/internal/transport/rest"
)

// Run is the application entry point. It blocks until SIGINT/SIGTERM or a
// server error, then stops the scheduler, drains the HTTP server and
// releases the pool.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.Bool("enrichment_enabled", cfg.Enrichment.Enabled),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mp, shutdownTelemetry, err := NewMeterProvider(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("shutting down meter provider", slog.String("error", err.Error()))
		}
	}()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, logger); err != nil {
			return err
		}
	}

	txm := postgres.NewTxManager(pool)
	sessions := session.New(pool)
	records := record.New(pool)

	catalog := tmdb.NewClient(cfg.TMDB.APIKey, logger,
		tmdb.WithBaseURL(cfg.TMDB.BaseURL),
		tmdb.WithTimeout(cfg.TMDB.RequestTimeout),
		tmdb.WithRateLimit(cfg.TMDB.RateLimit, cfg.TMDB.RateWindow),
		tmdb.WithCacheTTL(cfg.TMDB.CacheTTL),
		tmdb.WithRetry(cfg.TMDB.MaxRetries, cfg.TMDB.RetryBaseDelay),
		tmdb.WithMaxThrottled(cfg.TMDB.MaxThrottled),
		tmdb.WithMinPopularity(cfg.TMDB.MinPopularity),
		tmdb.WithCastLimit(cfg.TMDB.CastLimit),
		tmdb.WithMeterProvider(mp),
	)

	// schedState stays a nil interface when enrichment is disabled.
	var schedState interface{ Running() bool }
	var scheduler *enrichment.Scheduler
	if cfg.Enrichment.Enabled {
		scheduler = enrichment.NewScheduler(logger, cfg.Enrichment, cfg.Session.TTL,
			txm, sessions, records, catalog,
			enrichment.WithMeterProvider(mp),
		)
		// Shutdown goes through Stop so the in-flight batch can drain.
		if err := scheduler.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		schedState = scheduler
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, 10*time.Minute)
	defer limiter.Stop()

	handler := newRouter(logger, cfg.CORS, mp, routes{
		health:   rest.NewHealthHandler(pool, schedState, BuildVersion()),
		progress: rest.NewProgressHandler(progress.NewService(logger, sessions, txm, cfg.Session.TTL), logger),
		limiter:  limiter,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("http server started", slog.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown started")
	}

	// The scheduler goes first so no batch commits against a draining pool.
	if scheduler != nil {
		if err := scheduler.Stop(context.Background()); err != nil {
			logger.Warn("scheduler stop", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("could not stop server gracefully: %w", err))
	}

	logger.Info("shutdown complete")
	return runErr
}
