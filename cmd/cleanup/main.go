// Command cleanup deletes upload sessions whose expires_at has passed.
// Their records go with them through the foreign key cascade. It is intended
// to be invoked by an external cron job, not as an in-process goroutine.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/filmstats-backend/internal/adapter/postgres"
	"github.com/heartmarshall/filmstats-backend/internal/adapter/postgres/session"
	"github.com/heartmarshall/filmstats-backend/internal/app"
	"github.com/heartmarshall/filmstats-backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	now := time.Now()

	deleted, err := session.New(pool).DeleteExpired(ctx, now)
	if err != nil {
		logger.Error("delete expired sessions failed",
			slog.String("error", err.Error()),
			slog.Time("now", now),
		)
		pool.Close()
		os.Exit(1)
	}

	logger.Info("expired sessions deleted",
		slog.Int64("deleted", deleted),
		slog.Time("now", now),
	)
}
