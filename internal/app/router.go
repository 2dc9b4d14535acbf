package app

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"

	"github.com/heartmarshall/filmstats-backend/internal/config"
	"github.com/heartmarshall/filmstats-backend/internal/transport/middleware"
	"github.com/heartmarshall/filmstats-backend/internal/transport/rest"
)

type routes struct {
	health   *rest.HealthHandler
	progress *rest.ProgressHandler
	limiter  *middleware.RateLimiter
}

// newRouter mounts the HTTP surface. Probes bypass the rate limiter and
// telemetry; the session API gets both.
func newRouter(logger *slog.Logger, cors config.CORSConfig, mp metric.MeterProvider, r routes) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /live", r.health.Live)
	mux.HandleFunc("GET /ready", r.health.Ready)
	mux.HandleFunc("GET /health", r.health.Health)

	mux.Handle("GET /sessions/{id}/progress", r.limiter.Limit()(http.HandlerFunc(r.progress.Get)))

	return middleware.Chain(
		middleware.Telemetry("filmstats.http", mp, "/live", "/ready"),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.CORS(cors),
	)(mux)
}
