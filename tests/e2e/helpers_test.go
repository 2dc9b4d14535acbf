//go:build e2e

package e2e_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/filmstats-backend/internal/adapter/postgres"
	"github.com/heartmarshall/filmstats-backend/internal/adapter/postgres/record"
	"github.com/heartmarshall/filmstats-backend/internal/adapter/postgres/session"
	"github.com/heartmarshall/filmstats-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/filmstats-backend/internal/adapter/provider/tmdb"
	"github.com/heartmarshall/filmstats-backend/internal/config"
	"github.com/heartmarshall/filmstats-backend/internal/service/enrichment"
	"github.com/heartmarshall/filmstats-backend/internal/service/progress"
	"github.com/heartmarshall/filmstats-backend/internal/transport/rest"
)

// ---------------------------------------------------------------------------
// Fake catalog: a small TMDB v3 surface keyed by title.
// ---------------------------------------------------------------------------

type fakeMovie struct {
	id        int
	year      int
	genres    []string
	directors []string
	cast      []string
}

type fakeCatalog struct {
	movies map[string]fakeMovie
	// unauthorized titles answer 401 on search.
	unauthorized map[string]bool
	requests     atomic.Int64
}

func newFakeCatalog(t *testing.T, c *fakeCatalog) *httptest.Server {
	t.Helper()

	byID := make(map[string]fakeMovie, len(c.movies))
	titles := make(map[string]string, len(c.movies))
	for title, m := range c.movies {
		byID[strconv.Itoa(m.id)] = m
		titles[strconv.Itoa(m.id)] = title
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /search/movie", func(w http.ResponseWriter, r *http.Request) {
		c.requests.Add(1)
		title := r.URL.Query().Get("query")
		if c.unauthorized[title] {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"status_code":7,"status_message":"Invalid API key"}`)
			return
		}
		results := []map[string]any{}
		if m, ok := c.movies[title]; ok {
			results = append(results, map[string]any{
				"id":           m.id,
				"title":        title,
				"release_date": fmt.Sprintf("%d-06-01", m.year),
				"popularity":   42.0,
				"vote_average": 7.5,
			})
		}
		writeJSON(w, map[string]any{"page": 1, "results": results, "total_results": len(results)})
	})
	mux.HandleFunc("GET /movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		c.requests.Add(1)
		m, ok := byID[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		genres := make([]map[string]any, len(m.genres))
		for i, g := range m.genres {
			genres[i] = map[string]any{"id": i + 1, "name": g}
		}
		writeJSON(w, map[string]any{
			"id":                   m.id,
			"title":                titles[r.PathValue("id")],
			"imdb_id":              fmt.Sprintf("tt%07d", m.id),
			"genres":               genres,
			"runtime":              120,
			"popularity":           42.0,
			"vote_average":         7.5,
			"release_date":         fmt.Sprintf("%d-06-01", m.year),
			"original_language":    "en",
			"production_countries": []map[string]any{{"iso_3166_1": "US", "name": "United States of America"}},
		})
	})
	mux.HandleFunc("GET /movie/{id}/credits", func(w http.ResponseWriter, r *http.Request) {
		c.requests.Add(1)
		m, ok := byID[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		crew := make([]map[string]any, 0, len(m.directors))
		for _, d := range m.directors {
			crew = append(crew, map[string]any{"name": d, "job": "Director"})
		}
		cast := make([]map[string]any, 0, len(m.cast))
		for i, name := range m.cast {
			cast = append(cast, map[string]any{"name": name, "order": i})
		}
		writeJSON(w, map[string]any{"id": m.id, "cast": cast, "crew": crew})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func defaultCatalog() *fakeCatalog {
	return &fakeCatalog{
		movies: map[string]fakeMovie{
			"Heat":   {id: 949, year: 1995, genres: []string{"Action", "Crime"}, directors: []string{"Michael Mann"}, cast: []string{"Al Pacino", "Robert De Niro"}},
			"Alien":  {id: 348, year: 1979, genres: []string{"Horror", "Science Fiction"}, directors: []string{"Ridley Scott"}, cast: []string{"Sigourney Weaver"}},
			"Fargo":  {id: 275, year: 1996, genres: []string{"Crime"}, directors: []string{"Joel Coen", "Ethan Coen"}, cast: []string{"Frances McDormand"}},
			"Brazil": {id: 68, year: 1985, genres: []string{"Comedy"}, directors: []string{"Terry Gilliam"}, cast: []string{"Jonathan Pryce"}},
		},
		unauthorized: map[string]bool{},
	}
}

// ---------------------------------------------------------------------------
// Pipeline wiring against the shared test database.
// ---------------------------------------------------------------------------

type pipeline struct {
	Pool      *pgxpool.Pool
	Sessions  *session.Repo
	Records   *record.Repo
	Tx        *postgres.TxManager
	Scheduler *enrichment.Scheduler
	API       *httptest.Server
}

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

func setupPipeline(t *testing.T, catalog *fakeCatalog) *pipeline {
	t.Helper()

	pool := testhelper.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(testLogWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tmdbSrv := newFakeCatalog(t, catalog)
	client := tmdb.NewClient("e2e-key", logger,
		tmdb.WithBaseURL(tmdbSrv.URL),
		tmdb.WithRetry(0, time.Millisecond),
		tmdb.WithRateLimit(1000, time.Second),
	)

	p := &pipeline{
		Pool:     pool,
		Sessions: session.New(pool),
		Records:  record.New(pool),
		Tx:       postgres.NewTxManager(pool),
	}
	p.Scheduler = enrichment.NewScheduler(logger, config.EnrichmentConfig{
		PollInterval:       50 * time.Millisecond,
		BatchSize:          2,
		SessionConcurrency: 2,
		StopTimeout:        5 * time.Second,
	}, time.Hour, p.Tx, p.Sessions, p.Records, client)

	mux := http.NewServeMux()
	handler := rest.NewProgressHandler(progress.NewService(logger, p.Sessions, p.Tx, time.Hour), logger)
	mux.HandleFunc("GET /sessions/{id}/progress", handler.Get)
	p.API = httptest.NewServer(mux)
	t.Cleanup(p.API.Close)

	return p
}
