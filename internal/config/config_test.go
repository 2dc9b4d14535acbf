package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validEnv sets the minimum required env vars for a valid config.
func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/testdb")
	t.Setenv("TMDB_API_KEY", "test-api-key")
}

func writeYAML(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

const validYAML = `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: "5s"
  shutdown_timeout: "5s"

database:
  dsn: "postgres://u:p@localhost:5432/testdb"
  max_conns: 10
  min_conns: 2
  auto_migrate: true

log:
  level: "debug"
  format: "text"

tmdb:
  api_key: "yaml-key"
  base_url: "http://tmdb.local/3"
  rate_limit: 20
  rate_window: "5s"
  cache_ttl: "1m"
  min_popularity: 2.5

enrichment:
  poll_interval: "3s"
  batch_size: 5
  batch_delay: "500ms"
  session_concurrency: 2

session:
  ttl: "48h"
`

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080, RateLimit: 120},
		Database: DatabaseConfig{DSN: "postgres://localhost/db", MaxConns: 10, MinConns: 2},
		Log:      LogConfig{Level: "info", Format: "json"},
		TMDB: TMDBConfig{
			APIKey:     "key",
			BaseURL:    "https://api.themoviedb.org/3",
			RateLimit:  40,
			RateWindow: 10 * time.Second,
			MaxRetries: 3,
			CastLimit:  10,
		},
		Enrichment: EnrichmentConfig{
			PollInterval:       10 * time.Second,
			BatchSize:          10,
			BatchDelay:         2500 * time.Millisecond,
			SessionConcurrency: 4,
			MaxSessionsPerTick: 100,
			StopTimeout:        30 * time.Second,
		},
		Session: SessionConfig{TTL: 720 * time.Hour},
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, validYAML)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Errorf("server addr = %q, want %q", cfg.Server.Addr(), "127.0.0.1:9090")
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server.read_timeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if !cfg.Database.AutoMigrate {
		t.Error("database.auto_migrate should be true")
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("database.max_conns = %d, want 10", cfg.Database.MaxConns)
	}

	// TMDB
	if cfg.TMDB.APIKey != "yaml-key" {
		t.Errorf("tmdb.api_key = %q", cfg.TMDB.APIKey)
	}
	if cfg.TMDB.RateLimit != 20 || cfg.TMDB.RateWindow != 5*time.Second {
		t.Errorf("tmdb rate = %d/%v, want 20/5s", cfg.TMDB.RateLimit, cfg.TMDB.RateWindow)
	}
	if cfg.TMDB.CacheTTL != time.Minute {
		t.Errorf("tmdb.cache_ttl = %v, want 1m", cfg.TMDB.CacheTTL)
	}
	if cfg.TMDB.MinPopularity != 2.5 {
		t.Errorf("tmdb.min_popularity = %v, want 2.5", cfg.TMDB.MinPopularity)
	}
	// Unset keys fall back to env-default.
	if cfg.TMDB.MaxRetries != 3 {
		t.Errorf("tmdb.max_retries = %d, want 3 (default)", cfg.TMDB.MaxRetries)
	}
	if cfg.TMDB.CastLimit != 10 {
		t.Errorf("tmdb.cast_limit = %d, want 10 (default)", cfg.TMDB.CastLimit)
	}

	// Enrichment
	if cfg.Enrichment.PollInterval != 3*time.Second {
		t.Errorf("enrichment.poll_interval = %v, want 3s", cfg.Enrichment.PollInterval)
	}
	if cfg.Enrichment.BatchSize != 5 {
		t.Errorf("enrichment.batch_size = %d, want 5", cfg.Enrichment.BatchSize)
	}
	if cfg.Enrichment.BatchDelay != 500*time.Millisecond {
		t.Errorf("enrichment.batch_delay = %v, want 500ms", cfg.Enrichment.BatchDelay)
	}
	if cfg.Enrichment.StopTimeout != 30*time.Second {
		t.Errorf("enrichment.stop_timeout = %v, want 30s (default)", cfg.Enrichment.StopTimeout)
	}
	if !cfg.Enrichment.Enabled {
		t.Error("enrichment.enabled should default to true")
	}

	if cfg.Session.TTL != 48*time.Hour {
		t.Errorf("session.ttl = %v, want 48h", cfg.Session.TTL)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("log.format = %q, want %q", cfg.Log.Format, "text")
	}
	if cfg.CORS.AllowedOrigins != "http://localhost:3000,http://localhost:3001,http://localhost:8000" {
		t.Errorf("cors.allowed_origins = %q (default)", cfg.CORS.AllowedOrigins)
	}
	if !cfg.CORS.AllowCredentials {
		t.Error("cors.allow_credentials should default to true")
	}
}

func TestLoad_ENVOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, validYAML)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("TMDB_API_KEY", "env-key")
	t.Setenv("ENRICHMENT_BATCH_SIZE", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("server.port = %d, want 3000 (ENV override)", cfg.Server.Port)
	}
	if cfg.TMDB.APIKey != "env-key" {
		t.Errorf("tmdb.api_key = %q, want env-key (ENV override)", cfg.TMDB.APIKey)
	}
	if cfg.Enrichment.BatchSize != 7 {
		t.Errorf("enrichment.batch_size = %d, want 7 (ENV override)", cfg.Enrichment.BatchSize)
	}
}

func TestLoad_NoFile_ENVOnly(t *testing.T) {
	validEnv(t)
	t.Setenv("CONFIG_PATH", "")

	origDir, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	_ = os.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080 (default)", cfg.Server.Port)
	}
	if cfg.TMDB.RateLimit != 40 || cfg.TMDB.RateWindow != 10*time.Second {
		t.Errorf("tmdb rate = %d/%v, want 40/10s (default)", cfg.TMDB.RateLimit, cfg.TMDB.RateWindow)
	}
	if cfg.TMDB.CacheTTL != 10*time.Minute {
		t.Errorf("tmdb.cache_ttl = %v, want 10m (default)", cfg.TMDB.CacheTTL)
	}
	if cfg.Enrichment.BatchDelay != 2500*time.Millisecond {
		t.Errorf("enrichment.batch_delay = %v, want 2.5s (default)", cfg.Enrichment.BatchDelay)
	}
	if cfg.Session.TTL != 720*time.Hour {
		t.Errorf("session.ttl = %v, want 720h (default)", cfg.Session.TTL)
	}
}

func TestLoad_ExplicitPathNotFound(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, `{{{invalid yaml`)
	t.Setenv("CONFIG_PATH", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadFrom_MissingAPIKey(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/testdb")
	t.Setenv("TMDB_API_KEY", "")

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"), false); err == nil {
		t.Fatal("expected error when TMDB_API_KEY is missing")
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"zero rate limit per client", func(c *Config) { c.Server.RateLimit = 0 }},
		{"min conns above max", func(c *Config) { c.Database.MinConns = 50 }},
		{"blank api key", func(c *Config) { c.TMDB.APIKey = "  " }},
		{"relative base url", func(c *Config) { c.TMDB.BaseURL = "api/3" }},
		{"zero rate limit", func(c *Config) { c.TMDB.RateLimit = 0 }},
		{"zero rate window", func(c *Config) { c.TMDB.RateWindow = 0 }},
		{"negative retries", func(c *Config) { c.TMDB.MaxRetries = -1 }},
		{"zero poll interval", func(c *Config) { c.Enrichment.PollInterval = 0 }},
		{"zero batch size", func(c *Config) { c.Enrichment.BatchSize = 0 }},
		{"negative batch delay", func(c *Config) { c.Enrichment.BatchDelay = -time.Second }},
		{"zero session concurrency", func(c *Config) { c.Enrichment.SessionConcurrency = 0 }},
		{"zero stop timeout", func(c *Config) { c.Enrichment.StopTimeout = 0 }},
		{"zero session ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"wildcard origin with credentials", func(c *Config) {
			c.CORS = CORSConfig{AllowedOrigins: "http://localhost:3000, *", AllowCredentials: true}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tt.name)
			}
		})
	}
}
