package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}

	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("server.rate_limit must be > 0 (got %d)", c.Server.RateLimit)
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) must not exceed max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}

	if err := c.TMDB.validate(); err != nil {
		return fmt.Errorf("tmdb: %w", err)
	}

	if err := c.Enrichment.validate(); err != nil {
		return fmt.Errorf("enrichment: %w", err)
	}

	if c.CORS.AllowCredentials && containsWildcard(c.CORS.AllowedOrigins) {
		return fmt.Errorf("cors.allowed_origins must list explicit origins when allow_credentials is set")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be > 0 (got %v)", c.Session.TTL)
	}

	return nil
}

func (t *TMDBConfig) validate() error {
	if strings.TrimSpace(t.APIKey) == "" {
		return fmt.Errorf("api_key is required")
	}
	u, err := url.Parse(t.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL (got %q)", t.BaseURL)
	}
	if t.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be > 0 (got %d)", t.RateLimit)
	}
	if t.RateWindow <= 0 {
		return fmt.Errorf("rate_window must be > 0 (got %v)", t.RateWindow)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0 (got %d)", t.MaxRetries)
	}
	if t.CastLimit < 0 {
		return fmt.Errorf("cast_limit must be >= 0 (got %d)", t.CastLimit)
	}
	return nil
}

func (e *EnrichmentConfig) validate() error {
	if e.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0 (got %v)", e.PollInterval)
	}
	if e.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", e.BatchSize)
	}
	if e.BatchDelay < 0 {
		return fmt.Errorf("batch_delay must be >= 0 (got %v)", e.BatchDelay)
	}
	if e.SessionConcurrency <= 0 {
		return fmt.Errorf("session_concurrency must be > 0 (got %d)", e.SessionConcurrency)
	}
	if e.MaxSessionsPerTick <= 0 {
		return fmt.Errorf("max_sessions_per_tick must be > 0 (got %d)", e.MaxSessionsPerTick)
	}
	if e.StopTimeout <= 0 {
		return fmt.Errorf("stop_timeout must be > 0 (got %v)", e.StopTimeout)
	}
	return nil
}

func containsWildcard(list string) bool {
	for _, v := range strings.Split(list, ",") {
		if strings.TrimSpace(v) == "*" {
			return true
		}
	}
	return false
}
