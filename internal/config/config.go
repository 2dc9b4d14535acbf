package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	CORS       CORSConfig       `yaml:"cors"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	TMDB       TMDBConfig       `yaml:"tmdb"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Session    SessionConfig    `yaml:"session"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`

	// RateLimit is the per-client request budget per minute for the session API.
	RateLimit int `yaml:"rate_limit" env:"SERVER_RATE_LIMIT" env-default:"120"`
}

// CORSConfig holds Cross-Origin Resource Sharing settings for the HTTP API.
// List fields are comma-separated; "*" allows any value.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"http://localhost:3000,http://localhost:3001,http://localhost:8000"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"*"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"*"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"true"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"600"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	AutoMigrate     bool          `yaml:"auto_migrate"       env:"DATABASE_AUTO_MIGRATE"       env-default:"false"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// TMDBConfig holds settings for the TMDB metadata catalog client.
type TMDBConfig struct {
	APIKey         string        `yaml:"api_key"          env:"TMDB_API_KEY"          env-required:"true"`
	BaseURL        string        `yaml:"base_url"         env:"TMDB_BASE_URL"         env-default:"https://api.themoviedb.org/3"`
	RequestTimeout time.Duration `yaml:"request_timeout"  env:"TMDB_REQUEST_TIMEOUT"  env-default:"10s"`

	// RateLimit requests are allowed in any trailing RateWindow.
	RateLimit  int           `yaml:"rate_limit"  env:"TMDB_RATE_LIMIT"  env-default:"40"`
	RateWindow time.Duration `yaml:"rate_window" env:"TMDB_RATE_WINDOW" env-default:"10s"`

	CacheTTL       time.Duration `yaml:"cache_ttl"        env:"TMDB_CACHE_TTL"        env-default:"10m"`
	MaxRetries     int           `yaml:"max_retries"      env:"TMDB_MAX_RETRIES"      env-default:"3"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" env:"TMDB_RETRY_BASE_DELAY" env-default:"1s"`
	MaxThrottled   int           `yaml:"max_throttled"    env:"TMDB_MAX_THROTTLED"    env-default:"5"`
	MinPopularity  float64       `yaml:"min_popularity"   env:"TMDB_MIN_POPULARITY"   env-default:"1.0"`
	CastLimit      int           `yaml:"cast_limit"       env:"TMDB_CAST_LIMIT"       env-default:"10"`
}

// EnrichmentConfig holds background scheduler settings.
type EnrichmentConfig struct {
	Enabled            bool          `yaml:"enabled"              env:"ENRICHMENT_ENABLED"              env-default:"true"`
	PollInterval       time.Duration `yaml:"poll_interval"        env:"ENRICHMENT_POLL_INTERVAL"        env-default:"10s"`
	BatchSize          int           `yaml:"batch_size"           env:"ENRICHMENT_BATCH_SIZE"           env-default:"10"`
	BatchDelay         time.Duration `yaml:"batch_delay"          env:"ENRICHMENT_BATCH_DELAY"          env-default:"2500ms"`
	SessionConcurrency int           `yaml:"session_concurrency"  env:"ENRICHMENT_SESSION_CONCURRENCY"  env-default:"4"`
	MaxSessionsPerTick int           `yaml:"max_sessions_per_tick" env:"ENRICHMENT_MAX_SESSIONS_PER_TICK" env-default:"100"`
	StopTimeout        time.Duration `yaml:"stop_timeout"         env:"ENRICHMENT_STOP_TIMEOUT"         env-default:"30s"`
}

// SessionConfig holds session lifetime settings.
type SessionConfig struct {
	// TTL is how far expires_at is pushed forward on each access.
	TTL time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"720h"`
}

// TelemetryConfig holds OpenTelemetry export settings.
// An empty OTLPEndpoint disables export; instruments then record into a no-op provider.
type TelemetryConfig struct {
	ServiceName    string        `yaml:"service_name"    env:"OTEL_SERVICE_NAME"              env-default:"filmstats-backend"`
	OTLPEndpoint   string        `yaml:"otlp_endpoint"   env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ExportInterval time.Duration `yaml:"export_interval" env:"OTEL_METRIC_EXPORT_INTERVAL"    env-default:"30s"`
}

// Addr returns the host:port the HTTP server listens on.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
