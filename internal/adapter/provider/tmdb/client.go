// Package tmdb implements the movie metadata catalog client backed by TheMovieDB v3 API.
//
// All outbound requests share one sliding-window limiter, and successful
// responses are kept in a process-local TTL cache.
package tmdb

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	defaultBaseURL        = "https://api.themoviedb.org/3"
	defaultRateLimit      = 40
	defaultRateWindow     = 10 * time.Second
	defaultCacheTTL       = 10 * time.Minute
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = time.Second
	defaultMaxThrottled   = 5
	defaultMinPopularity  = 1.0
	defaultCastLimit      = 10
	defaultTimeout        = 10 * time.Second
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a TMDB API client. It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	log        *slog.Logger

	limiter *SlidingWindow
	cache   *ttlCache

	maxRetries     int
	retryBaseDelay time.Duration
	maxThrottled   int
	minPopularity  float64
	castLimit      int

	meterProvider metric.MeterProvider
	metrics       *clientMetrics
}

// NewClient creates a TMDB client with production defaults:
// 40 requests per 10s, 10 minute cache, 3 retries starting at 1s.
func NewClient(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log:            logger.With("adapter", "tmdb"),
		limiter:        NewSlidingWindow(defaultRateLimit, defaultRateWindow),
		cache:          newTTLCache(defaultCacheTTL),
		maxRetries:     defaultMaxRetries,
		retryBaseDelay: defaultRetryBaseDelay,
		maxThrottled:   defaultMaxThrottled,
		minPopularity:  defaultMinPopularity,
		castLimit:      defaultCastLimit,
		meterProvider:  noop.NewMeterProvider(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.metrics = newClientMetrics(c.meterProvider.Meter("github.com/heartmarshall/filmstats-backend/tmdb"))

	return c
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(d HTTPDoer) Option {
	return func(c *Client) {
		if d != nil {
			c.httpClient = d
		}
	}
}

// WithBaseURL sets a custom base URL for the TMDB API.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if hc, ok := c.httpClient.(*http.Client); ok && d > 0 {
			hc.Timeout = d
		}
	}
}

// WithRateLimit replaces the shared limiter with one allowing limit requests per window.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(c *Client) {
		if limit > 0 && window > 0 {
			c.limiter = NewSlidingWindow(limit, window)
		}
	}
}

// WithLimiter shares an existing limiter, e.g. between several clients using one API key.
func WithLimiter(l *SlidingWindow) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithCacheTTL sets how long successful responses are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cache = newTTLCache(ttl)
		}
	}
}

// WithRetry sets how many times a transient failure is retried and the first backoff delay.
// Each subsequent delay doubles.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			c.retryBaseDelay = baseDelay
		}
	}
}

// WithMaxThrottled caps consecutive 429 responses before ErrRateLimited is returned.
func WithMaxThrottled(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxThrottled = n
		}
	}
}

// WithMinPopularity sets the popularity below which search candidates are ignored.
func WithMinPopularity(p float64) Option {
	return func(c *Client) {
		c.minPopularity = p
	}
}

// WithCastLimit sets how many top-billed cast members are kept.
func WithCastLimit(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.castLimit = n
		}
	}
}

// WithMeterProvider records client metrics into mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		if mp != nil {
			c.meterProvider = mp
		}
	}
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.cache.clear()
}
