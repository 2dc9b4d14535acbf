package tmdb

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type clientMetrics struct {
	requests     metric.Int64Counter
	retries      metric.Int64Counter
	cacheLookups metric.Int64Counter
	limiterWait  metric.Float64Histogram
}

// newClientMetrics registers the client instruments. Registration errors fall
// back to no-op instruments so a broken exporter never blocks enrichment.
func newClientMetrics(m metric.Meter) *clientMetrics {
	cm := &clientMetrics{}
	cm.requests, _ = m.Int64Counter("tmdb.requests",
		metric.WithDescription("HTTP requests sent to TMDB by status code"))
	cm.retries, _ = m.Int64Counter("tmdb.retries",
		metric.WithDescription("Requests retried after a transient failure"))
	cm.cacheLookups, _ = m.Int64Counter("tmdb.cache.lookups",
		metric.WithDescription("Response cache lookups by result"))
	cm.limiterWait, _ = m.Float64Histogram("tmdb.limiter.wait",
		metric.WithDescription("Time callers spent blocked by the rate limiter"),
		metric.WithUnit("s"))
	return cm
}

func (cm *clientMetrics) request(ctx context.Context, status int) {
	if cm.requests == nil {
		return
	}
	cm.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", strconv.Itoa(status))))
}

func (cm *clientMetrics) retry(ctx context.Context, path string) {
	if cm.retries == nil {
		return
	}
	cm.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpointLabel(path))))
}

func (cm *clientMetrics) cacheHit(ctx context.Context, kind string) {
	cm.lookup(ctx, kind, "hit")
}

func (cm *clientMetrics) cacheMiss(ctx context.Context, kind string) {
	cm.lookup(ctx, kind, "miss")
}

func (cm *clientMetrics) lookup(ctx context.Context, kind, result string) {
	if cm.cacheLookups == nil {
		return
	}
	cm.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

func (cm *clientMetrics) recordLimiterWait(ctx context.Context, d time.Duration) {
	if cm.limiterWait == nil {
		return
	}
	cm.limiterWait.Record(ctx, d.Seconds())
}

// endpointLabel collapses ids so the label set stays bounded.
func endpointLabel(path string) string {
	switch {
	case path == searchPath:
		return "search"
	case strings.HasSuffix(path, "/credits"):
		return "credits"
	default:
		return "details"
	}
}
