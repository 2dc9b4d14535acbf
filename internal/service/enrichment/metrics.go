package enrichment

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/heartmarshall/filmstats-backend/internal/domain"
)

type schedulerMetrics struct {
	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	batches      metric.Int64Counter
	records      metric.Int64Counter
	transitions  metric.Int64Counter
}

func newSchedulerMetrics(m metric.Meter) *schedulerMetrics {
	sm := &schedulerMetrics{}
	sm.ticks, _ = m.Int64Counter("enrichment.ticks",
		metric.WithDescription("Scheduler ticks executed"))
	sm.tickDuration, _ = m.Float64Histogram("enrichment.tick.duration",
		metric.WithDescription("Wall time of a scheduler tick"),
		metric.WithUnit("s"))
	sm.batches, _ = m.Int64Counter("enrichment.batches",
		metric.WithDescription("Record batches applied"))
	sm.records, _ = m.Int64Counter("enrichment.records",
		metric.WithDescription("Records processed by outcome"))
	sm.transitions, _ = m.Int64Counter("enrichment.session.transitions",
		metric.WithDescription("Session status transitions made by the scheduler"))
	return sm
}

func (sm *schedulerMetrics) tickDone(ctx context.Context, d time.Duration) {
	if sm.ticks != nil {
		sm.ticks.Add(ctx, 1)
	}
	if sm.tickDuration != nil {
		sm.tickDuration.Record(ctx, d.Seconds())
	}
}

func (sm *schedulerMetrics) batch(ctx context.Context) {
	if sm.batches == nil {
		return
	}
	sm.batches.Add(ctx, 1)
}

func (sm *schedulerMetrics) record(ctx context.Context, outcome string) {
	if sm.records == nil {
		return
	}
	sm.records.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (sm *schedulerMetrics) transition(ctx context.Context, to domain.SessionStatus) {
	if sm.transitions == nil {
		return
	}
	sm.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", string(to))))
}
