package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/heartmarshall/filmstats-backend/internal/config"
)

func TestNewMeterProvider_NoEndpointIsNoop(t *testing.T) {
	mp, shutdown, err := NewMeterProvider(context.Background(), config.TelemetryConfig{ServiceName: "filmstats"})
	require.NoError(t, err)

	assert.IsType(t, noop.MeterProvider{}, mp)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewResource_Attributes(t *testing.T) {
	res := newResource("filmstats-test")

	name, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "filmstats-test", name.AsString())

	version, ok := res.Set().Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, Version, version.AsString())
}
