// Package telemetry provides OpenTelemetry metrics for tool invocations and
// registry changes.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder receives runtime measurements.
type Recorder interface {
	RecordInvocation(ctx context.Context, toolName, outcome string, duration time.Duration)
	IncrementActiveInvocations(ctx context.Context, toolName string)
	DecrementActiveInvocations(ctx context.Context, toolName string)
	RecordRegistryChange(ctx context.Context, kind string, tools int)
}

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	toolInvocations metric.Int64Counter
	registryChanges metric.Int64Counter

	// Histograms
	toolDuration metric.Float64Histogram

	// Gauges (using UpDownCounter for OpenTelemetry)
	activeInvocations metric.Int64UpDownCounter
	registeredTools   metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: "github.com/felixgeelhaar/dynamic-mcp").
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// MeterProvider overrides the global meter provider.
	MeterProvider metric.MeterProvider
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/felixgeelhaar/dynamic-mcp",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config.MeterName = DefaultMetricsConfig().MeterName
	}

	provider := config.MeterProvider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
	)

	mp := &MetricsProvider{
		meter: meter,
	}

	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})

	return mp
}

func (mp *MetricsProvider) initInstruments() error {
	var err error

	mp.toolInvocations, err = mp.meter.Int64Counter(
		"tool.invocations",
		metric.WithDescription("Number of tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return err
	}

	mp.registryChanges, err = mp.meter.Int64Counter(
		"registry.changes",
		metric.WithDescription("Number of committed registry mutations"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return err
	}

	mp.toolDuration, err = mp.meter.Float64Histogram(
		"tool.invocation.duration",
		metric.WithDescription("Duration of tool invocations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.activeInvocations, err = mp.meter.Int64UpDownCounter(
		"tool.invocations.active",
		metric.WithDescription("Number of in-flight tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return err
	}

	mp.registeredTools, err = mp.meter.Int64UpDownCounter(
		"registry.tools.changed",
		metric.WithDescription("Tools named by registry mutations, signed by kind"),
		metric.WithUnit("{tool}"),
	)
	return err
}

// Error returns any error that occurred during initialization.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordInvocation records a finished invocation and its outcome.
func (mp *MetricsProvider) RecordInvocation(ctx context.Context, toolName, outcome string, duration time.Duration) {
	if mp.initErr != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("outcome", outcome),
	)

	mp.toolInvocations.Add(ctx, 1, attrs)
	mp.toolDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// IncrementActiveInvocations marks an invocation as started.
func (mp *MetricsProvider) IncrementActiveInvocations(ctx context.Context, toolName string) {
	if mp.initErr != nil {
		return
	}
	mp.activeInvocations.Add(ctx, 1, metric.WithAttributes(attribute.String("tool.name", toolName)))
}

// DecrementActiveInvocations marks an invocation as finished.
func (mp *MetricsProvider) DecrementActiveInvocations(ctx context.Context, toolName string) {
	if mp.initErr != nil {
		return
	}
	mp.activeInvocations.Add(ctx, -1, metric.WithAttributes(attribute.String("tool.name", toolName)))
}

// RecordRegistryChange records one committed mutation naming tools tools.
func (mp *MetricsProvider) RecordRegistryChange(ctx context.Context, kind string, tools int) {
	if mp.initErr != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	mp.registryChanges.Add(ctx, 1, attrs)

	delta := int64(tools)
	if kind == "unregistered" {
		delta = -delta
	}
	mp.registeredTools.Add(ctx, delta, attrs)
}

var _ Recorder = (*MetricsProvider)(nil)

// NoopMetricsProvider discards every measurement.
type NoopMetricsProvider struct{}

// RecordInvocation does nothing.
func (NoopMetricsProvider) RecordInvocation(context.Context, string, string, time.Duration) {}

// IncrementActiveInvocations does nothing.
func (NoopMetricsProvider) IncrementActiveInvocations(context.Context, string) {}

// DecrementActiveInvocations does nothing.
func (NoopMetricsProvider) DecrementActiveInvocations(context.Context, string) {}

// RecordRegistryChange does nothing.
func (NoopMetricsProvider) RecordRegistryChange(context.Context, string, int) {}

var _ Recorder = NoopMetricsProvider{}
