// Package observe records per-stage pipeline counts and durations through
// the OpenTelemetry Metrics API. Tests should use NewMetrics with their own
// MeterProvider; the pipeline uses the global provider by default.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/maastricht-university/samediff-pipeline"

// Metrics holds the pipeline instruments.
type Metrics struct {
	// RecordsTotal counts records entering a stage. Attribute: stage.
	RecordsTotal metric.Int64Counter

	// RecordsKept counts records a stage emitted. Attribute: stage.
	RecordsKept metric.Int64Counter

	// StageDuration tracks the wall time of each stage in seconds.
	StageDuration metric.Float64Histogram
}

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}
	if met.RecordsTotal, err = m.Int64Counter("samediff.stage.records",
		metric.WithDescription("Records read by a pipeline stage."),
	); err != nil {
		return nil, err
	}
	if met.RecordsKept, err = m.Int64Counter("samediff.stage.kept",
		metric.WithDescription("Records kept or extracted by a pipeline stage."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("samediff.stage.duration",
		metric.WithDescription("Wall time of a pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Default returns Metrics bound to the global MeterProvider.
func Default() (*Metrics, error) { return NewMetrics(otel.GetMeterProvider()) }

// RecordStage records one finished stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, kept, total int, took time.Duration) {
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.RecordsTotal.Add(ctx, int64(total), attrs)
	m.RecordsKept.Add(ctx, int64(kept), attrs)
	m.StageDuration.Record(ctx, took.Seconds(), attrs)
}
