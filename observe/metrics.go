// Package observe provides the OpenTelemetry metric instruments recorded by
// the feature pipeline.
//
// Tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution; [DefaultMetrics] binds to the global provider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all front-end metrics.
const meterName = "github.com/RyanBlaney/sonido-frontend"

// Metrics holds the metric instruments for the feature pipeline.
// All fields are safe for concurrent use.
type Metrics struct {
	// StageDuration tracks per-stage forward latency. Use with attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// FramesProduced counts feature frames emitted by pipelines.
	FramesProduced metric.Int64Counter

	// UtterancesProcessed counts utterances that completed a pipeline pass.
	UtterancesProcessed metric.Int64Counter

	// StageErrors counts stage failures. Use with attribute:
	//   attribute.String("stage", ...)
	StageErrors metric.Int64Counter
}

// stageBuckets defines histogram bucket boundaries (in seconds) for
// per-utterance stage latencies.
var stageBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("frontend.stage.duration",
		metric.WithDescription("Latency of a single feature stage forward pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	if met.FramesProduced, err = m.Int64Counter("frontend.frames.produced",
		metric.WithDescription("Total feature frames produced."),
	); err != nil {
		return nil, err
	}
	if met.UtterancesProcessed, err = m.Int64Counter("frontend.utterances.processed",
		metric.WithDescription("Total utterances processed by feature pipelines."),
	); err != nil {
		return nil, err
	}
	if met.StageErrors, err = m.Int64Counter("frontend.stage.errors",
		metric.WithDescription("Total feature stage failures by stage."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStage records the latency of one stage pass and, when err is
// non-nil, a stage error.
func (m *Metrics) RecordStage(ctx context.Context, stage string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.StageDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		m.StageErrors.Add(ctx, 1, attrs)
	}
}

// RecordOutput records the frames and utterances emitted by one pipeline
// pass.
func (m *Metrics) RecordOutput(ctx context.Context, utterances, frames int) {
	m.UtterancesProcessed.Add(ctx, int64(utterances))
	m.FramesProduced.Add(ctx, int64(frames))
}
