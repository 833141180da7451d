// Package observe provides application-wide observability primitives for
// Echoscribe: OpenTelemetry metrics, tracing, and trace-aware structured
// logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Echoscribe metrics.
const meterName = "github.com/MrWong99/echoscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks per-stage pipeline latency. Use with attribute:
	//   attribute.String("stage", ...) — decode, trim, diarize, segment,
	//   transcribe, assemble, persist, upload
	StageDuration metric.Float64Histogram

	// SegmentsProduced counts segments emitted by the builder. Use with
	// attribute: attribute.String("source", ...)
	SegmentsProduced metric.Int64Counter

	// BatchesProcessed counts ASR batch calls. Use with attribute:
	//   attribute.String("status", ...) — ok, retried
	BatchesProcessed metric.Int64Counter

	// Reclaims counts memory reclamation passes.
	Reclaims metric.Int64Counter

	// TranscriptionFailures counts segments whose transcription failed after
	// the singleton retry.
	TranscriptionFailures metric.Int64Counter

	// UploadFailures counts artifact upload failures. Use with attribute:
	//   attribute.String("kind", ...) — original, segment, transcript, manifest
	UploadFailures metric.Int64Counter

	// ActiveRuns tracks the number of pipeline runs currently in flight.
	ActiveRuns metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Pipeline
// stages span from milliseconds (assemble) to minutes (transcribe a lecture).
var latencyBuckets = []float64{
	0.01, 0.05, 0.25, 1, 5, 15, 60, 300, 900,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("echoscribe.stage.duration",
		metric.WithDescription("Latency of one pipeline stage by stage name."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.SegmentsProduced, err = m.Int64Counter("echoscribe.segments.produced",
		metric.WithDescription("Total segments emitted by the segment builder, by source."),
	); err != nil {
		return nil, err
	}
	if met.BatchesProcessed, err = m.Int64Counter("echoscribe.batches.processed",
		metric.WithDescription("Total ASR batch calls by status."),
	); err != nil {
		return nil, err
	}
	if met.Reclaims, err = m.Int64Counter("echoscribe.reclaims",
		metric.WithDescription("Total memory reclamation passes."),
	); err != nil {
		return nil, err
	}

	if met.TranscriptionFailures, err = m.Int64Counter("echoscribe.transcription.failures",
		metric.WithDescription("Total segments failed after singleton retry."),
	); err != nil {
		return nil, err
	}
	if met.UploadFailures, err = m.Int64Counter("echoscribe.upload.failures",
		metric.WithDescription("Total artifact upload failures by artifact kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRuns, err = m.Int64UpDownCounter("echoscribe.active_runs",
		metric.WithDescription("Number of pipeline runs currently in flight."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records one stage latency observation.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordBatch records one ASR batch call with its outcome status.
func (m *Metrics) RecordBatch(ctx context.Context, status string) {
	m.BatchesProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordUploadFailure records one failed artifact upload.
func (m *Metrics) RecordUploadFailure(ctx context.Context, kind string) {
	m.UploadFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
