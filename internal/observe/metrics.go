// Package observe provides application-wide observability primitives for
// Sennet: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all Sennet metrics.
const meterName = "github.com/sennet-ai/sennet"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TurnDuration tracks full dispatch latency, from Process entry to
	// return. Use with attribute: attribute.String("outcome", ...)
	TurnDuration metric.Float64Histogram

	// ClassifierDuration tracks classifier inference latency. Use with
	// attribute: attribute.String("model", ...)
	ClassifierDuration metric.Float64Histogram

	// NERDuration tracks entity extraction latency.
	NERDuration metric.Float64Histogram

	// BrainDuration tracks skill action execution latency.
	BrainDuration metric.Float64Histogram

	// --- Counters ---

	// Turns counts completed Process calls. Use with attribute:
	//   attribute.String("outcome", "result"|"empty"|"message"|"rejected")
	Turns metric.Int64Counter

	// FallbackHits counts utterances answered by the keyword fallback table.
	FallbackHits metric.Int64Counter

	// IntentNotFound counts utterances with no intent and no fallback.
	IntentNotFound metric.Int64Counter

	// LanguageSwitches counts tokenizer recycles triggered by a detected
	// locale change.
	LanguageSwitches metric.Int64Counter

	// SlotQuestions counts slot-filling questions asked to the user.
	SlotQuestions metric.Int64Counter

	// --- Error counters ---

	// NERErrors counts entity extraction failures. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("code", ...)
	NERErrors metric.Int64Counter

	// ExecutorErrors counts Brain execution failures.
	ExecutorErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveContexts tracks whether a conversation context is active (0 or 1
	// for the single session).
	ActiveContexts metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for dialog-turn latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("sennet.turn.duration",
		metric.WithDescription("Latency of one full dispatch turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifierDuration, err = m.Float64Histogram("sennet.classifier.duration",
		metric.WithDescription("Latency of classifier inference by model."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NERDuration, err = m.Float64Histogram("sennet.ner.duration",
		metric.WithDescription("Latency of entity extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BrainDuration, err = m.Float64Histogram("sennet.brain.duration",
		metric.WithDescription("Latency of skill action execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Turns, err = m.Int64Counter("sennet.turns",
		metric.WithDescription("Total completed Process calls by outcome."),
	); err != nil {
		return nil, err
	}
	if met.FallbackHits, err = m.Int64Counter("sennet.fallback.hits",
		metric.WithDescription("Total utterances answered by the keyword fallback table."),
	); err != nil {
		return nil, err
	}
	if met.IntentNotFound, err = m.Int64Counter("sennet.intent_not_found",
		metric.WithDescription("Total utterances with no intent and no fallback."),
	); err != nil {
		return nil, err
	}
	if met.LanguageSwitches, err = m.Int64Counter("sennet.language_switches",
		metric.WithDescription("Total tokenizer recycles triggered by a locale change."),
	); err != nil {
		return nil, err
	}
	if met.SlotQuestions, err = m.Int64Counter("sennet.slot.questions",
		metric.WithDescription("Total slot-filling questions asked."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.NERErrors, err = m.Int64Counter("sennet.ner.errors",
		metric.WithDescription("Total entity extraction failures by kind and code."),
	); err != nil {
		return nil, err
	}
	if met.ExecutorErrors, err = m.Int64Counter("sennet.executor.errors",
		metric.WithDescription("Total Brain execution failures."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveContexts, err = m.Int64UpDownCounter("sennet.active_contexts",
		metric.WithDescription("Whether a conversation context is currently active."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sennet.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordTurn records one completed Process call with its outcome and
// duration in seconds.
func (m *Metrics) RecordTurn(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Turns.Add(ctx, 1, attrs)
	m.TurnDuration.Record(ctx, seconds, attrs)
}

// RecordNERError records one entity extraction failure.
func (m *Metrics) RecordNERError(ctx context.Context, kind, code string) {
	m.NERErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("code", code),
		),
	)
}

// RecordClassification records one classifier inference by model kind.
func (m *Metrics) RecordClassification(ctx context.Context, model string, seconds float64) {
	m.ClassifierDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("model", model)),
	)
}
