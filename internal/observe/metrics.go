// Package observe provides application-wide observability primitives for
// joytutor: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all joytutor metrics.
const meterName = "github.com/MrWong99/joytutor"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// ─── Practice pipeline ───

	// PracticeAttempts counts finished attempts. Attributes: mode, outcome
	// ("completed" | "failed"), reason (stop reason).
	PracticeAttempts metric.Int64Counter

	// CaptureDuration tracks how long the microphone was recording.
	CaptureDuration metric.Float64Histogram

	// EvaluationDuration tracks evaluator round-trip latency.
	EvaluationDuration metric.Float64Histogram

	// Accuracy records the accuracy percent of completed attempts.
	Accuracy metric.Int64Histogram

	// Fallbacks counts evaluator answers that had to be replaced by the
	// fallback result.
	Fallbacks metric.Int64Counter

	// ActivePractice is the number of attempts currently in flight.
	ActivePractice metric.Int64UpDownCounter

	// ─── Providers ───

	// ProviderRequests counts provider API calls. Attributes: provider,
	// kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// provider, kind, from, to.
	BreakerTransitions metric.Int64Counter

	// ─── HTTP ───

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

// captureBuckets covers word and sentence capture lengths (seconds).
var captureBuckets = []float64{0.5, 1, 1.5, 2, 3, 4, 5, 6, 8, 10}

// latencyBuckets covers evaluator and HTTP latencies (seconds).
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30,
}

// accuracyBuckets are the score deciles.
var accuracyBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PracticeAttempts, err = m.Int64Counter("joytutor.practice.attempts",
		metric.WithDescription("Finished practice attempts by mode, outcome and stop reason."),
	); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = m.Float64Histogram("joytutor.practice.capture.duration",
		metric.WithDescription("Length of the recorded capture."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(captureBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EvaluationDuration, err = m.Float64Histogram("joytutor.practice.evaluation.duration",
		metric.WithDescription("Latency of pronunciation evaluation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Accuracy, err = m.Int64Histogram("joytutor.practice.accuracy",
		metric.WithDescription("Accuracy percent of completed attempts."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(accuracyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("joytutor.practice.fallbacks",
		metric.WithDescription("Evaluator answers replaced by the fallback result."),
	); err != nil {
		return nil, err
	}
	if met.ActivePractice, err = m.Int64UpDownCounter("joytutor.practice.active",
		metric.WithDescription("Practice attempts currently in flight."),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("joytutor.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("joytutor.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("joytutor.provider.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes per provider."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("joytutor.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route, and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
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
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordBreakerTransition records a circuit breaker moving between states.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, kind, from, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordAttempt records one finished practice attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, mode, outcome, reason string, capture time.Duration) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.PracticeAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
	if capture > 0 {
		m.CaptureDuration.Record(ctx, capture.Seconds(), attrs)
	}
}

// RecordEvaluation records one evaluator answer. accuracy is ignored when
// ok is false.
func (m *Metrics) RecordEvaluation(ctx context.Context, mode string, d time.Duration, ok bool, accuracy int, fallback bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.EvaluationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
	if !ok {
		return
	}
	m.Accuracy.Record(ctx, int64(accuracy), metric.WithAttributes(attribute.String("mode", mode)))
	if fallback {
		m.Fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	}
}
