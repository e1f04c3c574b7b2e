// Package observe provides the observability primitives for the sorting
// ceremony: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware for the admin server.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the Prometheus exporter installed by [InitProvider]. [DefaultMetrics] uses
// the global meter provider; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/sortinghat"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// STTDuration tracks how long one Listen call took, from opening the
	// microphone to the final transcript.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks how long one spoken line took to synthesise and
	// play.
	TTSDuration metric.Float64Histogram

	// ProviderRequests counts provider calls. Attributes: provider, kind,
	// status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// CircuitTransitions counts breaker state changes in provider fallback
	// chains. Attributes: provider, kind, state.
	CircuitTransitions metric.Int64Counter

	// Ceremonies counts finished ceremonies. Attribute: outcome.
	Ceremonies metric.Int64Counter

	// QuestionRetries counts re-prompts. Attribute: question.
	QuestionRetries metric.Int64Counter

	// HousesAssigned counts sorting results. Attribute: house.
	HousesAssigned metric.Int64Counter

	// ActiveCeremonies is 1 while a ceremony is running.
	ActiveCeremonies metric.Int64UpDownCounter

	// HTTPRequestDuration tracks admin and presentation HTTP latency.
	// Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Listening windows run
// up to half a minute, so the tail is longer than for a request pipeline.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 20, 30, 60,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("sortinghat.stt.duration",
		metric.WithDescription("Time spent listening for and transcribing one answer."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("sortinghat.tts.duration",
		metric.WithDescription("Time spent synthesising and playing one line."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("sortinghat.provider.requests",
		metric.WithDescription("Total provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("sortinghat.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.CircuitTransitions, err = m.Int64Counter("sortinghat.provider.circuit_transitions",
		metric.WithDescription("Circuit breaker state changes by provider, kind, and new state."),
	); err != nil {
		return nil, err
	}
	if met.Ceremonies, err = m.Int64Counter("sortinghat.ceremonies",
		metric.WithDescription("Finished ceremonies by outcome."),
	); err != nil {
		return nil, err
	}
	if met.QuestionRetries, err = m.Int64Counter("sortinghat.question.retries",
		metric.WithDescription("Re-prompts by question."),
	); err != nil {
		return nil, err
	}
	if met.HousesAssigned, err = m.Int64Counter("sortinghat.houses.assigned",
		metric.WithDescription("Students sorted by house."),
	); err != nil {
		return nil, err
	}

	if met.ActiveCeremonies, err = m.Int64UpDownCounter("sortinghat.active_ceremonies",
		metric.WithDescription("Number of ceremonies currently running."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("sortinghat.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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
// fails.
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

// RecordProviderRequest increments the provider request counter.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCircuitTransition counts a provider's breaker entering state.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, provider, kind, state string) {
	m.CircuitTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("state", state),
		),
	)
}

// RecordCeremony counts a finished ceremony.
func (m *Metrics) RecordCeremony(ctx context.Context, outcome string) {
	m.Ceremonies.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRetry counts one re-prompt of question.
func (m *Metrics) RecordRetry(ctx context.Context, question string) {
	m.QuestionRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("question", question)))
}

// RecordHouse counts one student sorted into house.
func (m *Metrics) RecordHouse(ctx context.Context, house string) {
	m.HousesAssigned.Add(ctx, 1, metric.WithAttributes(attribute.String("house", house)))
}
