package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/avonhealth/emrchat/backend"

// Metrics holds the pipeline-level instruments.
type Metrics struct {
	QueryParseCount    metric.Int64Counter
	QueryParseDuration metric.Float64Histogram
	RetrievalCount     metric.Int64Counter
	RerankDuration     metric.Float64Histogram
	CacheHitCount      metric.Int64Counter
	CacheMissCount     metric.Int64Counter
}

// Setup initializes the OTLP trace exporter and registers the global tracer
// provider and propagators. The returned function flushes and shuts the
// provider down.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tracerProvider.Shutdown, nil
}

var (
	instrumentsOnce sync.Once
	instruments     *Metrics
)

// Instruments returns the shared pipeline instruments, created lazily on the
// global meter. Returns nil when instrument creation failed; callers skip
// recording in that case.
func Instruments() *Metrics {
	instrumentsOnce.Do(func() {
		if m, err := InitMetrics(); err == nil {
			instruments = m
		}
	})
	return instruments
}

// InitMetrics creates the pipeline instruments on the global meter.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	parseCount, err := meter.Int64Counter(
		"query.parse.count",
		metric.WithDescription("Number of queries parsed"),
	)
	if err != nil {
		return nil, err
	}

	parseDuration, err := meter.Float64Histogram(
		"query.parse.duration",
		metric.WithDescription("Query understanding duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	retrievalCount, err := meter.Int64Counter(
		"retrieval.candidate.count",
		metric.WithDescription("Number of candidates fetched from the index"),
	)
	if err != nil {
		return nil, err
	}

	rerankDuration, err := meter.Float64Histogram(
		"retrieval.rerank.duration",
		metric.WithDescription("Scoring and rerank duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCount, err := meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		QueryParseCount:    parseCount,
		QueryParseDuration: parseDuration,
		RetrievalCount:     retrievalCount,
		RerankDuration:     rerankDuration,
		CacheHitCount:      cacheHitCount,
		CacheMissCount:     cacheMissCount,
	}, nil
}

// StartSpan starts a span on the shared tracer.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records a non-nil error on the span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordParseMetric records one query parse with its intent and outcome.
func RecordParseMetric(ctx context.Context, m *Metrics, intent string, ok bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("query.intent", intent),
		attribute.Bool("query.parse.ok", ok),
	}
	m.QueryParseCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.QueryParseDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordRetrievalMetric records the candidate count returned for a query.
func RecordRetrievalMetric(ctx context.Context, m *Metrics, candidates int) {
	m.RetrievalCount.Add(ctx, int64(candidates))
}

// RecordRerankMetric records one rerank pass over a candidate set.
func RecordRerankMetric(ctx context.Context, m *Metrics, candidates int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Int("retrieval.candidates", candidates),
	}
	m.RerankDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit for a key class.
func RecordCacheHit(ctx context.Context, m *Metrics, keyClass string) {
	m.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.key_class", keyClass)))
}

// RecordCacheMiss records a cache miss for a key class.
func RecordCacheMiss(ctx context.Context, m *Metrics, keyClass string) {
	m.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.key_class", keyClass)))
}
