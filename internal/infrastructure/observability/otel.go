package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/patientvoice/backend"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount      metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	DBQueryDuration   metric.Float64Histogram
	CacheHitCount     metric.Int64Counter
	CacheMissCount    metric.Int64Counter
	SubmissionCount   metric.Int64Counter
	AuditFailureCount metric.Int64Counter
}

// Setup initializes OpenTelemetry tracing and metrics with OTLP gRPC exporters.
// It must run before InitMetrics so the instruments bind to the exporting provider.
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

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		return errors.Join(tracerProvider.Shutdown(ctx), meterProvider.Shutdown(ctx))
	}, nil
}

// InitMetrics initializes application metrics on the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dbQueryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Statistics query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCount, err := meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of stats cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of stats cache misses"),
	)
	if err != nil {
		return nil, err
	}

	submissionCount, err := meter.Int64Counter(
		"survey.submission.count",
		metric.WithDescription("Number of survey submissions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	auditFailureCount, err := meter.Int64Counter(
		"stats.audit.failure.count",
		metric.WithDescription("Number of stats query log entries that could not be persisted"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:      requestCount,
		RequestDuration:   requestDuration,
		DBQueryDuration:   dbQueryDuration,
		CacheHitCount:     cacheHitCount,
		CacheMissCount:    cacheMissCount,
		SubmissionCount:   submissionCount,
		AuditFailureCount: auditFailureCount,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records an error in the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// The Record* helpers accept a nil *Metrics so services can run without instrumentation.

// RecordRequestMetric records an HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, route string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	metrics.RequestCount.Add(ctx, 1, attrs)
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordDBMetric records a database operation metric
func RecordDBMetric(ctx context.Context, metrics *Metrics, operation string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.DBQueryDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("db.operation", operation)))
}

// RecordCacheHit records a stats cache hit for an endpoint
func RecordCacheHit(ctx context.Context, metrics *Metrics, endpoint string) {
	if metrics == nil {
		return
	}
	metrics.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.endpoint", endpoint)))
}

// RecordCacheMiss records a stats cache miss for an endpoint
func RecordCacheMiss(ctx context.Context, metrics *Metrics, endpoint string) {
	if metrics == nil {
		return
	}
	metrics.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.endpoint", endpoint)))
}

// RecordSubmission records a survey submission outcome ("accepted", "rejected", "failed")
func RecordSubmission(ctx context.Context, metrics *Metrics, outcome string) {
	if metrics == nil {
		return
	}
	metrics.SubmissionCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAuditFailure counts a dropped stats query log entry
func RecordAuditFailure(ctx context.Context, metrics *Metrics) {
	if metrics == nil {
		return
	}
	metrics.AuditFailureCount.Add(ctx, 1)
}
