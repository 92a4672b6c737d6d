// Package observer provides OTEL-based observability for the RAG service.
//
// Traces export over OTLP HTTP, configured via standard OTEL env vars
// (OTEL_EXPORTER_OTLP_ENDPOINT, etc.). Metrics flow through the OTEL SDK
// into a Prometheus registry, exposed via MetricsHandler for scraping.
package observer

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/nholden/ragserve/observer"

// Instruments holds all OTEL instruments used across the service.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	// Counters
	RequestCount   metric.Int64Counter
	ChunksIngested metric.Int64Counter
	QueryCount     metric.Int64Counter

	// Histograms
	RequestDuration metric.Float64Histogram

	registry *prometheus.Registry
}

// MetricsHandler returns an http.Handler serving the Prometheus exposition
// format for all registered metrics.
func (i *Instruments) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(i.registry, promhttp.HandlerOpts{})
}

// Init sets up the OTEL trace provider (OTLP HTTP export) and metric
// provider (Prometheus pull export). Returns a shutdown function that must
// be called on application exit.
func Init(ctx context.Context) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("ragserve")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	// Trace provider
	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Metric provider backed by a Prometheus registry for pull-based scraping.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promExp, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExp),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	inst, err := newInstruments(registry)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments(registry *prometheus.Registry) (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)

	requestCount, err := meter.Int64Counter("http.requests",
		metric.WithDescription("HTTP request count"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	chunksIngested, err := meter.Int64Counter("ingest.chunks",
		metric.WithDescription("Chunks written to the vector store"),
		metric.WithUnit("{chunk}"))
	if err != nil {
		return nil, err
	}

	queryCount, err := meter.Int64Counter("rag.queries",
		metric.WithDescription("RAG query count"),
		metric.WithUnit("{query}"))
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram("http.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:          tracer,
		Meter:           meter,
		RequestCount:    requestCount,
		ChunksIngested:  chunksIngested,
		QueryCount:      queryCount,
		RequestDuration: requestDuration,
		registry:        registry,
	}, nil
}
