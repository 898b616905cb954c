package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
	ActiveConnections metric.Int64UpDownCounter
	ChainRequests     metric.Int64Counter
	ChainDuration     metric.Float64Histogram
	PageBuilds        metric.Int64Counter
	PageBuildDuration metric.Float64Histogram
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"dash_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"dash_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CacheHits, err = meter.Int64Counter(
		"dash_cache_hits_total",
		metric.WithDescription("Total number of page cache hits"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CacheMisses, err = meter.Int64Counter(
		"dash_cache_misses_total",
		metric.WithDescription("Total number of page cache misses"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ActiveConnections, err = meter.Int64UpDownCounter(
		"dash_websocket_connections",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ChainRequests, err = meter.Int64Counter(
		"dash_chain_requests_total",
		metric.WithDescription("Total number of chain and indexer queries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ChainDuration, err = meter.Float64Histogram(
		"dash_chain_request_duration_seconds",
		metric.WithDescription("Chain and indexer query duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PageBuilds, err = meter.Int64Counter(
		"dash_page_builds_total",
		metric.WithDescription("Total number of dashboard page builds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PageBuildDuration, err = meter.Float64Histogram(
		"dash_page_build_duration_seconds",
		metric.WithDescription("Dashboard page build duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.Handler()
	return m, handler, nil
}

// The recorders below accept a nil receiver so tests and CLI runs can skip metrics entirely.

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordCacheHit(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) RecordCacheMiss(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) IncrementConnections(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, 1)
}

func (m *Metrics) DecrementConnections(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, -1)
}

func (m *Metrics) RecordChainRequest(ctx context.Context, endpoint string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Bool("ok", ok),
	)
	m.ChainRequests.Add(ctx, 1, labels)
	m.ChainDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordPageBuild(ctx context.Context, page string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("page", page),
		attribute.Bool("ok", ok),
	)
	m.PageBuilds.Add(ctx, 1, labels)
	m.PageBuildDuration.Record(ctx, duration.Seconds(), labels)
}
