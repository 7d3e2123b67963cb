// Package telemetry unifies OpenTelemetry tracing and Prometheus metrics for
// the Cortex mapper daemon: a Prometheus registry bridged into an OTel
// MeterProvider so promauto counters and OTel instruments share one
// /metrics endpoint, plus a chi-compatible middleware for the optional
// REST mirror.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// --- CUSTOM METRIC DEFINITIONS ---

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_fetches_total",
			Help: "Total number of page fetch attempts, labeled by host and outcome.",
		},
		[]string{"host", "outcome"},
	)

	fetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_fetch_bytes_total",
			Help: "Total number of response bytes fetched, labeled by host.",
		},
		[]string{"host"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cortex_fetch_duration_seconds",
			Help:    "Histogram of page fetch latencies, labeled by host.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"host"},
	)

	pagesClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_pages_classified_total",
			Help: "Total number of pages classified, labeled by page type.",
		},
		[]string{"page_type"},
	)

	renderFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_render_fallbacks_total",
			Help: "Total number of pages that fell back to browser rendering, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	renderPoolActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortex_render_pool_active",
			Help: "Number of browser contexts currently checked out of the render pool.",
		},
	)

	mappingAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_mapping_attempts_total",
			Help: "Total number of mapping attempts, labeled by terminal status.",
		},
		[]string{"status"},
	)

	mappingAttemptDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cortex_mapping_attempt_duration_seconds",
			Help:    "Histogram of end-to-end mapping attempt durations.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	mapCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_map_cache_lookups_total",
			Help: "Total number of map cache lookups, labeled by hit or miss.",
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_http_requests_total",
			Help: "Total number of REST mirror requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cortex_http_request_duration_seconds",
			Help:    "Histogram of REST mirror request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

var (
	initOnce  sync.Once
	traceProv *sdktrace.TracerProvider
	meterProv *metric.MeterProvider
	initErr   error
)

// Init sets up the tracer provider (resource-tagged, always-sample) and
// bridges an OTel MeterProvider onto the default Prometheus registry so the
// promauto counters above and any OTel instruments share one /metrics
// endpoint. Cortex has no managed trace backend configured, so spans stay
// in-process; a batcher/exporter can be attached to the returned
// TracerProvider later without touching call sites.
func Init(ctx context.Context, serviceName, version string) (*sdktrace.TracerProvider, *metric.MeterProvider, error) {
	initOnce.Do(func() {
		res, err := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version),
			),
		)
		if err != nil {
			initErr = fmt.Errorf("create resource: %w", err)
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(
			propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
		)

		promExporter, err := otelprom.New(
			otelprom.WithRegisterer(prometheus.DefaultRegisterer),
		)
		if err != nil {
			initErr = fmt.Errorf("create prometheus exporter: %w", err)
			return
		}

		mp := metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(promExporter),
		)
		otel.SetMeterProvider(mp)

		traceProv = tp
		meterProv = mp
	})
	return traceProv, meterProv, initErr
}

// Shutdown flushes and releases the tracer and meter providers.
func Shutdown(ctx context.Context) error {
	if traceProv != nil {
		if err := traceProv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}
	}
	if meterProv != nil {
		if err := meterProv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter provider: %w", err)
		}
	}
	return nil
}

// --- HTTP HANDLER & MIDDLEWARE ---

// Handler returns the standard Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records REST mirror request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// --- RECORDING FUNCTIONS ---

// ObserveFetch records the outcome, byte count, and latency of a page fetch.
func ObserveFetch(host, outcome string, bytesFetched int, duration time.Duration) {
	fetchesTotal.WithLabelValues(host, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(host).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveClassification records a page classification outcome.
func ObserveClassification(pageType string) {
	pagesClassifiedTotal.WithLabelValues(pageType).Inc()
}

// ObserveRenderFallback records whether a browser-rendered fetch succeeded.
func ObserveRenderFallback(outcome string) {
	renderFallbacksTotal.WithLabelValues(outcome).Inc()
}

// SetRenderPoolActive reports the current number of checked-out browser contexts.
func SetRenderPoolActive(n int) {
	renderPoolActive.Set(float64(n))
}

// ObserveMappingAttempt records the terminal status and duration of a mapping attempt.
func ObserveMappingAttempt(status string, duration time.Duration) {
	mappingAttemptsTotal.WithLabelValues(status).Inc()
	mappingAttemptDurationSeconds.Observe(duration.Seconds())
}

// ObserveMapCacheLookup records a map cache hit or miss.
func ObserveMapCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	mapCacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records metrics for one REST mirror request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
