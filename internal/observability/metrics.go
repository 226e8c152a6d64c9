package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

type MetricsManager struct {
	config   MetricsConfig
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	pipelineOperations        *prometheus.CounterVec
	pipelineOperationDuration *prometheus.HistogramVec
	versionChanges            *prometheus.CounterVec
	pageSize                  prometheus.Histogram

	referenceLookups *prometheus.CounterVec
	referenceBatch   prometheus.Histogram

	storeRetries         *prometheus.CounterVec
	circuitBreakerState  *prometheus.GaugeVec
	eventsPublished      *prometheus.CounterVec

	uptimeSeconds prometheus.Gauge
	buildInfo     *prometheus.GaugeVec
}

func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if !config.Enabled {
		return &MetricsManager{config: config}
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	namespace := config.Namespace
	if namespace == "" {
		namespace = "catalog"
	}

	mm := &MetricsManager{
		config:   config,
		registry: registry,
	}

	mm.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	mm.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	mm.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "route"},
	)

	mm.pipelineOperations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "operations_total",
			Help:      "Total number of pipeline operations",
		},
		[]string{"operation", "status"},
	)

	mm.pipelineOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "operation_duration_seconds",
			Help:      "Pipeline operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	mm.versionChanges = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "versioning",
			Name:      "changes_total",
			Help:      "Total number of version decisions by update type and history action",
		},
		[]string{"update_type", "action"},
	)

	mm.pageSize = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "paging",
			Name:      "page_items",
			Help:      "Number of items returned per page",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	mm.referenceLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "references",
			Name:      "lookups_total",
			Help:      "Total number of reference lookups by cache result",
		},
		[]string{"result"},
	)

	mm.referenceBatch = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "references",
			Name:      "batch_size",
			Help:      "Number of directory ids fetched per batched lookup",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	mm.storeRetries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "retries_total",
			Help:      "Total number of retried store calls",
		},
		[]string{"operation"},
	)

	mm.circuitBreakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	mm.eventsPublished = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of change events handed to the publisher",
		},
		[]string{"event_type", "status"},
	)

	mm.uptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "uptime_seconds",
			Help:      "System uptime in seconds",
		},
	)

	mm.buildInfo = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)

	return mm
}

func (mm *MetricsManager) enabled() bool {
	return mm != nil && mm.config.Enabled
}

func (mm *MetricsManager) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration, responseSize int64) {
	if !mm.enabled() {
		return
	}

	mm.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	mm.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	mm.httpResponseSize.WithLabelValues(method, route).Observe(float64(responseSize))
}

func (mm *MetricsManager) RecordPipelineOperation(operation, status string, duration time.Duration) {
	if !mm.enabled() {
		return
	}
	mm.pipelineOperations.WithLabelValues(operation, status).Inc()
	mm.pipelineOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (mm *MetricsManager) RecordVersionChange(updateType, action string) {
	if !mm.enabled() {
		return
	}
	mm.versionChanges.WithLabelValues(updateType, action).Inc()
}

func (mm *MetricsManager) RecordPageSize(items int) {
	if !mm.enabled() {
		return
	}
	mm.pageSize.Observe(float64(items))
}

func (mm *MetricsManager) RecordReferenceCacheHit() {
	if !mm.enabled() {
		return
	}
	mm.referenceLookups.WithLabelValues("hit").Inc()
}

func (mm *MetricsManager) RecordReferenceCacheMiss() {
	if !mm.enabled() {
		return
	}
	mm.referenceLookups.WithLabelValues("miss").Inc()
}

func (mm *MetricsManager) RecordReferenceBatch(size int) {
	if !mm.enabled() {
		return
	}
	mm.referenceBatch.Observe(float64(size))
}

func (mm *MetricsManager) RecordStoreRetry(operation string) {
	if !mm.enabled() {
		return
	}
	mm.storeRetries.WithLabelValues(operation).Inc()
}

func (mm *MetricsManager) SetCircuitBreakerState(name string, state int) {
	if !mm.enabled() {
		return
	}
	mm.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (mm *MetricsManager) RecordEventPublished(eventType, status string) {
	if !mm.enabled() {
		return
	}
	mm.eventsPublished.WithLabelValues(eventType, status).Inc()
}

func (mm *MetricsManager) SetUptime(startTime time.Time) {
	if !mm.enabled() {
		return
	}
	mm.uptimeSeconds.Set(time.Since(startTime).Seconds())
}

func (mm *MetricsManager) SetBuildInfo(version, commit, buildTime string) {
	if !mm.enabled() {
		return
	}
	mm.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Registry exposes the underlying registry, nil when metrics are disabled.
func (mm *MetricsManager) Registry() *prometheus.Registry {
	if mm == nil {
		return nil
	}
	return mm.registry
}

func (mm *MetricsManager) Handler() http.Handler {
	if !mm.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{})
}

// MetricsMiddleware labels requests by chi route pattern so ids in the path
// do not explode label cardinality.
func (mm *MetricsManager) MetricsMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mm.enabled() {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			mm.RecordHTTPRequest(r.Method, route, wrapped.statusCode, time.Since(start), wrapped.size)
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int64
}

func (mrw *metricsResponseWriter) WriteHeader(statusCode int) {
	mrw.statusCode = statusCode
	mrw.ResponseWriter.WriteHeader(statusCode)
}

func (mrw *metricsResponseWriter) Write(data []byte) (int, error) {
	size, err := mrw.ResponseWriter.Write(data)
	mrw.size += int64(size)
	return size, err
}

func (mm *MetricsManager) IsEnabled() bool {
	return mm.enabled()
}

func (mm *MetricsManager) StartUptimeTracker(ctx context.Context, startTime time.Time) {
	if !mm.enabled() {
		return
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.SetUptime(startTime)
			}
		}
	}()
}
