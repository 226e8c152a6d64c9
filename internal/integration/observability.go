package integration

import (
	"context"
	"time"

	"github.com/sumandas0/catalog/internal/observability"
	"go.opentelemetry.io/otel/trace"
)

// ObservabilityManager bundles the tracing, logging and metrics components
// handed to the pipeline service and the HTTP layer.
type ObservabilityManager struct {
	tracing   *observability.TracingManager
	logging   *observability.Logger
	metrics   *observability.MetricsManager
	startTime time.Time
}

// NewObservabilityManager builds all three components from configuration and
// installs the logger globally.
func NewObservabilityManager(
	tracingConfig observability.TracingConfig,
	loggingConfig observability.LoggingConfig,
	metricsConfig observability.MetricsConfig,
) (*ObservabilityManager, error) {
	tracing, err := observability.NewTracingManager(tracingConfig)
	if err != nil {
		return nil, err
	}

	logging, err := observability.NewLogger(loggingConfig)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetricsManager(metricsConfig)

	observability.SetGlobalLogger(logging)

	return &ObservabilityManager{
		tracing:   tracing,
		logging:   logging,
		metrics:   metrics,
		startTime: time.Now(),
	}, nil
}

// NewNopObservabilityManager discards logs, keeps metrics disabled and
// traces through tp.
func NewNopObservabilityManager(tp trace.TracerProvider) *ObservabilityManager {
	return &ObservabilityManager{
		tracing:   observability.NewTracingManagerWithProvider(tp),
		logging:   observability.NewNopLogger(),
		metrics:   observability.NewMetricsManager(observability.MetricsConfig{}),
		startTime: time.Now(),
	}
}

func (om *ObservabilityManager) GetTracing() *observability.TracingManager {
	return om.tracing
}

func (om *ObservabilityManager) GetLogging() *observability.Logger {
	return om.logging
}

func (om *ObservabilityManager) GetMetrics() *observability.MetricsManager {
	return om.metrics
}

// Start begins uptime tracking and publishes build info when metrics are on.
func (om *ObservabilityManager) Start(ctx context.Context, version, commit, buildTime string) {
	if !om.metrics.IsEnabled() {
		return
	}
	om.metrics.SetBuildInfo(version, commit, buildTime)
	om.metrics.StartUptimeTracker(ctx, om.startTime)
}

func (om *ObservabilityManager) Uptime() time.Duration {
	return time.Since(om.startTime)
}

func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	return om.tracing.Shutdown(ctx)
}
