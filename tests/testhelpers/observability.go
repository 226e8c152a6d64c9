package testhelpers

import (
	"context"
	"testing"

	"github.com/sumandas0/catalog/internal/integration"
	"github.com/sumandas0/catalog/internal/observability"
)

// NewTestObservabilityManager creates an observability manager that discards
// logs and keeps tracing and metrics off.
func NewTestObservabilityManager(t *testing.T) *integration.ObservabilityManager {
	return newObservabilityManager(t, observability.LogLevelError, "discard", observability.MetricsConfig{})
}

// NewTestObservabilityManagerWithLogging logs at debug level to stdout for
// debugging a failing test.
func NewTestObservabilityManagerWithLogging(t *testing.T) *integration.ObservabilityManager {
	return newObservabilityManager(t, observability.LogLevelDebug, "stdout", observability.MetricsConfig{})
}

// NewTestObservabilityManagerWithMetrics records metrics into a private
// registry so assertions can scrape the handler.
func NewTestObservabilityManagerWithMetrics(t *testing.T) *integration.ObservabilityManager {
	return newObservabilityManager(t, observability.LogLevelError, "discard", observability.MetricsConfig{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "catalog_test",
	})
}

func newObservabilityManager(t *testing.T, level observability.LogLevel, output string, metrics observability.MetricsConfig) *integration.ObservabilityManager {
	t.Helper()

	obsManager, err := integration.NewObservabilityManager(
		observability.TracingConfig{
			Enabled:     false,
			ServiceName: "catalog-test",
			Environment: "test",
		},
		observability.LoggingConfig{
			Level:  level,
			Format: observability.LogFormatJSON,
			Output: output,
		},
		metrics,
	)
	if err != nil {
		t.Fatalf("Failed to create test observability manager: %v", err)
	}
	t.Cleanup(func() { _ = obsManager.Shutdown(context.Background()) })

	return obsManager
}
