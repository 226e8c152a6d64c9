package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/catalog/internal/cache"
	"github.com/sumandas0/catalog/internal/core"
	"github.com/sumandas0/catalog/internal/events"
	"github.com/sumandas0/catalog/internal/integration"
	"github.com/sumandas0/catalog/internal/references"
	"github.com/sumandas0/catalog/internal/resilience"
	"github.com/sumandas0/catalog/internal/security"
	postgresstore "github.com/sumandas0/catalog/internal/store/postgres"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const BaseURL = "http://localhost:8585"

// DefaultSeed is the directory every test environment starts with.
var DefaultSeed = references.Seed{
	PipelineServices: []string{"airflow", "glue"},
	Users:            []string{"alice", "bob"},
	Teams:            []string{"data"},
	Tags:             []string{"PII.Sensitive", "Tier.Tier1"},
}

type TestEnvironment struct {
	Container    *postgres.PostgresContainer
	Store        *postgresstore.PostgresStore
	CacheManager *cache.Manager
	Resolver     *references.Resolver
	ObsManager   *integration.ObservabilityManager
	Service      *core.PipelineService
}

// SetupPostgres starts a disposable postgres, applies the migrations and
// registers cleanup with t.
func SetupPostgres(t *testing.T, ctx context.Context) (*postgres.PostgresContainer, *postgresstore.PostgresStore) {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("catalog_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := postgresstore.NewPostgresStore(ctx, connStr, postgresstore.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, postgresstore.NewMigrator(st.GetPool(), zerolog.Nop()).Run(ctx))
	return container, st
}

// SetupTestEnvironment wires a PipelineService over a migrated postgres with
// the same resilience stack the server uses.
func SetupTestEnvironment(t *testing.T, ctx context.Context) *TestEnvironment {
	t.Helper()

	container, st := SetupPostgres(t, ctx)

	_, err := references.LoadSeed(ctx, st, DefaultSeed)
	require.NoError(t, err)

	obsManager := NewTestObservabilityManager(t)
	retry := resilience.NewRetryManager(resilience.RetryConfig{
		Enabled:           true,
		MaxAttempts:       3,
		InitialDelay:      10 * time.Millisecond,
		MaxDelay:          100 * time.Millisecond,
		BackoffMultiplier: 2,
	}, resilience.StrategyExponential)
	breakers := resilience.NewCircuitBreakerManager(resilience.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Second,
		FailureRatio: 0.6,
		MinRequests:  5,
	}, zerolog.Nop())
	guarded := resilience.NewStore(st, retry, breakers)

	cacheManager := cache.NewManager(st, time.Minute)
	resolver := references.NewResolver(st, cacheManager, references.Config{BaseURL: BaseURL}, nil)

	service := core.NewPipelineService(
		guarded,
		resolver,
		security.NewInputSanitizer(security.SanitizerConfig{Enabled: true, MaxStringLength: 10000}),
		events.NoOpPublisher{},
		obsManager,
		core.ServiceConfig{StoreTimeout: 10 * time.Second, SessionWindow: 10 * time.Minute},
	)

	return &TestEnvironment{
		Container:    container,
		Store:        st,
		CacheManager: cacheManager,
		Resolver:     resolver,
		ObsManager:   obsManager,
		Service:      service,
	}
}
