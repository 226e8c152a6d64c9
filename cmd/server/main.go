package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"
	"github.com/sumandas0/catalog/config"
	"github.com/sumandas0/catalog/internal/api"
	"github.com/sumandas0/catalog/internal/cache"
	"github.com/sumandas0/catalog/internal/core"
	"github.com/sumandas0/catalog/internal/events"
	"github.com/sumandas0/catalog/internal/health"
	"github.com/sumandas0/catalog/internal/integration"
	"github.com/sumandas0/catalog/internal/observability"
	"github.com/sumandas0/catalog/internal/references"
	"github.com/sumandas0/catalog/internal/resilience"
	"github.com/sumandas0/catalog/internal/security"
	"github.com/sumandas0/catalog/internal/store"
	"github.com/sumandas0/catalog/internal/store/memory"
	"github.com/sumandas0/catalog/internal/store/postgres"
)

var (
	// Build-time variables (set via ldflags)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "catalog-server",
		Short: "Pipeline metadata catalog server",
		Long:  "Serves pipeline metadata with versioned change tracking and cursor paging.",
		RunE:  runServer,
	}
	rootCmd.Flags().StringP("config", "c", "", "Path to configuration file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Catalog Server\n")
			fmt.Printf("Version: %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
			fmt.Printf("Build Time: %s\n", buildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE:  runMigrations,
	}
	migrateCmd.Flags().StringP("config", "c", "", "Path to configuration file")
	rootCmd.AddCommand(migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Close()

	logger := app.logger
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_time", buildTime).
		Str("config", getConfigSource(configPath)).
		Str("store", cfg.Store.Type).
		Msg("Starting catalog server")

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      app.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	logger.Info().Msg("Server shutdown completed")
	return nil
}

func runMigrations(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(loggingConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	zl := logger.GetZerologLogger()

	ctx := context.Background()
	pgStore, err := postgres.NewPostgresStore(ctx, cfg.GetDatabaseURL(), poolConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pgStore.Close()

	zl.Info().Msg("Running database migrations")
	if err := postgres.NewMigrator(pgStore.GetPool(), zl).Run(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	zl.Info().Msg("Database migrations completed")
	return nil
}

// Application holds every long-lived component of the server.
type Application struct {
	cfg           *config.Config
	logger        zerolog.Logger
	obsManager    *integration.ObservabilityManager
	backend       store.PipelineStore
	cacheManager  *cache.Manager
	publisher     events.Publisher
	rateLimiter   *security.RateLimiter
	healthChecker *health.HealthChecker
	router        *api.Router
}

func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	obsManager, err := integration.NewObservabilityManager(
		observability.TracingConfig{
			Enabled:     cfg.Tracing.Enabled,
			JaegerURL:   cfg.Tracing.JaegerURL,
			ServiceName: observability.ServiceName,
			Environment: cfg.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		},
		loggingConfig(cfg),
		observability.MetricsConfig{
			Enabled:   cfg.Metrics.Enabled,
			Path:      cfg.Metrics.Path,
			Namespace: observability.ServiceName,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	app := &Application{
		cfg:        cfg,
		logger:     obsManager.GetLogging().GetZerologLogger(),
		obsManager: obsManager,
	}
	metrics := obsManager.GetMetrics()

	backend, directory, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	app.backend = backend

	seed := references.Seed{
		PipelineServices: cfg.References.Seed.PipelineServices,
		Users:            cfg.References.Seed.Users,
		Teams:            cfg.References.Seed.Teams,
		Tags:             cfg.References.Seed.Tags,
	}
	seeded, err := references.LoadSeed(ctx, directory, seed)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to seed reference directory: %w", err)
	}
	if seeded > 0 {
		app.logger.Info().Int("entries", seeded).Msg("Reference directory seeded")
	}

	retry := resilience.NewRetryManager(resilience.RetryConfig{
		Enabled:           cfg.Resilience.Retry.MaxRetries > 0,
		MaxAttempts:       cfg.Resilience.Retry.MaxRetries + 1,
		InitialDelay:      cfg.Resilience.Retry.InitialDelay,
		MaxDelay:          cfg.Resilience.Retry.MaxDelay,
		BackoffMultiplier: cfg.Resilience.Retry.Multiplier,
		JitterFactor:      0.1,
	}, resilience.StrategyExponential)
	retry.OnRetry(func(attempt int, err error) {
		metrics.RecordStoreRetry("store")
		app.logger.Warn().Err(err).Int("attempt", attempt).Msg("Retrying store call")
	})

	breakers := resilience.NewCircuitBreakerManager(resilience.CircuitBreakerConfig{
		Enabled:      cfg.Resilience.CircuitBreaker.Enabled,
		MaxRequests:  cfg.Resilience.CircuitBreaker.MaxRequests,
		Interval:     cfg.Resilience.CircuitBreaker.Interval,
		Timeout:      cfg.Resilience.CircuitBreaker.Timeout,
		FailureRatio: cfg.Resilience.CircuitBreaker.FailureRatio,
		MinRequests:  cfg.Resilience.CircuitBreaker.MinRequests,
	}, app.logger)
	breakers.OnStateChange(func(name string, state gobreaker.State) {
		metrics.SetCircuitBreakerState(name, int(state))
	})
	pipelineStore := resilience.NewStore(backend, retry, breakers)

	app.cacheManager = cache.NewManager(directory, cfg.References.CacheTTL)
	app.cacheManager.StartCleanupRoutine(ctx, cfg.References.CleanupInterval)
	resolver := references.NewResolver(directory, app.cacheManager, references.Config{
		BaseURL:   cfg.Server.BaseURL,
		BatchWait: cfg.References.BatchWait,
	}, metrics)

	app.healthChecker = health.NewHealthChecker(5 * time.Second)
	app.healthChecker.RegisterComponent("store", health.StoreHealthCheck("store", pipelineStore))
	app.healthChecker.RegisterComponent("store_breaker", health.CircuitBreakerHealthCheck("store_breaker", func() gobreaker.State {
		return breakers.GetState(resilience.StoreBreakerName)
	}))

	switch cfg.Events.Type {
	case "nats":
		natsPublisher, err := events.ConnectNATS(cfg.Events.URL, cfg.Events.Subject, app.logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.publisher = natsPublisher
		app.healthChecker.RegisterComponent("events", health.EventsHealthCheck("events", natsPublisher.Connected))
	default:
		app.publisher = events.NoOpPublisher{}
	}

	service := core.NewPipelineService(
		pipelineStore,
		resolver,
		security.NewInputSanitizer(security.SanitizerConfig{
			Enabled:         cfg.Security.Sanitizer.Enabled,
			MaxStringLength: cfg.Security.Sanitizer.MaxStringLength,
			AllowHTML:       cfg.Security.Sanitizer.AllowHTML,
		}),
		app.publisher,
		obsManager,
		core.ServiceConfig{
			StoreTimeout:  cfg.Store.Timeout,
			SessionWindow: cfg.Versioning.SessionWindow,
		},
	)

	app.rateLimiter = security.NewRateLimiter(security.RateLimitConfig{
		Enabled:           cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: requestsPerSecond(cfg.Security.RateLimit),
		BurstSize:         cfg.Security.RateLimit.BurstSize,
	})

	app.router = api.NewRouter(service, resolver, app.healthChecker, obsManager, app.rateLimiter, api.Config{
		CORS: cors.Options{
			AllowedOrigins:   cfg.Server.CORS.AllowedOrigins,
			AllowedMethods:   cfg.Server.CORS.AllowedMethods,
			AllowedHeaders:   cfg.Server.CORS.AllowedHeaders,
			ExposedHeaders:   cfg.Server.CORS.ExposedHeaders,
			AllowCredentials: cfg.Server.CORS.AllowCredentials,
			MaxAge:           cfg.Server.CORS.MaxAge,
		},
		DefaultLimit:   cfg.Paging.DefaultLimit,
		MaxBodySize:    cfg.Security.RequestSize.MaxBodySize,
		RequestTimeout: cfg.Server.WriteTimeout,
		MetricsPath:    cfg.Metrics.Path,
	})

	app.healthChecker.StartPeriodicChecks(ctx, 30*time.Second)
	obsManager.Start(ctx, version, commit, buildTime)

	app.logger.Info().Msg("Application initialization completed")
	return app, nil
}

// openStore returns the pipeline store and the reference directory of the
// configured backend. Both backends serve both roles.
func (app *Application) openStore(ctx context.Context) (store.PipelineStore, store.Directory, error) {
	if app.cfg.Store.Type == "memory" {
		app.logger.Warn().Msg("Using in-memory store; data is lost on restart")
		st := memory.NewStore()
		return st, st, nil
	}

	pgStore, err := postgres.NewPostgresStore(ctx, app.cfg.GetDatabaseURL(), poolConfig(app.cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pgStore.Ping(pingCtx); err != nil {
		pgStore.Close()
		return nil, nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	app.logger.Info().Msg("PostgreSQL connection established")

	if app.cfg.Database.MigrateOnStart {
		if err := postgres.NewMigrator(pgStore.GetPool(), app.logger).Run(ctx); err != nil {
			pgStore.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return pgStore, pgStore, nil
}

func (app *Application) Handler() http.Handler {
	return app.router.SetupRoutes()
}

// Close releases every component, reporting the ones that failed.
func (app *Application) Close() error {
	var errs []error

	if app.rateLimiter != nil {
		app.rateLimiter.Stop()
	}
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event publisher close failed: %w", err))
		}
	}
	if app.backend != nil {
		if err := app.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close failed: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.obsManager.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown failed: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		app.logger.Error().Err(err).Msg("Some components failed to close properly")
		return err
	}
	app.logger.Info().Msg("Application closed")
	return nil
}

func loggingConfig(cfg *config.Config) observability.LoggingConfig {
	return observability.LoggingConfig{
		Level:       observability.LogLevel(cfg.Logging.Level),
		Format:      observability.LogFormat(cfg.Logging.Format),
		ServiceName: observability.ServiceName,
	}
}

func poolConfig(cfg *config.Config) postgres.PoolConfig {
	return postgres.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	}
}

func requestsPerSecond(cfg config.RateLimitConfig) float64 {
	if cfg.Period <= 0 {
		return float64(cfg.Rate)
	}
	return float64(cfg.Rate) / cfg.Period.Seconds()
}

func getConfigSource(configPath string) string {
	if configPath != "" {
		return configPath
	}
	return "defaults and environment variables"
}
