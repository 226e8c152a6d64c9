package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/sumandas0/catalog/internal/api/handlers"
	"github.com/sumandas0/catalog/internal/api/middleware"
	"github.com/sumandas0/catalog/internal/core"
	"github.com/sumandas0/catalog/internal/health"
	"github.com/sumandas0/catalog/internal/integration"
	"github.com/sumandas0/catalog/internal/references"
	"github.com/sumandas0/catalog/internal/security"
)

type Config struct {
	CORS           cors.Options
	DefaultLimit   int
	MaxBodySize    int64
	RequestTimeout time.Duration
	MetricsPath    string
}

// Router sets up and configures the HTTP router
type Router struct {
	pipelineHandler *handlers.PipelineHandler
	resolver        *references.Resolver
	healthChecker   *health.HealthChecker
	obsManager      *integration.ObservabilityManager
	rateLimiter     *security.RateLimiter
	config          Config
}

func NewRouter(
	service *core.PipelineService,
	resolver *references.Resolver,
	healthChecker *health.HealthChecker,
	obsManager *integration.ObservabilityManager,
	rateLimiter *security.RateLimiter,
	config Config,
) *Router {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if rateLimiter == nil {
		rateLimiter = security.NewRateLimiter(security.RateLimitConfig{})
	}
	return &Router{
		pipelineHandler: handlers.NewPipelineHandler(service, config.DefaultLimit),
		resolver:        resolver,
		healthChecker:   healthChecker,
		obsManager:      obsManager,
		rateLimiter:     rateLimiter,
		config:          config,
	}
}

// SetupRoutes configures all routes and middleware
func (r *Router) SetupRoutes() http.Handler {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.Logger(r.obsManager.GetLogging().GetZerologLogger()))
	router.Use(middleware.ErrorHandler())
	router.Use(r.obsManager.GetTracing().TraceMiddleware())
	router.Use(r.obsManager.GetMetrics().MetricsMiddleware())
	router.Use(cors.Handler(r.config.CORS))
	router.Use(chiMiddleware.Timeout(r.config.RequestTimeout))

	router.Get("/health", r.healthCheck)
	router.Get("/ready", r.readinessCheck)
	router.Method(http.MethodGet, r.config.MetricsPath, r.obsManager.GetMetrics().Handler())
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Route("/api/v1", func(apiRouter chi.Router) {
		apiRouter.Use(middleware.RateLimit(r.rateLimiter))
		apiRouter.Use(middleware.MaxBodySize(r.config.MaxBodySize))
		apiRouter.Use(references.LoaderMiddleware(r.resolver))

		apiRouter.Route("/pipelines", func(pipelineRouter chi.Router) {
			pipelineRouter.Post("/", r.pipelineHandler.CreatePipeline)
			pipelineRouter.Put("/", r.pipelineHandler.CreateOrUpdatePipeline)
			pipelineRouter.Get("/", r.pipelineHandler.ListPipelines)
			pipelineRouter.Get("/name/{fqn}", r.pipelineHandler.GetPipelineByName)

			pipelineRouter.Route("/{id}", func(idRouter chi.Router) {
				idRouter.Get("/", r.pipelineHandler.GetPipeline)
				idRouter.With(chiMiddleware.AllowContentType(handlers.JSONPatchContent)).
					Patch("/", r.pipelineHandler.PatchPipeline)
				idRouter.Delete("/", r.pipelineHandler.DeletePipeline)
				idRouter.Get("/versions", r.pipelineHandler.ListPipelineVersions)
				idRouter.Get("/versions/{version}", r.pipelineHandler.GetPipelineVersion)
			})
		})
	})

	return router
}

// healthCheck returns the health status of the system
// @Summary Health check
// @Description Returns the health status of the service and its dependencies
// @Tags health
// @Produce json
// @Success 200 {object} health.SystemHealth
// @Failure 503 {object} health.SystemHealth
// @Router /health [get]
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	systemHealth := r.healthChecker.Check(req.Context())

	statusCode := http.StatusOK
	if systemHealth.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, systemHealth)
}

// readinessCheck returns the readiness status of the system
// @Summary Readiness check
// @Description Indicates if the service is ready to accept requests
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (r *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	systemHealth := r.healthChecker.Check(req.Context())

	response := map[string]interface{}{
		"status":    "ready",
		"uptime":    r.obsManager.Uptime().String(),
		"timestamp": time.Now().UTC(),
	}
	statusCode := http.StatusOK
	if systemHealth.Status == health.StatusUnhealthy {
		response["status"] = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, response)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
