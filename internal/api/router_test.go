package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/cors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/catalog/internal/api/handlers"
	"github.com/sumandas0/catalog/internal/api/middleware"
	"github.com/sumandas0/catalog/internal/cache"
	"github.com/sumandas0/catalog/internal/core"
	"github.com/sumandas0/catalog/internal/events"
	"github.com/sumandas0/catalog/internal/health"
	"github.com/sumandas0/catalog/internal/integration"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/references"
	"github.com/sumandas0/catalog/internal/security"
	"github.com/sumandas0/catalog/internal/store/memory"
	"github.com/sumandas0/catalog/pkg/utils"
	"go.opentelemetry.io/otel/trace/noop"
)

type testServer struct {
	handler http.Handler
	store   *memory.Store
}

func newTestServer(t *testing.T, limiter *security.RateLimiter, config Config) *testServer {
	t.Helper()
	ctx := context.Background()

	st := memory.NewStore()
	_, err := references.LoadSeed(ctx, st, references.Seed{
		PipelineServices: []string{"airflow", "glue"},
		Users:            []string{"alice"},
		Teams:            []string{"data"},
		Tags:             []string{"PII.Sensitive"},
	})
	require.NoError(t, err)

	resolver := references.NewResolver(st, cache.NewManager(st, time.Minute), references.Config{
		BaseURL: "http://localhost:8585",
	}, nil)
	obs := integration.NewNopObservabilityManager(noop.NewTracerProvider())
	svc := core.NewPipelineService(
		st,
		resolver,
		security.NewInputSanitizer(security.SanitizerConfig{Enabled: true, MaxStringLength: 1000}),
		events.NoOpPublisher{},
		obs,
		core.ServiceConfig{SessionWindow: 10 * time.Minute},
	)

	checker := health.NewHealthChecker(time.Second)
	checker.RegisterComponent("store", health.StoreHealthCheck("store", st))

	if config.CORS.AllowedOrigins == nil {
		config.CORS = cors.Options{AllowedOrigins: []string{"*"}}
	}
	router := NewRouter(svc, resolver, checker, obs, limiter, config)
	return &testServer{handler: router.SetupRoutes(), store: st}
}

func (s *testServer) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) create(t *testing.T, name string) *models.Pipeline {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/pipelines", pipelineBody(name, "Loads orders"), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Pipeline](t, rec)
}

func pipelineBody(name, description string) string {
	airflow := references.SeedID(models.EntityTypePipelineService, "airflow")
	alice := references.SeedID(models.EntityTypeUser, "alice")
	return `{
		"name": "` + name + `",
		"description": "` + description + `",
		"tasks": [{"name": "extract"}, {"name": "load", "downstreamTasks": ["extract"]}],
		"owner": {"id": "` + alice.String() + `", "type": "user"},
		"service": {"id": "` + airflow.String() + `", "type": "pipelineService"}
	}`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return &v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[middleware.ErrorResponse](t, rec).Error.Code
}

func TestRouter_PipelineLifecycle(t *testing.T) {
	s := newTestServer(t, nil, Config{})
	principal := http.Header{handlers.PrincipalHeader: {"alice"}}

	created := s.create(t, "etl")
	assert.Equal(t, "airflow.etl", created.FullyQualifiedName)
	assert.Equal(t, "0.1", created.Version.String())
	assert.Equal(t, handlers.AnonymousUser, created.UpdatedBy)
	assert.Equal(t, "http://localhost:8585/api/v1/pipelines/"+created.ID.String(), created.Href)

	path := "/api/v1/pipelines/" + created.ID.String()

	rec := s.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Pipeline](t, rec)
	assert.Equal(t, created.ID, got.ID)
	assert.Nil(t, got.Owner, "owner is outside the default field mask")
	assert.NotNil(t, got.Service)

	rec = s.do(t, http.MethodGet, path+"?fields=owner,tasks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[models.Pipeline](t, rec)
	require.NotNil(t, got.Owner)
	assert.Equal(t, "alice", got.Owner.Name)
	assert.Len(t, got.Tasks, 2)

	req := httptest.NewRequest(http.MethodPatch, path,
		strings.NewReader(`[{"op":"replace","path":"/description","value":"Nightly load"}]`))
	req.Header.Set("Content-Type", handlers.JSONPatchContent)
	req.Header.Set(handlers.PrincipalHeader, "alice")
	patchRec := httptest.NewRecorder()
	s.handler.ServeHTTP(patchRec, req)
	require.Equal(t, http.StatusOK, patchRec.Code, patchRec.Body.String())
	patched := decode[models.Pipeline](t, patchRec)
	assert.Equal(t, "0.2", patched.Version.String())
	assert.Equal(t, "Nightly load", patched.Description)
	assert.Equal(t, "alice", patched.UpdatedBy)

	rec = s.do(t, http.MethodGet, "/api/v1/pipelines/name/airflow.etl", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.2", decode[models.Pipeline](t, rec).Version.String())

	rec = s.do(t, http.MethodGet, path+"/versions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[models.EntityHistory](t, rec)
	require.Len(t, history.Versions, 2)
	assert.Equal(t, "0.2", history.Versions[0].Version.String())
	assert.Equal(t, "0.1", history.Versions[1].Version.String())

	rec = s.do(t, http.MethodGet, path+"/versions/0.1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Loads orders", decode[models.Pipeline](t, rec).Description)

	rec = s.do(t, http.MethodDelete, path, "", principal)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, utils.CodeNotFound, errorCode(t, rec))
}

func TestRouter_CreateOrUpdate(t *testing.T) {
	s := newTestServer(t, nil, Config{})

	rec := s.do(t, http.MethodPut, "/api/v1/pipelines", pipelineBody("etl", "Loads orders"), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[models.Pipeline](t, rec)

	rec = s.do(t, http.MethodPut, "/api/v1/pipelines", pipelineBody("etl", "Loads orders"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.1", decode[models.Pipeline](t, rec).Version.String())

	rec = s.do(t, http.MethodPut, "/api/v1/pipelines", pipelineBody("etl", "Loads invoices"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[models.Pipeline](t, rec)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "0.2", second.Version.String())
}

func TestRouter_List(t *testing.T) {
	s := newTestServer(t, nil, Config{DefaultLimit: 2})
	for _, name := range []string{"c", "a", "b"} {
		s.create(t, name)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/pipelines", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.PipelineList](t, rec)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "airflow.a", page.Data[0].FullyQualifiedName)
	assert.Equal(t, "airflow.b", page.Data[1].FullyQualifiedName)
	assert.Equal(t, 3, page.Paging.Total)
	assert.Empty(t, page.Paging.Before)
	require.NotEmpty(t, page.Paging.After)

	rec = s.do(t, http.MethodGet, "/api/v1/pipelines?after="+page.Paging.After, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode[models.PipelineList](t, rec)
	require.Len(t, next.Data, 1)
	assert.Equal(t, "airflow.c", next.Data[0].FullyQualifiedName)
	assert.Empty(t, next.Paging.After)

	rec = s.do(t, http.MethodGet, "/api/v1/pipelines?service=glue", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.PipelineList](t, rec).Data)
}

func TestRouter_BadRequests(t *testing.T) {
	s := newTestServer(t, nil, Config{})
	created := s.create(t, "etl")
	path := "/api/v1/pipelines/" + created.ID.String()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed id", http.MethodGet, "/api/v1/pipelines/not-a-uuid", "", http.StatusBadRequest, utils.CodeInvalidInput},
		{"unknown field", http.MethodGet, path + "?fields=followers", "", http.StatusBadRequest, utils.CodeInvalidInput},
		{"non numeric limit", http.MethodGet, "/api/v1/pipelines?limit=ten", "", http.StatusBadRequest, utils.CodeInvalidLimit},
		{"zero limit", http.MethodGet, "/api/v1/pipelines?limit=0", "", http.StatusBadRequest, utils.CodeInvalidLimit},
		{"both cursors", http.MethodGet, "/api/v1/pipelines?before=x&after=y", "", http.StatusBadRequest, utils.CodeInvalidCursorCombination},
		{"both cursors empty", http.MethodGet, "/api/v1/pipelines?limit=1&before=&after=", "", http.StatusBadRequest, utils.CodeInvalidCursorCombination},
		{"malformed body", http.MethodPost, "/api/v1/pipelines", "{", http.StatusBadRequest, utils.CodeInvalidInput},
		{"missing service", http.MethodPost, "/api/v1/pipelines", `{"name":"x"}`, http.StatusBadRequest, utils.CodeInvalidInput},
		{"duplicate", http.MethodPost, "/api/v1/pipelines", pipelineBody("etl", "again"), http.StatusConflict, utils.CodeAlreadyExists},
		{"unknown name", http.MethodGet, "/api/v1/pipelines/name/airflow.missing", "", http.StatusNotFound, utils.CodeNotFound},
		{"bad version", http.MethodGet, path + "/versions/latest", "", http.StatusBadRequest, utils.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestRouter_PatchRequiresJSONPatchContentType(t *testing.T) {
	s := newTestServer(t, nil, Config{})
	created := s.create(t, "etl")

	rec := s.do(t, http.MethodPatch, "/api/v1/pipelines/"+created.ID.String(),
		`[{"op":"replace","path":"/description","value":"x"}]`, nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	limiter := security.NewRateLimiter(security.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001,
		BurstSize:         1,
	})
	t.Cleanup(limiter.Stop)
	s := newTestServer(t, limiter, Config{})

	rec := s.do(t, http.MethodGet, "/api/v1/pipelines", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/pipelines", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, middleware.CodeRateLimited, errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is not rate limited")
}

func TestRouter_MaxBodySize(t *testing.T) {
	s := newTestServer(t, nil, Config{MaxBodySize: 64})

	rec := s.do(t, http.MethodPost, "/api/v1/pipelines", pipelineBody("etl", strings.Repeat("x", 200)), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body too large", decode[middleware.ErrorResponse](t, rec).Error.Message)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, nil, Config{})

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, health.StatusHealthy, decode[health.SystemHealth](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", (*decode[map[string]any](t, rec))["status"])
}
