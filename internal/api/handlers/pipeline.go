package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sumandas0/catalog/internal/api/middleware"
	"github.com/sumandas0/catalog/internal/core"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/paging"
)

const (
	// PrincipalHeader names the caller recorded as updatedBy. Authentication
	// happens in front of this service.
	PrincipalHeader  = "X-Catalog-Principal"
	AnonymousUser    = "anonymous"
	JSONPatchContent = "application/json-patch+json"
)

type PipelineHandler struct {
	service      *core.PipelineService
	defaultLimit int
}

func NewPipelineHandler(service *core.PipelineService, defaultLimit int) *PipelineHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &PipelineHandler{
		service:      service,
		defaultLimit: defaultLimit,
	}
}

// CreatePipeline godoc
// @Summary Create a pipeline
// @Description Create a pipeline under a pipeline service. The first version is 0.1.
// @Tags pipelines
// @Accept json
// @Produce json
// @Param X-Catalog-Principal header string false "Acting user"
// @Param pipeline body models.CreatePipeline true "Pipeline data"
// @Success 201 {object} models.Pipeline
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /api/v1/pipelines [post]
func (h *PipelineHandler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePipeline
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), &req, principal(r))
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// CreateOrUpdatePipeline godoc
// @Summary Create or update a pipeline
// @Description Update the pipeline with the request's fully qualified name, creating it when absent.
// @Tags pipelines
// @Accept json
// @Produce json
// @Param X-Catalog-Principal header string false "Acting user"
// @Param pipeline body models.CreatePipeline true "Pipeline data"
// @Success 200 {object} models.Pipeline
// @Success 201 {object} models.Pipeline
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /api/v1/pipelines [put]
func (h *PipelineHandler) CreateOrUpdatePipeline(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePipeline
	if !decodeBody(w, r, &req) {
		return
	}

	p, created, err := h.service.CreateOrUpdate(r.Context(), &req, principal(r))
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, p)
}

// ListPipelines godoc
// @Summary List pipelines
// @Description List pipelines ordered by fully qualified name, paged with opaque cursors.
// @Tags pipelines
// @Produce json
// @Param service query string false "Filter by pipeline service name"
// @Param fields query string false "Comma separated relations: owner,service,tasks,tags"
// @Param limit query int false "Page size" minimum(1) maximum(1000000)
// @Param before query string false "Cursor for the previous page"
// @Param after query string false "Cursor for the next page"
// @Success 200 {object} models.PipelineList
// @Failure 400 {object} middleware.ErrorResponse
// @Router /api/v1/pipelines [get]
func (h *PipelineHandler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	fields, err := core.ParseFields(query.Get("fields"))
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}

	page, err := paging.ParseQuery(query, h.defaultLimit)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}

	list, err := h.service.List(r.Context(), core.ListFilter{Service: query.Get("service")}, fields, page)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetPipeline godoc
// @Summary Get a pipeline by id
// @Tags pipelines
// @Produce json
// @Param id path string true "Pipeline ID" format(uuid)
// @Param fields query string false "Comma separated relations: owner,service,tasks,tags"
// @Success 200 {object} models.Pipeline
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/pipelines/{id} [get]
func (h *PipelineHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pipelineID(w, r)
	if !ok {
		return
	}
	fields, err := core.ParseFields(r.URL.Query().Get("fields"))
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}

	p, err := h.service.Get(r.Context(), id, fields)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetPipelineByName godoc
// @Summary Get a pipeline by fully qualified name
// @Tags pipelines
// @Produce json
// @Param fqn path string true "Fully qualified name, e.g. airflow.etl"
// @Param fields query string false "Comma separated relations: owner,service,tasks,tags"
// @Success 200 {object} models.Pipeline
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/pipelines/name/{fqn} [get]
func (h *PipelineHandler) GetPipelineByName(w http.ResponseWriter, r *http.Request) {
	fqn := chi.URLParam(r, "fqn")
	if unescaped, err := url.PathUnescape(fqn); err == nil {
		fqn = unescaped
	}
	fields, err := core.ParseFields(r.URL.Query().Get("fields"))
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}

	p, err := h.service.GetByName(r.Context(), fqn, fields)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PatchPipeline godoc
// @Summary Patch a pipeline
// @Description Apply an RFC 6902 JSON patch. Operations on read-only fields are ignored.
// @Tags pipelines
// @Accept application/json-patch+json
// @Produce json
// @Param X-Catalog-Principal header string false "Acting user"
// @Param id path string true "Pipeline ID" format(uuid)
// @Param patch body []object true "JSON patch operations"
// @Success 200 {object} models.Pipeline
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /api/v1/pipelines/{id} [patch]
func (h *PipelineHandler) PatchPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pipelineID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		sendBodyError(w, r, err)
		return
	}

	p, err := h.service.Patch(r.Context(), id, body, principal(r))
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePipeline godoc
// @Summary Delete a pipeline
// @Description Delete a pipeline and its version history. Fails while other entities depend on it.
// @Tags pipelines
// @Param X-Catalog-Principal header string false "Acting user"
// @Param id path string true "Pipeline ID" format(uuid)
// @Success 204 "No Content"
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /api/v1/pipelines/{id} [delete]
func (h *PipelineHandler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pipelineID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, principal(r)); err != nil {
		middleware.SendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPipelineVersions godoc
// @Summary List pipeline versions
// @Tags pipelines
// @Produce json
// @Param id path string true "Pipeline ID" format(uuid)
// @Success 200 {object} models.EntityHistory
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/pipelines/{id}/versions [get]
func (h *PipelineHandler) ListPipelineVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := pipelineID(w, r)
	if !ok {
		return
	}

	history, err := h.service.ListVersions(r.Context(), id)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// GetPipelineVersion godoc
// @Summary Get one pipeline version
// @Tags pipelines
// @Produce json
// @Param id path string true "Pipeline ID" format(uuid)
// @Param version path string true "Version, e.g. 0.2"
// @Success 200 {object} models.Pipeline
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/pipelines/{id}/versions/{version} [get]
func (h *PipelineHandler) GetPipelineVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pipelineID(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetVersion(r.Context(), id, chi.URLParam(r, "version"))
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func principal(r *http.Request) string {
	if p := r.Header.Get(PrincipalHeader); p != "" {
		return p
	}
	return AnonymousUser
}

func pipelineID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		middleware.SendInvalidRequest(w, r, "invalid pipeline id", map[string]any{"id": raw})
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendBodyError(w, r, err)
		return false
	}
	return true
}

func sendBodyError(w http.ResponseWriter, r *http.Request, err error) {
	if middleware.IsBodyTooLarge(err) {
		middleware.SendInvalidRequest(w, r, "request body too large", nil)
		return
	}
	middleware.SendInvalidRequest(w, r, "invalid request body", map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
