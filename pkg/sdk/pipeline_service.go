package sdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PipelineService handles pipeline operations
type PipelineService struct {
	client *Client
}

func pipelinesPath(parts ...string) string {
	path := apiV1BasePath + "/pipelines"
	for _, p := range parts {
		path += "/" + p
	}
	return path
}

func (s *PipelineService) Create(ctx context.Context, req *CreatePipelineRequest) (*Pipeline, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	var p Pipeline
	if _, err := s.client.doJSONRequest(ctx, http.MethodPost, pipelinesPath(), nil, jsonContent, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateOrUpdate stores req under its fully qualified name and reports
// whether the pipeline was created.
func (s *PipelineService) CreateOrUpdate(ctx context.Context, req *CreatePipelineRequest) (*Pipeline, bool, error) {
	if err := checkRequest(req); err != nil {
		return nil, false, err
	}
	var p Pipeline
	status, err := s.client.doJSONRequest(ctx, http.MethodPut, pipelinesPath(), nil, jsonContent, req, &p)
	if err != nil {
		return nil, false, err
	}
	return &p, status == http.StatusCreated, nil
}

func (s *PipelineService) Get(ctx context.Context, id uuid.UUID, fields ...string) (*Pipeline, error) {
	var p Pipeline
	if _, err := s.client.doJSONRequest(ctx, http.MethodGet, pipelinesPath(id.String()), fieldsQuery(fields), "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PipelineService) GetByName(ctx context.Context, fqn string, fields ...string) (*Pipeline, error) {
	var p Pipeline
	if _, err := s.client.doJSONRequest(ctx, http.MethodGet, pipelinesPath("name", fqn), fieldsQuery(fields), "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns one page. Pass the returned Paging.After or Paging.Before back
// in opts to move between pages.
func (s *PipelineService) List(ctx context.Context, opts *ListOptions) (*PipelineList, error) {
	query := url.Values{}
	if opts != nil {
		query = fieldsQuery(opts.Fields)
		if opts.Service != "" {
			query.Set("service", opts.Service)
		}
		if opts.Limit > 0 {
			query.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Before != "" {
			query.Set("before", opts.Before)
		}
		if opts.After != "" {
			query.Set("after", opts.After)
		}
	}

	var list PipelineList
	if _, err := s.client.doJSONRequest(ctx, http.MethodGet, pipelinesPath(), query, "", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListAll follows after cursors from the first page to the last.
func (s *PipelineService) ListAll(ctx context.Context, opts *ListOptions) ([]*Pipeline, error) {
	var page ListOptions
	if opts != nil {
		page = *opts
	}
	page.Before = ""

	var all []*Pipeline
	for {
		list, err := s.List(ctx, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, list.Data...)
		if list.Paging.After == "" {
			return all, nil
		}
		page.After = list.Paging.After
	}
}

func (s *PipelineService) Patch(ctx context.Context, id uuid.UUID, ops []PatchOperation) (*Pipeline, error) {
	if len(ops) == 0 {
		return nil, &APIError{Code: CodeInvalidRequest, Message: "at least one patch operation is required"}
	}
	var p Pipeline
	if _, err := s.client.doJSONRequest(ctx, http.MethodPatch, pipelinesPath(id.String()), nil, jsonPatch, ops, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PipelineService) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.doJSONRequest(ctx, http.MethodDelete, pipelinesPath(id.String()), nil, "", nil, nil)
	return err
}

func (s *PipelineService) ListVersions(ctx context.Context, id uuid.UUID) (*EntityHistory, error) {
	var history EntityHistory
	if _, err := s.client.doJSONRequest(ctx, http.MethodGet, pipelinesPath(id.String(), "versions"), nil, "", nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

func (s *PipelineService) GetVersion(ctx context.Context, id uuid.UUID, version string) (*Pipeline, error) {
	var p Pipeline
	if _, err := s.client.doJSONRequest(ctx, http.MethodGet, pipelinesPath(id.String(), "versions", version), nil, "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func checkRequest(req *CreatePipelineRequest) error {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return &APIError{Code: CodeInvalidRequest, Message: "pipeline name is required"}
	}
	if req.Service == nil {
		return &APIError{Code: CodeInvalidRequest, Message: "pipeline service is required"}
	}
	return nil
}

func fieldsQuery(fields []string) url.Values {
	query := url.Values{}
	if len(fields) > 0 {
		query.Set("fields", strings.Join(fields, ","))
	}
	return query
}
