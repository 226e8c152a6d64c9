package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/store"
	"github.com/sumandas0/catalog/pkg/utils"
)

// Store keeps pipelines, their history and the reference directory in process
// memory. Every value crossing the API boundary is cloned.
type Store struct {
	mu         sync.RWMutex
	pipelines  map[uuid.UUID]*models.Pipeline
	byName     map[string]uuid.UUID
	history    map[uuid.UUID][]*models.Pipeline
	dependents map[uuid.UUID]map[uuid.UUID]string
	entries    map[uuid.UUID]*models.DirectoryEntry
}

func NewStore() *Store {
	return &Store{
		pipelines:  make(map[uuid.UUID]*models.Pipeline),
		byName:     make(map[string]uuid.UUID),
		history:    make(map[uuid.UUID][]*models.Pipeline),
		dependents: make(map[uuid.UUID]map[uuid.UUID]string),
		entries:    make(map[uuid.UUID]*models.DirectoryEntry),
	}
}

func notFound(key string, value any) error {
	return utils.NewAppError(utils.CodeNotFound, "pipeline not found", utils.ErrNotFound).
		WithDetail(key, value)
}

func (s *Store) CreatePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[pipeline.FullyQualifiedName]; exists {
		return utils.NewAppError(utils.CodeAlreadyExists, "pipeline already exists", utils.ErrAlreadyExists).
			WithDetail("fqn", pipeline.FullyQualifiedName)
	}
	if _, exists := s.pipelines[pipeline.ID]; exists {
		return utils.NewAppError(utils.CodeAlreadyExists, "pipeline already exists", utils.ErrAlreadyExists).
			WithDetail("id", pipeline.ID.String())
	}

	s.pipelines[pipeline.ID] = pipeline.Clone()
	s.byName[pipeline.FullyQualifiedName] = pipeline.ID
	return nil
}

func (s *Store) GetPipeline(ctx context.Context, id uuid.UUID) (*models.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pipelines[id]
	if !ok {
		return nil, notFound("id", id.String())
	}
	return p.Clone(), nil
}

func (s *Store) GetPipelineByName(ctx context.Context, fqn string) (*models.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[fqn]
	if !ok {
		return nil, notFound("fqn", fqn)
	}
	return s.pipelines[id].Clone(), nil
}

func (s *Store) ListPipelines(ctx context.Context, filter store.PipelineFilter) ([]*models.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		if filter.Service != "" && (p.Service == nil || p.Service.Name != filter.Service) {
			continue
		}
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FullyQualifiedName < result[j].FullyQualifiedName
	})
	return result, nil
}

func (s *Store) UpdatePipeline(ctx context.Context, expected, next *models.Pipeline, archive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.pipelines[expected.ID]
	if !ok {
		return notFound("id", expected.ID.String())
	}
	if current.Version != expected.Version || !current.UpdatedAt.Equal(expected.UpdatedAt) {
		return utils.NewAppError(utils.CodeConcurrentModification, "pipeline was modified by another request", utils.ErrConcurrentModification).
			WithDetail("id", expected.ID.String()).
			WithDetail("expected_version", expected.Version.String()).
			WithDetail("actual_version", current.Version.String())
	}
	if next.FullyQualifiedName != current.FullyQualifiedName {
		if _, taken := s.byName[next.FullyQualifiedName]; taken {
			return utils.NewAppError(utils.CodeAlreadyExists, "pipeline already exists", utils.ErrAlreadyExists).
				WithDetail("fqn", next.FullyQualifiedName)
		}
		delete(s.byName, current.FullyQualifiedName)
		s.byName[next.FullyQualifiedName] = next.ID
	}

	if archive {
		s.history[expected.ID] = append(s.history[expected.ID], current)
	}
	s.pipelines[expected.ID] = next.Clone()
	return nil
}

func (s *Store) DeletePipeline(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pipelines[id]
	if !ok {
		return notFound("id", id.String())
	}
	if deps := s.dependents[id]; len(deps) > 0 {
		return utils.NewAppError(utils.CodeConflict, "pipeline has dependent entities", utils.ErrConflict).
			WithDetail("id", id.String()).
			WithDetail("dependents", len(deps))
	}

	delete(s.pipelines, id)
	delete(s.byName, p.FullyQualifiedName)
	delete(s.history, id)
	return nil
}

func (s *Store) ListPipelineVersions(ctx context.Context, id uuid.UUID) ([]*models.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	current, ok := s.pipelines[id]
	if !ok {
		return nil, notFound("id", id.String())
	}
	archived := s.history[id]
	versions := make([]*models.Pipeline, 0, len(archived)+1)
	versions = append(versions, current.Clone())
	for i := len(archived) - 1; i >= 0; i-- {
		versions = append(versions, archived[i].Clone())
	}
	return versions, nil
}

func (s *Store) GetPipelineVersion(ctx context.Context, id uuid.UUID, version models.EntityVersion) (*models.Pipeline, error) {
	versions, err := s.ListPipelineVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.Version == version {
			return v, nil
		}
	}
	return nil, utils.NewAppError(utils.CodeNotFound, "pipeline version not found", utils.ErrNotFound).
		WithDetail("id", id.String()).
		WithDetail("version", version.String())
}

// AddDependent records that dependent refers to the pipeline, which blocks its
// deletion until RemoveDependent is called.
func (s *Store) AddDependent(ctx context.Context, id uuid.UUID, dependent models.EntityReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[id]; !ok {
		return notFound("id", id.String())
	}
	if s.dependents[id] == nil {
		s.dependents[id] = make(map[uuid.UUID]string)
	}
	s.dependents[id][dependent.ID] = dependent.Type
	return nil
}

func (s *Store) RemoveDependent(ctx context.Context, id, dependentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.dependents[id], dependentID)
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

var _ store.PipelineStore = (*Store)(nil)
