package resilience

import (
	"context"

	"github.com/google/uuid"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/store"
)

const StoreBreakerName = "pipeline-store"

// Store decorates a PipelineStore with retries and a circuit breaker. Reads
// retry transient failures. Writes retry only failures that cannot have
// committed. Every call passes through the same breaker.
type Store struct {
	next    store.PipelineStore
	retry   *RetryManager
	breaker *CircuitBreakerManager
}

func NewStore(next store.PipelineStore, retry *RetryManager, breaker *CircuitBreakerManager) *Store {
	return &Store{next: next, retry: retry, breaker: breaker}
}

func (s *Store) do(ctx context.Context, fn func(context.Context) error) error {
	return s.guard(ctx, fn, StoreRetryableErrors)
}

func (s *Store) write(ctx context.Context, fn func(context.Context) error) error {
	return s.guard(ctx, fn, StoreWriteRetryableErrors)
}

func (s *Store) guard(ctx context.Context, fn func(context.Context) error, retryable IsRetryableError) error {
	return s.retry.Execute(ctx, func() error {
		return s.breaker.ExecuteWithContext(ctx, StoreBreakerName, fn)
	}, retryable)
}

func (s *Store) CreatePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	return s.write(ctx, func(ctx context.Context) error {
		return s.next.CreatePipeline(ctx, pipeline)
	})
}

func (s *Store) GetPipeline(ctx context.Context, id uuid.UUID) (*models.Pipeline, error) {
	var result *models.Pipeline
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.next.GetPipeline(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) GetPipelineByName(ctx context.Context, fqn string) (*models.Pipeline, error) {
	var result *models.Pipeline
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.next.GetPipelineByName(ctx, fqn)
		return err
	})
	return result, err
}

func (s *Store) ListPipelines(ctx context.Context, filter store.PipelineFilter) ([]*models.Pipeline, error) {
	var result []*models.Pipeline
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.next.ListPipelines(ctx, filter)
		return err
	})
	return result, err
}

func (s *Store) UpdatePipeline(ctx context.Context, expected, next *models.Pipeline, archive bool) error {
	return s.write(ctx, func(ctx context.Context) error {
		return s.next.UpdatePipeline(ctx, expected, next, archive)
	})
}

func (s *Store) DeletePipeline(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(ctx context.Context) error {
		return s.next.DeletePipeline(ctx, id)
	})
}

func (s *Store) ListPipelineVersions(ctx context.Context, id uuid.UUID) ([]*models.Pipeline, error) {
	var result []*models.Pipeline
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.next.ListPipelineVersions(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) GetPipelineVersion(ctx context.Context, id uuid.UUID, version models.EntityVersion) (*models.Pipeline, error) {
	var result *models.Pipeline
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.next.GetPipelineVersion(ctx, id, version)
		return err
	})
	return result, err
}

// Ping bypasses retries so health checks see the backend as it is.
func (s *Store) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *Store) Close() error {
	return s.next.Close()
}

var _ store.PipelineStore = (*Store)(nil)
