package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/sumandas0/catalog/internal/models"
)

// PipelineFilter narrows a listing. Service matches the service name; empty
// means all pipelines.
type PipelineFilter struct {
	Service string
}

// PipelineStore persists pipelines and their version history. Implementations
// must return records ordered by fully qualified name from ListPipelines and
// must never hand out pointers they keep.
type PipelineStore interface {
	CreatePipeline(ctx context.Context, pipeline *models.Pipeline) error
	GetPipeline(ctx context.Context, id uuid.UUID) (*models.Pipeline, error)
	GetPipelineByName(ctx context.Context, fqn string) (*models.Pipeline, error)
	ListPipelines(ctx context.Context, filter PipelineFilter) ([]*models.Pipeline, error)

	// UpdatePipeline replaces expected with next if the stored version and
	// updatedAt still equal expected's. When archive is set the expected state
	// is appended to the version history in the same write.
	UpdatePipeline(ctx context.Context, expected, next *models.Pipeline, archive bool) error

	// DeletePipeline removes the pipeline and its history. It fails with a
	// conflict while other entities still depend on it.
	DeletePipeline(ctx context.Context, id uuid.UUID) error

	ListPipelineVersions(ctx context.Context, id uuid.UUID) ([]*models.Pipeline, error)
	GetPipelineVersion(ctx context.Context, id uuid.UUID, version models.EntityVersion) (*models.Pipeline, error)

	Ping(ctx context.Context) error
	Close() error
}

// Directory resolves the entities pipelines refer to: services, users, teams
// and tags.
type Directory interface {
	GetEntry(ctx context.Context, id uuid.UUID) (*models.DirectoryEntry, error)
	GetEntries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.DirectoryEntry, error)
	GetEntryByName(ctx context.Context, entityType, name string) (*models.DirectoryEntry, error)
	PutEntry(ctx context.Context, entry *models.DirectoryEntry) error
}
