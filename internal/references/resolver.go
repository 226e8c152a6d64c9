package references

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sumandas0/catalog/internal/cache"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/observability"
	"github.com/sumandas0/catalog/internal/store"
	"github.com/sumandas0/catalog/pkg/utils"
)

const (
	TagSourceClassification = "Classification"
	TagLabelManual          = "Manual"
	TagStateConfirmed       = "Confirmed"
)

var collections = map[string]string{
	models.EntityTypePipeline:        "pipelines",
	models.EntityTypePipelineService: "services/pipelineServices",
	models.EntityTypeUser:            "users",
	models.EntityTypeTeam:            "teams",
	models.EntityTypeTag:             "tags",
}

type Config struct {
	BaseURL   string
	BatchWait time.Duration
}

// Resolver turns weak references into fully populated ones. Lookups go
// through the TTL cache; list pages batch their lookups through a Loader.
type Resolver struct {
	directory store.Directory
	cache     *cache.Manager
	config    Config
	metrics   *observability.MetricsManager
}

func NewResolver(directory store.Directory, cacheManager *cache.Manager, config Config, metrics *observability.MetricsManager) *Resolver {
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.BatchWait <= 0 {
		config.BatchWait = 2 * time.Millisecond
	}
	return &Resolver{
		directory: directory,
		cache:     cacheManager,
		config:    config,
		metrics:   metrics,
	}
}

// Href builds the API location of an entity.
func (r *Resolver) Href(entityType string, id uuid.UUID) string {
	collection, ok := collections[entityType]
	if !ok {
		collection = entityType + "s"
	}
	return r.config.BaseURL + "/api/v1/" + collection + "/" + id.String()
}

// Resolve checks that ref names an existing entity of one of the allowed
// types and returns a copy with name, display name and href filled in.
func (r *Resolver) Resolve(ctx context.Context, ref *models.EntityReference, allowed ...string) (*models.EntityReference, error) {
	if ref == nil {
		return nil, utils.NewAppError(utils.CodeInvalidInput, "reference is required", utils.ErrInvalidInput)
	}
	if len(allowed) > 0 && !slices.Contains(allowed, ref.Type) {
		return nil, utils.NewAppError(utils.CodeInvalidReferenceType, "invalid reference type", utils.ErrInvalidReferenceType).
			WithDetail("type", ref.Type).
			WithDetail("allowed", allowed)
	}

	entry, err := r.cache.GetEntry(ctx, ref.ID)
	if err != nil {
		if utils.IsNotFound(err) {
			return nil, referenceNotFound(ref.Type, ref.ID)
		}
		return nil, err
	}
	if entry.Type != ref.Type {
		return nil, referenceNotFound(ref.Type, ref.ID)
	}

	resolved := entry.Reference()
	resolved.Href = r.Href(entry.Type, entry.ID)
	return resolved, nil
}

// ResolveByName looks up an entity by type and name.
func (r *Resolver) ResolveByName(ctx context.Context, entityType, name string) (*models.EntityReference, error) {
	entry, err := r.cache.GetEntryByName(ctx, entityType, name)
	if err != nil {
		if utils.IsNotFound(err) {
			return nil, utils.NewAppError(utils.CodeReferenceNotFound, entityType+" not found", utils.ErrReferenceNotFound).
				WithDetail("type", entityType).
				WithDetail("name", name)
		}
		return nil, err
	}
	resolved := entry.Reference()
	resolved.Href = r.Href(entry.Type, entry.ID)
	return resolved, nil
}

// ResolveMany resolves ids in a single batched directory round trip. Ids
// that no longer exist are absent from the result.
func (r *Resolver) ResolveMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.EntityReference, error) {
	return r.NewLoader().LoadMany(ctx, ids)
}

// ResolveTags validates every tag against the directory, drops duplicates
// keeping the first occurrence and fills in label defaults.
func (r *Resolver) ResolveTags(ctx context.Context, tags []models.TagLabel) ([]models.TagLabel, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(tags))
	resolved := make([]models.TagLabel, 0, len(tags))
	for _, tag := range tags {
		if _, dup := seen[tag.TagFQN]; dup {
			continue
		}
		seen[tag.TagFQN] = struct{}{}

		if _, err := r.cache.GetEntryByName(ctx, models.EntityTypeTag, tag.TagFQN); err != nil {
			if utils.IsNotFound(err) {
				return nil, utils.NewAppError(utils.CodeReferenceNotFound, "tag not found", utils.ErrReferenceNotFound).
					WithDetail("tagFQN", tag.TagFQN)
			}
			return nil, err
		}

		if tag.Source == "" {
			tag.Source = TagSourceClassification
		}
		if tag.LabelType == "" {
			tag.LabelType = TagLabelManual
		}
		if tag.State == "" {
			tag.State = TagStateConfirmed
		}
		resolved = append(resolved, tag)
	}
	return resolved, nil
}

func referenceNotFound(entityType string, id uuid.UUID) error {
	return utils.NewAppError(utils.CodeReferenceNotFound, entityType+" not found", utils.ErrReferenceNotFound).
		WithDetail("type", entityType).
		WithDetail("id", id.String())
}
