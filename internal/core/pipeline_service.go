package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sumandas0/catalog/internal/diff"
	"github.com/sumandas0/catalog/internal/events"
	"github.com/sumandas0/catalog/internal/integration"
	"github.com/sumandas0/catalog/internal/lock"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/observability"
	"github.com/sumandas0/catalog/internal/paging"
	"github.com/sumandas0/catalog/internal/references"
	"github.com/sumandas0/catalog/internal/security"
	"github.com/sumandas0/catalog/internal/store"
	"github.com/sumandas0/catalog/internal/versioning"
	"github.com/sumandas0/catalog/pkg/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ServiceConfig struct {
	StoreTimeout  time.Duration
	SessionWindow time.Duration
	LockTimeout   time.Duration
}

// ListFilter narrows List to the pipelines of one service, by service name.
type ListFilter struct {
	Service string
}

// PipelineService is the entry point for every pipeline operation. Writes are
// read, diff, classify, compare-and-swap; reads apply the field mask.
type PipelineService struct {
	store      store.PipelineStore
	resolver   *references.Resolver
	detector   *diff.Detector
	versions   *versioning.Manager
	validator  *Validator
	sanitizer  *security.InputSanitizer
	publisher  events.Publisher
	locks      *lock.Manager
	obsManager *integration.ObservabilityManager
	logging    *observability.Logger
	tracing    *observability.TracingManager
	metrics    *observability.MetricsManager
	config     ServiceConfig
	now        func() time.Time
}

func NewPipelineService(
	pipelineStore store.PipelineStore,
	resolver *references.Resolver,
	sanitizer *security.InputSanitizer,
	publisher events.Publisher,
	obsManager *integration.ObservabilityManager,
	config ServiceConfig,
) *PipelineService {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 10 * time.Second
	}
	if sanitizer == nil {
		sanitizer = security.NewInputSanitizer(security.SanitizerConfig{})
	}
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}

	detector := diff.NewDetector(diff.PipelineSchema)
	return &PipelineService{
		store:      pipelineStore,
		resolver:   resolver,
		detector:   detector,
		versions:   versioning.NewManager(detector, config.SessionWindow),
		validator:  NewValidator(),
		sanitizer:  sanitizer,
		publisher:  publisher,
		locks:      lock.NewManager(config.LockTimeout),
		obsManager: obsManager,
		logging:    obsManager.GetLogging(),
		tracing:    obsManager.GetTracing(),
		metrics:    obsManager.GetMetrics(),
		config:     config,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *PipelineService) Create(ctx context.Context, req *models.CreatePipeline, principal string) (p *models.Pipeline, err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "create", requestName(req))
	defer s.finish(span, "create", time.Now(), &err)

	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, err
	}
	return s.create(ctx, req, principal)
}

func (s *PipelineService) create(ctx context.Context, req *models.CreatePipeline, principal string) (*models.Pipeline, error) {
	resolved, err := s.resolveRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	p := &models.Pipeline{
		ID:               uuid.New(),
		Name:             resolved.Name,
		DisplayName:      resolved.DisplayName,
		Description:      resolved.Description,
		PipelineURL:      resolved.PipelineURL,
		Concurrency:      resolved.Concurrency,
		PipelineLocation: resolved.PipelineLocation,
		StartDate:        resolved.StartDate,
		Tasks:            resolved.Tasks,
		Owner:            resolved.Owner,
		Service:          resolved.Service,
		Tags:             resolved.Tags,
		Version:          models.InitialVersion,
		UpdatedAt:        s.now(),
		UpdatedBy:        principal,
	}
	p.FullyQualifiedName = models.BuildFQN(p.Service.Name, p.Name)
	if err := s.sanitize(p); err != nil {
		return nil, err
	}

	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.CreatePipeline(ctx, p)
	}); err != nil {
		return nil, err
	}

	s.logging.WithContext(ctx).Info().
		Str("pipeline_id", p.ID.String()).
		Str("fqn", p.FullyQualifiedName).
		Str("version", p.Version.String()).
		Msg("pipeline created")

	s.publish(ctx, events.EventEntityCreated, p, nil)
	return s.present(ctx, p, AllFields()), nil
}

// CreateOrUpdate updates the pipeline named by the request's service and name
// or creates it when absent. created reports which happened.
func (s *PipelineService) CreateOrUpdate(ctx context.Context, req *models.CreatePipeline, principal string) (p *models.Pipeline, created bool, err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "create_or_update", requestName(req))
	defer s.finish(span, "create_or_update", time.Now(), &err)

	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, false, err
	}

	service, err := s.resolver.Resolve(ctx, req.Service, models.EntityTypePipelineService)
	if err != nil {
		return nil, false, err
	}
	fqn := models.BuildFQN(service.Name, req.Name)

	// Concurrent puts of the same name in this process must not both take the
	// create branch.
	release, err := s.locks.Acquire(ctx, models.EntityTypePipeline+":"+fqn)
	if err != nil {
		return nil, false, utils.NewAppError(utils.CodeTimeout, "pipeline is busy", err).
			WithDetail("fqn", fqn)
	}
	defer release()

	current, err := s.getByName(ctx, fqn)
	switch {
	case utils.IsNotFound(err):
		p, err = s.create(ctx, req, principal)
		return p, err == nil, err
	case err != nil:
		return nil, false, err
	}

	p, err = s.update(ctx, current, req, principal)
	return p, false, err
}

// Update overlays the fields set in req onto the stored pipeline. Fields left
// empty in req keep their stored values.
func (s *PipelineService) Update(ctx context.Context, id uuid.UUID, req *models.CreatePipeline, principal string) (p *models.Pipeline, err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "update", id.String())
	defer s.finish(span, "update", time.Now(), &err)

	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, err
	}
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, current, req, principal)
}

// UpdateByName is Update addressed by fully qualified name. Unlike
// CreateOrUpdate it never creates.
func (s *PipelineService) UpdateByName(ctx context.Context, fqn string, req *models.CreatePipeline, principal string) (p *models.Pipeline, err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "update", fqn)
	defer s.finish(span, "update", time.Now(), &err)

	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, err
	}
	current, err := s.getByName(ctx, fqn)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, current, req, principal)
}

func (s *PipelineService) update(ctx context.Context, current *models.Pipeline, req *models.CreatePipeline, principal string) (*models.Pipeline, error) {
	resolved, err := s.resolveRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	next := overlay(current, resolved)
	if err := s.sanitize(next); err != nil {
		return nil, err
	}
	return s.commit(ctx, current, next, principal)
}

// Patch applies an RFC 6902 document to the stored pipeline. Unlike Update it
// can remove fields. Operations on server managed paths are dropped.
func (s *PipelineService) Patch(ctx context.Context, id uuid.UUID, patchJSON []byte, principal string) (p *models.Pipeline, err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "patch", id.String())
	defer s.finish(span, "patch", time.Now(), &err)

	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, utils.NewAppError(utils.CodeInvalidInput, "invalid JSON patch document", err)
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := applyPatch(current, writablePatch(patch))
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidatePipeline(next); err != nil {
		return nil, err
	}
	if err := s.resolvePatched(ctx, current, next); err != nil {
		return nil, err
	}
	if err := s.sanitize(next); err != nil {
		return nil, err
	}
	return s.commit(ctx, current, next, principal)
}

// commit diffs next against current and writes it when something changed.
// The write fails with a concurrent modification error if current is stale.
func (s *PipelineService) commit(ctx context.Context, current, next *models.Pipeline, principal string) (*models.Pipeline, error) {
	prevSnap, err := diff.SnapshotOf(models.EntityTypePipeline, current)
	if err != nil {
		return nil, err
	}
	nextSnap, err := diff.SnapshotOf(models.EntityTypePipeline, next)
	if err != nil {
		return nil, err
	}
	desc, err := s.detector.Diff(prevSnap, nextSnap)
	if err != nil {
		return nil, err
	}
	if desc.IsEmpty() {
		s.metrics.RecordVersionChange(string(versioning.UpdateNone), string(versioning.HistoryNone))
		return s.present(ctx, current, AllFields()), nil
	}

	now := s.now()
	update := s.versions.Classify(desc, versioning.Session{
		PreviousUpdatedBy: current.UpdatedBy,
		PreviousUpdatedAt: current.UpdatedAt,
		Principal:         principal,
		Now:               now,
	})
	// The initial version has no recorded change to fold an edit into.
	if update == versioning.UpdateNone && current.ChangeDescription == nil {
		update = versioning.UpdateMinor
	}

	version, action, err := s.versions.NextVersion(current.Version, desc, update)
	if err != nil {
		return nil, err
	}

	desc.PreviousVersion = current.Version
	if action == versioning.HistoryAmend {
		next.ChangeDescription = current.ChangeDescription.Merge(desc)
	} else {
		next.ChangeDescription = desc
	}
	next.Version = version
	next.UpdatedAt = now
	next.UpdatedBy = principal

	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.UpdatePipeline(ctx, current, next, action == versioning.HistoryAppend)
	}); err != nil {
		return nil, err
	}

	s.metrics.RecordVersionChange(string(update), string(action))
	s.logging.WithContext(ctx).Info().
		Str("pipeline_id", next.ID.String()).
		Str("fqn", next.FullyQualifiedName).
		Str("version", next.Version.String()).
		Str("update_type", string(update)).
		Str("history", string(action)).
		Strs("fields", desc.ChangedFields()).
		Msg("pipeline updated")

	s.publish(ctx, events.EventEntityUpdated, next, &current.Version)
	return s.present(ctx, next, AllFields()), nil
}

func (s *PipelineService) Get(ctx context.Context, id uuid.UUID, fields Fields) (p *models.Pipeline, err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "get", id.String())
	defer s.finish(span, "get", time.Now(), &err)

	p, err = s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.present(ctx, p, fields), nil
}

func (s *PipelineService) GetByName(ctx context.Context, fqn string, fields Fields) (p *models.Pipeline, err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "get_by_name", fqn)
	defer s.finish(span, "get_by_name", time.Now(), &err)

	p, err = s.getByName(ctx, fqn)
	if err != nil {
		return nil, err
	}
	return s.present(ctx, p, fields), nil
}

// List returns one page of pipelines ordered by fully qualified name. Owners
// on the page are refreshed in a single batched lookup.
func (s *PipelineService) List(ctx context.Context, filter ListFilter, fields Fields, req paging.Request) (list *models.PipelineList, err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "list", filter.Service)
	defer s.finish(span, "list", time.Now(), &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	var all []*models.Pipeline
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		all, err = s.store.ListPipelines(ctx, store.PipelineFilter{Service: filter.Service})
		return err
	}); err != nil {
		return nil, err
	}

	page, err := paging.Paginate(all, func(p *models.Pipeline) string { return p.FullyQualifiedName }, req)
	if err != nil {
		return nil, err
	}

	data := make([]*models.Pipeline, len(page.Items))
	for i, p := range page.Items {
		data[i] = s.withHref(fields.Apply(p))
	}
	if fields.Has(FieldOwner) {
		s.refreshOwners(ctx, data)
	}

	span.SetAttributes(attribute.Int("page.size", len(data)), attribute.Int("page.total", page.Total))
	s.metrics.RecordPageSize(len(data))

	return &models.PipelineList{
		Data: data,
		Paging: models.Paging{
			Before: page.Before,
			After:  page.After,
			Total:  page.Total,
		},
	}, nil
}

// Delete removes the pipeline and its history. It fails with a conflict while
// other entities depend on it; nothing is cascaded.
func (s *PipelineService) Delete(ctx context.Context, id uuid.UUID, principal string) (err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "delete", id.String())
	defer s.finish(span, "delete", time.Now(), &err)

	current, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.DeletePipeline(ctx, id)
	}); err != nil {
		return err
	}

	s.logging.WithContext(ctx).Info().
		Str("pipeline_id", id.String()).
		Str("fqn", current.FullyQualifiedName).
		Msg("pipeline deleted")

	current.UpdatedBy = principal
	current.UpdatedAt = s.now()
	current.ChangeDescription = nil
	s.publish(ctx, events.EventEntityDeleted, current, nil)
	return nil
}

// ListVersions returns every recorded version of the pipeline, newest first.
func (s *PipelineService) ListVersions(ctx context.Context, id uuid.UUID) (history *models.EntityHistory, err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "list_versions", id.String())
	defer s.finish(span, "list_versions", time.Now(), &err)

	var versions []*models.Pipeline
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		versions, err = s.store.ListPipelineVersions(ctx, id)
		return err
	}); err != nil {
		return nil, err
	}

	for i, v := range versions {
		versions[i] = s.withHref(v)
	}
	return &models.EntityHistory{EntityType: models.EntityTypePipeline, Versions: versions}, nil
}

func (s *PipelineService) GetVersion(ctx context.Context, id uuid.UUID, version string) (p *models.Pipeline, err error) {
	ctx, span := s.tracing.StartPipelineOperation(ctx, "get_version", id.String())
	defer s.finish(span, "get_version", time.Now(), &err)

	v, err := models.ParseVersion(version)
	if err != nil {
		return nil, utils.NewAppError(utils.CodeInvalidInput, "invalid version "+version, err).
			WithDetail("version", version)
	}

	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.store.GetPipelineVersion(ctx, id, v)
		return err
	}); err != nil {
		return nil, err
	}
	return s.withHref(p), nil
}

func (s *PipelineService) get(ctx context.Context, id uuid.UUID) (p *models.Pipeline, err error) {
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		p, err = s.store.GetPipeline(ctx, id)
		return err
	})
	return p, err
}

func (s *PipelineService) getByName(ctx context.Context, fqn string) (p *models.Pipeline, err error) {
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		p, err = s.store.GetPipelineByName(ctx, fqn)
		return err
	})
	return p, err
}

// withTimeout bounds a store call. A deadline hit becomes a retryable timeout.
func (s *PipelineService) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && utils.Code(err) == "" {
		return utils.NewAppError(utils.CodeTimeout, "store operation timed out", err).
			WithDetail("timeout", s.config.StoreTimeout.String())
	}
	return err
}

// resolveRequest returns a copy of req with every supplied reference and tag
// checked against the directory and filled in.
func (s *PipelineService) resolveRequest(ctx context.Context, req *models.CreatePipeline) (*models.CreatePipeline, error) {
	resolved := *req
	resolved.Tasks = cloneTasks(req.Tasks)

	service, err := s.resolver.Resolve(ctx, req.Service, models.EntityTypePipelineService)
	if err != nil {
		return nil, err
	}
	resolved.Service = service

	if req.Owner != nil {
		owner, err := s.resolver.Resolve(ctx, req.Owner, models.EntityTypeUser, models.EntityTypeTeam)
		if err != nil {
			return nil, err
		}
		resolved.Owner = owner
	}

	if req.Tags != nil {
		tags, err := s.resolver.ResolveTags(ctx, req.Tags)
		if err != nil {
			return nil, err
		}
		resolved.Tags = tags
	}
	return &resolved, nil
}

// resolvePatched resolves the references a patch changed and recomputes the
// fully qualified name.
func (s *PipelineService) resolvePatched(ctx context.Context, current, next *models.Pipeline) error {
	if next.Service.SameTarget(current.Service) {
		next.Service = current.Service.Clone()
	} else {
		service, err := s.resolver.Resolve(ctx, next.Service, models.EntityTypePipelineService)
		if err != nil {
			return err
		}
		next.Service = service
	}

	switch {
	case next.Owner == nil:
	case next.Owner.SameTarget(current.Owner):
		next.Owner = current.Owner.Clone()
	default:
		owner, err := s.resolver.Resolve(ctx, next.Owner, models.EntityTypeUser, models.EntityTypeTeam)
		if err != nil {
			return err
		}
		next.Owner = owner
	}

	tags, err := s.resolver.ResolveTags(ctx, next.Tags)
	if err != nil {
		return err
	}
	next.Tags = tags

	next.FullyQualifiedName = models.BuildFQN(next.Service.Name, next.Name)
	return nil
}

func (s *PipelineService) sanitize(p *models.Pipeline) error {
	var err error
	if p.DisplayName, err = s.sanitizer.SanitizeText("displayName", p.DisplayName); err != nil {
		return err
	}
	if p.Description, err = s.sanitizer.SanitizeDescription(p.Description); err != nil {
		return err
	}
	if p.PipelineURL, err = s.sanitizer.SanitizeURL("pipelineUrl", p.PipelineURL); err != nil {
		return err
	}
	for i := range p.Tasks {
		task := &p.Tasks[i]
		if task.DisplayName, err = s.sanitizer.SanitizeText("tasks.displayName", task.DisplayName); err != nil {
			return err
		}
		if task.Description, err = s.sanitizer.SanitizeDescription(task.Description); err != nil {
			return err
		}
		if task.TaskURL, err = s.sanitizer.SanitizeURL("tasks.taskUrl", task.TaskURL); err != nil {
			return err
		}
	}
	return nil
}

// present applies the field mask, refreshes the owner and sets hrefs.
func (s *PipelineService) present(ctx context.Context, p *models.Pipeline, fields Fields) *models.Pipeline {
	out := s.withHref(fields.Apply(p))
	if fields.Has(FieldOwner) {
		s.refreshOwners(ctx, []*models.Pipeline{out})
	}
	return out
}

func (s *PipelineService) withHref(p *models.Pipeline) *models.Pipeline {
	p.Href = s.resolver.Href(models.EntityTypePipeline, p.ID)
	return p
}

// refreshOwners replaces stored owner references with current directory data.
// An owner that no longer resolves is left as stored.
func (s *PipelineService) refreshOwners(ctx context.Context, pipelines []*models.Pipeline) {
	var ids []uuid.UUID
	for _, p := range pipelines {
		if p.Owner != nil {
			ids = append(ids, p.Owner.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	owners, err := references.LoaderFromContext(ctx, s.resolver).LoadMany(ctx, ids)
	if err != nil {
		s.logging.WithContext(ctx).Warn().Err(err).Msg("failed to refresh owners")
		return
	}
	for _, p := range pipelines {
		if p.Owner == nil {
			continue
		}
		if owner, ok := owners[p.Owner.ID]; ok && owner.Type == p.Owner.Type {
			p.Owner = owner
		}
	}
}

// publish sends a change event. Delivery is best effort: the mutation has
// already committed, so failures are logged and counted only.
func (s *PipelineService) publish(ctx context.Context, eventType events.EventType, p *models.Pipeline, previous *models.EntityVersion) {
	event := &events.ChangeEvent{
		EventType:          eventType,
		EntityType:         models.EntityTypePipeline,
		EntityID:           p.ID,
		FullyQualifiedName: p.FullyQualifiedName,
		Version:            p.Version,
		PreviousVersion:    previous,
		ChangeDescription:  p.ChangeDescription.Clone(),
		UserName:           p.UpdatedBy,
		Timestamp:          p.UpdatedAt,
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.RecordEventPublished(string(eventType), "error")
		s.logging.WithContext(ctx).Warn().
			Err(err).
			Str("pipeline_id", p.ID.String()).
			Str("event_type", string(eventType)).
			Msg("failed to publish change event")
		return
	}
	s.metrics.RecordEventPublished(string(eventType), "success")
}

func (s *PipelineService) finish(span trace.Span, operation string, start time.Time, errp *error) {
	defer span.End()

	status := "success"
	if err := *errp; err != nil {
		status = "error"
		s.tracing.SetSpanError(span, err)
		s.logFailure(operation, err)
	}
	s.metrics.RecordPipelineOperation(operation, status, time.Since(start))
}

func (s *PipelineService) logFailure(operation string, err error) {
	code := utils.Code(err)
	var event *zerolog.Event
	switch {
	case errors.Is(err, context.Canceled):
		event = s.logging.WithOperation(operation).Debug().Err(err)
	case code == "" || code == utils.CodeInternal || code == utils.CodeIncompatibleSnapshot || code == utils.CodeInvalidVersion:
		event = s.logging.WithError(err).Error().Str("operation", operation)
	case utils.IsRetryable(err):
		event = s.logging.WithOperation(operation).Warn().Err(err)
	default:
		event = s.logging.WithOperation(operation).Debug().Err(err)
	}
	event.Str("code", code).Msg("pipeline operation failed")
}

// overlay copies the fields set in req onto a copy of current.
func overlay(current *models.Pipeline, req *models.CreatePipeline) *models.Pipeline {
	next := current.Clone()
	next.Name = req.Name
	if req.DisplayName != "" {
		next.DisplayName = req.DisplayName
	}
	if req.Description != "" {
		next.Description = req.Description
	}
	if req.PipelineURL != "" {
		next.PipelineURL = req.PipelineURL
	}
	if req.Concurrency != 0 {
		next.Concurrency = req.Concurrency
	}
	if req.PipelineLocation != "" {
		next.PipelineLocation = req.PipelineLocation
	}
	if req.StartDate != nil {
		d := *req.StartDate
		next.StartDate = &d
	}
	if req.Tasks != nil {
		next.Tasks = cloneTasks(req.Tasks)
	}
	if req.Owner != nil {
		next.Owner = req.Owner.Clone()
	}
	if req.Service != nil {
		next.Service = req.Service.Clone()
	}
	if req.Tags != nil {
		next.Tags = append([]models.TagLabel(nil), req.Tags...)
	}
	next.FullyQualifiedName = models.BuildFQN(next.Service.Name, next.Name)
	return next
}

// writablePatch drops operations that target server managed fields or
// reference hrefs.
func writablePatch(patch jsonpatch.Patch) jsonpatch.Patch {
	kept := make(jsonpatch.Patch, 0, len(patch))
	for _, op := range patch {
		path, err := op.Path()
		if err == nil && isReadOnlyPath(path) {
			continue
		}
		kept = append(kept, op)
	}
	return kept
}

func isReadOnlyPath(path string) bool {
	top, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if _, readOnly := diff.ReadOnlyFields[top]; readOnly {
		return true
	}
	return strings.HasSuffix(path, "/href")
}

// applyPatch applies patch to a JSON copy of current. Server managed fields of
// the result always come from current.
func applyPatch(current *models.Pipeline, patch jsonpatch.Patch) (*models.Pipeline, error) {
	doc, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	opts := jsonpatch.NewApplyOptions()
	opts.AllowMissingPathOnRemove = true
	patched, err := patch.ApplyWithOptions(doc, opts)
	if err != nil {
		return nil, utils.NewAppError(utils.CodeInvalidInput, "failed to apply JSON patch", err)
	}

	var next models.Pipeline
	if err := json.Unmarshal(patched, &next); err != nil {
		return nil, utils.NewAppError(utils.CodeInvalidInput, "patched pipeline is malformed", err)
	}

	next.ID = current.ID
	next.FullyQualifiedName = current.FullyQualifiedName
	next.Version = current.Version
	next.UpdatedAt = current.UpdatedAt
	next.UpdatedBy = current.UpdatedBy
	next.ChangeDescription = current.ChangeDescription.Clone()
	next.Href = ""
	return &next, nil
}

func cloneTasks(tasks []models.Task) []models.Task {
	if tasks == nil {
		return nil
	}
	p := &models.Pipeline{Tasks: tasks}
	return p.Clone().Tasks
}

func requestName(req *models.CreatePipeline) string {
	if req == nil {
		return ""
	}
	return req.Name
}
