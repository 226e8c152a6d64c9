package references

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
	"github.com/sumandas0/catalog/internal/models"
)

type ctxKey string

const loaderKey ctxKey = "referenceLoader"

// Loader batches reference lookups issued close together into one directory
// call. A Loader memoizes results, so it should live for a single request.
type Loader struct {
	resolver *Resolver
	loader   *dataloader.Loader
}

func (r *Resolver) NewLoader() *Loader {
	l := &Loader{resolver: r}
	l.loader = dataloader.NewBatchedLoader(l.batch, dataloader.WithWait(r.config.BatchWait))
	return l
}

func (l *Loader) batch(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
	results := make([]*dataloader.Result, len(keys))
	ids := make([]uuid.UUID, len(keys))
	var pending []uuid.UUID

	for i, k := range keys {
		id, err := uuid.Parse(k.String())
		if err != nil {
			results[i] = &dataloader.Result{Error: err}
			continue
		}
		ids[i] = id
		if entry, ok := l.resolver.cache.Lookup(id); ok {
			results[i] = &dataloader.Result{Data: entry}
			continue
		}
		pending = append(pending, id)
	}

	if len(pending) > 0 {
		l.resolver.metrics.RecordReferenceBatch(len(pending))

		found, err := l.resolver.directory.GetEntries(ctx, pending)
		for i := range results {
			if results[i] != nil {
				continue
			}
			if err != nil {
				results[i] = &dataloader.Result{Error: err}
				continue
			}
			entry, ok := found[ids[i]]
			if !ok {
				results[i] = &dataloader.Result{}
				continue
			}
			l.resolver.cache.Set(entry)
			results[i] = &dataloader.Result{Data: entry}
		}
	}

	return results
}

// Load resolves a single id. A missing entity yields nil without an error.
func (l *Loader) Load(ctx context.Context, id uuid.UUID) (*models.EntityReference, error) {
	data, err := l.loader.Load(ctx, dataloader.StringKey(id.String()))()
	if err != nil {
		return nil, err
	}
	return l.toReference(data), nil
}

// LoadMany resolves all ids in one batch.
func (l *Loader) LoadMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.EntityReference, error) {
	resolved := make(map[uuid.UUID]*models.EntityReference, len(ids))
	if len(ids) == 0 {
		return resolved, nil
	}

	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}

	data, errs := l.loader.LoadMany(ctx, keys)()
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		if i < len(data) {
			if ref := l.toReference(data[i]); ref != nil {
				resolved[id] = ref
			}
		}
	}
	return resolved, nil
}

func (l *Loader) toReference(data any) *models.EntityReference {
	entry, ok := data.(*models.DirectoryEntry)
	if !ok || entry == nil {
		return nil
	}
	ref := entry.Reference()
	ref.Href = l.resolver.Href(entry.Type, entry.ID)
	return ref
}

// LoaderMiddleware attaches a fresh Loader to every request context.
func LoaderMiddleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoader(r.Context(), resolver.NewLoader())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithLoader(ctx context.Context, l *Loader) context.Context {
	return context.WithValue(ctx, loaderKey, l)
}

// LoaderFromContext returns the request's Loader, or a new one from resolver
// when none is attached.
func LoaderFromContext(ctx context.Context, resolver *Resolver) *Loader {
	if l, ok := ctx.Value(loaderKey).(*Loader); ok {
		return l
	}
	return resolver.NewLoader()
}
