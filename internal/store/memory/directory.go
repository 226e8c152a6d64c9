package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/store"
	"github.com/sumandas0/catalog/pkg/utils"
)

func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*models.DirectoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, utils.NewAppError(utils.CodeNotFound, "directory entry not found", utils.ErrNotFound).
			WithDetail("id", id.String())
	}
	c := *entry
	return &c, nil
}

func (s *Store) GetEntries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.DirectoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[uuid.UUID]*models.DirectoryEntry, len(ids))
	for _, id := range ids {
		if entry, ok := s.entries[id]; ok {
			c := *entry
			found[id] = &c
		}
	}
	return found, nil
}

func (s *Store) GetEntryByName(ctx context.Context, entityType, name string) (*models.DirectoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.entries {
		if entry.Type == entityType && entry.Name == name {
			c := *entry
			return &c, nil
		}
	}
	return nil, utils.NewAppError(utils.CodeNotFound, "directory entry not found", utils.ErrNotFound).
		WithDetail("type", entityType).
		WithDetail("name", name)
}

func (s *Store) PutEntry(ctx context.Context, entry *models.DirectoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *entry
	s.entries[entry.ID] = &c
	return nil
}

var _ store.Directory = (*Store)(nil)
