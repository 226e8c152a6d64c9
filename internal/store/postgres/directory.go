package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/store"
	"github.com/sumandas0/catalog/pkg/utils"
)

func (s *PostgresStore) GetEntry(ctx context.Context, id uuid.UUID) (*models.DirectoryEntry, error) {
	var entry models.DirectoryEntry
	err := s.pool.QueryRow(ctx,
		`SELECT id, entity_type, name, display_name FROM directory_entries WHERE id = $1`,
		id,
	).Scan(&entry.ID, &entry.Type, &entry.Name, &entry.DisplayName)
	if err != nil {
		if isNoRows(err) {
			return nil, utils.NewAppError(utils.CodeNotFound, "directory entry not found", utils.ErrNotFound).
				WithDetail("id", id.String())
		}
		return nil, wrapError(err, "get directory entry")
	}
	return &entry, nil
}

func (s *PostgresStore) GetEntries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.DirectoryEntry, error) {
	found := make(map[uuid.UUID]*models.DirectoryEntry, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_type, name, display_name FROM directory_entries WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, wrapError(err, "get directory entries")
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.DirectoryEntry
		if err := rows.Scan(&entry.ID, &entry.Type, &entry.Name, &entry.DisplayName); err != nil {
			return nil, wrapError(err, "scan directory entry")
		}
		found[entry.ID] = &entry
	}
	return found, wrapError(rows.Err(), "get directory entries")
}

func (s *PostgresStore) GetEntryByName(ctx context.Context, entityType, name string) (*models.DirectoryEntry, error) {
	var entry models.DirectoryEntry
	err := s.pool.QueryRow(ctx,
		`SELECT id, entity_type, name, display_name FROM directory_entries WHERE entity_type = $1 AND name = $2`,
		entityType, name,
	).Scan(&entry.ID, &entry.Type, &entry.Name, &entry.DisplayName)
	if err != nil {
		if isNoRows(err) {
			return nil, utils.NewAppError(utils.CodeNotFound, "directory entry not found", utils.ErrNotFound).
				WithDetail("type", entityType).
				WithDetail("name", name)
		}
		return nil, wrapError(err, "get directory entry by name")
	}
	return &entry, nil
}

func (s *PostgresStore) PutEntry(ctx context.Context, entry *models.DirectoryEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO directory_entries (id, entity_type, name, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET entity_type = EXCLUDED.entity_type, name = EXCLUDED.name, display_name = EXCLUDED.display_name
	`, entry.ID, entry.Type, entry.Name, entry.DisplayName)
	if err != nil && isUniqueViolation(err) {
		return utils.NewAppError(utils.CodeAlreadyExists, "directory entry already exists", err).
			WithDetail("type", entry.Type).
			WithDetail("name", entry.Name)
	}
	return wrapError(err, "put directory entry")
}

var _ store.Directory = (*PostgresStore)(nil)
