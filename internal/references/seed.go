package references

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/store"
)

var seedNamespace = uuid.MustParse("6f4b9a2e-3c1d-4e8f-9a7b-2d5c8e1f0a43")

// Seed lists directory entries by type.
type Seed struct {
	PipelineServices []string
	Users            []string
	Teams            []string
	Tags             []string
}

// SeedID derives a stable id for a seeded entry so ids survive restarts.
func SeedID(entityType, name string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(entityType+":"+name))
}

// LoadSeed upserts every seeded entry into the directory and returns how many
// were written.
func LoadSeed(ctx context.Context, directory store.Directory, seed Seed) (int, error) {
	groups := []struct {
		entityType string
		names      []string
	}{
		{models.EntityTypePipelineService, seed.PipelineServices},
		{models.EntityTypeUser, seed.Users},
		{models.EntityTypeTeam, seed.Teams},
		{models.EntityTypeTag, seed.Tags},
	}

	count := 0
	for _, g := range groups {
		for _, name := range g.names {
			entry := &models.DirectoryEntry{
				ID:   SeedID(g.entityType, name),
				Type: g.entityType,
				Name: name,
			}
			if err := directory.PutEntry(ctx, entry); err != nil {
				return count, fmt.Errorf("failed to seed %s %q: %w", g.entityType, name, err)
			}
			count++
		}
	}
	return count, nil
}
