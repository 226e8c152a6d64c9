//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/store"
	"github.com/sumandas0/catalog/pkg/utils"
	"github.com/sumandas0/catalog/tests/testhelpers"
)

func newPipeline(service, name string) *models.Pipeline {
	return &models.Pipeline{
		ID:                 uuid.New(),
		Name:               name,
		FullyQualifiedName: models.BuildFQN(service, name),
		Service:            &models.EntityReference{ID: uuid.New(), Type: models.EntityTypePipelineService, Name: service},
		Version:            models.InitialVersion,
		UpdatedAt:          time.Now().UTC().Truncate(time.Microsecond),
		UpdatedBy:          "admin",
	}
}

func bumped(p *models.Pipeline, description string) *models.Pipeline {
	next := *p
	next.Description = description
	next.Version = p.Version.NextMinor()
	next.UpdatedAt = p.UpdatedAt.Add(time.Second)
	return &next
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	_, st := testhelpers.SetupPostgres(t, ctx)

	t.Run("create and get", func(t *testing.T) {
		p := newPipeline("airflow", "etl")
		require.NoError(t, st.CreatePipeline(ctx, p))

		got, err := st.GetPipeline(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.FullyQualifiedName, got.FullyQualifiedName)
		assert.Equal(t, p.Version, got.Version)
		assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))

		byName, err := st.GetPipelineByName(ctx, "airflow.etl")
		require.NoError(t, err)
		assert.Equal(t, p.ID, byName.ID)

		err = st.CreatePipeline(ctx, newPipeline("airflow", "etl"))
		assert.True(t, utils.IsAlreadyExists(err))

		_, err = st.GetPipeline(ctx, uuid.New())
		assert.True(t, utils.IsNotFound(err))
	})

	t.Run("update archives and checks version", func(t *testing.T) {
		p := newPipeline("airflow", "versions")
		require.NoError(t, st.CreatePipeline(ctx, p))

		v2 := bumped(p, "second")
		require.NoError(t, st.UpdatePipeline(ctx, p, v2, true))

		err := st.UpdatePipeline(ctx, p, bumped(p, "stale"), true)
		assert.True(t, utils.IsConcurrentModification(err))

		amended := *v2
		amended.Description = "second, amended"
		amended.UpdatedAt = v2.UpdatedAt.Add(time.Second)
		require.NoError(t, st.UpdatePipeline(ctx, v2, &amended, false))

		versions, err := st.ListPipelineVersions(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, "0.2", versions[0].Version.String())
		assert.Equal(t, "second, amended", versions[0].Description)
		assert.Equal(t, "0.1", versions[1].Version.String())

		old, err := st.GetPipelineVersion(ctx, p.ID, models.InitialVersion)
		require.NoError(t, err)
		assert.Empty(t, old.Description)

		_, err = st.GetPipelineVersion(ctx, p.ID, v2.Version.NextMajor())
		assert.True(t, utils.IsNotFound(err))
	})

	t.Run("list orders bytewise and filters by service", func(t *testing.T) {
		for _, p := range []*models.Pipeline{
			newPipeline("glue", "b"),
			newPipeline("glue", "B"),
			newPipeline("glue", "a"),
		} {
			require.NoError(t, st.CreatePipeline(ctx, p))
		}

		glue, err := st.ListPipelines(ctx, store.PipelineFilter{Service: "glue"})
		require.NoError(t, err)
		var fqns []string
		for _, p := range glue {
			fqns = append(fqns, p.FullyQualifiedName)
		}
		assert.Equal(t, []string{"glue.B", "glue.a", "glue.b"}, fqns)
	})

	t.Run("delete respects dependents", func(t *testing.T) {
		p := newPipeline("airflow", "held")
		require.NoError(t, st.CreatePipeline(ctx, p))
		require.NoError(t, st.UpdatePipeline(ctx, p, bumped(p, "v2"), true))

		dashboard := models.EntityReference{ID: uuid.New(), Type: "dashboard"}
		require.NoError(t, st.AddDependent(ctx, p.ID, dashboard))
		assert.True(t, utils.IsConflict(st.DeletePipeline(ctx, p.ID)))

		require.NoError(t, st.RemoveDependent(ctx, p.ID, dashboard.ID))
		require.NoError(t, st.DeletePipeline(ctx, p.ID))

		_, err := st.ListPipelineVersions(ctx, p.ID)
		assert.True(t, utils.IsNotFound(err))
		assert.True(t, utils.IsNotFound(st.DeletePipeline(ctx, p.ID)))
	})

	t.Run("directory", func(t *testing.T) {
		entry := &models.DirectoryEntry{ID: uuid.New(), Type: models.EntityTypeUser, Name: "carol"}
		require.NoError(t, st.PutEntry(ctx, entry))

		got, err := st.GetEntryByName(ctx, models.EntityTypeUser, "carol")
		require.NoError(t, err)
		assert.Equal(t, entry.ID, got.ID)

		many, err := st.GetEntries(ctx, []uuid.UUID{entry.ID, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, many, 1)
	})
}
