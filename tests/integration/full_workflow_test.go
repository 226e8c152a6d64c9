//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/catalog/internal/core"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/paging"
	"github.com/sumandas0/catalog/internal/references"
	"github.com/sumandas0/catalog/pkg/utils"
	"github.com/sumandas0/catalog/tests/testhelpers"
)

func serviceRef(name string) *models.EntityReference {
	return &models.EntityReference{
		ID:   references.SeedID(models.EntityTypePipelineService, name),
		Type: models.EntityTypePipelineService,
	}
}

func pipelineRequest(service, name string) *models.CreatePipeline {
	return &models.CreatePipeline{
		Name:        name,
		Description: "Loads orders",
		Tasks: []models.Task{
			{Name: "extract"},
			{Name: "load", DownstreamTasks: []string{"extract"}},
		},
		Service: serviceRef(service),
	}
}

func changedFields(changes []models.FieldChange) []string {
	names := make([]string, len(changes))
	for i, fc := range changes {
		names[i] = fc.Name
	}
	return names
}

func TestFullWorkflow_PipelineLifecycle(t *testing.T) {
	ctx := context.Background()
	env := testhelpers.SetupTestEnvironment(t, ctx)
	svc := env.Service
	aliceID := references.SeedID(models.EntityTypeUser, "alice")

	// Step 1: create
	created, err := svc.Create(ctx, pipelineRequest("airflow", "etl"), "alice")
	require.NoError(t, err, "Failed to create pipeline")
	assert.Equal(t, "0.1", created.Version.String())
	assert.Equal(t, "airflow.etl", created.FullyQualifiedName)

	// Step 2: metadata patch bumps the minor version
	patched, err := svc.Patch(ctx, created.ID, []byte(fmt.Sprintf(`[
		{"op": "add", "path": "/owner", "value": {"id": %q, "type": "user"}},
		{"op": "add", "path": "/tags", "value": [{"tagFQN": "PII.Sensitive"}]}
	]`, aliceID)), "alice")
	require.NoError(t, err, "Failed to patch pipeline")
	assert.Equal(t, "0.2", patched.Version.String())
	require.NotNil(t, patched.Owner)
	assert.Equal(t, "alice", patched.Owner.Name)

	// Step 3: another principal drops a task
	req := pipelineRequest("airflow", "etl")
	req.Tasks = req.Tasks[:1]
	req.Tasks[0].DownstreamTasks = nil
	shrunk, err := svc.Update(ctx, created.ID, req, "bob")
	require.NoError(t, err, "Failed to update pipeline")
	assert.Equal(t, "0.3", shrunk.Version.String())
	require.NotNil(t, shrunk.ChangeDescription)
	assert.Equal(t, "0.2", shrunk.ChangeDescription.PreviousVersion.String())
	assert.Equal(t, []string{"tasks"}, changedFields(shrunk.ChangeDescription.FieldsUpdated))

	// Step 4: read back through the store
	byName, err := svc.GetByName(ctx, "airflow.etl", core.AllFields())
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Len(t, byName.Tasks, 1)
	assert.Equal(t, "bob", byName.UpdatedBy)

	history, err := svc.ListVersions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history.Versions, 3)
	for i, want := range []string{"0.3", "0.2", "0.1"} {
		assert.Equal(t, want, history.Versions[i].Version.String())
	}

	first, err := svc.GetVersion(ctx, created.ID, "0.1")
	require.NoError(t, err)
	assert.Len(t, first.Tasks, 2)
	assert.Nil(t, first.Owner)

	// Step 5: delete removes the pipeline and its history
	require.NoError(t, svc.Delete(ctx, created.ID, "bob"))
	_, err = svc.Get(ctx, created.ID, core.AllFields())
	assert.Equal(t, utils.CodeNotFound, utils.Code(err))
	_, err = svc.ListVersions(ctx, created.ID)
	assert.Equal(t, utils.CodeNotFound, utils.Code(err))
}

func TestFullWorkflow_DeleteBlockedByDependents(t *testing.T) {
	ctx := context.Background()
	env := testhelpers.SetupTestEnvironment(t, ctx)

	created, err := env.Service.Create(ctx, pipelineRequest("airflow", "etl"), "alice")
	require.NoError(t, err)

	dashboard := models.EntityReference{ID: uuid.New(), Type: "dashboard"}
	require.NoError(t, env.Store.AddDependent(ctx, created.ID, dashboard))

	err = env.Service.Delete(ctx, created.ID, "alice")
	assert.Equal(t, utils.CodeConflict, utils.Code(err))

	require.NoError(t, env.Store.RemoveDependent(ctx, created.ID, dashboard.ID))
	assert.NoError(t, env.Service.Delete(ctx, created.ID, "alice"))
}

func TestFullWorkflow_ListPagination(t *testing.T) {
	ctx := context.Background()
	env := testhelpers.SetupTestEnvironment(t, ctx)

	// Mixed case checks that ordering is bytewise rather than collation aware.
	names := []string{"b", "A", "a", "B", "c"}
	for _, name := range names {
		_, err := env.Service.Create(ctx, pipelineRequest("airflow", name), "alice")
		require.NoError(t, err)
	}
	want := []string{"airflow.A", "airflow.B", "airflow.a", "airflow.b", "airflow.c"}

	var got []string
	after := ""
	for range len(names) {
		page, err := env.Service.List(ctx, core.ListFilter{}, core.Fields{}, paging.Request{Limit: 2, After: after})
		require.NoError(t, err)
		assert.Equal(t, len(names), page.Paging.Total)
		for _, p := range page.Data {
			got = append(got, p.FullyQualifiedName)
		}
		if page.Paging.After == "" {
			break
		}
		after = page.Paging.After
	}
	assert.Equal(t, want, got)

	last, err := env.Service.List(ctx, core.ListFilter{}, core.Fields{}, paging.Request{Limit: 2, After: after})
	require.NoError(t, err)
	require.NotEmpty(t, last.Paging.Before)

	back, err := env.Service.List(ctx, core.ListFilter{}, core.Fields{}, paging.Request{Limit: 2, Before: last.Paging.Before})
	require.NoError(t, err)
	require.Len(t, back.Data, 2)
	assert.Equal(t, "airflow.a", back.Data[0].FullyQualifiedName)
	assert.Equal(t, "airflow.b", back.Data[1].FullyQualifiedName)

	glue, err := env.Service.List(ctx, core.ListFilter{Service: "glue"}, core.Fields{}, paging.Request{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, glue.Data)
	assert.Zero(t, glue.Paging.Total)
}

func TestFullWorkflow_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	env := testhelpers.SetupTestEnvironment(t, ctx)

	created, err := env.Service.Create(ctx, pipelineRequest("airflow", "etl"), "alice")
	require.NoError(t, err)

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := pipelineRequest("airflow", "etl")
			req.Description = fmt.Sprintf("writer %d", i)
			_, errs[i] = env.Service.Update(ctx, created.ID, req, fmt.Sprintf("user-%d", i))
		}()
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, utils.IsConcurrentModification(err), "unexpected error: %v", err)
	}
	require.GreaterOrEqual(t, wins, 1)

	history, err := env.Service.ListVersions(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, history.Versions, wins+1, "every successful write archives exactly one version")
}
