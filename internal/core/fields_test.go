package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/pkg/utils"
)

func TestParseFields(t *testing.T) {
	tests := []struct {
		raw      string
		want     string
		wantCode string
	}{
		{raw: "", want: ""},
		{raw: "owner", want: "owner"},
		{raw: "tags, owner ,", want: "owner,tags"},
		{raw: "owner,service,tasks,tags", want: "owner,service,tasks,tags"},
		{raw: "owner,followers", wantCode: utils.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			fields, err := ParseFields(tt.raw)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, utils.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, fields.String())
		})
	}
}

func TestFields_Apply(t *testing.T) {
	p := &models.Pipeline{
		Name:    "etl",
		Owner:   &models.EntityReference{Type: models.EntityTypeUser, Name: "alice"},
		Service: &models.EntityReference{Type: models.EntityTypePipelineService, Name: "airflow"},
		Tasks:   []models.Task{{Name: "extract"}},
		Tags:    []models.TagLabel{{TagFQN: "PII.Sensitive"}},
	}

	tasksOnly, err := ParseFields("tasks")
	require.NoError(t, err)
	out := tasksOnly.Apply(p)

	assert.Nil(t, out.Owner)
	assert.Nil(t, out.Tags)
	assert.Len(t, out.Tasks, 1)
	assert.NotNil(t, out.Service)

	assert.NotNil(t, p.Owner, "the input is not modified")
	assert.Len(t, p.Tags, 1)

	all := AllFields().Apply(p)
	assert.Equal(t, p, all)
	assert.NotSame(t, p, all)
	assert.Nil(t, AllFields().Apply(nil))
}
