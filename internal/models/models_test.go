package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    EntityVersion
		wantErr bool
	}{
		{in: "0.1", want: EntityVersion{0, 1}},
		{in: "1.0", want: EntityVersion{1, 0}},
		{in: "2.13", want: EntityVersion{2, 13}},
		{in: "3.4.0", want: EntityVersion{3, 4}},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1", wantErr: true},
		{in: "1.2.3", wantErr: true},
		{in: "1.2-beta", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntityVersion_Bumps(t *testing.T) {
	v := InitialVersion
	assert.Equal(t, "0.1", v.String())
	assert.Equal(t, "0.2", v.NextMinor().String())
	assert.Equal(t, "1.0", v.NextMajor().String())
	assert.Equal(t, "1.0", MustParseVersion("0.9").NextMajor().String())
	assert.Equal(t, "0.10", MustParseVersion("0.9").NextMinor().String())

	assert.True(t, MustParseVersion("0.9").LessThan(MustParseVersion("0.10")))
	assert.Equal(t, 0, MustParseVersion("1.2").Compare(EntityVersion{1, 2}))
}

func TestEntityVersion_JSON(t *testing.T) {
	data, err := json.Marshal(MustParseVersion("0.3"))
	require.NoError(t, err)
	assert.JSONEq(t, `"0.3"`, string(data))

	var v EntityVersion
	require.NoError(t, json.Unmarshal([]byte(`"1.2"`), &v))
	assert.Equal(t, EntityVersion{1, 2}, v)

	require.NoError(t, json.Unmarshal([]byte(`0.4`), &v))
	assert.Equal(t, EntityVersion{0, 4}, v)

	assert.Error(t, json.Unmarshal([]byte(`"x.y"`), &v))
}

func TestChangeDescription_Merge(t *testing.T) {
	base := &ChangeDescription{
		PreviousVersion: MustParseVersion("0.1"),
		FieldsAdded:     []FieldChange{{Name: "owner", NewValue: "a"}, {Name: "tags", NewValue: []any{"t1"}}},
		FieldsUpdated:   []FieldChange{{Name: "description", OldValue: "x", NewValue: "y"}},
		FieldsDeleted:   []FieldChange{{Name: "displayName", OldValue: "old"}},
	}
	next := &ChangeDescription{
		PreviousVersion: MustParseVersion("0.2"),
		FieldsUpdated:   []FieldChange{{Name: "owner", OldValue: "a", NewValue: "b"}, {Name: "description", OldValue: "y", NewValue: "x"}},
		FieldsDeleted:   []FieldChange{{Name: "tags", OldValue: []any{"t1"}}},
		FieldsAdded:     []FieldChange{{Name: "displayName", NewValue: "new"}, {Name: "pipelineUrl", NewValue: "http://x"}},
	}

	merged := base.Merge(next)

	assert.Equal(t, MustParseVersion("0.1"), merged.PreviousVersion)
	assert.Equal(t, []FieldChange{
		{Name: "owner", NewValue: "b"},
		{Name: "pipelineUrl", NewValue: "http://x"},
	}, merged.FieldsAdded)
	assert.Equal(t, []FieldChange{{Name: "displayName", OldValue: "old", NewValue: "new"}}, merged.FieldsUpdated)
	assert.Empty(t, merged.FieldsDeleted)

	assert.Equal(t, next.FieldsAdded, (*ChangeDescription)(nil).Merge(next).FieldsAdded)
	assert.Equal(t, base.FieldsAdded, base.Merge(nil).FieldsAdded)
}

func TestChangeDescription_ChangedFields(t *testing.T) {
	c := &ChangeDescription{
		FieldsAdded:   []FieldChange{{Name: "owner"}},
		FieldsUpdated: []FieldChange{{Name: "description"}},
		FieldsDeleted: []FieldChange{{Name: "tags"}},
	}
	assert.Equal(t, []string{"owner", "description", "tags"}, c.ChangedFields())
	assert.False(t, c.IsEmpty())
	assert.True(t, (&ChangeDescription{}).IsEmpty())
	assert.True(t, (*ChangeDescription)(nil).IsEmpty())
}

func TestPipeline_Clone(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p := &Pipeline{
		ID:        uuid.New(),
		Name:      "etl",
		StartDate: &start,
		Tasks:     []Task{{Name: "t1", DownstreamTasks: []string{"t2"}}},
		Owner:     &EntityReference{ID: uuid.New(), Type: EntityTypeUser},
		Tags:      []TagLabel{{TagFQN: "PII.Sensitive"}},
		ChangeDescription: &ChangeDescription{
			FieldsAdded: []FieldChange{{Name: "owner"}},
		},
	}

	c := p.Clone()
	require.Equal(t, p, c)

	c.Tasks[0].DownstreamTasks[0] = "changed"
	c.Owner.Type = EntityTypeTeam
	c.Tags[0].TagFQN = "other"
	*c.StartDate = start.Add(time.Hour)
	c.ChangeDescription.FieldsAdded[0].Name = "tags"

	assert.Equal(t, "t2", p.Tasks[0].DownstreamTasks[0])
	assert.Equal(t, EntityTypeUser, p.Owner.Type)
	assert.Equal(t, "PII.Sensitive", p.Tags[0].TagFQN)
	assert.Equal(t, start, *p.StartDate)
	assert.Equal(t, "owner", p.ChangeDescription.FieldsAdded[0].Name)
	assert.Equal(t, "airflow.etl", BuildFQN("airflow", "etl"))
}
