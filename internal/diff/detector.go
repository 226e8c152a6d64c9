package diff

import (
	"encoding/json"
	"reflect"

	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/pkg/utils"
)

// Detector computes field-level change descriptions between two snapshots of
// the same entity type.
type Detector struct {
	schema Schema
}

func NewDetector(schema Schema) *Detector {
	return &Detector{schema: schema}
}

func (d *Detector) Schema() Schema {
	return d.schema
}

// Diff classifies every declared field as added, updated or deleted going
// from prev to cur. The PreviousVersion of the result is left for the caller.
func (d *Detector) Diff(prev, cur Snapshot) (*models.ChangeDescription, error) {
	if prev.entityType != cur.entityType || prev.entityType != d.schema.EntityType {
		return nil, utils.NewAppError(utils.CodeIncompatibleSnapshot, "cannot compare snapshots of different entity types", utils.ErrIncompatibleSnapshot).
			WithDetail("previous", prev.entityType).
			WithDetail("current", cur.entityType)
	}

	desc := &models.ChangeDescription{
		FieldsAdded:   []models.FieldChange{},
		FieldsUpdated: []models.FieldChange{},
		FieldsDeleted: []models.FieldChange{},
	}

	for _, field := range d.schema.Fields {
		if _, readOnly := ReadOnlyFields[field.Name]; readOnly {
			continue
		}
		oldValue, hadOld := prev.Get(field.Name)
		newValue, hasNew := cur.Get(field.Name)

		switch {
		case !hadOld && hasNew:
			desc.FieldsAdded = append(desc.FieldsAdded, models.FieldChange{Name: field.Name, NewValue: newValue})
		case hadOld && !hasNew:
			desc.FieldsDeleted = append(desc.FieldsDeleted, models.FieldChange{Name: field.Name, OldValue: oldValue})
		case hadOld && hasNew && !equal(field, oldValue, newValue):
			desc.FieldsUpdated = append(desc.FieldsUpdated, models.FieldChange{Name: field.Name, OldValue: oldValue, NewValue: newValue})
		}
	}

	return desc, nil
}

// Changed returns the specs of every field touched by desc.
func (d *Detector) Changed(desc *models.ChangeDescription) []FieldSpec {
	var specs []FieldSpec
	for _, name := range desc.ChangedFields() {
		if spec, ok := d.schema.Field(name); ok {
			specs = append(specs, spec)
		}
	}
	return specs
}

func equal(field FieldSpec, a, b any) bool {
	switch field.Kind {
	case KindReference:
		return referenceTarget(a) == referenceTarget(b)
	case KindSet:
		return setEqual(field.SetKey, a, b)
	default:
		return reflect.DeepEqual(a, b)
	}
}

func referenceTarget(v any) [2]any {
	m, ok := v.(map[string]any)
	if !ok {
		return [2]any{v, nil}
	}
	return [2]any{m["id"], m["type"]}
}

func setEqual(key string, a, b any) bool {
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if !aok || !bok {
		return reflect.DeepEqual(a, b)
	}
	if len(as) != len(bs) {
		return false
	}
	index := make(map[string][]any, len(as))
	for _, item := range as {
		k := elementKey(key, item)
		index[k] = append(index[k], item)
	}
	for _, item := range bs {
		k := elementKey(key, item)
		candidates := index[k]
		matched := -1
		for i, c := range candidates {
			if reflect.DeepEqual(c, item) {
				matched = i
				break
			}
		}
		if matched < 0 {
			return false
		}
		index[k] = append(candidates[:matched], candidates[matched+1:]...)
	}
	return true
}

func elementKey(key string, item any) string {
	if m, ok := item.(map[string]any); ok && key != "" {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	data, _ := json.Marshal(item)
	return string(data)
}
