package models

import (
	"reflect"
)

// FieldChange records one field transition. Added fields carry only NewValue,
// deleted fields only OldValue.
type FieldChange struct {
	Name     string `json:"name"`
	OldValue any    `json:"oldValue,omitempty"`
	NewValue any    `json:"newValue,omitempty"`
}

type ChangeDescription struct {
	PreviousVersion EntityVersion `json:"previousVersion"`
	FieldsAdded     []FieldChange `json:"fieldsAdded"`
	FieldsUpdated   []FieldChange `json:"fieldsUpdated"`
	FieldsDeleted   []FieldChange `json:"fieldsDeleted"`
}

func (c *ChangeDescription) IsEmpty() bool {
	return c == nil || len(c.FieldsAdded)+len(c.FieldsUpdated)+len(c.FieldsDeleted) == 0
}

// ChangedFields returns the names of every touched field, added first, then
// updated, then deleted.
func (c *ChangeDescription) ChangedFields() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.FieldsAdded)+len(c.FieldsUpdated)+len(c.FieldsDeleted))
	for _, group := range [][]FieldChange{c.FieldsAdded, c.FieldsUpdated, c.FieldsDeleted} {
		for _, fc := range group {
			names = append(names, fc.Name)
		}
	}
	return names
}

func (c *ChangeDescription) Clone() *ChangeDescription {
	if c == nil {
		return nil
	}
	return &ChangeDescription{
		PreviousVersion: c.PreviousVersion,
		FieldsAdded:     cloneChanges(c.FieldsAdded),
		FieldsUpdated:   cloneChanges(c.FieldsUpdated),
		FieldsDeleted:   cloneChanges(c.FieldsDeleted),
	}
}

func cloneChanges(in []FieldChange) []FieldChange {
	if in == nil {
		return nil
	}
	return append(make([]FieldChange, 0, len(in)), in...)
}

type fieldTransition struct {
	old, new       any
	hasOld, hasNew bool
}

// Merge folds next (a change applied on top of c) into a single description
// spanning c.PreviousVersion to the state after next. A field that ends up
// where it started is dropped.
func (c *ChangeDescription) Merge(next *ChangeDescription) *ChangeDescription {
	if c == nil {
		return next.Clone()
	}
	if next == nil {
		return c.Clone()
	}

	var order []string
	transitions := make(map[string]*fieldTransition)
	record := func(fc FieldChange, hasOld, hasNew bool) {
		t, seen := transitions[fc.Name]
		if !seen {
			order = append(order, fc.Name)
			transitions[fc.Name] = &fieldTransition{old: fc.OldValue, hasOld: hasOld, new: fc.NewValue, hasNew: hasNew}
			return
		}
		t.new, t.hasNew = fc.NewValue, hasNew
	}

	for _, desc := range []*ChangeDescription{c, next} {
		for _, fc := range desc.FieldsAdded {
			record(fc, false, true)
		}
		for _, fc := range desc.FieldsUpdated {
			record(fc, true, true)
		}
		for _, fc := range desc.FieldsDeleted {
			record(fc, true, false)
		}
	}

	merged := &ChangeDescription{
		PreviousVersion: c.PreviousVersion,
		FieldsAdded:     []FieldChange{},
		FieldsUpdated:   []FieldChange{},
		FieldsDeleted:   []FieldChange{},
	}
	for _, name := range order {
		t := transitions[name]
		switch {
		case !t.hasOld && t.hasNew:
			merged.FieldsAdded = append(merged.FieldsAdded, FieldChange{Name: name, NewValue: t.new})
		case t.hasOld && !t.hasNew:
			merged.FieldsDeleted = append(merged.FieldsDeleted, FieldChange{Name: name, OldValue: t.old})
		case t.hasOld && t.hasNew && !reflect.DeepEqual(t.old, t.new):
			merged.FieldsUpdated = append(merged.FieldsUpdated, FieldChange{Name: name, OldValue: t.old, NewValue: t.new})
		}
	}
	return merged
}
