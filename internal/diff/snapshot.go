package diff

import (
	"encoding/json"
	"fmt"
)

// Snapshot is an immutable, JSON-normalized copy of an entity's fields. Values
// are limited to the shapes encoding/json produces for map[string]any.
type Snapshot struct {
	entityType string
	fields     map[string]any
}

// SnapshotOf captures v by marshalling it, so later mutation of v does not leak
// into the snapshot.
func SnapshotOf(entityType string, v any) (Snapshot, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to encode %s snapshot: %w", entityType, err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode %s snapshot: %w", entityType, err)
	}
	return Snapshot{entityType: entityType, fields: fields}, nil
}

func (s Snapshot) EntityType() string {
	return s.entityType
}

// Get returns a normalized copy of the named field and whether it is present.
// Nil values, empty strings and empty collections count as absent.
func (s Snapshot) Get(name string) (any, bool) {
	v, ok := s.fields[name]
	if !ok || isAbsent(v) {
		return nil, false
	}
	return cloneValue(v), true
}

func isAbsent(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	return false
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return typed
	}
}
