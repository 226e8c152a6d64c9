package models

import (
	"github.com/google/uuid"
)

const (
	EntityTypePipeline        = "pipeline"
	EntityTypePipelineService = "pipelineService"
	EntityTypeUser            = "user"
	EntityTypeTeam            = "team"
	EntityTypeTag             = "tag"
)

// EntityReference is a weak pointer to another catalog entity. Name and Href
// are filled in by the reference resolver and never trusted from input.
type EntityReference struct {
	ID          uuid.UUID `json:"id" validate:"required"`
	Type        string    `json:"type" validate:"required"`
	Name        string    `json:"name,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Href        string    `json:"href,omitempty"`
}

func (r *EntityReference) Clone() *EntityReference {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// SameTarget reports whether both references point at the same entity.
func (r *EntityReference) SameTarget(o *EntityReference) bool {
	if r == nil || o == nil {
		return r == nil && o == nil
	}
	return r.ID == o.ID && r.Type == o.Type
}

type TagLabel struct {
	TagFQN    string `json:"tagFQN" validate:"required,max=256"`
	Source    string `json:"source,omitempty" validate:"omitempty,oneof=Classification Glossary"`
	LabelType string `json:"labelType,omitempty" validate:"omitempty,oneof=Manual Propagated Automated Derived"`
	State     string `json:"state,omitempty" validate:"omitempty,oneof=Suggested Confirmed"`
}

// DirectoryEntry is a resolvable entity known to the reference directory.
type DirectoryEntry struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName,omitempty"`
}

func (e DirectoryEntry) Reference() *EntityReference {
	return &EntityReference{
		ID:          e.ID,
		Type:        e.Type,
		Name:        e.Name,
		DisplayName: e.DisplayName,
	}
}
