package sdk

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline is a pipeline as returned by the catalog. Version is the
// "major.minor" string, e.g. "0.3".
type Pipeline struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	DisplayName        string             `json:"displayName,omitempty"`
	FullyQualifiedName string             `json:"fullyQualifiedName"`
	Description        string             `json:"description,omitempty"`
	PipelineURL        string             `json:"pipelineUrl,omitempty"`
	Concurrency        int                `json:"concurrency,omitempty"`
	PipelineLocation   string             `json:"pipelineLocation,omitempty"`
	StartDate          *time.Time         `json:"startDate,omitempty"`
	Tasks              []Task             `json:"tasks,omitempty"`
	Owner              *EntityReference   `json:"owner,omitempty"`
	Service            *EntityReference   `json:"service,omitempty"`
	Tags               []TagLabel         `json:"tags,omitempty"`
	Version            string             `json:"version"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	UpdatedBy          string             `json:"updatedBy"`
	Href               string             `json:"href,omitempty"`
	ChangeDescription  *ChangeDescription `json:"changeDescription,omitempty"`
}

type Task struct {
	Name            string   `json:"name"`
	DisplayName     string   `json:"displayName,omitempty"`
	Description     string   `json:"description,omitempty"`
	TaskURL         string   `json:"taskUrl,omitempty"`
	TaskType        string   `json:"taskType,omitempty"`
	TaskSQL         string   `json:"taskSQL,omitempty"`
	DownstreamTasks []string `json:"downstreamTasks,omitempty"`
}

type EntityReference struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Href        string    `json:"href,omitempty"`
}

type TagLabel struct {
	TagFQN    string `json:"tagFQN"`
	Source    string `json:"source,omitempty"`
	LabelType string `json:"labelType,omitempty"`
	State     string `json:"state,omitempty"`
}

type FieldChange struct {
	Name     string `json:"name"`
	OldValue any    `json:"oldValue,omitempty"`
	NewValue any    `json:"newValue,omitempty"`
}

type ChangeDescription struct {
	PreviousVersion string        `json:"previousVersion"`
	FieldsAdded     []FieldChange `json:"fieldsAdded"`
	FieldsUpdated   []FieldChange `json:"fieldsUpdated"`
	FieldsDeleted   []FieldChange `json:"fieldsDeleted"`
}

// CreatePipelineRequest is the body of create and create-or-update. On update
// an empty field leaves the stored value alone; use Patch to remove values.
type CreatePipelineRequest struct {
	Name             string           `json:"name"`
	DisplayName      string           `json:"displayName,omitempty"`
	Description      string           `json:"description,omitempty"`
	PipelineURL      string           `json:"pipelineUrl,omitempty"`
	Concurrency      int              `json:"concurrency,omitempty"`
	PipelineLocation string           `json:"pipelineLocation,omitempty"`
	StartDate        *time.Time       `json:"startDate,omitempty"`
	Tasks            []Task           `json:"tasks,omitempty"`
	Owner            *EntityReference `json:"owner,omitempty"`
	Service          *EntityReference `json:"service"`
	Tags             []TagLabel       `json:"tags,omitempty"`
}

// PatchOperation is one RFC 6902 operation.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}

type Paging struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
	Total  int    `json:"total"`
}

type PipelineList struct {
	Data   []*Pipeline `json:"data"`
	Paging Paging      `json:"paging"`
}

type EntityHistory struct {
	EntityType string      `json:"entityType"`
	Versions   []*Pipeline `json:"versions"`
}

// ListOptions filters and pages List. Only one of Before and After may be set.
type ListOptions struct {
	Service string
	Fields  []string
	Limit   int
	Before  string
	After   string
}
