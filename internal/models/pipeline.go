package models

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	Name            string   `json:"name" validate:"required,notblank,max=128"`
	DisplayName     string   `json:"displayName,omitempty"`
	Description     string   `json:"description,omitempty"`
	TaskURL         string   `json:"taskUrl,omitempty" validate:"omitempty,url"`
	TaskType        string   `json:"taskType,omitempty"`
	TaskSQL         string   `json:"taskSQL,omitempty"`
	DownstreamTasks []string `json:"downstreamTasks,omitempty"`
}

type Pipeline struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name" validate:"required,notblank,max=64"`
	DisplayName        string             `json:"displayName,omitempty" validate:"max=256"`
	FullyQualifiedName string             `json:"fullyQualifiedName"`
	Description        string             `json:"description,omitempty"`
	PipelineURL        string             `json:"pipelineUrl,omitempty" validate:"omitempty,url"`
	Concurrency        int                `json:"concurrency,omitempty" validate:"min=0"`
	PipelineLocation   string             `json:"pipelineLocation,omitempty"`
	StartDate          *time.Time         `json:"startDate,omitempty"`
	Tasks              []Task             `json:"tasks,omitempty" validate:"unique=Name,dive"`
	Owner              *EntityReference   `json:"owner,omitempty"`
	Service            *EntityReference   `json:"service,omitempty" validate:"required"`
	Tags               []TagLabel         `json:"tags,omitempty" validate:"dive"`
	Version            EntityVersion      `json:"version"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	UpdatedBy          string             `json:"updatedBy"`
	Href               string             `json:"href,omitempty"`
	ChangeDescription  *ChangeDescription `json:"changeDescription,omitempty"`
}

// BuildFQN derives the fully qualified name of a pipeline from its service.
func BuildFQN(serviceName, name string) string {
	return serviceName + "." + name
}

// Clone returns a deep copy so callers can mutate the result without touching
// a stored record.
func (p *Pipeline) Clone() *Pipeline {
	if p == nil {
		return nil
	}
	c := *p
	if p.StartDate != nil {
		d := *p.StartDate
		c.StartDate = &d
	}
	if p.Tasks != nil {
		c.Tasks = make([]Task, len(p.Tasks))
		for i, t := range p.Tasks {
			c.Tasks[i] = t
			if t.DownstreamTasks != nil {
				c.Tasks[i].DownstreamTasks = append([]string(nil), t.DownstreamTasks...)
			}
		}
	}
	if p.Tags != nil {
		c.Tags = append([]TagLabel(nil), p.Tags...)
	}
	c.Owner = p.Owner.Clone()
	c.Service = p.Service.Clone()
	c.ChangeDescription = p.ChangeDescription.Clone()
	return &c
}

// CreatePipeline is the payload for create and create-or-update. For updates a
// zero-valued field means "leave unchanged"; removals go through patch.
type CreatePipeline struct {
	Name             string           `json:"name" validate:"required,notblank,max=64"`
	DisplayName      string           `json:"displayName,omitempty" validate:"max=256"`
	Description      string           `json:"description,omitempty"`
	PipelineURL      string           `json:"pipelineUrl,omitempty" validate:"omitempty,url"`
	Concurrency      int              `json:"concurrency,omitempty" validate:"min=0"`
	PipelineLocation string           `json:"pipelineLocation,omitempty"`
	StartDate        *time.Time       `json:"startDate,omitempty"`
	Tasks            []Task           `json:"tasks,omitempty" validate:"unique=Name,dive"`
	Owner            *EntityReference `json:"owner,omitempty"`
	Service          *EntityReference `json:"service" validate:"required"`
	Tags             []TagLabel       `json:"tags,omitempty" validate:"dive"`
}

// Paging carries the opaque cursors of a listed page and the size of the
// filtered collection.
type Paging struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
	Total  int    `json:"total"`
}

type PipelineList struct {
	Data   []*Pipeline `json:"data"`
	Paging Paging      `json:"paging"`
}

// EntityHistory lists every archived version of an entity, newest first.
type EntityHistory struct {
	EntityType string      `json:"entityType"`
	Versions   []*Pipeline `json:"versions"`
}
