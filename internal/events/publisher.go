// Package events publishes change events after pipeline mutations commit.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sumandas0/catalog/internal/models"
)

type EventType string

const (
	EventEntityCreated EventType = "entityCreated"
	EventEntityUpdated EventType = "entityUpdated"
	EventEntityDeleted EventType = "entityDeleted"
)

// ChangeEvent describes one committed mutation.
type ChangeEvent struct {
	EventType          EventType                 `json:"eventType"`
	EntityType         string                    `json:"entityType"`
	EntityID           uuid.UUID                 `json:"entityId"`
	FullyQualifiedName string                    `json:"fullyQualifiedName"`
	Version            models.EntityVersion      `json:"currentVersion"`
	PreviousVersion    *models.EntityVersion     `json:"previousVersion,omitempty"`
	ChangeDescription  *models.ChangeDescription `json:"changeDescription,omitempty"`
	UserName           string                    `json:"userName"`
	Timestamp          time.Time                 `json:"timestamp"`
}

// Publisher delivers change events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event *ChangeEvent) error
	Close() error
}

type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, *ChangeEvent) error { return nil }

func (NoOpPublisher) Close() error { return nil }

// CallbackPublisher hands every event to a function, mostly for tests.
type CallbackPublisher struct {
	callback func(ctx context.Context, event *ChangeEvent) error
}

func NewCallbackPublisher(cb func(ctx context.Context, event *ChangeEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

func (p *CallbackPublisher) Publish(ctx context.Context, event *ChangeEvent) error {
	return p.callback(ctx, event)
}

func (p *CallbackPublisher) Close() error { return nil }
