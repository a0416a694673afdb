// Package audit appends domain events to a per-project JSONL trail.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an audited change.
type EventType string

const (
	EventRunCreated         EventType = "RUN_CREATED"
	EventBlockerAdded       EventType = "BLOCKER_ADDED"
	EventTasksReprioritized EventType = "TASKS_REPRIORITIZED"
	EventStatusUpdated      EventType = "STATUS_UPDATED"
	EventReplyDegraded      EventType = "REPLY_DEGRADED"
)

// Event is one line of the audit trail.
type Event struct {
	ID      string         `json:"id"`
	Type    EventType      `json:"event"`
	At      time.Time      `json:"at"`
	Project string         `json:"project"`
	Run     string         `json:"run,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with a fresh id.
func NewEvent(t EventType, project, run string) *Event {
	return &Event{
		ID:      uuid.NewString(),
		Type:    t,
		At:      time.Now().UTC(),
		Project: project,
		Run:     run,
	}
}

// WithData adds a key-value pair to the event data.
func (e *Event) WithData(key string, value any) *Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}
