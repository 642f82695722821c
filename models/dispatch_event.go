package models

import (
	"time"

	"github.com/google/uuid"
)

// DispatchEventKind represents what happened during a dispatch
type DispatchEventKind string

const (
	DispatchEventAttemptFailed     DispatchEventKind = "attempt_failed"
	DispatchEventFallbackSucceeded DispatchEventKind = "fallback_succeeded"
	DispatchEventExhausted         DispatchEventKind = "exhausted"
)

// DispatchEvent is one audit record of the fallback dispatcher
type DispatchEvent struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	DispatchID string            `json:"dispatch_id" db:"dispatch_id"`
	Kind       DispatchEventKind `json:"kind" db:"kind"`
	Model      string            `json:"model" db:"model"`                      // candidate that failed or succeeded
	FromModel  *string           `json:"from_model,omitempty" db:"from_model"` // first candidate, for fallback events
	Message    string            `json:"message,omitempty" db:"message"`
	Attempt    int               `json:"attempt" db:"attempt"` // 1-based position in the candidate list
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the DispatchEvent model
func (DispatchEvent) TableName() string {
	return "dispatch_events"
}

// NewDispatchEvent creates a new DispatchEvent instance
func NewDispatchEvent(dispatchID string, kind DispatchEventKind, model string, attempt int) *DispatchEvent {
	return &DispatchEvent{
		ID:         uuid.New(),
		DispatchID: dispatchID,
		Kind:       kind,
		Model:      model,
		Attempt:    attempt,
		CreatedAt:  time.Now().UTC(),
	}
}

// WithMessage sets the failure message
func (e *DispatchEvent) WithMessage(message string) *DispatchEvent {
	e.Message = message
	return e
}

// WithFromModel sets the originally tried model
func (e *DispatchEvent) WithFromModel(model string) *DispatchEvent {
	e.FromModel = &model
	return e
}
