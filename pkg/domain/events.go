package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter      EventType = "step_enter"
	EventStepLeave      EventType = "step_leave"
	EventValidityChange EventType = "validity_change"
	EventSubmit         EventType = "submit"
	EventSubmitResult   EventType = "submit_result"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Flow      string    `json:"flow"`
}

// StepEvent represents entry into or exit from a step, or a validity flip.
type StepEvent struct {
	EventBase
	Index  int    `json:"index"`
	StepID string `json:"step_id"`
	Valid  bool   `json:"valid"`
}

// SubmitEvent represents a submission attempt and, for EventSubmitResult, its outcome.
type SubmitEvent struct {
	EventBase
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for wizard observability.
type LifecycleHooks struct {
	OnStepEnter      func(context.Context, *StepEvent)
	OnStepLeave      func(context.Context, *StepEvent)
	OnValidityChange func(context.Context, *StepEvent)
	OnSubmit         func(context.Context, *SubmitEvent)
	OnSubmitResult   func(context.Context, *SubmitEvent)
}

// Receipt is returned after the backend accepted a submission.
type Receipt struct {
	Flow        string          `json:"flow"`
	Response    json.RawMessage `json:"response,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}
