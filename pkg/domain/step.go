package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PersistPolicy decides when a step's payload is written to storage.
type PersistPolicy int

const (
	// PersistWhenValid writes the step snapshot only while the step reports valid.
	PersistWhenValid PersistPolicy = iota
	// PersistAlways records and writes the payload on every change, valid or not.
	PersistAlways
	// PersistWithDraft writes valid payloads to the step key and invalid in-progress
	// edits to a separate draft key, so half-typed input survives a reload.
	PersistWithDraft
)

func (p PersistPolicy) String() string {
	switch p {
	case PersistWhenValid:
		return "when_valid"
	case PersistAlways:
		return "always"
	case PersistWithDraft:
		return "with_draft"
	default:
		return fmt.Sprintf("PersistPolicy(%d)", int(p))
	}
}

// MarshalText encodes the policy by name.
func (p PersistPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePersistPolicy is the inverse of String.
func ParsePersistPolicy(s string) (PersistPolicy, error) {
	switch s {
	case "", "when_valid":
		return PersistWhenValid, nil
	case "always":
		return PersistAlways, nil
	case "with_draft":
		return PersistWithDraft, nil
	}
	return PersistWhenValid, fmt.Errorf("unknown persist policy %q", s)
}

// StepDescriptor is the static description of one wizard step.
type StepDescriptor struct {
	// ID is stable and unique within a wizard instance.
	ID string `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Render is the caller's UI unit. The engine never inspects it.
	Render any `json:"-"`

	// InitialValidity seeds the validity registry before the step reports.
	InitialValidity bool `json:"initial_validity,omitempty"`

	Persist PersistPolicy `json:"persist"`
}

// Slot is the logical key of a step inside the aggregate ("step1".."stepN").
type Slot string

// SlotFor returns the slot of the zero-based step index.
func SlotFor(index int) Slot {
	return Slot("step" + strconv.Itoa(index+1))
}

// Index returns the zero-based step index of the slot, or -1 if malformed.
func (s Slot) Index() int {
	n, err := strconv.Atoi(strings.TrimPrefix(string(s), "step"))
	if err != nil || n < 1 || !strings.HasPrefix(string(s), "step") {
		return -1
	}
	return n - 1
}

// StepRef identifies a step in user-facing messages.
type StepRef struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

func (r StepRef) String() string {
	if r.Title != "" {
		return fmt.Sprintf("step %d (%s)", r.Index+1, r.Title)
	}
	return fmt.Sprintf("step %d (%s)", r.Index+1, r.ID)
}

// ValidateSteps checks that a step list can back a wizard.
func ValidateSteps(steps []StepDescriptor) error {
	if len(steps) == 0 {
		return fmt.Errorf("wizard requires at least one step")
	}
	seen := make(map[string]int, len(steps))
	for i, s := range steps {
		if s.ID == "" {
			return fmt.Errorf("step %d: id cannot be empty", i+1)
		}
		if prev, ok := seen[s.ID]; ok {
			return fmt.Errorf("step %d: duplicate id %q (already used by step %d)", i+1, s.ID, prev+1)
		}
		seen[s.ID] = i
	}
	return nil
}
