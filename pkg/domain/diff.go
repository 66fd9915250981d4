package domain

import (
	"bytes"
	"encoding/json"
)

// StateDiff represents the changes between two wizard states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// Flow is always present to identify the target.
	Flow string `json:"flow"`

	CurrentIndex *int    `json:"current_index,omitempty"`
	MaxVisited   *int    `json:"max_visited,omitempty"`
	Status       *Status `json:"status,omitempty"`

	// Validity contains only flipped entries.
	Validity map[int]bool `json:"validity,omitempty"`

	// Payloads contains changed, added or deleted slots.
	// For deletions, the slot is present with a JSON null.
	Payloads map[Slot]json.RawMessage `json:"payloads,omitempty"`
}

var jsonNull = json.RawMessage("null")

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{Flow: newState.Flow}

	if oldState == nil || oldState.CurrentIndex != newState.CurrentIndex {
		v := newState.CurrentIndex
		diff.CurrentIndex = &v
	}
	if oldState == nil || oldState.MaxVisited != newState.MaxVisited {
		v := newState.MaxVisited
		diff.MaxVisited = &v
	}
	if oldState == nil || oldState.Status != newState.Status {
		v := newState.Status
		diff.Status = &v
	}

	diff.Validity = diffValidity(oldState, newState)
	diff.Payloads = diffPayloads(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffValidity(old, new *State) map[int]bool {
	delta := make(map[int]bool)
	for k, v := range new.Validity {
		if old == nil || old.Validity[k] != v {
			delta[k] = v
		}
	}
	if old != nil {
		for k, v := range old.Validity {
			if _, ok := new.Validity[k]; !ok && v {
				delta[k] = false
			}
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffPayloads(old, new *State) map[Slot]json.RawMessage {
	delta := make(map[Slot]json.RawMessage)
	for k, v := range new.Payloads {
		if old == nil {
			delta[k] = v
			continue
		}
		if prev, ok := old.Payloads[k]; !ok || !bytes.Equal(prev, v) {
			delta[k] = v
		}
	}
	if old != nil {
		for k := range old.Payloads {
			if _, ok := new.Payloads[k]; !ok {
				delta[k] = jsonNull
			}
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentIndex == nil &&
		d.MaxVisited == nil &&
		d.Status == nil &&
		len(d.Validity) == 0 &&
		len(d.Payloads) == 0
}
