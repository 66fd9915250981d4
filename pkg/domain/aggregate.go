package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Aggregate holds the canonical JSON payload recorded for each step slot.
type Aggregate map[Slot]json.RawMessage

// Encode marshals a step payload into canonical JSON.
// Raw messages are compacted so equal documents compare equal byte-wise.
func Encode(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		return compact(v)
	case []byte:
		return compact(v)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("payload is not JSON-serializable: %w", err)
	}
	return raw, nil
}

func compact(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

// Has reports whether a payload was recorded for the slot.
func (a Aggregate) Has(slot Slot) bool {
	_, ok := a[slot]
	return ok
}

// Equal reports whether the slot holds exactly raw.
func (a Aggregate) Equal(slot Slot, raw json.RawMessage) bool {
	cur, ok := a[slot]
	return ok && bytes.Equal(cur, raw)
}

// Clone returns a deep copy.
func (a Aggregate) Clone() Aggregate {
	if a == nil {
		return nil
	}
	out := make(Aggregate, len(a))
	for k, v := range a {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Slots returns the recorded slots in step order.
func (a Aggregate) Slots() []Slot {
	slots := make([]Slot, 0, len(a))
	for k := range a {
		slots = append(slots, k)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Index() < slots[j].Index() })
	return slots
}

// Decode unmarshals the payload of slot into out.
func (a Aggregate) Decode(slot Slot, out any) error {
	raw, ok := a[slot]
	if !ok {
		return fmt.Errorf("%s: %w", slot, ErrSnapshotNotFound)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", slot, err)
	}
	return nil
}
