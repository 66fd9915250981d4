package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	base := func() *State {
		s := NewState("property-create")
		s.Validity[0] = true
		s.Payloads[SlotFor(0)] = json.RawMessage(`{"name":"Kos Mawar"}`)
		return s
	}

	t.Run("Initial Load (Old is Nil)", func(t *testing.T) {
		d := Diff(nil, base())
		require.NotNil(t, d)
		require.NotNil(t, d.CurrentIndex)
		assert.Equal(t, 0, *d.CurrentIndex)
		assert.Equal(t, StatusActive, *d.Status)
		assert.Equal(t, map[int]bool{0: true}, d.Validity)
		assert.JSONEq(t, `{"name":"Kos Mawar"}`, string(d.Payloads["step1"]))
	})

	t.Run("No Changes", func(t *testing.T) {
		assert.Nil(t, Diff(base(), base()))
	})

	t.Run("Navigation Only", func(t *testing.T) {
		next := base()
		next.CurrentIndex = 1
		next.MaxVisited = 1
		d := Diff(base(), next)
		require.NotNil(t, d)
		assert.Equal(t, 1, *d.CurrentIndex)
		assert.Equal(t, 1, *d.MaxVisited)
		assert.Nil(t, d.Status)
		assert.Empty(t, d.Payloads)
	})

	t.Run("Payload Changed And Removed", func(t *testing.T) {
		old := base()
		old.Payloads[SlotFor(1)] = json.RawMessage(`{"city":"Bandung"}`)
		next := base()
		next.Payloads[SlotFor(0)] = json.RawMessage(`{"name":"Kos Melati"}`)
		next.Validity[0] = false

		d := Diff(old, next)
		require.NotNil(t, d)
		assert.JSONEq(t, `{"name":"Kos Melati"}`, string(d.Payloads["step1"]))
		assert.Equal(t, "null", string(d.Payloads["step2"]))
		assert.Equal(t, map[int]bool{0: false}, d.Validity)
	})
}

func TestSlot(t *testing.T) {
	assert.Equal(t, Slot("step1"), SlotFor(0))
	assert.Equal(t, 3, SlotFor(3).Index())
	assert.Equal(t, -1, Slot("photos").Index())
	assert.Equal(t, -1, Slot("step0").Index())
}

func TestEncode_Canonical(t *testing.T) {
	a, err := Encode(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	b, err := Encode(json.RawMessage("{ \"a\": \"x\",\n \"b\": 1 }"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	_, err = Encode(make(chan int))
	assert.Error(t, err)
}

func TestValidateSteps(t *testing.T) {
	assert.Error(t, ValidateSteps(nil))
	assert.Error(t, ValidateSteps([]StepDescriptor{{ID: "a"}, {ID: "a"}}))
	assert.Error(t, ValidateSteps([]StepDescriptor{{ID: ""}}))
	assert.NoError(t, ValidateSteps([]StepDescriptor{{ID: "a"}, {ID: "b"}}))
}

func TestPersistPolicy_Text(t *testing.T) {
	for _, p := range []PersistPolicy{PersistWhenValid, PersistAlways, PersistWithDraft} {
		got, err := ParsePersistPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	raw, err := json.Marshal(StepDescriptor{ID: "photos", Title: "Photos", Persist: PersistAlways, Render: func() {}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"photos","title":"Photos","persist":"always"}`, string(raw))

	_, err = ParsePersistPolicy("sometimes")
	assert.Error(t, err)
}
