package wizard

import (
	"testing"

	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func fourSteps() []domain.StepDescriptor {
	return []domain.StepDescriptor{
		{ID: "basics", Title: "Basic info"},
		{ID: "location", Title: "Location"},
		{ID: "photos", Title: "Photos"},
		{ID: "facilities", Title: "Facilities"},
	}
}

func TestRegistry_DefaultsToInvalid(t *testing.T) {
	r := NewRegistry(fourSteps())

	for i := 0; i < 4; i++ {
		assert.False(t, r.IsValid(i), "step %d", i)
	}
	assert.False(t, r.IsValid(42))
	assert.Equal(t, 4, r.Len())
}

func TestRegistry_InitialValidity(t *testing.T) {
	steps := fourSteps()
	steps[2].InitialValidity = true
	r := NewRegistry(steps)

	assert.True(t, r.IsValid(2))
	r.SetValid(2, false)
	assert.False(t, r.IsValid(2))

	r.reset()
	assert.True(t, r.IsValid(2), "reset restores the seed")
}

func TestRegistry_SetValidReportsChanges(t *testing.T) {
	r := NewRegistry(fourSteps())

	assert.False(t, r.SetValid(0, false), "absent already reads as false")
	assert.True(t, r.SetValid(0, true))
	assert.False(t, r.SetValid(0, true), "idempotent")
	assert.True(t, r.SetValid(0, false))

	assert.False(t, r.SetValid(-1, true))
	assert.False(t, r.SetValid(4, true))
	assert.False(t, r.IsValid(4))
}

func TestRegistry_AllValidUpTo(t *testing.T) {
	r := NewRegistry(fourSteps())
	r.SetValid(0, true)
	r.SetValid(2, true)

	assert.True(t, r.AllValidUpTo(0))
	assert.False(t, r.AllValidUpTo(1))
	assert.False(t, r.AllValidUpTo(2))

	r.SetValid(1, true)
	assert.True(t, r.AllValidUpTo(2))
	assert.False(t, r.AllValidUpTo(3))
	assert.False(t, r.AllValidUpTo(7))
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry(fourSteps())
	r.SetValid(1, true)

	snap := r.Snapshot()
	snap[1] = false
	snap[3] = true

	assert.True(t, r.IsValid(1))
	assert.False(t, r.IsValid(3))
}

func TestGatePolicies(t *testing.T) {
	r := NewRegistry(fourSteps())
	r.SetValid(1, true)

	assert.True(t, GateCurrent(r, 1))
	assert.False(t, GateSequential(r, 1), "step 0 is still invalid")

	r.SetValid(0, true)
	assert.True(t, GateSequential(r, 1))
}
