package wizard

import (
	"sync"

	"github.com/netkrida/myhome-sub001/pkg/domain"
)

// Registry maps step index to "currently submittable".
// Only step reports write to it; the controller reads it.
type Registry struct {
	mu    sync.RWMutex
	valid map[int]bool
	seed  map[int]bool
	size  int
}

// NewRegistry creates a registry seeded with each step's InitialValidity.
func NewRegistry(steps []domain.StepDescriptor) *Registry {
	r := &Registry{
		valid: make(map[int]bool, len(steps)),
		seed:  make(map[int]bool),
		size:  len(steps),
	}
	for i, s := range steps {
		if s.InitialValidity {
			r.seed[i] = true
			r.valid[i] = true
		}
	}
	return r
}

// SetValid records v for step i and reports whether the value changed.
// Out-of-range indexes are ignored.
func (r *Registry) SetValid(i int, v bool) bool {
	if i < 0 || i >= r.size {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.valid[i]
	if ok && prev == v {
		return false
	}
	r.valid[i] = v
	// An absent entry already reads as false.
	return ok || v
}

// IsValid reports the last value written for step i (false if none).
func (r *Registry) IsValid(i int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.valid[i]
}

// AllValidUpTo reports whether every step in 0..i is valid.
func (r *Registry) AllValidUpTo(i int) bool {
	if i < 0 || i >= r.size {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k := 0; k <= i; k++ {
		if !r.valid[k] {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the recorded entries.
func (r *Registry) Snapshot() map[int]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]bool, len(r.valid))
	for k, v := range r.valid {
		out[k] = v
	}
	return out
}

// Len returns the number of declared steps.
func (r *Registry) Len() int { return r.size }

// reset restores the InitialValidity seed.
func (r *Registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.valid = make(map[int]bool, r.size)
	for k, v := range r.seed {
		r.valid[k] = v
	}
}

// GatePolicy decides whether the user may move forward from step index.
type GatePolicy func(r *Registry, index int) bool

// GateCurrent allows moving on when the current step is valid.
func GateCurrent(r *Registry, index int) bool {
	return r.IsValid(index)
}

// GateSequential additionally requires every earlier step to still be valid.
func GateSequential(r *Registry, index int) bool {
	return r.AllValidUpTo(index)
}
