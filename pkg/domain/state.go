package domain

// Status defines where a wizard instance is in its lifecycle.
type Status string

const (
	StatusActive     Status = "active"     // Collecting step input
	StatusSubmitting Status = "submitting" // Waiting on the backend collaborator
	StatusCompleted  Status = "completed"  // Terminal: submission accepted
)

// State represents the current snapshot of one wizard instance.
type State struct {
	// Flow is the persistence namespace of the instance (e.g. "property-create").
	Flow string `json:"flow"`

	// CurrentIndex is the active step. Invariant: 0 <= CurrentIndex < len(steps).
	CurrentIndex int `json:"current_index"`

	// MaxVisited is the highest index ever reached. GoTo cannot pass it.
	MaxVisited int `json:"max_visited"`

	Status Status `json:"status"`

	// Validity mirrors the validity registry. Missing entries read as false.
	Validity map[int]bool `json:"validity,omitempty"`

	// Payloads holds the last recorded payload per slot.
	Payloads Aggregate `json:"payloads,omitempty"`

	// Drafts holds in-progress invalid edits of PersistWithDraft steps.
	Drafts Aggregate `json:"drafts,omitempty"`
}

// NewState creates a clean state at the first step.
func NewState(flow string) *State {
	return &State{
		Flow:     flow,
		Status:   StatusActive,
		Validity: make(map[int]bool),
		Payloads: make(Aggregate),
		Drafts:   make(Aggregate),
	}
}

// Clone returns a deep copy safe for the caller to mutate.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Validity = make(map[int]bool, len(s.Validity))
	for k, v := range s.Validity {
		next.Validity[k] = v
	}
	next.Payloads = s.Payloads.Clone()
	if next.Payloads == nil {
		next.Payloads = make(Aggregate)
	}
	next.Drafts = s.Drafts.Clone()
	if next.Drafts == nil {
		next.Drafts = make(Aggregate)
	}
	return &next
}

// Pointer is the flow-level record stored under the flow key.
type Pointer struct {
	Index      int          `json:"index"`
	MaxVisited int          `json:"max_visited"`
	Validity   map[int]bool `json:"validity,omitempty"`
}
