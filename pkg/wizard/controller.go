package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/netkrida/myhome-sub001/internal/logging"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/persistence"
	"github.com/netkrida/myhome-sub001/pkg/ports"
)

// ErrClosed is returned by operations on a controller after Close.
var ErrClosed = errors.New("wizard controller closed")

// ErrAlreadyRestored is returned when Restore runs twice on one instance.
var ErrAlreadyRestored = errors.New("wizard already restored")

// Controller drives one wizard instance.
// It is safe for concurrent use, but the engine assumes one host event loop.
type Controller struct {
	mu sync.Mutex

	flow  string
	steps []domain.StepDescriptor

	state    *domain.State
	registry *Registry
	queue    *Queue

	store       *persistence.Adapter
	scope       persistence.Scope
	coordinator *Coordinator
	gate        GatePolicy

	debounceDelay time.Duration
	debounced     func(func())

	// Last values written to storage, per slot.
	committed       domain.Aggregate
	committedDrafts domain.Aggregate
	dirty           bool

	receipt  *domain.Receipt
	restored bool
	closed   bool

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// New creates a controller for flow. flow is the persistence namespace;
// store may be nil to disable persistence.
func New(flow string, steps []domain.StepDescriptor, store *persistence.Adapter, submitter ports.Submitter, opts ...Option) (*Controller, error) {
	if flow == "" {
		return nil, fmt.Errorf("flow name cannot be empty")
	}
	if err := domain.ValidateSteps(steps); err != nil {
		return nil, err
	}
	if submitter == nil {
		return nil, fmt.Errorf("flow %q: submitter is required", flow)
	}

	c := &Controller{
		flow:            flow,
		steps:           append([]domain.StepDescriptor(nil), steps...),
		state:           domain.NewState(flow),
		registry:        NewRegistry(steps),
		queue:           &Queue{},
		store:           store,
		gate:            GateCurrent,
		debounceDelay:   DefaultDebounce,
		committed:       make(domain.Aggregate),
		committedDrafts: make(domain.Aggregate),
		logger:          logging.NewNop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("flow", flow)
	c.state.Validity = c.registry.Snapshot()
	c.coordinator = NewCoordinator(flow, c.steps, submitter, store, c.scope, c.logger)
	if c.debounceDelay > 0 {
		c.debounced = debounce.New(c.debounceDelay)
	}
	return c, nil
}

// Flow returns the persistence namespace.
func (c *Controller) Flow() string { return c.flow }

// Steps returns the step descriptors.
func (c *Controller) Steps() []domain.StepDescriptor {
	return append([]domain.StepDescriptor(nil), c.steps...)
}

// State returns a copy of the current state.
func (c *Controller) State() *domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Current returns the index and descriptor of the active step.
func (c *Controller) Current() (int, domain.StepDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentIndex, c.steps[c.state.CurrentIndex]
}

// Payload returns the recorded payload of step index.
func (c *Controller) Payload(index int) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.state.Payloads[domain.SlotFor(index)]
	return append(json.RawMessage(nil), raw...), ok
}

// Draft returns the in-progress edit of step index, used to seed its form.
func (c *Controller) Draft(index int) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.state.Drafts[domain.SlotFor(index)]
	return append(json.RawMessage(nil), raw...), ok
}

// Registry exposes the validity registry for read access.
func (c *Controller) Registry() *Registry { return c.registry }

// Receipt returns the backend response once the wizard completed.
func (c *Controller) Receipt() *domain.Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt
}

// Pending returns the number of reports waiting for the next tick.
func (c *Controller) Pending() int { return c.queue.Len() }

// Restore seeds the instance from storage. Entries in initial (keyed by step
// index) are authoritative, e.g. an edit form pre-filled from a server record,
// and win over persisted drafts; when initial is empty the active step is
// restored from the flow pointer. It reports whether anything was restored
// from storage.
func (c *Controller) Restore(ctx context.Context, initial map[int]any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}
	if c.restored {
		return false, ErrAlreadyRestored
	}
	c.restored = true

	restored := false
	for i, step := range c.steps {
		slot := domain.SlotFor(i)

		if data, ok := initial[i]; ok {
			raw, err := domain.Encode(data)
			if err != nil {
				return false, fmt.Errorf("initial data for step %d: %w", i+1, err)
			}
			c.state.Payloads[slot] = raw
			c.registry.SetValid(i, true)
			continue
		}

		if c.store == nil {
			continue
		}
		if snap, ok := c.store.LoadRaw(ctx, persistence.StepKey(c.flow, i+1), c.scope); ok {
			c.state.Payloads[slot] = snap.Data
			c.committed[slot] = snap.Data
			if step.Persist != domain.PersistAlways {
				c.registry.SetValid(i, true)
			}
			restored = true
		}
		if step.Persist == domain.PersistWithDraft {
			if snap, ok := c.store.LoadRaw(ctx, persistence.DraftKey(c.flow, i+1), c.scope); ok {
				c.state.Drafts[slot] = snap.Data
				c.committedDrafts[slot] = snap.Data
				restored = true
			}
		}
	}

	if len(initial) == 0 && c.store != nil {
		if ptr, ok := persistence.Load[domain.Pointer](ctx, c.store, persistence.PointerKey(c.flow), c.scope); ok {
			last := len(c.steps) - 1
			c.state.CurrentIndex = clamp(ptr.Data.Index, 0, last)
			c.state.MaxVisited = clamp(ptr.Data.MaxVisited, c.state.CurrentIndex, last)
			for i, v := range ptr.Data.Validity {
				if i >= 0 && i <= last {
					c.registry.SetValid(i, v)
				}
			}
			restored = true
		}
	}

	c.state.Validity = c.registry.Snapshot()
	if restored {
		c.logger.Debug("wizard restored", "index", c.state.CurrentIndex, "steps", len(c.state.Payloads))
	}
	c.emitStep(ctx, c.hooks.OnStepEnter, domain.EventStepEnter, c.state.CurrentIndex)
	return restored, nil
}

// Report records what step index currently holds. The write is deferred to
// the next Tick; reports of one step apply in the order they were made.
func (c *Controller) Report(index int, data any, valid bool) error {
	if index < 0 || index >= len(c.steps) {
		return fmt.Errorf("%w: %d", domain.ErrStepOutOfRange, index)
	}
	raw, err := domain.Encode(data)
	if err != nil {
		return fmt.Errorf("step %d: %w", index+1, err)
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	c.queue.Post(func() { c.applyLocked(index, raw, valid) })
	return nil
}

// Tick applies every pending report and returns how many were applied.
func (c *Controller) Tick(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drainLocked()
}

// Flush applies pending reports and writes pending snapshots now.
func (c *Controller) Flush(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	c.commitLocked(ctx)
}

// CanGoNext reports whether GoNext would move, with a reason when it would not.
func (c *Controller) CanGoNext() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	if err := c.checkActiveLocked(); err != nil {
		return false, err.Error()
	}
	if !c.gate(c.registry, c.state.CurrentIndex) {
		return false, "complete this step before continuing"
	}
	if c.state.CurrentIndex == len(c.steps)-1 {
		if invalid := c.firstInvalidLocked(); invalid >= 0 {
			return false, fmt.Sprintf("step %d (%s) is not valid", invalid+1, c.steps[invalid].Title)
		}
	}
	return true, ""
}

// GoNext moves to the next step if the gate allows it. On the last step it
// submits instead and, on success, completes the wizard.
func (c *Controller) GoNext(ctx context.Context) error {
	c.mu.Lock()
	c.drainLocked()
	if err := c.checkActiveLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	from := c.state.CurrentIndex
	if !c.gate(c.registry, from) {
		c.mu.Unlock()
		c.logger.Debug("next blocked", "index", from)
		return &domain.NavigationError{From: from, To: from + 1, Reason: "complete this step before continuing"}
	}

	if from == len(c.steps)-1 {
		// GoTo can reach the last step past a step invalidated later, so
		// submitting always needs every step valid whatever the gate.
		if invalid := c.firstInvalidLocked(); invalid >= 0 {
			c.mu.Unlock()
			c.logger.Debug("submit blocked", "invalid", invalid)
			return &domain.NavigationError{From: from, To: invalid, Reason: fmt.Sprintf("step %d (%s) is not valid", invalid+1, c.steps[invalid].Title)}
		}
		c.mu.Unlock()
		return c.Submit(ctx)
	}

	c.moveLocked(ctx, from+1)
	c.mu.Unlock()
	return nil
}

// firstInvalidLocked returns the lowest step index the registry marks
// invalid, or -1 when every step is valid.
func (c *Controller) firstInvalidLocked() int {
	if c.registry.AllValidUpTo(len(c.steps) - 1) {
		return -1
	}
	for i := range c.steps {
		if !c.registry.IsValid(i) {
			return i
		}
	}
	return -1
}

// GoBack moves to the previous step. Recorded payloads and validity are kept.
func (c *Controller) GoBack(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	if err := c.checkActiveLocked(); err != nil {
		return err
	}

	from := c.state.CurrentIndex
	if from == 0 {
		return &domain.NavigationError{From: 0, To: -1, Reason: "already at the first step"}
	}
	c.moveLocked(ctx, from-1)
	return nil
}

// GoTo jumps to index, which must not be beyond the furthest step visited.
func (c *Controller) GoTo(ctx context.Context, index int) error {
	if index < 0 || index >= len(c.steps) {
		return fmt.Errorf("%w: %d", domain.ErrStepOutOfRange, index)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	if err := c.checkActiveLocked(); err != nil {
		return err
	}

	from := c.state.CurrentIndex
	if index > c.state.MaxVisited {
		return &domain.NavigationError{From: from, To: index, Reason: "step not reached yet"}
	}
	if index != from {
		c.moveLocked(ctx, index)
	}
	return nil
}

// Submit hands the aggregate to the coordinator. It is what GoNext calls on
// the last step, and it can also be called directly; the coordinator still
// refuses an incomplete aggregate. Failures leave all collected data in place.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	c.drainLocked()
	if err := c.checkActiveLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	agg := c.state.Payloads.Clone()
	c.state.Status = domain.StatusSubmitting
	c.emitSubmit(ctx, c.hooks.OnSubmit, domain.EventSubmit, nil, 0)
	c.mu.Unlock()

	start := c.now()
	receipt, err := c.coordinator.Submit(ctx, agg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		// Unmounted while the request was in flight: nothing left to update.
		c.logger.Debug("ignoring submission result after close", "err", err)
		if err != nil {
			return errors.Join(ErrClosed, err)
		}
		return ErrClosed
	}

	c.emitSubmit(ctx, c.hooks.OnSubmitResult, domain.EventSubmitResult, err, c.now().Sub(start))
	if err != nil {
		c.state.Status = domain.StatusActive
		if c.dirty {
			c.markDirtyLocked()
		}
		return err
	}

	c.emitStep(ctx, c.hooks.OnStepLeave, domain.EventStepLeave, c.state.CurrentIndex)
	c.state.Status = domain.StatusCompleted
	c.state.Payloads = make(domain.Aggregate)
	c.state.Drafts = make(domain.Aggregate)
	c.committed = make(domain.Aggregate)
	c.committedDrafts = make(domain.Aggregate)
	c.dirty = false
	c.receipt = receipt
	return nil
}

// Reset discards every payload and snapshot and returns to the first step.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.take()
	if err := c.checkActiveLocked(); err != nil {
		return err
	}

	if c.store != nil {
		c.store.ClearFlow(ctx, c.flow, len(c.steps), c.scope)
	}
	c.registry.reset()
	c.state = domain.NewState(c.flow)
	c.state.Validity = c.registry.Snapshot()
	c.committed = make(domain.Aggregate)
	c.committedDrafts = make(domain.Aggregate)
	c.dirty = false
	c.emitStep(ctx, c.hooks.OnStepEnter, domain.EventStepEnter, 0)
	return nil
}

// Close unmounts the instance: pending and future writes are dropped and a
// submission still in flight will not touch the state when it returns.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.queue.take()
}

func (c *Controller) checkActiveLocked() error {
	if c.closed {
		return ErrClosed
	}
	switch c.state.Status {
	case domain.StatusCompleted:
		return domain.ErrCompleted
	case domain.StatusSubmitting:
		return &domain.NavigationError{From: c.state.CurrentIndex, To: c.state.CurrentIndex, Reason: "submission in progress"}
	}
	return nil
}

func (c *Controller) drainLocked() int {
	tasks := c.queue.take()
	for _, fn := range tasks {
		fn()
	}
	return len(tasks)
}

// applyLocked records one report. Identical repeats change nothing.
func (c *Controller) applyLocked(index int, raw json.RawMessage, valid bool) {
	if c.closed || c.state.Status == domain.StatusCompleted {
		return
	}

	slot := domain.SlotFor(index)
	policy := c.steps[index].Persist
	changed := false

	if c.registry.SetValid(index, valid) {
		changed = true
		c.emitValidity(index, valid)
	}
	c.state.Validity[index] = valid

	if valid || policy == domain.PersistAlways {
		if !c.state.Payloads.Equal(slot, raw) {
			c.state.Payloads[slot] = raw
			changed = true
		}
		if _, ok := c.state.Drafts[slot]; ok {
			delete(c.state.Drafts, slot)
			changed = true
		}
	} else if policy == domain.PersistWithDraft && !c.state.Drafts.Equal(slot, raw) {
		c.state.Drafts[slot] = raw
		changed = true
	}

	if changed {
		c.markDirtyLocked()
	}
}

func (c *Controller) moveLocked(ctx context.Context, to int) {
	from := c.state.CurrentIndex
	c.emitStep(ctx, c.hooks.OnStepLeave, domain.EventStepLeave, from)

	c.state.CurrentIndex = to
	if to > c.state.MaxVisited {
		c.state.MaxVisited = to
	}
	c.logger.Debug("step changed", "from", from, "to", to)

	// The pointer is written on every move, whatever the validity, so a
	// reload resumes on this step.
	c.savePointerLocked(ctx)
	c.markDirtyLocked()
	c.emitStep(ctx, c.hooks.OnStepEnter, domain.EventStepEnter, to)
}

func (c *Controller) markDirtyLocked() {
	c.dirty = true
	if c.store == nil {
		return
	}
	if c.debounced == nil {
		c.commitLocked(context.Background())
		return
	}
	c.debounced(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.commitLocked(context.Background())
	})
}

// commitLocked writes every slot that differs from what storage holds.
func (c *Controller) commitLocked(ctx context.Context) {
	// Nothing is written while a submission is in flight; a failed attempt
	// reschedules the commit.
	if !c.dirty || c.closed || c.store == nil || c.state.Status != domain.StatusActive {
		return
	}

	for i := range c.steps {
		slot := domain.SlotFor(i)
		c.syncSlotLocked(ctx, persistence.StepKey(c.flow, i+1), c.state.Payloads, c.committed, slot)
		c.syncSlotLocked(ctx, persistence.DraftKey(c.flow, i+1), c.state.Drafts, c.committedDrafts, slot)
	}
	c.savePointerLocked(ctx)
	c.dirty = false
}

func (c *Controller) syncSlotLocked(ctx context.Context, key string, cur, committed domain.Aggregate, slot domain.Slot) {
	raw, ok := cur[slot]
	switch {
	case ok && !committed.Equal(slot, raw):
		c.store.Save(ctx, key, raw, c.scope)
		committed[slot] = raw
	case !ok && committed.Has(slot):
		c.store.Clear(ctx, key, c.scope)
		delete(committed, slot)
	}
}

func (c *Controller) savePointerLocked(ctx context.Context) {
	if c.store == nil {
		return
	}
	c.store.Save(ctx, persistence.PointerKey(c.flow), domain.Pointer{
		Index:      c.state.CurrentIndex,
		MaxVisited: c.state.MaxVisited,
		Validity:   c.registry.Snapshot(),
	}, c.scope)
}

func (c *Controller) emitStep(ctx context.Context, hook func(context.Context, *domain.StepEvent), typ domain.EventType, index int) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: c.now(), Type: typ, Flow: c.flow},
		Index:     index,
		StepID:    c.steps[index].ID,
		Valid:     c.registry.IsValid(index),
	})
}

func (c *Controller) emitValidity(index int, valid bool) {
	if c.hooks.OnValidityChange == nil {
		return
	}
	c.hooks.OnValidityChange(context.Background(), &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: c.now(), Type: domain.EventValidityChange, Flow: c.flow},
		Index:     index,
		StepID:    c.steps[index].ID,
		Valid:     valid,
	})
}

func (c *Controller) emitSubmit(ctx context.Context, hook func(context.Context, *domain.SubmitEvent), typ domain.EventType, err error, d time.Duration) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.SubmitEvent{
		EventBase: domain.EventBase{Timestamp: c.now(), Type: typ, Flow: c.flow},
		Err:       err,
		Duration:  d,
	})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
