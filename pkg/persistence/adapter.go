package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/netkrida/myhome-sub001/internal/logging"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/ports"
)

// Scope selects the backend an operation targets.
type Scope int

const (
	// ScopeSession is bounded by the user's session (the default).
	ScopeSession Scope = iota
	// ScopeLocal survives the session.
	ScopeLocal
)

func (s Scope) String() string {
	if s == ScopeLocal {
		return "local"
	}
	return "session"
}

// ParseScope is the inverse of String. An empty name selects ScopeSession.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "session":
		return ScopeSession, nil
	case "local":
		return ScopeLocal, nil
	}
	return ScopeSession, fmt.Errorf("unknown storage scope %q", s)
}

// Adapter is a scoped, fail-soft snapshot store.
type Adapter struct {
	session ports.Backend
	local   ports.Backend
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithLocal sets the backend used for ScopeLocal.
// Without it ScopeLocal behaves as if storage were unavailable.
func WithLocal(backend ports.Backend) Option {
	return func(a *Adapter) {
		a.local = backend
	}
}

// WithLogger configures a logger for storage failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// NewAdapter creates an Adapter over the session-scoped backend.
func NewAdapter(session ports.Backend, opts ...Option) *Adapter {
	a := &Adapter{
		session: session,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Loaded is a restored snapshot.
type Loaded[T any] struct {
	Data    T
	SavedAt time.Time
}

func (a *Adapter) backend(scope Scope) ports.Backend {
	if scope == ScopeLocal {
		return a.local
	}
	return a.session
}

// Save serialises data under key. Failures are logged and the previously
// stored value is left untouched.
func (a *Adapter) Save(ctx context.Context, key string, data any, scope Scope) {
	b := a.backend(scope)
	if b == nil {
		a.logger.Warn("snapshot storage unavailable", "key", key, "scope", scope)
		return
	}

	raw, err := domain.Encode(data)
	if err != nil {
		a.logger.Warn("failed to serialise snapshot", "key", key, "err", err)
		return
	}

	value, err := json.Marshal(domain.Snapshot{Key: key, Data: raw, SavedAt: a.now().UTC()})
	if err != nil {
		a.logger.Warn("failed to serialise snapshot envelope", "key", key, "err", err)
		return
	}

	if err := b.Set(ctx, key, value); err != nil {
		a.logger.Warn("failed to save snapshot", "key", key, "scope", scope, "err", err)
	}
}

// LoadRaw returns the snapshot under key, or false if it is absent, corrupt or
// storage is unavailable.
func (a *Adapter) LoadRaw(ctx context.Context, key string, scope Scope) (*domain.Snapshot, bool) {
	b := a.backend(scope)
	if b == nil {
		return nil, false
	}

	value, err := b.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			a.logger.Warn("failed to load snapshot", "key", key, "scope", scope, "err", err)
		}
		return nil, false
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(value, &snap); err != nil || len(snap.Data) == 0 {
		a.logger.Warn("discarding corrupt snapshot", "key", key, "scope", scope, "err", err)
		return nil, false
	}
	return &snap, true
}

// Load decodes the snapshot under key into T. Data whose shape no longer
// matches T is discarded rather than returned half-decoded.
func Load[T any](ctx context.Context, a *Adapter, key string, scope Scope) (*Loaded[T], bool) {
	snap, ok := a.LoadRaw(ctx, key, scope)
	if !ok {
		return nil, false
	}

	var data T
	if err := json.Unmarshal(snap.Data, &data); err != nil {
		a.logger.Warn("discarding incompatible snapshot", "key", key, "err", err)
		return nil, false
	}
	return &Loaded[T]{Data: data, SavedAt: snap.SavedAt}, true
}

// Clear removes key. Clearing an absent key is not an error.
func (a *Adapter) Clear(ctx context.Context, key string, scope Scope) {
	b := a.backend(scope)
	if b == nil {
		return
	}
	if err := b.Delete(ctx, key); err != nil {
		a.logger.Warn("failed to clear snapshot", "key", key, "scope", scope, "err", err)
	}
}

// ClearCurrentStepPointer removes the "which step was active" pointer of flow.
func (a *Adapter) ClearCurrentStepPointer(ctx context.Context, flow string, scope Scope) {
	a.Clear(ctx, PointerKey(flow), scope)
}

// ClearFlow removes every snapshot a flow of n steps may have written.
func (a *Adapter) ClearFlow(ctx context.Context, flow string, steps int, scope Scope) {
	for _, key := range FlowKeys(flow, steps) {
		a.Clear(ctx, key, scope)
	}
}

// Keys lists stored keys with prefix; failures yield an empty list.
func (a *Adapter) Keys(ctx context.Context, prefix string, scope Scope) []string {
	b := a.backend(scope)
	if b == nil {
		return nil
	}
	keys, err := b.Keys(ctx, prefix)
	if err != nil {
		a.logger.Warn("failed to list snapshots", "prefix", prefix, "scope", scope, "err", err)
		return nil
	}
	return keys
}
