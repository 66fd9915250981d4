package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/netkrida/myhome-sub001/internal/logging"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/flows"
	"github.com/netkrida/myhome-sub001/pkg/persistence"
	"github.com/netkrida/myhome-sub001/pkg/ports"
	"github.com/netkrida/myhome-sub001/pkg/wizard"
)

// ErrInvalidSession is returned for an empty or malformed session id.
var ErrInvalidSession = errors.New("invalid session id")

// DefaultLockTTL bounds how long a distributed lock is held.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Info identifies a stored or live wizard.
type Info struct {
	Session string `json:"session"`
	Flow    string `json:"flow"`
	Live    bool   `json:"live"`
}

// Manager orchestrates access to live wizards, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	flows     *flows.Registry
	store     *persistence.Adapter
	submitter ports.Submitter
	ctlOpts   []wizard.Option
	scope     persistence.Scope

	mu    sync.Mutex            // Global lock for the maps
	locks map[string]*lockEntry // Active per-pair locks
	live  map[string]*wizard.Controller

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithScope selects the storage scope every wizard of the manager uses
// (default persistence.ScopeSession).
func WithScope(scope persistence.Scope) Option {
	return func(m *Manager) {
		m.scope = scope
	}
}

// WithControllerOptions sets options applied to every controller the manager creates.
func WithControllerOptions(opts ...wizard.Option) Option {
	return func(m *Manager) {
		m.ctlOpts = append(m.ctlOpts, opts...)
	}
}

// NewManager creates a Manager. store may be nil to run without persistence.
func NewManager(registry *flows.Registry, store *persistence.Adapter, submitter ports.Submitter, opts ...Option) *Manager {
	m := &Manager{
		flows:     registry,
		store:     store,
		submitter: submitter,
		locks:     make(map[string]*lockEntry),
		live:      make(map[string]*wizard.Controller),
		lockTTL:   DefaultLockTTL,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Namespace returns the persistence namespace of (sessionID, flow).
func Namespace(sessionID, flow string) string {
	return sessionID + ":" + flow
}

func validSession(sessionID string) error {
	if sessionID == "" || strings.ContainsAny(sessionID, ":/ ") {
		return fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	return nil
}

// acquire gets or creates a lock entry and increments its reference count.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// withLock executes fn while holding the lock of key.
func (m *Manager) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// create builds and restores a controller for (sessionID, flow).
func (m *Manager) create(ctx context.Context, sessionID, flow string, initial map[int]any) (*wizard.Controller, bool, error) {
	def, err := m.flows.Get(flow)
	if err != nil {
		return nil, false, err
	}

	// The backend knows the flow by its plain name.
	submitter := ports.SubmitterFunc(func(ctx context.Context, _ string, agg domain.Aggregate) (json.RawMessage, error) {
		return m.submitter.Submit(ctx, flow, agg)
	})

	opts := append([]wizard.Option{wizard.WithLogger(m.logger.With("session", sessionID))}, m.ctlOpts...)
	opts = append(opts, wizard.WithScope(m.scope))
	ctl, err := wizard.New(Namespace(sessionID, flow), def.Steps, m.store, submitter, opts...)
	if err != nil {
		return nil, false, err
	}
	restored, err := ctl.Restore(ctx, initial)
	if err != nil {
		ctl.Close()
		return nil, false, err
	}
	return ctl, restored, nil
}

// Open returns the live wizard of (sessionID, flow), mounting it from storage
// if needed. initial is only used when a new controller is mounted. A
// completed wizard is replaced by a fresh one.
func (m *Manager) Open(ctx context.Context, sessionID, flow string, initial map[int]any) (*wizard.Controller, bool, error) {
	if err := validSession(sessionID); err != nil {
		return nil, false, err
	}

	var (
		ctl      *wizard.Controller
		restored bool
	)
	key := Namespace(sessionID, flow)
	err := m.withLock(ctx, key, func(ctx context.Context) error {
		if cur := m.get(key); cur != nil {
			if cur.State().Status != domain.StatusCompleted && len(initial) == 0 {
				ctl = cur
				return nil
			}
			m.forget(key)
		}

		var err error
		ctl, restored, err = m.create(ctx, sessionID, flow, initial)
		if err != nil {
			return err
		}
		m.put(key, ctl)
		m.logger.Debug("wizard mounted", "session", sessionID, "flow", flow, "restored", restored)
		return nil
	})
	return ctl, restored, err
}

// Do runs fn against the wizard of (sessionID, flow) under its lock, mounting
// it first if it is not live. Pending reports are applied before fn runs.
func (m *Manager) Do(ctx context.Context, sessionID, flow string, fn func(context.Context, *wizard.Controller) error) error {
	if err := validSession(sessionID); err != nil {
		return err
	}

	key := Namespace(sessionID, flow)
	return m.withLock(ctx, key, func(ctx context.Context) error {
		ctl := m.get(key)
		if ctl == nil {
			var err error
			if ctl, _, err = m.create(ctx, sessionID, flow, nil); err != nil {
				return err
			}
			m.put(key, ctl)
		}
		ctl.Tick(ctx)
		return fn(ctx, ctl)
	})
}

// Close unmounts the wizard of (sessionID, flow), flushing pending writes.
// Stored snapshots are kept.
func (m *Manager) Close(ctx context.Context, sessionID, flow string) error {
	if err := validSession(sessionID); err != nil {
		return err
	}
	key := Namespace(sessionID, flow)
	return m.withLock(ctx, key, func(ctx context.Context) error {
		if ctl := m.get(key); ctl != nil {
			ctl.Flush(ctx)
			m.forget(key)
		}
		return nil
	})
}

// Discard unmounts the wizard and removes every snapshot it stored.
func (m *Manager) Discard(ctx context.Context, sessionID, flow string) error {
	if err := validSession(sessionID); err != nil {
		return err
	}
	def, err := m.flows.Get(flow)
	if err != nil {
		return err
	}

	key := Namespace(sessionID, flow)
	return m.withLock(ctx, key, func(ctx context.Context) error {
		m.forget(key)
		if m.store != nil {
			m.store.ClearFlow(ctx, key, len(def.Steps), m.scope)
		}
		return nil
	})
}

// Inspect returns the state of (sessionID, flow) without mounting it.
// It returns domain.ErrSnapshotNotFound when nothing is live or stored.
func (m *Manager) Inspect(ctx context.Context, sessionID, flow string) (*domain.State, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}

	key := Namespace(sessionID, flow)
	var state *domain.State
	err := m.withLock(ctx, key, func(ctx context.Context) error {
		if ctl := m.get(key); ctl != nil {
			ctl.Tick(ctx)
			state = ctl.State()
			return nil
		}

		ctl, restored, err := m.create(ctx, sessionID, flow, nil)
		if err != nil {
			return err
		}
		defer ctl.Close()
		if !restored {
			return fmt.Errorf("%s: %w", key, domain.ErrSnapshotNotFound)
		}
		state = ctl.State()
		return nil
	})
	return state, err
}

// List returns every wizard that is live or has snapshots in storage.
func (m *Manager) List(ctx context.Context) []Info {
	found := make(map[string]Info)
	if m.store != nil {
		for _, key := range m.store.Keys(ctx, "", m.scope) {
			if info, ok := m.parseKey(key); ok {
				found[Namespace(info.Session, info.Flow)] = info
			}
		}
	}

	m.mu.Lock()
	for key := range m.live {
		sessionID, flow, _ := strings.Cut(key, ":")
		found[key] = Info{Session: sessionID, Flow: flow, Live: true}
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(found))
	for _, info := range found {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Session != out[j].Session {
			return out[i].Session < out[j].Session
		}
		return out[i].Flow < out[j].Flow
	})
	return out
}

// Shutdown flushes and unmounts every live wizard.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	live := m.live
	m.live = make(map[string]*wizard.Controller)
	m.mu.Unlock()

	for _, ctl := range live {
		ctl.Flush(ctx)
		ctl.Close()
	}
}

// Scope returns the storage scope of the managed wizards.
func (m *Manager) Scope() persistence.Scope {
	return m.scope
}

// Flows returns the flow registry.
func (m *Manager) Flows() *flows.Registry {
	return m.flows
}

// parseKey maps a storage key back to its (session, flow) pair.
func (m *Manager) parseKey(key string) (Info, bool) {
	sessionID, rest, ok := strings.Cut(key, ":")
	if !ok || sessionID == "" {
		return Info{}, false
	}
	for _, name := range m.flows.Names() {
		if rest == name || strings.HasPrefix(rest, name+"-step-") {
			return Info{Session: sessionID, Flow: name}, true
		}
	}
	return Info{}, false
}

func (m *Manager) get(key string) *wizard.Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[key]
}

func (m *Manager) put(key string, ctl *wizard.Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[key] = ctl
}

func (m *Manager) forget(key string) {
	m.mu.Lock()
	ctl := m.live[key]
	delete(m.live, key)
	m.mu.Unlock()
	if ctl != nil {
		ctl.Close()
	}
}
