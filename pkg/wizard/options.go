package wizard

import (
	"log/slog"
	"time"

	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/persistence"
)

// DefaultDebounce is the delay before in-progress edits are written to storage.
const DefaultDebounce = 300 * time.Millisecond

// Option defines a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Hooks run while the
// controller is locked and must not call back into it.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithGate sets the forward-navigation policy (default GateCurrent).
func WithGate(gate GatePolicy) Option {
	return func(c *Controller) {
		c.gate = gate
	}
}

// WithDebounce sets the snapshot write delay. Zero writes synchronously on every tick.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		c.debounceDelay = d
	}
}

// WithScope selects the storage scope (default persistence.ScopeSession).
func WithScope(scope persistence.Scope) Option {
	return func(c *Controller) {
		c.scope = scope
	}
}

// WithClock overrides the time source used for events.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}
