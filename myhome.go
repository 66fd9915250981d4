package myhome

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/netkrida/myhome-sub001/internal/logging"
	"github.com/netkrida/myhome-sub001/pkg/adapters/memory"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/flows"
	"github.com/netkrida/myhome-sub001/pkg/persistence"
	"github.com/netkrida/myhome-sub001/pkg/ports"
	"github.com/netkrida/myhome-sub001/pkg/wizard"
)

// Version is the release of the engine. Set at link time with
// -ldflags "-X github.com/netkrida/myhome-sub001.Version=...".
var Version = "0.1.0-dev"

type options struct {
	backend    ports.Backend
	local      ports.Backend
	registry   *flows.Registry
	namespace  string
	logger     *slog.Logger
	wizardOpts []wizard.Option
}

// Option configures New.
type Option func(*options)

// WithBackend sets the session-scope storage (default: in-memory).
func WithBackend(b ports.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithLocalBackend enables the durable local scope.
func WithLocalBackend(b ports.Backend) Option {
	return func(o *options) {
		o.local = b
	}
}

// WithFlows replaces the built-in flow registry.
func WithFlows(r *flows.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithNamespace prefixes storage keys, e.g. with a user or session id.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithLogger sets the logger shared by persistence and the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithWizardOptions passes options through to the controller.
func WithWizardOptions(opts ...wizard.Option) Option {
	return func(o *options) {
		o.wizardOpts = append(o.wizardOpts, opts...)
	}
}

// New mounts the wizard of a registered flow and restores its saved progress.
// initial, keyed by step index, overrides stored snapshots (edit mode).
// The submitter is called with the plain flow name.
func New(ctx context.Context, flow string, submitter ports.Submitter, initial map[int]any, opts ...Option) (*wizard.Controller, bool, error) {
	o := &options{
		registry: flows.Default(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.backend == nil {
		o.backend = memory.NewStore()
	}

	def, err := o.registry.Get(flow)
	if err != nil {
		return nil, false, err
	}

	storeOpts := []persistence.Option{persistence.WithLogger(o.logger)}
	if o.local != nil {
		storeOpts = append(storeOpts, persistence.WithLocal(o.local))
	}
	store := persistence.NewAdapter(o.backend, storeOpts...)

	namespace := flow
	if o.namespace != "" {
		namespace = o.namespace + ":" + flow
	}

	var plain ports.Submitter
	if submitter != nil {
		plain = ports.SubmitterFunc(func(ctx context.Context, _ string, agg domain.Aggregate) (json.RawMessage, error) {
			return submitter.Submit(ctx, flow, agg)
		})
	}

	wizardOpts := append([]wizard.Option{wizard.WithLogger(o.logger)}, o.wizardOpts...)
	ctl, err := wizard.New(namespace, def.Steps, store, plain, wizardOpts...)
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
