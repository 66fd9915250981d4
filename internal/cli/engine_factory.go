package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/netkrida/myhome-sub001/internal/config"
	"github.com/netkrida/myhome-sub001/pkg/adapters/api"
	"github.com/netkrida/myhome-sub001/pkg/adapters/file"
	"github.com/netkrida/myhome-sub001/pkg/adapters/memory"
	redisAdapter "github.com/netkrida/myhome-sub001/pkg/adapters/redis"
	"github.com/netkrida/myhome-sub001/pkg/adapters/sqlite"
	"github.com/netkrida/myhome-sub001/pkg/flows"
	"github.com/netkrida/myhome-sub001/pkg/observability"
	"github.com/netkrida/myhome-sub001/pkg/persistence"
	"github.com/netkrida/myhome-sub001/pkg/persistence/middleware"
	"github.com/netkrida/myhome-sub001/pkg/ports"
	"github.com/netkrida/myhome-sub001/pkg/session"
	"github.com/netkrida/myhome-sub001/pkg/wizard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
)

// App is the wired engine: backends, persistence, submitter and session manager.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *persistence.Adapter
	Sessions *session.Manager
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	closers []func() error
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// NewApp builds the engine from configuration.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	mws, err := storageMiddleware(cfg.Storage)
	if err != nil {
		return nil, err
	}

	sessionBackend, redisClient, err := app.openBackend(cfg.Storage.Session)
	if err != nil {
		return nil, fmt.Errorf("session storage: %w", err)
	}
	storeOpts := []persistence.Option{persistence.WithLogger(logger)}

	if cfg.Storage.Local.Driver != "" {
		local, _, err := app.openBackend(cfg.Storage.Local)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("local storage: %w", err)
		}
		storeOpts = append(storeOpts, persistence.WithLocal(middleware.Chain(local, mws...)))
	}
	app.Store = persistence.NewAdapter(middleware.Chain(sessionBackend, mws...), storeOpts...)

	registry := flows.Default()
	submitter := newSubmitter(cfg.API, registry, logger)

	app.Metrics = observability.NewMetrics(app.Registry)
	if cfg.Server.Metrics {
		app.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	ctlOpts := []wizard.Option{
		wizard.WithLogger(logger),
		wizard.WithDebounce(cfg.Wizard.Debounce),
		wizard.WithLifecycleHooks(observability.Combine(app.Metrics.Hooks(), observability.LogHooks(logger))),
	}
	if cfg.Wizard.Gate == "sequential" {
		ctlOpts = append(ctlOpts, wizard.WithGate(wizard.GateSequential))
	}

	scope, err := persistence.ParseScope(cfg.Wizard.Scope)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	mgrOpts := []session.Option{
		session.WithLogger(logger),
		session.WithScope(scope),
		session.WithControllerOptions(ctlOpts...),
	}
	if redisClient != nil && cfg.Storage.Session.Redis.Lock {
		mgrOpts = append(mgrOpts, session.WithLocker(redisAdapter.NewLocker(redisClient, lockPrefix(cfg.Storage.Session.Redis))))
	}
	app.Sessions = session.NewManager(registry, app.Store, submitter, mgrOpts...)

	return app, nil
}

// openBackend creates the backend named by the driver. The Redis client is
// returned so the caller can share it with the locker.
func (a *App) openBackend(b config.BackendConfig) (ports.Backend, *goredis.Client, error) {
	switch b.Driver {
	case "", "memory":
		return memory.NewStore(), nil, nil
	case "file":
		return file.New(b.Path), nil, nil
	case "sqlite":
		store, err := sqlite.Open(b.Path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     b.Redis.Addr,
			Password: b.Redis.Password,
			DB:       b.Redis.DB,
		})
		opts := []redisAdapter.Option{redisAdapter.WithTTL(b.TTL)}
		if b.Redis.Prefix != "" {
			opts = append(opts, redisAdapter.WithPrefix(b.Redis.Prefix))
		}
		store := redisAdapter.NewFromClient(client, opts...)
		a.closers = append(a.closers, store.Close)
		return store, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", b.Driver)
	}
}

// storageMiddleware returns the chain applied to every backend.
// PII masking runs before encryption so masked values are what gets sealed.
func storageMiddleware(s config.StorageConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(s.MaskFields) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(s.MaskFields))
	}
	if s.EncryptionKey == "" {
		return mws, nil
	}

	active, err := config.DecodeKey(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range s.FallbackKeys {
		fallback, err := config.DecodeKey(k)
		if err != nil {
			return nil, fmt.Errorf("fallback key: %w", err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, fallback)
	}
	return append(mws, middleware.NewEncryptionMiddleware(enc)), nil
}

func newSubmitter(cfg config.APIConfig, registry *flows.Registry, logger *slog.Logger) *api.Submitter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = api.DefaultTimeout
	}
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.Token != "" {
		opts = append(opts, api.WithHeader("Authorization", "Bearer "+cfg.Token))
	}
	return api.New(cfg.BaseURL, registry, opts...)
}

func lockPrefix(r config.RedisConfig) string {
	if r.Prefix != "" {
		return r.Prefix
	}
	return "myhome:"
}
