// Package app wires the chatline server together from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/afero"

	"github.com/nfrund/chatline/internal/chat"
	"github.com/nfrund/chatline/internal/config"
	"github.com/nfrund/chatline/internal/database"
	"github.com/nfrund/chatline/internal/directory"
	"github.com/nfrund/chatline/internal/history"
	"github.com/nfrund/chatline/internal/pubsub"
	"github.com/nfrund/chatline/internal/registry"
	"github.com/nfrund/chatline/internal/server"
	"github.com/nfrund/chatline/internal/websocket"
)

const dbMonitorInterval = 30 * time.Second

// Dependencies holds the core services of a running server.
type Dependencies struct {
	Config    config.Provider
	Registry  *registry.Registry
	Bus       *pubsub.WatermillBridge
	Directory directory.Directory
	History   *history.Store
	Hub       *websocket.Hub
	Chat      *chat.Service
	Server    *server.Server
}

// NewInjector registers a provider for every core service. Services are
// built lazily on first invoke; resources they open are released through
// the registry's closers.
func NewInjector(ctx context.Context, cfg config.Provider, fs afero.Fs) *do.RootScope {
	i := do.New()
	do.ProvideValue(i, cfg)
	do.ProvideValue(i, fs)
	do.ProvideValue(i, registry.New())

	do.Provide(i, provideBus(ctx))
	do.Provide(i, provideDirectory(ctx))
	do.Provide(i, provideHistory)
	do.Provide(i, provideHub)
	do.Provide(i, provideChat)
	do.Provide(i, provideServer)
	return i
}

// Build resolves every service. On failure the closers of services built so
// far have already run.
func Build(ctx context.Context, cfg config.Provider, fs afero.Fs) (*Dependencies, error) {
	i := NewInjector(ctx, cfg, fs)
	reg := do.MustInvoke[*registry.Registry](i)

	deps, err := resolve(i)
	if err != nil {
		if closeErr := reg.Close(); closeErr != nil {
			slog.Error("Failed to release resources after build error", "error", closeErr)
		}
		return nil, err
	}
	deps.Config = cfg
	deps.Registry = reg
	return deps, nil
}

func resolve(i do.Injector) (*Dependencies, error) {
	var (
		deps Dependencies
		err  error
	)
	if deps.Bus, err = do.Invoke[*pubsub.WatermillBridge](i); err != nil {
		return nil, err
	}
	if deps.Directory, err = do.Invoke[directory.Directory](i); err != nil {
		return nil, err
	}
	if deps.History, err = do.Invoke[*history.Store](i); err != nil {
		return nil, err
	}
	if deps.Hub, err = do.Invoke[*websocket.Hub](i); err != nil {
		return nil, err
	}
	if deps.Chat, err = do.Invoke[*chat.Service](i); err != nil {
		return nil, err
	}
	if deps.Server, err = do.Invoke[*server.Server](i); err != nil {
		return nil, err
	}
	return &deps, nil
}

func provideBus(ctx context.Context) do.Provider[*pubsub.WatermillBridge] {
	return func(i do.Injector) (*pubsub.WatermillBridge, error) {
		cfg := do.MustInvoke[config.Provider](i)
		reg := do.MustInvoke[*registry.Registry](i)

		tracer, shutdown, err := pubsub.SetupTracing(ctx, pubsub.TracingConfig{
			Enabled:     cfg.GetTracingEnabled(),
			ServiceName: cfg.GetTracingServiceName(),
			ZipkinURL:   cfg.GetTracingZipkinURL(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set up tracing: %w", err)
		}
		reg.OnClose(func() error { return shutdown(context.Background()) })

		opts := []pubsub.BridgeOption{pubsub.WithLogger(slog.Default().With("component", "pubsub"))}
		if cfg.GetTracingEnabled() {
			opts = append(opts, pubsub.WithTracer(tracer))
		}
		bus := pubsub.NewWatermillBridge(opts...)
		reg.OnClose(bus.Close)
		return bus, nil
	}
}

func provideDirectory(ctx context.Context) do.Provider[directory.Directory] {
	return func(i do.Injector) (directory.Directory, error) {
		cfg := do.MustInvoke[config.Provider](i)
		reg := do.MustInvoke[*registry.Registry](i)

		var dir directory.Directory
		switch cfg.GetDirectoryBackend() {
		case config.BackendSurreal:
			conn := database.NewConnection(cfg)
			if err := conn.Connect(ctx); err != nil {
				return nil, fmt.Errorf("failed to connect to user directory: %w", err)
			}
			reg.OnClose(func() error { return conn.Close(context.Background()) })
			conn.StartMonitoring(dbMonitorInterval)

			surreal := directory.NewSurreal(conn)
			if err := surreal.Init(ctx); err != nil {
				return nil, err
			}
			dir = surreal
		default:
			dir = directory.NewMemory()
		}

		if err := seedUsers(ctx, dir, cfg.GetSeedUsers()); err != nil {
			return nil, err
		}
		slog.Info("User directory ready", "backend", cfg.GetDirectoryBackend(), "seeded", len(cfg.GetSeedUsers()))
		return dir, nil
	}
}

// seedUsers registers names that must exist at startup.
func seedUsers(ctx context.Context, dir directory.Directory, names []string) error {
	for _, name := range names {
		if _, _, err := dir.AddOrUpdate(ctx, name); err != nil {
			return fmt.Errorf("failed to seed user %q: %w", name, err)
		}
	}
	return nil
}

func provideHistory(i do.Injector) (*history.Store, error) {
	cfg := do.MustInvoke[config.Provider](i)
	fs := do.MustInvoke[afero.Fs](i)
	reg := do.MustInvoke[*registry.Registry](i)

	store := history.New(
		history.WithCapacity(cfg.GetHistoryCapacity()),
		history.WithPageSize(cfg.GetHistoryPageSize()),
		history.WithLogger(slog.Default().With("component", "history")),
	)

	path := cfg.GetHistorySnapshotPath()
	if path == "" {
		return store, nil
	}
	if err := store.LoadSnapshot(fs, path); err != nil {
		return nil, fmt.Errorf("failed to restore history: %w", err)
	}
	reg.OnClose(func() error {
		store.Wait()
		return store.SaveSnapshot(fs, path)
	})
	return store, nil
}

func provideHub(i do.Injector) (*websocket.Hub, error) {
	cfg := do.MustInvoke[config.Provider](i)
	dir := do.MustInvoke[directory.Directory](i)

	return websocket.NewHub(dir,
		websocket.WithInboundLimit(cfg.GetInboundRate(), cfg.GetInboundBurst()),
		websocket.WithAllowedOrigins(cfg.GetAllowedOrigins()...),
	), nil
}

func provideChat(i do.Injector) (*chat.Service, error) {
	return chat.NewService(
		do.MustInvoke[*history.Store](i),
		do.MustInvoke[directory.Directory](i),
		do.MustInvoke[*pubsub.WatermillBridge](i),
	), nil
}

func provideServer(i do.Injector) (*server.Server, error) {
	s := server.New(
		do.MustInvoke[config.Provider](i),
		do.MustInvoke[*websocket.Hub](i),
		do.MustInvoke[*chat.Service](i),
	)
	s.RegisterRoutes()
	return s, nil
}
