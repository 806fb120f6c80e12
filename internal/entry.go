// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/norg/internal/api"
	"github.com/starford/norg/internal/hashcache"
	"github.com/starford/norg/internal/mcpserver"
	"github.com/starford/norg/internal/observer"
	"github.com/starford/norg/internal/observers"
	"github.com/starford/norg/internal/script"
	"github.com/starford/norg/internal/sqlstore"
	"github.com/starford/norg/internal/sse"
	"github.com/starford/norg/internal/storage"
	"github.com/starford/norg/internal/syncer"
	"github.com/starford/norg/internal/watcher"
)

// Engine bundles the wired sync pipeline shared by the CLI commands and
// the HTTP server.
type Engine struct {
	Config   *Config
	Logger   *slog.Logger
	Store    *storage.FS
	DB       *sqlstore.DB
	StoreObs *sqlstore.StoreObserver
	Registry *observer.Registry
	Orch     *syncer.Orchestrator
}

// NewEngine wires storage, the relational store, the observer registry
// and the orchestrator from cfg. Callers must Close the engine.
func NewEngine(cfg *Config) (*Engine, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	ext := cfg.Vault.Extension
	storeObs := sqlstore.NewObserver(db, ext, logger)

	registry := observer.NewRegistry(logger)
	if cfg.Observers.Timestamp {
		registry.Register(observers.NewTimestamp(logger))
	}
	if cfg.Observers.TOC {
		registry.Register(observers.NewTOC(logger))
	}
	if cfg.Observers.TagIndex {
		ti, tiErr := observers.NewTagIndex(store.Root(), ext, logger)
		if tiErr != nil {
			db.Close()
			return nil, fmt.Errorf("init tag index: %w", tiErr)
		}
		registry.Register(ti)
	}
	for _, sc := range cfg.Observers.Scripts {
		so, scErr := script.New(sc.Name, sc.Priority, sc.Command, logger)
		if scErr != nil {
			db.Close()
			return nil, fmt.Errorf("init script observers: %w", scErr)
		}
		registry.Register(so)
	}
	registry.Register(storeObs)

	cache := hashcache.NewFileCache(cfg.Cache.ResolvedPath(), logger)
	orch := syncer.New(store, registry, cache, ext, logger)

	return &Engine{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		DB:       db,
		StoreObs: storeObs,
		Registry: registry,
		Orch:     orch,
	}, nil
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	return e.DB.Close()
}

// Watch runs only the directory watcher, without the HTTP surface. It
// blocks until ctx is cancelled or an interrupt arrives.
func Watch(ctx context.Context, e *Engine) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := e.Config
	w := watcher.New(e.Store.Root(), cfg.Vault.Extension, cfg.Watch.Debounce(),
		func(syncCtx context.Context, title string) error {
			return e.Orch.SyncOne(syncCtx, title, false)
		}, e.Logger)
	return w.Run(ctx)
}

// ServeMCP exposes the engine's tools over the MCP stdio transport.
func ServeMCP(e *Engine) error {
	srv := mcpserver.New(e.Orch, e.Store, e.StoreObs, e.Config.Vault.Extension)
	return srv.ServeStdio()
}

// Run starts the long-running server: initial vault sync, directory
// watcher, SSE broker and HTTP API. It blocks until ctx is cancelled or a
// shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	engine, err := NewEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()
	logger := engine.Logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initial vault sync.
	if err := engine.Orch.SyncAll(ctx, false); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build API handler and router.
	h := api.NewHandler(engine.Orch, engine.Registry, engine.StoreObs, broker)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gCtx)
	defer stopWatch()

	// Start directory watcher with SSE fan-out.
	w := watcher.New(engine.Store.Root(), cfg.Vault.Extension, cfg.Watch.Debounce(),
		func(syncCtx context.Context, title string) error {
			if err := engine.Orch.SyncOne(syncCtx, title, false); err != nil {
				return err
			}
			broker.PublishSyncEvent("synced", title)
			return nil
		}, logger)
	g.Go(func() error {
		return w.Run(watchCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		stopWatch()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
