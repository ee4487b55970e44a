package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/metrics"
	"github.com/vk/rulegrid/internal/registry"
	"github.com/vk/rulegrid/internal/rulegraph"
	"github.com/vk/rulegrid/internal/scheduler"
	"github.com/vk/rulegrid/internal/store"
	"github.com/vk/rulegrid/internal/workunit"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	sessionID  string
	registry   *registry.Registry
	rules      *rulegraph.RuleGraph
	scheduler  *scheduler.Scheduler
	store      store.Store
	metrics    *prom.Registry
	socketio   *workunit.SocketIOSink
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App with its own logger, registry and scheduler. The core
// modules are always installed; extra modules are installed after them.
//
// Failures here are startup errors in code or environment, so NewApp
// panics instead of returning them.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	sessionID := uuid.NewString()
	logger = logger.With("session", sessionID)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	st, err := openStore(cfg.StorePath)
	if err != nil {
		panic(fmt.Errorf("failed to open store: %w", err))
	}
	logger.Debug("Content store opened.", "path", cfg.StorePath)

	reg := registry.New()
	reg.Install(coreModules(cfg, st)...)
	reg.Install(modules...)
	logger.Debug("All rule modules registered.", "rules", len(reg.Rules()))

	rg, err := rulegraph.Compile(ctx, reg)
	if err != nil {
		_ = st.Close()
		panic(fmt.Errorf("failed to compile rule graph: %w", err))
	}
	logger.Debug("Rule graph compiled.", "entries", len(rg.Entries()))

	a := &App{
		ctx:       ctx,
		outW:      outW,
		logger:    logger,
		config:    cfg,
		sessionID: sessionID,
		registry:  reg,
		rules:     rg,
		store:     st,
		metrics:   prom.NewRegistry(),
	}

	sinks := []workunit.Sink{workunit.LogSink{}}
	if cfg.WorkunitURL != "" {
		sink, err := workunit.DialSocketIO(ctx, workunit.SocketIOOptions{URL: cfg.WorkunitURL})
		if err != nil {
			logger.Warn("Workunit streaming disabled.", "url", cfg.WorkunitURL, "error", err)
		} else {
			a.socketio = sink
			sinks = append(sinks, sink)
		}
	}

	a.scheduler = scheduler.New(rg,
		scheduler.WithWorkers(cfg.WorkerCount),
		scheduler.WithRecorder(metrics.NewPrometheusRecorder(a.metrics)),
		scheduler.WithSinks(sinks...),
	)
	return a
}

func openStore(path string) (store.Store, error) {
	if path == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLiteStore(path)
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Scheduler returns the application's scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Close stops the health check server and releases the store and sinks.
func (a *App) Close() error {
	var errs []error
	if err := a.closeHealthCheckServer(); err != nil {
		errs = append(errs, err)
	}
	if a.socketio != nil {
		if err := a.socketio.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	return errors.Join(errs...)
}
