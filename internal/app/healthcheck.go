package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/metrics"
)

// healthHandler reports liveness along with the product graph size.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK nodes=%d\n", a.scheduler.GraphLen())
}

// healthCheckMux serves /health and the Prometheus /metrics endpoint.
func (a *App) healthCheckMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", metrics.HTTPHandler(a.metrics))
	return mux
}

// startHealthCheckServer initializes and runs the health check HTTP server.
// It returns the address the server listens on.
func (a *App) startHealthCheckServer() (string, error) {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Configuring health check server.")
	if a.config.HealthcheckPort <= 0 {
		logger.Debug("Health check server not started: disabled")
		return "", nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.HealthcheckPort))
	if err != nil {
		return "", fmt.Errorf("failed to listen for health checks: %w", err)
	}
	a.httpServer = &http.Server{
		Handler:           a.healthCheckMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	addr := ln.Addr().String()

	// Run the server in a goroutine so it doesn't block.
	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://%s/health", addr))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
	return addr, nil
}

func (a *App) closeHealthCheckServer() error {
	logger := ctxlog.FromContext(a.ctx)
	if a.httpServer == nil {
		logger.Debug("Health check server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down health check server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	a.httpServer = nil
	logger.Debug("Health check server shut down gracefully.")
	return nil
}
