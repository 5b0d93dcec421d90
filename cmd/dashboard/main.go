package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/maritime-docflow/internal/adapters/http"
	"github.com/kirillkom/maritime-docflow/internal/bootstrap"
	"github.com/kirillkom/maritime-docflow/internal/config"
	"github.com/kirillkom/maritime-docflow/internal/observability/logging"
	"github.com/kirillkom/maritime-docflow/internal/observability/metrics"
)

const serviceName = "dashboard"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	logging.Install(serviceName, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		slog.Error("config_invalid", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, httpMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		return 1
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.RouterDependencies()).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.DashboardPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// submit?wait=true holds the response for the whole transform call
		WriteTimeout: cfg.TransformTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("dashboard_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok {
			slog.Error("dashboard_server_failed", "error", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("dashboard_shutdown_failed", "error", err)
		return 1
	}
	slog.Info("dashboard_stopped")
	return 0
}
