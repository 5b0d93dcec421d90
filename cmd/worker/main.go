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

	"github.com/kirillkom/maritime-docflow/internal/bootstrap"
	"github.com/kirillkom/maritime-docflow/internal/config"
	"github.com/kirillkom/maritime-docflow/internal/observability/logging"
	"github.com/kirillkom/maritime-docflow/internal/observability/metrics"
)

const (
	serviceName   = "worker"
	exportTimeout = 5 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	logging.Install(serviceName, cfg.LogLevel)
	if err := cfg.ValidateWorker(); err != nil {
		slog.Error("config_invalid", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		return 1
	}
	defer worker.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := newMetricsServer(cfg.WorkerMetricsPort, workerMetrics)
	go func() {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = worker.Queue.SubscribeJobCompleted(ctx, func(handlerCtx context.Context, jobID string) error {
		exportCtx, cancel := context.WithTimeout(handlerCtx, exportTimeout)
		defer cancel()

		started := time.Now()
		workerMetrics.StartExport()
		report, err := worker.Export.ExportByID(exportCtx, jobID)
		workerMetrics.FinishExport(serviceName, time.Since(started), err)
		if report != nil {
			workerMetrics.RecordArtifacts(serviceName, report.Written, report.Skipped)
			if !report.JobCreatedAt.IsZero() {
				workerMetrics.ObserveQueueLag(serviceName, started.Sub(report.JobCreatedAt))
			}
		}
		if err != nil {
			return err
		}
		slog.Info("job_exported",
			"job_id", jobID,
			"formats", report.Written,
			"skipped", report.Skipped,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		return 1
	}
	slog.Info("worker_stopped")
	return 0
}

func newMetricsServer(port string, m *metrics.WorkerMetrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
