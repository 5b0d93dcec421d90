package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/kirillkom/maritime-docflow/internal/bootstrap"
	"github.com/kirillkom/maritime-docflow/internal/config"
	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
	"github.com/kirillkom/maritime-docflow/internal/observability/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	cfg := config.Load()
	logging.InstallWriter(os.Stderr, "docflow", cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		slog.Error("config_invalid", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		return 1
	}
	defer app.Close()

	c := &cli{
		auth:      app.Session,
		dashboard: app.Dashboard,
		demo:      app.Transform,
		keys:      app.Keys,
		usage:     app.Usage,
		jobs:      app.Jobs,
		catalog:   app.Pricing,
		exporters: exportersByFormat(app.Exporters),
		opts:      opts,
		in:        os.Stdin,
		out:       os.Stdout,
		errOut:    os.Stderr,
		now:       time.Now,
	}
	if err := c.run(ctx); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\nUsage: docflow [flags] <command> [args]\n\nCommands:\n%s", err, commandHelp)
			return 2
		}
		fmt.Fprintln(os.Stderr, domain.UserMessage(err))
		return 1
	}
	return 0
}

func exportersByFormat(exporters []ports.Exporter) map[string]ports.Exporter {
	out := make(map[string]ports.Exporter, len(exporters))
	for _, exporter := range exporters {
		out[exporter.Format()] = exporter
	}
	return out
}
