package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/time/rate"

	httpadapter "github.com/kirillkom/maritime-docflow/internal/adapters/http"
	"github.com/kirillkom/maritime-docflow/internal/config"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
	"github.com/kirillkom/maritime-docflow/internal/core/pricing"
	"github.com/kirillkom/maritime-docflow/internal/core/usecase"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export/csvexport"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export/pdfexport"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export/xlsxexport"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/extractor/pdfpages"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/httpclient"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/queue/nats"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/resilience"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/session/supabase"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/transformapi"
	"github.com/kirillkom/maritime-docflow/internal/observability/metrics"
)

// App is the dashboard side: auth, transform calls, keys and usage.
// Postgres and NATS are optional; without them finished jobs are not
// recorded.
type App struct {
	Config config.Config

	Session   *supabase.Provider
	Transform *transformapi.Client
	Usage     *transformapi.UsageClient
	Dashboard *usecase.Dashboard
	Keys      *usecase.KeyManager
	Stager    *usecase.StageFileUseCase
	Pricing   *pricing.Catalog
	Exporters []ports.Exporter

	Profiles ports.ProfileStore
	Jobs     ports.JobRepository
	Metrics  *metrics.HTTPServerMetrics

	closeFns []func()
}

// New wires the dashboard. m may be nil, as for the CLI.
func New(ctx context.Context, cfg config.Config, m *metrics.HTTPServerMetrics) (*App, error) {
	app := &App{Config: cfg, Metrics: m}

	catalog, err := pricing.Load()
	if err != nil {
		return nil, fmt.Errorf("load pricing catalog: %w", err)
	}
	app.Pricing = catalog

	storage, closeStorage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	app.onClose(closeStorage)
	app.Stager = usecase.NewStageFileUseCase(storage)

	executor := resilience.NewExecutor(executorConfig(cfg))
	opts := httpclient.Options{
		Executor: executor,
		Limiter:  backendLimiter(cfg.BackendRateLimitRPS),
	}
	if m != nil {
		opts.Observer = m
		executor.WithObserver(m)
	}

	app.Session = supabase.NewProvider(
		supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.PasswordResetURL(), supabase.ClientOptions{
			Limiter:  opts.Limiter,
			Observer: opts.Observer,
		}),
		supabase.NewFileStore(cfg.SessionFile),
	)

	apiHTTP := httpclient.New(cfg.APIBaseURL, app.Session, opts)
	app.Transform = transformapi.New(apiHTTP)
	app.Usage = transformapi.NewUsageClient(apiHTTP)
	app.Keys = usecase.NewKeyManager(
		transformapi.NewKeysClient(apiHTTP),
		usecase.NewRevealScheduler(cfg.KeyRevealTimeout, nil),
	)
	app.onClose(app.Keys.Close)

	var recorder ports.JobRecorder
	if cfg.PostgresDSN != "" {
		db, err := openDatabase(ctx, cfg.PostgresDSN)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.onClose(func() { _ = db.Close() })
		jobs := postgres.NewJobRepository(db)
		app.Jobs = jobs
		app.Profiles = postgres.NewProfileRepository(db)

		var events ports.JobEventQueue
		if cfg.NATSURL != "" {
			queue, err := newQueue(cfg)
			if err != nil {
				app.Close()
				return nil, err
			}
			app.onClose(queue.Close)
			events = queue
		}
		recorder = usecase.NewRecordJobUseCase(jobs, events)
	} else {
		slog.Info("job_recording_disabled", "reason", "POSTGRES_DSN is not set")
	}

	dashCfg := usecase.DashboardConfig{
		Timeout:        cfg.TransformTimeout,
		ManualMaxPages: cfg.ManualMaxPages,
		UserID: func() string {
			if session, ok := app.Session.Current(); ok {
				return session.UserID
			}
			return ""
		},
	}
	if m != nil {
		dashCfg.Observer = m
	}
	app.Dashboard = usecase.NewDashboard(app.Transform, pdfpages.NewCounter(), recorder, dashCfg)
	app.onClose(app.Dashboard.Close)

	app.Exporters = Exporters()
	return app, nil
}

// RouterDependencies hands the wired use cases to the HTTP adapter.
func (a *App) RouterDependencies() httpadapter.Dependencies {
	return httpadapter.Dependencies{
		Dashboard: a.Dashboard,
		Keys:      a.Keys,
		Auth:      a.Session,
		Usage:     a.Usage,
		Demo:      a.Transform,
		Stager:    a.Stager,
		Exporters: a.Exporters,
		Pricing:   a.Pricing,
		Profiles:  a.Profiles,
		Jobs:      a.Jobs,
		Metrics:   a.Metrics,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func (a *App) onClose(fn func()) {
	if fn != nil {
		a.closeFns = append(a.closeFns, fn)
	}
}

// Exporters lists every download format in the order the dashboard offers
// them.
func Exporters() []ports.Exporter {
	return []ports.Exporter{
		csvexport.New(),
		xlsxexport.New(),
		pdfexport.New(),
		export.JSONExporter{},
	}
}

func executorConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	if cfg.HTTPRetryMaxAttempts > 0 {
		rc.RetryMaxAttempts = cfg.HTTPRetryMaxAttempts
	}
	rc.BreakerEnabled = cfg.HTTPBreakerEnabled
	return rc
}

func publishConfig(cfg config.Config) resilience.Config {
	rc := resilience.PublishConfig()
	rc.BreakerEnabled = cfg.HTTPBreakerEnabled
	return rc
}

func backendLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageGCS:
		storage, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() { _ = storage.Close() }, nil
	default:
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return storage, nil, nil
	}
}

func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := postgres.OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func newQueue(cfg config.Config) (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(publishConfig(cfg)),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}
