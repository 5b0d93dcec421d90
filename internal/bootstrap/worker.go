package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/maritime-docflow/internal/config"
	"github.com/kirillkom/maritime-docflow/internal/core/usecase"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/queue/nats"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/repository/postgres"
)

// Worker is the export side: job events in, artifacts out.
type Worker struct {
	Config config.Config
	Queue  *nats.Queue
	Export *usecase.ExportJobUseCase

	closeFns []func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	w := &Worker{Config: cfg}

	db, err := openDatabase(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	w.closeFns = append(w.closeFns, func() { _ = db.Close() })

	storage, closeStorage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	if closeStorage != nil {
		w.closeFns = append(w.closeFns, closeStorage)
	}

	queue, err := newQueue(cfg)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.Queue = queue
	w.closeFns = append(w.closeFns, queue.Close)

	w.Export = usecase.NewExportJobUseCase(postgres.NewJobRepository(db), storage, Exporters()...)
	return w, nil
}

func (w *Worker) Close() {
	for i := len(w.closeFns) - 1; i >= 0; i-- {
		w.closeFns[i]()
	}
	w.closeFns = nil
}
