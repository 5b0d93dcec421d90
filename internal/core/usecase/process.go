package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
)

// RecordJobUseCase stores a finished transform and announces it to the
// export worker.
type RecordJobUseCase struct {
	repo  ports.JobRepository
	queue ports.JobEventQueue
}

func NewRecordJobUseCase(repo ports.JobRepository, queue ports.JobEventQueue) *RecordJobUseCase {
	return &RecordJobUseCase{repo: repo, queue: queue}
}

func (uc *RecordJobUseCase) Record(ctx context.Context, job *domain.Job) error {
	if err := uc.repo.Create(ctx, job); err != nil {
		return fmt.Errorf("create job record: %w", err)
	}
	if job.Status != domain.JobSucceeded || uc.queue == nil {
		return nil
	}
	if err := uc.queue.PublishJobCompleted(ctx, job.ID); err != nil {
		return fmt.Errorf("publish job completed event: %w", err)
	}
	return nil
}

// ExportJobUseCase renders every export format of a finished job into
// object storage.
type ExportJobUseCase struct {
	repo      ports.JobRepository
	storage   ports.ObjectStorage
	exporters []ports.Exporter
	now       func() time.Time
}

func NewExportJobUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	exporters ...ports.Exporter,
) *ExportJobUseCase {
	return &ExportJobUseCase{
		repo:      repo,
		storage:   storage,
		exporters: exporters,
		now:       time.Now,
	}
}

type ExportReport struct {
	JobID string
	// JobCreatedAt is when the transform finished, for queue lag.
	JobCreatedAt time.Time
	Keys         []string
	// Written and Skipped hold export formats.
	Written []string
	Skipped []string
}

func (uc *ExportJobUseCase) ExportByID(ctx context.Context, jobID string) (*ExportReport, error) {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch job by id: %w", err)
	}
	if job.Status != domain.JobSucceeded || job.Result == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "export job", errors.New("job has no result"))
	}

	report, err := uc.render(ctx, job)
	if err != nil {
		return nil, err
	}
	if len(report.Keys) == 0 {
		return report, domain.WrapError(domain.ErrExport, "export job", errors.New("no format produced data"))
	}

	if err := uc.repo.MarkExported(ctx, job.ID, uc.now().UTC()); err != nil {
		return nil, fmt.Errorf("mark job exported: %w", err)
	}
	return report, nil
}

func (uc *ExportJobUseCase) render(ctx context.Context, job *domain.Job) (*ExportReport, error) {
	report := &ExportReport{JobID: job.ID, JobCreatedAt: job.CreatedAt}
	var mu sync.Mutex
	now := uc.now()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, exporter := range uc.exporters {
		group.Go(func() error {
			artifact, err := exporter.Export(job.Result, now)
			if domain.IsKind(err, domain.ErrExport) {
				slog.Info("export_format_skipped", "job_id", job.ID, "format", exporter.Format(), "reason", err)
				mu.Lock()
				report.Skipped = append(report.Skipped, exporter.Format())
				mu.Unlock()
				return nil
			}
			if err != nil {
				return fmt.Errorf("render %s: %w", exporter.Format(), err)
			}

			key := path.Join("exports", job.ID, artifact.Filename)
			if err := uc.storage.Save(groupCtx, key, bytes.NewReader(artifact.Data)); err != nil {
				return fmt.Errorf("save %s: %w", exporter.Format(), err)
			}
			mu.Lock()
			report.Keys = append(report.Keys, key)
			report.Written = append(report.Written, exporter.Format())
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(report.Keys)
	sort.Strings(report.Written)
	sort.Strings(report.Skipped)
	return report, nil
}
