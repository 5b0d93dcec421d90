package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
)

const recordTimeout = 10 * time.Second

// ModeWorkflow is the mode-independent surface of a Workflow.
type ModeWorkflow interface {
	Mode() domain.Mode
	SelectFile(files ...domain.UploadFile) error
	CommitInput(ctx context.Context, raw string) error
	Start(ctx context.Context) (<-chan struct{}, error)
	Submit(ctx context.Context) error
	Cancel() bool
	Reset()
	IsSubmitting() bool
	LastError() error
	Result() *domain.ParsedDocument
	Snapshot() domain.UploadSession
}

// TransformObserver receives the outcome of every finished transform call.
type TransformObserver interface {
	RecordTransform(mode domain.Mode, elapsed time.Duration, err error)
}

type DashboardConfig struct {
	Timeout        time.Duration
	ManualMaxPages int
	// UserID names the owner of recorded jobs.
	UserID   func() string
	Now      func() time.Time
	Observer TransformObserver
}

type DashboardState struct {
	ActiveMode domain.Mode          `json:"active_mode"`
	Invoice    domain.UploadSession `json:"invoice"`
	Manual     domain.UploadSession `json:"manual"`
}

// Dashboard holds one workflow per mode and the active mode selector.
type Dashboard struct {
	invoice *Workflow[struct{}]
	manual  *Workflow[[]int]

	recorder ports.JobRecorder
	observer TransformObserver
	userID   func() string
	now      func() time.Time

	mu     sync.Mutex
	active domain.Mode
}

func NewDashboard(
	transformer ports.DocumentTransformer,
	counter ports.PageCounter,
	recorder ports.JobRecorder,
	cfg DashboardConfig,
) *Dashboard {
	if cfg.ManualMaxPages <= 0 {
		cfg.ManualMaxPages = DefaultManualMaxPages
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	d := &Dashboard{
		recorder: recorder,
		observer: cfg.Observer,
		userID:   cfg.UserID,
		now:      cfg.Now,
		active:   domain.ModeInvoice,
	}

	d.invoice = NewWorkflow(WorkflowConfig[struct{}]{
		Mode: domain.ModeInvoice,
		Submit: func(ctx context.Context, file domain.UploadFile, _ struct{}, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error) {
			return transformer.TransformInvoice(ctx, file, onProgress)
		},
		Timeout:  cfg.Timeout,
		OnFinish: d.record,
	})
	d.manual = NewWorkflow(WorkflowConfig[[]int]{
		Mode:  domain.ModeManual,
		Parse: manualPageParser(cfg.ManualMaxPages, counter),
		Submit: func(ctx context.Context, file domain.UploadFile, pages []int, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error) {
			return transformer.UploadManual(ctx, file, pages, onProgress)
		},
		Timeout:     cfg.Timeout,
		PageNumbers: func(pages []int) []int { return pages },
		OnFinish:    d.record,
	})
	return d
}

func (d *Dashboard) Workflow(mode domain.Mode) (ModeWorkflow, error) {
	switch mode {
	case domain.ModeInvoice:
		return d.invoice, nil
	case domain.ModeManual:
		return d.manual, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "select workflow", fmt.Errorf("unknown mode %q", mode))
	}
}

func (d *Dashboard) ActiveMode() domain.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// SwitchMode is refused while either workflow is submitting. Changing the
// mode resets both workflows to idle.
func (d *Dashboard) SwitchMode(mode domain.Mode) error {
	if _, err := d.Workflow(mode); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.invoice.IsSubmitting() || d.manual.IsSubmitting() {
		return domain.WrapError(domain.ErrConflict, "switch mode", ErrSubmitting)
	}
	if d.active == mode {
		return nil
	}
	d.active = mode
	d.invoice.Reset()
	d.manual.Reset()
	return nil
}

// Start submits the workflow of the active mode.
func (d *Dashboard) Start(ctx context.Context, mode domain.Mode) (<-chan struct{}, error) {
	wf, err := d.Workflow(mode)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if mode != d.active {
		return nil, domain.WrapError(domain.ErrConflict, "submit", fmt.Errorf("%s is not the active mode", mode))
	}
	return wf.Start(ctx)
}

func (d *Dashboard) Submit(ctx context.Context, mode domain.Mode) error {
	done, err := d.Start(ctx, mode)
	if err != nil {
		return err
	}
	wf, _ := d.Workflow(mode)
	select {
	case <-done:
	case <-ctx.Done():
		wf.Cancel()
		<-done
	}
	return wf.LastError()
}

func (d *Dashboard) State() DashboardState {
	return DashboardState{
		ActiveMode: d.ActiveMode(),
		Invoice:    d.invoice.Snapshot(),
		Manual:     d.manual.Snapshot(),
	}
}

// Close abandons running calls and releases staged files.
func (d *Dashboard) Close() {
	d.invoice.Reset()
	d.manual.Reset()
}

func (d *Dashboard) record(mode domain.Mode, file domain.FileInfo, elapsed time.Duration, result *domain.ParsedDocument, callErr error) {
	if d.observer != nil {
		d.observer.RecordTransform(mode, elapsed, callErr)
	}
	if d.recorder == nil {
		return
	}
	job := &domain.Job{
		ID:        uuid.NewString(),
		Mode:      mode,
		Filename:  file.Name,
		Status:    domain.JobSucceeded,
		Result:    result,
		CreatedAt: d.now().UTC(),
	}
	if d.userID != nil {
		job.UserID = d.userID()
	}
	if callErr != nil {
		job.Status = domain.JobFailed
		job.Error = domain.UserMessage(callErr)
		job.Result = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := d.recorder.Record(ctx, job); err != nil {
		slog.Warn("job_record_failed", "job_id", job.ID, "mode", mode, "error", err)
	}
}
