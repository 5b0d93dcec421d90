package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

const DefaultTransformTimeout = 300 * time.Second

var (
	// ErrSubmitting is returned for changes attempted while a transform call runs.
	ErrSubmitting = errors.New("an upload is in progress")
	// ErrSelectionChanged is returned when the file was replaced while its
	// input was being parsed.
	ErrSelectionChanged = errors.New("the selected file changed")
)

// InputParser turns the raw text of a mode-specific input into its value.
type InputParser[T any] func(ctx context.Context, raw string, file *domain.UploadFile) (T, error)

// Submitter sends the selected file with its parsed input to the backend.
type Submitter[T any] func(ctx context.Context, file domain.UploadFile, input T, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error)

// FinishFunc observes every transform call that ran to completion.
type FinishFunc func(mode domain.Mode, file domain.FileInfo, elapsed time.Duration, result *domain.ParsedDocument, err error)

type WorkflowConfig[T any] struct {
	Mode domain.Mode
	// Parse is required for modes that need input besides the file.
	Parse   InputParser[T]
	Submit  Submitter[T]
	Timeout time.Duration
	// PageNumbers exposes the parsed input in snapshots.
	PageNumbers func(T) []int
	OnFinish    FinishFunc
}

// Workflow is the upload state machine of one mode:
// idle -> file_selected -> uploading -> succeeded | failed.
type Workflow[T any] struct {
	cfg WorkflowConfig[T]

	mu                sync.Mutex
	file              *domain.UploadFile
	rawInput          string
	input             T
	hasInput          bool
	status            domain.UploadStatus
	progress          *domain.Progress
	result            *domain.ParsedDocument
	errorMessage      string
	lastErr           error
	validationMessage string
	cancel            context.CancelFunc
	done              chan struct{}
	generation        uint64
	// selection counts file changes; parsed input is only kept for the
	// file it was parsed against.
	selection uint64
}

func NewWorkflow[T any](cfg WorkflowConfig[T]) *Workflow[T] {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTransformTimeout
	}
	return &Workflow[T]{cfg: cfg, status: domain.UploadIdle}
}

func (w *Workflow[T]) Mode() domain.Mode { return w.cfg.Mode }

// SelectFile keeps the first file and releases the rest along with any
// previously selected file.
func (w *Workflow[T]) SelectFile(files ...domain.UploadFile) error {
	if len(files) == 0 {
		return domain.NewValidationError("file", "Select a file to upload")
	}

	w.mu.Lock()
	if w.status == domain.UploadSubmitting {
		w.mu.Unlock()
		releaseAll(files)
		return domain.WrapError(domain.ErrConflict, "select file", ErrSubmitting)
	}
	previous := w.file
	chosen := files[0]
	w.file = &chosen
	w.selection++
	w.status = domain.UploadFileSelected
	w.progress = nil
	w.result = nil
	w.errorMessage = ""
	w.validationMessage = ""
	w.mu.Unlock()

	if previous != nil {
		release(*previous)
	}
	releaseAll(files[1:])
	return nil
}

// CommitInput parses and stores the mode-specific input. On failure the
// previous input is kept and the message is exposed in snapshots.
func (w *Workflow[T]) CommitInput(ctx context.Context, raw string) error {
	if w.cfg.Parse == nil {
		return domain.WrapError(domain.ErrInvalidInput, "commit input", errors.New("mode takes no input"))
	}

	w.mu.Lock()
	if w.status == domain.UploadSubmitting {
		w.mu.Unlock()
		return domain.WrapError(domain.ErrConflict, "commit input", ErrSubmitting)
	}
	file, selection := w.file, w.selection
	w.mu.Unlock()

	value, err := w.cfg.Parse(ctx, raw, file)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selection != selection {
		return domain.WrapError(domain.ErrConflict, "commit input", ErrSelectionChanged)
	}
	if err != nil {
		w.validationMessage = domain.UserMessage(err)
		return err
	}
	w.rawInput = raw
	w.input = value
	w.hasInput = true
	w.validationMessage = ""
	return nil
}

// Start validates the session and launches the transform call in the
// background. The call is detached from ctx cancellation but keeps its
// values; use Cancel to abort it.
func (w *Workflow[T]) Start(ctx context.Context) (<-chan struct{}, error) {
	w.mu.Lock()
	if w.status == domain.UploadSubmitting {
		w.mu.Unlock()
		return nil, domain.WrapError(domain.ErrConflict, "submit", ErrSubmitting)
	}
	if w.file == nil {
		w.validationMessage = "Select a file to upload"
		w.mu.Unlock()
		return nil, domain.NewValidationError("file", "Select a file to upload")
	}
	file, selection := *w.file, w.selection
	rawInput, hasInput := w.rawInput, w.hasInput
	w.mu.Unlock()

	var input T
	if w.cfg.Parse != nil {
		if !hasInput {
			err := domain.NewValidationError(pageNumbersField, "Enter the page numbers and press Enter")
			w.setValidation(err)
			return nil, err
		}
		// the file may have changed since the input was committed
		parsed, err := w.cfg.Parse(ctx, rawInput, &file)
		if err != nil {
			w.setValidation(err)
			return nil, err
		}
		input = parsed
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.Timeout)

	w.mu.Lock()
	if w.status == domain.UploadSubmitting {
		w.mu.Unlock()
		cancel()
		return nil, domain.WrapError(domain.ErrConflict, "submit", ErrSubmitting)
	}
	if w.selection != selection {
		w.mu.Unlock()
		cancel()
		return nil, domain.WrapError(domain.ErrConflict, "submit", ErrSelectionChanged)
	}
	w.generation++
	gen := w.generation
	done := make(chan struct{})
	w.status = domain.UploadSubmitting
	w.input = input
	w.progress = nil
	w.result = nil
	w.errorMessage = ""
	w.lastErr = nil
	w.validationMessage = ""
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go w.run(runCtx, cancel, gen, done, file, input)
	return done, nil
}

// Submit starts the transform call and waits for it. Cancelling ctx
// cancels the call.
func (w *Workflow[T]) Submit(ctx context.Context) error {
	done, err := w.Start(ctx)
	if err != nil {
		return err
	}
	select {
	case <-done:
	case <-ctx.Done():
		w.Cancel()
		<-done
	}

	return w.LastError()
}

// LastError is the error of the last finished call while its failure is
// still the current state.
func (w *Workflow[T]) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status == domain.UploadFailed {
		return w.lastErr
	}
	return nil
}

func (w *Workflow[T]) run(ctx context.Context, cancel context.CancelFunc, gen uint64, done chan struct{}, file domain.UploadFile, input T) {
	defer close(done)
	defer cancel()

	started := time.Now()
	onProgress := func(p domain.Progress) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.generation == gen && w.status == domain.UploadSubmitting {
			update := p
			w.progress = &update
		}
	}

	result, err := w.cfg.Submit(ctx, file, input, onProgress)

	w.mu.Lock()
	if w.generation != gen {
		w.mu.Unlock()
		return
	}
	w.cancel = nil
	w.progress = nil
	if err != nil {
		w.status = domain.UploadFailed
		w.result = nil
		w.errorMessage = domain.UserMessage(err)
		w.lastErr = err
	} else {
		w.status = domain.UploadSucceeded
		w.result = result
		w.errorMessage = ""
	}
	w.mu.Unlock()

	elapsed := time.Since(started)
	if err != nil {
		slog.Warn("transform_failed", "mode", w.cfg.Mode, "file", file.Name, "duration_ms", elapsed.Milliseconds(), "error", err)
	} else {
		pages := 0
		if result != nil && result.Document != nil {
			pages = result.Document.PageCount()
		}
		slog.Info("transform_succeeded", "mode", w.cfg.Mode, "file", file.Name, "pages", pages, "duration_ms", elapsed.Milliseconds())
	}
	if w.cfg.OnFinish != nil {
		w.cfg.OnFinish(w.cfg.Mode, file.Info(), elapsed, result, err)
	}
}

// Cancel aborts a running transform call. It reports whether one was running.
func (w *Workflow[T]) Cancel() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != domain.UploadSubmitting || w.cancel == nil {
		return false
	}
	w.cancel()
	return true
}

// Reset drops everything back to idle and abandons a running call.
func (w *Workflow[T]) Reset() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	previous := w.file
	var zero T
	w.generation++
	w.selection++
	w.file = nil
	w.rawInput = ""
	w.input = zero
	w.hasInput = false
	w.status = domain.UploadIdle
	w.progress = nil
	w.result = nil
	w.errorMessage = ""
	w.lastErr = nil
	w.validationMessage = ""
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()

	if previous != nil {
		release(*previous)
	}
}

func (w *Workflow[T]) IsSubmitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status == domain.UploadSubmitting
}

func (w *Workflow[T]) Result() *domain.ParsedDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

func (w *Workflow[T]) Snapshot() domain.UploadSession {
	w.mu.Lock()
	defer w.mu.Unlock()

	session := domain.UploadSession{
		Mode:              w.cfg.Mode,
		Files:             []domain.FileInfo{},
		Status:            w.status,
		Result:            w.result,
		ErrorMessage:      w.errorMessage,
		ValidationMessage: w.validationMessage,
	}
	if w.file != nil {
		session.Files = append(session.Files, w.file.Info())
	}
	if w.progress != nil {
		p := *w.progress
		session.Progress = &p
	}
	if w.hasInput && w.cfg.PageNumbers != nil {
		session.PageNumbers = append([]int(nil), w.cfg.PageNumbers(w.input)...)
	}
	return session
}

func (w *Workflow[T]) setValidation(err error) {
	w.mu.Lock()
	w.validationMessage = domain.UserMessage(err)
	w.mu.Unlock()
}

func release(file domain.UploadFile) {
	if file.Release != nil {
		file.Release()
	}
}

func releaseAll(files []domain.UploadFile) {
	for _, f := range files {
		release(f)
	}
}
