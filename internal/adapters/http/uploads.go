package httpadapter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/usecase"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export"
)

const multipartMemory = 8 << 20

func (rt *Router) uploadsState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.deps.Dashboard.State())
}

func (rt *Router) switchMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	mode, ok := domain.ParseMode(req.Mode)
	if !ok {
		writeError(w, r, domain.NewValidationError("mode", "Mode must be invoice or manual"))
		return
	}
	if err := rt.deps.Dashboard.SwitchMode(mode); err != nil {
		writeError(w, r, err)
		return
	}
	requestLogger(r).Info("mode_switched", "mode", mode)
	writeJSON(w, http.StatusOK, rt.deps.Dashboard.State())
}

func (rt *Router) uploadSession(w http.ResponseWriter, r *http.Request) {
	mode, err := pathMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wf, err := rt.deps.Dashboard.Workflow(mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (rt *Router) selectFile(w http.ResponseWriter, r *http.Request) {
	mode, err := pathMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wf, err := rt.deps.Dashboard.Workflow(mode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	file, err := rt.readUpload(w, r, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := wf.SelectFile(file); err != nil {
		writeError(w, r, err)
		return
	}
	requestLogger(r).Info("file_selected", "mode", mode, "file", file.Name, "size", file.Size)
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (rt *Router) commitPages(w http.ResponseWriter, r *http.Request) {
	mode, err := pathMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wf, err := rt.deps.Dashboard.Workflow(mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Pages string `json:"pages"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := wf.CommitInput(r.Context(), req.Pages); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

// submit starts the transform call and answers 202 right away; with
// ?wait=true it answers once the call has finished.
func (rt *Router) submit(w http.ResponseWriter, r *http.Request) {
	mode, err := pathMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	done, err := rt.deps.Dashboard.Start(r.Context(), mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wf, _ := rt.deps.Dashboard.Workflow(mode)
	requestLogger(r).Info("transform_submitted", "mode", mode)

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		writeJSON(w, http.StatusAccepted, wf.Snapshot())
		return
	}
	select {
	case <-done:
	case <-r.Context().Done():
		return
	}
	if err := wf.LastError(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (rt *Router) cancel(w http.ResponseWriter, r *http.Request) {
	mode, err := pathMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wf, err := rt.deps.Dashboard.Workflow(mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": wf.Cancel(), "session": wf.Snapshot()})
}

func (rt *Router) reset(w http.ResponseWriter, r *http.Request) {
	mode, err := pathMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wf, err := rt.deps.Dashboard.Workflow(mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wf.Reset()
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (rt *Router) exportResult(w http.ResponseWriter, r *http.Request) {
	mode, err := pathMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wf, err := rt.deps.Dashboard.Workflow(mode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	exporter, ok := rt.exporters[format]
	if !ok {
		writeError(w, r, domain.NewValidationError("format", fmt.Sprintf("Unsupported export format %q", format)))
		return
	}

	result := wf.Result()
	if result == nil {
		err = export.NoData(format)
	}
	var artifact *domain.Artifact
	if err == nil {
		artifact, err = exporter.Export(result, rt.deps.Now())
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordExport(format, err)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	requestLogger(r).Info("export_written", "mode", mode, "format", format, "file", artifact.Filename, "bytes", len(artifact.Data))
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

// demo runs an unauthenticated transform synchronously without touching
// the dashboard workflows.
func (rt *Router) demo(w http.ResponseWriter, r *http.Request) {
	mode, err := pathMode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.deps.Demo == nil {
		writeError(w, r, domain.WrapError(domain.ErrNotFound, "demo", errors.New("demo transforms are not configured")))
		return
	}
	file, err := rt.readUpload(w, r, false)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var result *domain.ParsedDocument
	switch mode {
	case domain.ModeManual:
		pages, perr := usecase.ParsePageNumbers(r.FormValue("pages"), rt.manualMaxPages())
		if perr != nil {
			writeError(w, r, perr)
			return
		}
		result, err = rt.deps.Demo.DemoManual(r.Context(), file, pages, nil)
	default:
		result, err = rt.deps.Demo.DemoInvoice(r.Context(), file, nil)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readUpload takes the first "file" part. Staged files live in object
// storage until the workflow releases them; the rest stay in memory.
func (rt *Router) readUpload(w http.ResponseWriter, r *http.Request, stage bool) (domain.UploadFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.UploadMaxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.UploadFile{}, domain.NewValidationError("file", "The file is too large")
		}
		return domain.UploadFile{}, domain.NewValidationError("file", "Select a file to upload")
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		return domain.UploadFile{}, domain.NewValidationError("file", "Select a file to upload")
	}
	if len(headers) > 1 {
		requestLogger(r).Info("extra_files_ignored", "count", len(headers)-1)
	}
	header := headers[0]
	contentType := header.Header.Get("Content-Type")

	src, err := header.Open()
	if err != nil {
		return domain.UploadFile{}, fmt.Errorf("open multipart file: %w", err)
	}
	defer src.Close()

	if stage && rt.deps.Stager != nil {
		return rt.deps.Stager.Stage(r.Context(), header.Filename, contentType, src)
	}
	return memoryUpload(header, contentType, src)
}

func memoryUpload(header *multipart.FileHeader, contentType string, src io.Reader) (domain.UploadFile, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return domain.UploadFile{}, fmt.Errorf("read multipart file: %w", err)
	}
	return domain.UploadFile{
		Name:        filepath.Base(header.Filename),
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}, nil
}

func (rt *Router) manualMaxPages() int {
	if rt.cfg.ManualMaxPages > 0 {
		return rt.cfg.ManualMaxPages
	}
	return usecase.DefaultManualMaxPages
}
