package transformapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/httpclient"
)

const (
	ndjsonContentType = "application/x-ndjson"
	uploadingLabel    = "Uploading"
	maxResultBody     = 64 << 20
)

type formField struct {
	name  string
	value string
}

type transformRequest struct {
	operation     string
	path          string
	file          domain.UploadFile
	fields        []formField
	authenticated bool
	onProgress    domain.ProgressFunc
}

func (c *Client) transform(ctx context.Context, in transformRequest) (*domain.ParsedDocument, error) {
	if in.file.Open == nil {
		return nil, domain.NewValidationError("file", "Select a file to upload")
	}
	progress := newProgressSink(in.onProgress)

	build := func(ctx context.Context) (*http.Request, error) {
		body, contentType, err := multipartBody(in.file, in.fields)
		if err != nil {
			return nil, err
		}
		reader := &countingReader{
			reader: bytes.NewReader(body),
			total:  int64(len(body)),
			report: progress.uploaded,
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.http.URL(in.path), reader)
		if err != nil {
			return nil, err
		}
		req.ContentLength = int64(len(body))
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json, "+ndjsonContentType)
		return req, nil
	}

	resp, err := c.http.Do(ctx, in.operation, build, httpclient.CallOptions{Authenticated: in.authenticated})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == ndjsonContentType {
		return readStream(in.operation, resp, progress)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBody))
	if err != nil {
		return nil, domain.WrapError(domain.ErrNetwork, "read "+in.operation+" response", err)
	}
	return domain.DecodeDocument(body)
}

func multipartBody(file domain.UploadFile, fields []formField) ([]byte, string, error) {
	src, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer src.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("copy %s: %w", file.Name, err)
	}
	for _, field := range fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

type streamEvent struct {
	Type     string          `json:"type"`
	Progress *progressEvent  `json:"progress"`
	Payload  json.RawMessage `json:"payload"`
	Error    json.RawMessage `json:"error"`
}

type progressEvent struct {
	Operation  string  `json:"operation"`
	Percentage float64 `json:"percentage"`
}

// readStream consumes newline-delimited job events until a result or error
// event arrives.
func readStream(operation string, resp *http.Response, progress *progressSink) (*domain.ParsedDocument, error) {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxResultBody)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event streamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode "+operation+" event", err)
		}
		switch event.Type {
		case "progress":
			if event.Progress != nil {
				progress.emit(domain.Progress{Operation: event.Progress.Operation, Percentage: event.Progress.Percentage})
			}
		case "result":
			return domain.DecodeDocument(event.Payload)
		case "error":
			return nil, &domain.APIError{
				Operation: operation,
				Status:    resp.StatusCode,
				Message:   streamErrorMessage(event.Error),
				Body:      string(line),
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrNetwork, "read "+operation+" stream", err)
	}
	return nil, domain.WrapError(domain.ErrInvalidInput, operation, errors.New("stream ended without a result"))
}

func streamErrorMessage(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return strings.TrimSpace(obj.Message)
	}
	return strings.TrimSpace(string(raw))
}

// progressSink forwards progress updates, dropping repeats of the same
// whole percentage.
type progressSink struct {
	mu   sync.Mutex
	fn   domain.ProgressFunc
	last domain.Progress
	sent bool
}

func newProgressSink(fn domain.ProgressFunc) *progressSink {
	return &progressSink{fn: fn}
}

func (p *progressSink) uploaded(read, total int64) {
	if total <= 0 {
		return
	}
	pct := math.Floor(float64(read) * 100 / float64(total))
	p.emit(domain.Progress{Operation: uploadingLabel, Percentage: pct})
}

func (p *progressSink) emit(update domain.Progress) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	if p.sent && p.last == update {
		p.mu.Unlock()
		return
	}
	p.last = update
	p.sent = true
	p.mu.Unlock()
	p.fn(update)
}

type countingReader struct {
	reader io.Reader
	read   int64
	total  int64
	report func(read, total int64)
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.read += int64(n)
		if r.report != nil {
			r.report(r.read, r.total)
		}
	}
	return n, err
}
