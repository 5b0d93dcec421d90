package pdfpages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

const maxInspectBytes = 64 << 20

var errNotPDF = errors.New("file is not a pdf")

// Counter reads the page count of a selected PDF from its header and page
// tree without rendering it.
type Counter struct{}

func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) CountPages(ctx context.Context, file domain.UploadFile) (int, error) {
	if file.Open == nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "count pages", errors.New("file has no content"))
	}
	if ct := strings.ToLower(file.ContentType); ct != "" && !strings.Contains(ct, "pdf") && ct != "application/octet-stream" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "count pages", errNotPDF)
	}

	reader, err := file.Open()
	if err != nil {
		return 0, fmt.Errorf("open selected file: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxInspectBytes+1))
	if err != nil {
		return 0, fmt.Errorf("read selected file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(raw) > maxInspectBytes {
		return 0, domain.WrapError(domain.ErrInvalidInput, "count pages", fmt.Errorf("file larger than %d bytes", maxInspectBytes))
	}
	if !bytes.HasPrefix(bytes.TrimLeft(raw, "\x00\t\r\n "), []byte("%PDF")) {
		return 0, domain.WrapError(domain.ErrInvalidInput, "count pages", errNotPDF)
	}
	return count(raw)
}

func count(raw []byte) (pages int, err error) {
	// the parser panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = domain.WrapError(domain.ErrInvalidInput, "count pages", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "count pages", err)
	}
	n := doc.NumPage()
	if n <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "count pages", errors.New("pdf has no pages"))
	}
	return n, nil
}
