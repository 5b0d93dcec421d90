package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

var errNoData = errors.New("no data to export")

// NoData is the error every exporter returns instead of writing an empty file.
func NoData(format string) error {
	return domain.WrapError(domain.ErrExport, "export "+format, errNoData)
}

// DataFilename is "{kind}_data_{YYYY-MM-DD}.{ext}".
func DataFilename(kind domain.DocumentKind, now time.Time, ext string) string {
	return fmt.Sprintf("%s_data_%s.%s", kind, now.Format("2006-01-02"), ext)
}

// PDFFilename is manual_{unixmillis}.pdf or invoice_{invoice number}.pdf,
// falling back to invoice_document.pdf.
func PDFFilename(doc *domain.ParsedDocument, now time.Time) string {
	if doc.Kind() == domain.KindManual {
		return fmt.Sprintf("manual_%d.pdf", now.UnixMilli())
	}
	ref := "document"
	if invoice, ok := doc.Document.(*domain.InvoiceDocument); ok && len(invoice.Pages) > 0 {
		if number := safeFilePart(string(invoice.Pages[0].InvoiceNumber)); number != "" {
			ref = number
		}
	}
	return "invoice_" + ref + ".pdf"
}

func safeFilePart(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
}

// JSONTree pretty-prints the wrapped result with two-space indentation.
func JSONTree(doc *domain.ParsedDocument) ([]byte, error) {
	if doc == nil || len(doc.Raw) == 0 {
		return nil, NoData("json")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, doc.Raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indent result tree: %w", err)
	}
	return out.Bytes(), nil
}

// JSONExporter serves the raw result tree as a download.
type JSONExporter struct{}

func (JSONExporter) Format() string { return "json" }

func (JSONExporter) Export(doc *domain.ParsedDocument, now time.Time) (*domain.Artifact, error) {
	data, err := JSONTree(doc)
	if err != nil {
		return nil, err
	}
	return &domain.Artifact{
		Filename:    DataFilename(doc.Kind(), now, "json"),
		ContentType: "application/json",
		Data:        data,
	}, nil
}
