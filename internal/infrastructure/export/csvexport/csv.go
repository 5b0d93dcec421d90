// Package csvexport writes flattened documents as spreadsheet-friendly CSV.
package csvexport

import (
	"bytes"
	"strings"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export"
)

const ContentType = "text/csv; charset=utf-8"

var bom = []byte{0xEF, 0xBB, 0xBF}

type Exporter struct{}

func New() *Exporter { return &Exporter{} }

func (*Exporter) Format() string { return "csv" }

func (*Exporter) Export(doc *domain.ParsedDocument, now time.Time) (*domain.Artifact, error) {
	rows := export.Flatten(doc)
	if len(rows) == 0 {
		return nil, export.NoData("csv")
	}
	return &domain.Artifact{
		Filename:    export.DataFilename(doc.Kind(), now, "csv"),
		ContentType: ContentType,
		Data:        Encode(rows),
	}, nil
}

// Encode writes a BOM, a Key,Value header and one CRLF-terminated line per
// row with every field quoted.
func Encode(rows []export.Row) []byte {
	var buf bytes.Buffer
	buf.Write(bom)
	writeLine(&buf, "Key", "Value")
	for _, row := range rows {
		writeLine(&buf, row.Key, row.Value)
	}
	return buf.Bytes()
}

func writeLine(buf *bytes.Buffer, fields ...string) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}
