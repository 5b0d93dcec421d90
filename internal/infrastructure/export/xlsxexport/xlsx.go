// Package xlsxexport writes flattened documents into a single-sheet workbook.
package xlsxexport

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	SheetName   = "Data"
)

type Exporter struct{}

func New() *Exporter { return &Exporter{} }

func (*Exporter) Format() string { return "xlsx" }

func (*Exporter) Export(doc *domain.ParsedDocument, now time.Time) (*domain.Artifact, error) {
	rows := export.Flatten(doc)
	if len(rows) == 0 {
		return nil, export.NoData("xlsx")
	}
	data, err := Encode(rows)
	if err != nil {
		return nil, err
	}
	return &domain.Artifact{
		Filename:    export.DataFilename(doc.Kind(), now, "xlsx"),
		ContentType: ContentType,
		Data:        data,
	}, nil
}

// Encode writes a bold Key/Value header followed by the rows. Page header
// rows are bold as well.
func Encode(rows []export.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &[]any{"Key", "Value"}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "B1", bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &[]any{row.Key, row.Value}); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
		if row.Value == "" {
			if err := f.SetCellStyle(SheetName, cell, cell, bold); err != nil {
				return nil, fmt.Errorf("style row %d: %w", i+1, err)
			}
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 36); err != nil {
		return nil, fmt.Errorf("size key column: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 80); err != nil {
		return nil, fmt.Errorf("size value column: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
