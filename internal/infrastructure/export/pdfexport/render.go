package pdfexport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export"
)

const ContentType = "application/pdf"

type Exporter struct{}

func New() *Exporter { return &Exporter{} }

func (*Exporter) Format() string { return "pdf" }

func (*Exporter) Export(doc *domain.ParsedDocument, now time.Time) (*domain.Artifact, error) {
	pages := Layout(doc)
	if len(pages) == 0 {
		return nil, export.NoData("pdf")
	}
	data, err := Render(pages)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return &domain.Artifact{
		Filename:    export.PDFFilename(doc, now),
		ContentType: ContentType,
		Data:        data,
	}, nil
}

type description struct {
	Paper string              `json:"paper"`
	Pages map[string]pageSpec `json:"pages"`
}

type pageSpec struct {
	Content contentSpec `json:"content"`
}

type contentSpec struct {
	Text []textSpec `json:"text"`
}

type textSpec struct {
	Value string     `json:"value"`
	Pos   [2]float64 `json:"pos"`
	Font  fontSpec   `json:"font"`
}

type fontSpec struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Render builds a pdfcpu JSON page description and creates the PDF from it.
func Render(pages []Page) ([]byte, error) {
	desc := description{Paper: "A4", Pages: make(map[string]pageSpec, len(pages))}
	for i, page := range pages {
		spec := pageSpec{Content: contentSpec{Text: make([]textSpec, 0, len(page.Lines))}}
		for _, line := range page.Lines {
			if strings.TrimSpace(line.Text) == "" {
				continue
			}
			font := "Helvetica"
			if line.Bold {
				font = "Helvetica-Bold"
			}
			spec.Content.Text = append(spec.Content.Text, textSpec{
				Value: latin1(line.Text),
				Pos:   [2]float64{round(line.X), round(line.Y)},
				Font:  fontSpec{Name: font, Size: line.Size},
			})
		}
		desc.Pages[strconv.Itoa(i+1)] = spec
	}

	raw, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("marshal page description: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	var out bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(raw), &out, conf); err != nil {
		return nil, fmt.Errorf("create pdf: %w", err)
	}
	return out.Bytes(), nil
}

// latin1 replaces characters the standard fonts cannot encode.
func latin1(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r < 0x20:
			return -1
		case r > 0xFF:
			return '?'
		default:
			return r
		}
	}, s)
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
