// Package pdfexport lays parsed documents out as A4 pages and renders them
// with pdfcpu.
package pdfexport

import (
	"fmt"
	"strings"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export"
)

const (
	PageWidth  = 595.0
	PageHeight = 842.0

	marginLeft   = 50.0
	marginTop    = 60.0
	marginBottom = 70.0
	indent       = 16.0
	lineFactor   = 1.5
	wrapAt       = 90
	footerY      = 30.0
)

type Line struct {
	X    float64
	Y    float64
	Text string
	Size int
	Bold bool
}

type Page struct {
	Lines []Line
}

// Layout positions every line of the document. Invoice pages map one to one
// to source pages unless their content overflows; manual pages without
// renderable content are dropped.
func Layout(doc *domain.ParsedDocument) []Page {
	if doc == nil || doc.Document == nil {
		return nil
	}
	var pages []Page
	switch d := doc.Document.(type) {
	case *domain.InvoiceDocument:
		pages = layoutInvoice(d)
	case *domain.ManualDocument:
		pages = layoutManual(d)
	}
	addFooters(pages)
	return pages
}

type writer struct {
	pages []Page
	y     float64
}

func (w *writer) newPage() {
	w.pages = append(w.pages, Page{})
	w.y = PageHeight - marginTop
}

func (w *writer) current() *Page {
	if len(w.pages) == 0 {
		w.newPage()
	}
	return &w.pages[len(w.pages)-1]
}

func (w *writer) text(x float64, text string, size int, bold bool) {
	for _, chunk := range wrap(text, wrapAt*10/size) {
		step := float64(size) * lineFactor
		if w.y-step < marginBottom {
			w.newPage()
		}
		page := w.current()
		page.Lines = append(page.Lines, Line{X: x, Y: w.y, Text: chunk, Size: size, Bold: bold})
		w.y -= step
	}
}

func (w *writer) title(text string) { w.text(marginLeft, text, 18, true) }

func (w *writer) heading(text string) {
	w.gap(6)
	w.text(marginLeft, text, 12, true)
}

func (w *writer) field(label string, value domain.Text) {
	w.text(marginLeft+indent, label+": "+value.OrNA(), 10, false)
}

func (w *writer) entry(text string) { w.text(marginLeft+indent, text, 10, false) }

func (w *writer) subEntry(text string) { w.text(marginLeft+2*indent, text, 9, false) }

func (w *writer) gap(points float64) { w.y -= points }

func layoutInvoice(doc *domain.InvoiceDocument) []Page {
	w := &writer{}
	for _, page := range doc.Pages {
		w.newPage()
		w.title("INVOICE")
		w.field("Invoice Number", page.InvoiceNumber)
		w.field("Invoice Date", page.InvoiceDate)
		w.field("Order Number", page.OrderNumber)

		w.heading("Customer")
		w.field("Customer Name", page.CustomerName)
		w.field("Currency", page.Currency)

		w.heading("Line Items")
		if len(page.Items) == 0 {
			w.entry(domain.NotAvailable)
		}
		for i, item := range page.Items {
			w.text(marginLeft+indent, fmt.Sprintf("%d. %s", i+1, item.Description.OrNA()), 10, true)
			w.subEntry(export.Composite(
				export.Pair{Label: "Part Number", Value: item.PartNumber},
				export.Pair{Label: "Quantity", Value: item.Quantity},
				export.Pair{Label: "Unit Price", Value: item.UnitPrice},
				export.Pair{Label: "Total Price", Value: item.TotalPrice},
			))
		}

		w.heading("Totals")
		w.field("Discount", page.Discount)
		w.text(marginLeft+indent, "Total Amount: "+page.TotalAmount.OrNA(), 11, true)

		if len(page.PaymentInstructions) > 0 {
			w.heading("Payment Instructions")
			for _, f := range page.PaymentInstructions {
				w.field(export.FormatFieldName(f.Key), f.Value)
			}
		}
	}
	return w.pages
}

func layoutManual(doc *domain.ManualDocument) []Page {
	w := &writer{}
	for i, page := range doc.Pages {
		if !page.HasContent() {
			continue
		}
		w.newPage()
		w.title("EQUIPMENT MANUAL")
		w.text(marginLeft, export.PageTitle(i)+" of source document", 9, false)

		for _, assembly := range page.Assemblies {
			w.heading("Assembly: " + assembly.Name.OrNA())
			w.field("Part Number", assembly.PartNumber)
			w.field("Serial Number", assembly.SerialNumber)
			w.field("Model", assembly.Model)
			w.field("Quantity", assembly.Quantity)

			w.text(marginLeft+indent, "Maker Details", 10, true)
			if len(assembly.Maker) == 0 {
				w.subEntry(domain.NotAvailable)
			}
			for _, maker := range assembly.Maker {
				w.subEntry(export.ContactSummary(maker))
			}
			if len(assembly.Parts) > 0 {
				w.text(marginLeft+indent, "Parts", 10, true)
				for _, part := range assembly.Parts {
					w.subEntry(export.PartSummary(part))
				}
			}
			if len(assembly.Subassemblies) > 0 {
				w.text(marginLeft+indent, "Subassemblies", 10, true)
				for _, sub := range assembly.Subassemblies {
					w.subEntry(export.PartSummary(sub))
				}
			}
		}

		if len(page.SpareParts) > 0 {
			w.heading("Spare Parts")
			for _, spare := range page.SpareParts {
				w.entry(export.SparePartSummary(spare))
			}
		}
		if len(page.ManufacturerContacts) > 0 {
			w.heading("Manufacturer Contacts")
			for _, contact := range page.ManufacturerContacts {
				w.entry(export.ContactSummary(contact))
			}
		}
	}
	return w.pages
}

func addFooters(pages []Page) {
	if len(pages) < 2 {
		return
	}
	for i := range pages {
		pages[i].Lines = append(pages[i].Lines, Line{
			X:    PageWidth/2 - 30,
			Y:    footerY,
			Text: fmt.Sprintf("Page %d of %d", i+1, len(pages)),
			Size: 9,
		})
	}
}

// wrap splits text on spaces into chunks of at most width runes; words
// longer than width are cut.
func wrap(text string, width int) []string {
	if width <= 0 {
		width = wrapAt
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var out []string
	var cur []rune
	for _, word := range words {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			out = append(out, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(cur) == 0:
			cur = append(cur, w...)
		case len(cur)+1+len(w) <= width:
			cur = append(cur, ' ')
			cur = append(cur, w...)
		default:
			out = append(out, string(cur))
			cur = append([]rune(nil), w...)
		}
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
