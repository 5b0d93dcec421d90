// Package export flattens parsed documents into the rows and text shared by
// the CSV, XLSX and PDF exporters.
package export

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

type Row struct {
	Key   string
	Value string
}

// FormatFieldName turns a snake_case key into "Title Case Words".
func FormatFieldName(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || unicode.IsSpace(r) })
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Composite joins labelled values as "Label: value | Label: value", with
// missing values shown as N/A.
func Composite(pairs ...Pair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.Label+": "+p.Value.OrNA())
	}
	return strings.Join(parts, " | ")
}

type Pair struct {
	Label string
	Value domain.Text
}

func PageTitle(page int) string {
	return fmt.Sprintf("Page %d", page+1)
}

// Flatten returns the ordered key/value rows of a document.
func Flatten(doc *domain.ParsedDocument) []Row {
	if doc == nil || doc.Document == nil {
		return nil
	}
	switch d := doc.Document.(type) {
	case *domain.InvoiceDocument:
		return flattenInvoice(d)
	case *domain.ManualDocument:
		return flattenManual(d)
	default:
		return nil
	}
}

func flattenInvoice(doc *domain.InvoiceDocument) []Row {
	var rows []Row
	for i, page := range doc.Pages {
		rows = append(rows, Row{Key: PageTitle(i), Value: ""})
		rows = append(rows,
			Row{Key: "Customer Name", Value: page.CustomerName.OrNA()},
			Row{Key: "Invoice Date", Value: page.InvoiceDate.OrNA()},
			Row{Key: "Invoice Number", Value: page.InvoiceNumber.OrNA()},
			Row{Key: "Order Number", Value: page.OrderNumber.OrNA()},
			Row{Key: "Currency", Value: page.Currency.OrNA()},
		)
		for n, item := range page.Items {
			rows = append(rows, Row{Key: fmt.Sprintf("Item %d", n+1), Value: ItemSummary(item)})
		}
		rows = append(rows,
			Row{Key: "Discount", Value: page.Discount.OrNA()},
			Row{Key: "Total Amount", Value: page.TotalAmount.OrNA()},
		)
		for _, field := range page.PaymentInstructions {
			rows = append(rows, Row{
				Key:   "Payment Instructions - " + FormatFieldName(field.Key),
				Value: field.Value.OrNA(),
			})
		}
	}
	return rows
}

func flattenManual(doc *domain.ManualDocument) []Row {
	var rows []Row
	for i, page := range doc.Pages {
		rows = append(rows, Row{Key: PageTitle(i), Value: ""})

		for a, assembly := range page.Assemblies {
			prefix := fmt.Sprintf("Assembly %d", a+1)
			rows = append(rows,
				Row{Key: prefix + " Name", Value: assembly.Name.OrNA()},
				Row{Key: prefix + " Part Number", Value: assembly.PartNumber.OrNA()},
			)
			if len(assembly.Maker) == 0 {
				rows = append(rows, Row{Key: prefix + " Maker Details", Value: domain.NotAvailable})
			}
			for m, maker := range assembly.Maker {
				makerPrefix := prefix + " Maker"
				if len(assembly.Maker) > 1 {
					makerPrefix = fmt.Sprintf("%s Maker %d", prefix, m+1)
				}
				rows = append(rows,
					Row{Key: makerPrefix + " Name", Value: maker.Name.OrNA()},
					Row{Key: makerPrefix + " Address", Value: maker.Address.OrNA()},
					Row{Key: makerPrefix + " Phone", Value: maker.Phone.OrNA()},
					Row{Key: makerPrefix + " Email", Value: maker.Email.OrNA()},
					Row{Key: makerPrefix + " Website", Value: maker.Website.OrNA()},
				)
			}
			rows = append(rows,
				Row{Key: prefix + " Serial Number", Value: assembly.SerialNumber.OrNA()},
				Row{Key: prefix + " Model", Value: assembly.Model.OrNA()},
				Row{Key: prefix + " Quantity", Value: assembly.Quantity.OrNA()},
			)
			for p, part := range assembly.Parts {
				rows = append(rows, Row{Key: fmt.Sprintf("%s Part %d", prefix, p+1), Value: PartSummary(part)})
			}
			for s, sub := range assembly.Subassemblies {
				rows = append(rows, Row{Key: fmt.Sprintf("%s Subassembly %d", prefix, s+1), Value: PartSummary(sub)})
			}
		}

		for s, spare := range page.SpareParts {
			rows = append(rows, Row{Key: fmt.Sprintf("Spare Part %d", s+1), Value: SparePartSummary(spare)})
		}
		for c, contact := range page.ManufacturerContacts {
			rows = append(rows, Row{Key: fmt.Sprintf("Manufacturer Contact %d", c+1), Value: ContactSummary(contact)})
		}
	}
	return rows
}

func ItemSummary(item domain.Item) string {
	return Composite(
		Pair{"Description", item.Description},
		Pair{"Part Number", item.PartNumber},
		Pair{"Quantity", item.Quantity},
		Pair{"Unit Price", item.UnitPrice},
		Pair{"Total Price", item.TotalPrice},
	)
}

func PartSummary(part domain.Part) string {
	return Composite(
		Pair{"Item Number", part.ItemNumber},
		Pair{"Name", part.Name},
		Pair{"Part Number", part.PartNumber},
		Pair{"Quantity", part.Quantity},
	)
}

func SparePartSummary(spare domain.SparePart) string {
	return Composite(
		Pair{"Name", spare.Name},
		Pair{"Part Number", spare.PartNumber},
		Pair{"Quantity", spare.Quantity},
		Pair{"Remarks", spare.Remarks},
	)
}

func ContactSummary(contact domain.Contact) string {
	return Composite(
		Pair{"Name", contact.Name},
		Pair{"Address", contact.Address},
		Pair{"Phone", contact.Phone},
		Pair{"Email", contact.Email},
		Pair{"Website", contact.Website},
	)
}
