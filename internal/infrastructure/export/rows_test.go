package export

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

func mustDecode(t *testing.T, body string) *domain.ParsedDocument {
	t.Helper()
	doc, err := domain.DecodeDocument([]byte(body))
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	return doc
}

func TestFormatFieldName(t *testing.T) {
	cases := map[string]string{
		"bank_name":      "Bank Name",
		"iban":           "Iban",
		"swift__code":    "Swift Code",
		"account holder": "Account Holder",
	}
	for in, want := range cases {
		if got := FormatFieldName(in); got != want {
			t.Fatalf("FormatFieldName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFlattenInvoiceOrder(t *testing.T) {
	doc := mustDecode(t, `{
		"page_1":{"invoice_number":"B"},
		"page_0":{"invoice_number":"A","discount":null,"payment_instructions":{"bank_name":"Nordea","iban":"DK00"}}
	}`)
	rows := Flatten(doc)

	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	got := strings.Join(keys[:10], ",")
	want := "Page 1,Customer Name,Invoice Date,Invoice Number,Order Number,Currency,Discount,Total Amount,Payment Instructions - Bank Name,Payment Instructions - Iban"
	if got != want {
		t.Fatalf("unexpected key order:\n%s\nwant\n%s", got, want)
	}
	if rows[3].Value != "A" || rows[6].Value != domain.NotAvailable {
		t.Fatalf("unexpected values %+v", rows[:7])
	}
	if rows[10].Key != "Page 2" {
		t.Fatalf("expected second page header, got %q", rows[10].Key)
	}
}

func TestFlattenManual(t *testing.T) {
	doc := mustDecode(t, `{"page_0":{"type":"manual",
		"assembly":{"name":"Fuel Pump","maker_details":{"name":"MAN"},"parts":[{"item_number":"1","name":"Seal"}],"subassembly":{"name":"Rotor"}},
		"spare_parts_information":[{"name":"Gasket","quantity":4}],
		"manufacturer_contact_details":{"name":"MAN Energy","email":"info@man.eu"}}}`)
	rows := Flatten(doc)

	index := map[string]string{}
	for _, r := range rows {
		index[r.Key] = r.Value
	}
	checks := map[string]string{
		"Assembly 1 Name":          "Fuel Pump",
		"Assembly 1 Maker Name":    "MAN",
		"Assembly 1 Maker Phone":   domain.NotAvailable,
		"Assembly 1 Serial Number": domain.NotAvailable,
		"Assembly 1 Part 1":        "Item Number: 1 | Name: Seal | Part Number: N/A | Quantity: N/A",
		"Assembly 1 Subassembly 1": "Item Number: N/A | Name: Rotor | Part Number: N/A | Quantity: N/A",
		"Spare Part 1":             "Name: Gasket | Part Number: N/A | Quantity: 4 | Remarks: N/A",
		"Manufacturer Contact 1":   "Name: MAN Energy | Address: N/A | Phone: N/A | Email: info@man.eu | Website: N/A",
	}
	for key, want := range checks {
		if got, ok := index[key]; !ok || got != want {
			t.Fatalf("%s = %q, want %q", key, got, want)
		}
	}
	if rows[0].Key != "Page 1" {
		t.Fatalf("expected page header first")
	}
}

func TestPDFFilename(t *testing.T) {
	now := time.UnixMilli(1767225600123)
	if got := PDFFilename(mustDecode(t, `{"page_0":{"invoice_number":"INV/42"}}`), now); got != "invoice_INV-42.pdf" {
		t.Fatalf("unexpected invoice filename %s", got)
	}
	if got := PDFFilename(mustDecode(t, `{"page_0":{"customer_name":"x"}}`), now); got != "invoice_document.pdf" {
		t.Fatalf("unexpected fallback filename %s", got)
	}
	if got := PDFFilename(mustDecode(t, `{"page_0":{"assembly":[]}}`), now); got != "manual_1767225600123.pdf" {
		t.Fatalf("unexpected manual filename %s", got)
	}
}

func TestJSONTreeKeepsWrapping(t *testing.T) {
	tree, err := JSONTree(mustDecode(t, `{"page_0":{"b":1,"a":2}}`))
	if err != nil {
		t.Fatalf("JSONTree() error = %v", err)
	}
	want := "{\n  \"data\": {\n    \"data\": {\n      \"page_0\": {\n        \"b\": 1,\n        \"a\": 2\n      }\n    }\n  }\n}"
	if string(tree) != want {
		t.Fatalf("unexpected tree:\n%s", tree)
	}
}
