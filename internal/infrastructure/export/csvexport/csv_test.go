package csvexport

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export"
)

func TestEncodeQuotesEveryFieldWithCRLF(t *testing.T) {
	got := Encode([]export.Row{{Key: "Customer Name", Value: `Acme "Marine", Ltd`}})
	if !bytes.HasPrefix(got, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatalf("expected BOM prefix")
	}
	want := "\"Key\",\"Value\"\r\n\"Customer Name\",\"Acme \"\"Marine\"\", Ltd\"\r\n"
	if string(got[3:]) != want {
		t.Fatalf("unexpected csv:\n%q\nwant\n%q", got[3:], want)
	}
}

func TestExportInvoice(t *testing.T) {
	doc, err := domain.DecodeDocument([]byte(`{"page_0":{"type":"invoice","customer_name":"Acme","invoice_number":"INV-7","line_items":[{"description":"Valve","quantity":2}]}}`))
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	artifact, err := New().Export(doc, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if artifact.Filename != "invoice_data_2026-05-04.csv" {
		t.Fatalf("unexpected filename %s", artifact.Filename)
	}
	body := string(artifact.Data)
	for _, want := range []string{
		"\"Page 1\",\"\"\r\n",
		"\"Customer Name\",\"Acme\"\r\n",
		"\"Invoice Date\",\"N/A\"\r\n",
		"\"Item 1\",\"Description: Valve | Part Number: N/A | Quantity: 2 | Unit Price: N/A | Total Price: N/A\"\r\n",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in csv:\n%s", want, body)
		}
	}
}

func TestExportWithoutRowsFails(t *testing.T) {
	doc, err := domain.DecodeDocument([]byte(`{"status":"ok"}`))
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	_, err = New().Export(doc, time.Now())
	if !domain.IsKind(err, domain.ErrExport) {
		t.Fatalf("expected export error, got %v", err)
	}
	if domain.UserMessage(err) != "No data to export." {
		t.Fatalf("unexpected message %q", domain.UserMessage(err))
	}
}

func TestExportIsRepeatable(t *testing.T) {
	doc, err := domain.DecodeDocument([]byte(`{
		"page_1":{"type":"manual","assembly":[{"name":"Pump","parts":[{"name":"Seal"},{"name":"Shaft"}]}]},
		"page_0":{"type":"manual","manufacturer_contact_details":{"name":"Maker","email":"a@b.c"}}
	}`))
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	first, err := New().Export(doc, now)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	second, err := New().Export(doc, now)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if first.Filename != second.Filename || !bytes.Equal(first.Data, second.Data) {
		t.Fatalf("expected identical exports:\n%q\n%q", first.Data, second.Data)
	}
}
