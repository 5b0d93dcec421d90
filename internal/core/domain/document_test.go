package domain

import (
	"encoding/json"
	"testing"
)

func TestDecodeDocumentWrapsBodyAndSortsPages(t *testing.T) {
	body := []byte(`{
		"page_10": {"type": "invoice", "invoice_number": "INV-11"},
		"page_2": {"type": "invoice", "invoice_number": "INV-3"},
		"page_0": {"type": "invoice", "invoice_number": "INV-1", "line_items": [{"description": "Valve", "quantity": 2}]},
		"meta": {"ignored": true}
	}`)

	parsed, err := DecodeDocument(body)
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}

	var wrapped struct {
		Data struct {
			Data map[string]json.RawMessage `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(parsed.Raw, &wrapped); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if _, ok := wrapped.Data.Data["page_0"]; !ok {
		t.Fatalf("expected page_0 under data.data, got %s", parsed.Raw)
	}

	doc, ok := parsed.Document.(*InvoiceDocument)
	if !ok {
		t.Fatalf("expected invoice document, got %T", parsed.Document)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(doc.Pages))
	}
	wantOrder := []int{0, 2, 10}
	for i, want := range wantOrder {
		if doc.Pages[i].Index != want {
			t.Fatalf("page %d: expected index %d, got %d", i, want, doc.Pages[i].Index)
		}
	}
	if got := doc.Pages[0].Items[0].Quantity; got != "2" {
		t.Fatalf("expected numeric quantity decoded as text, got %q", got)
	}
}

func TestDecodeDocumentKindSelection(t *testing.T) {
	cases := []struct {
		name string
		body string
		want DocumentKind
	}{
		{name: "type absent", body: `{"page_0": {"customer_name": "ACME"}}`, want: KindInvoice},
		{name: "type invoice", body: `{"page_0": {"type": "invoice"}}`, want: KindInvoice},
		{name: "type manual", body: `{"page_0": {"type": "manual", "assembly": []}}`, want: KindManual},
		{name: "assembly without type", body: `{"page_0": {"assembly": [{"name": "Pump"}]}}`, want: KindManual},
		{name: "other type", body: `{"page_0": {"type": "rfq"}}`, want: KindManual},
		{name: "no pages", body: `{}`, want: KindInvoice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := DecodeDocument([]byte(tc.body))
			if err != nil {
				t.Fatalf("DecodeDocument() error = %v", err)
			}
			if parsed.Kind() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, parsed.Kind())
			}
		})
	}
}

func TestDecodeDocumentUnwrapsNestedData(t *testing.T) {
	parsed, err := DecodeDocument([]byte(`{"data": {"page_0": {"type": "manual", "assembly": {"name": "Pump"}}}}`))
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	doc, ok := parsed.Document.(*ManualDocument)
	if !ok {
		t.Fatalf("expected manual document, got %T", parsed.Document)
	}
	if len(doc.Pages) != 1 || len(doc.Pages[0].Assemblies) != 1 {
		t.Fatalf("expected single assembly decoded from object, got %+v", doc.Pages)
	}
	if doc.Pages[0].Assemblies[0].Name != "Pump" {
		t.Fatalf("unexpected assembly name %q", doc.Pages[0].Assemblies[0].Name)
	}
}

func TestDecodeDocumentRejectsNonObject(t *testing.T) {
	_, err := DecodeDocument([]byte(`[1,2]`))
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFieldsKeepObjectOrder(t *testing.T) {
	var fields Fields
	if err := json.Unmarshal([]byte(`{"swift": "ABCD", "bank_name": "Bank", "iban": null}`), &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[0].Key != "swift" || fields[1].Key != "bank_name" || fields[2].Key != "iban" {
		t.Fatalf("unexpected order: %+v", fields)
	}
	if fields[2].Value.OrNA() != NotAvailable {
		t.Fatalf("expected null value to render as N/A, got %q", fields[2].Value.OrNA())
	}
}

func TestManualPageHasContent(t *testing.T) {
	empty := ManualPage{Assemblies: List[Assembly]{}}
	if empty.HasContent() {
		t.Fatalf("expected empty assembly list to have no content")
	}
	withContact := ManualPage{ManufacturerContacts: List[Contact]{{Name: "Maker"}}}
	if !withContact.HasContent() {
		t.Fatalf("expected contact page to have content")
	}
}

func TestDecodeDocumentToleratesLooseListShapes(t *testing.T) {
	parsed, err := DecodeDocument([]byte(`{
		"page_0": {"type": "manual", "assembly": [{
			"name": "Fuel pump",
			"maker_details": "N/A",
			"parts": ["Seal", {"name": "Gasket", "part_number": "G-1"}, 7, null, [1]],
			"subassembly": 42
		}]},
		"page_1": "blank page"
	}`))
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	doc, ok := parsed.Document.(*ManualDocument)
	if !ok {
		t.Fatalf("expected manual document, got %T", parsed.Document)
	}
	if len(doc.Pages) != 2 || doc.Pages[1].Index != 1 || doc.Pages[1].HasContent() {
		t.Fatalf("expected an empty second page to keep its slot, got %+v", doc.Pages)
	}

	assembly := doc.Pages[0].Assemblies[0]
	if len(assembly.Maker) != 0 {
		t.Fatalf("expected N/A maker to decode to no contacts, got %+v", assembly.Maker)
	}
	if len(assembly.Subassemblies) != 0 {
		t.Fatalf("expected scalar subassembly dropped, got %+v", assembly.Subassemblies)
	}
	wantParts := []Part{{Name: "Seal"}, {Name: "Gasket", PartNumber: "G-1"}, {Name: "7"}}
	if len(assembly.Parts) != len(wantParts) {
		t.Fatalf("expected %d parts, got %+v", len(wantParts), assembly.Parts)
	}
	for i, want := range wantParts {
		if assembly.Parts[i] != want {
			t.Fatalf("part %d: expected %+v, got %+v", i, want, assembly.Parts[i])
		}
	}
}

func TestDecodeDocumentKeepsInvoiceWithTextLineItems(t *testing.T) {
	parsed, err := DecodeDocument([]byte(`{"page_0": {"invoice_number": "INV-9", "line_items": "N/A"}}`))
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	doc := parsed.Document.(*InvoiceDocument)
	if doc.Pages[0].InvoiceNumber != "INV-9" || len(doc.Pages[0].Items) != 0 {
		t.Fatalf("unexpected page %+v", doc.Pages[0])
	}

	parsed, err = DecodeDocument([]byte(`{"page_0": {"line_items": "Shaft seal"}}`))
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	items := parsed.Document.(*InvoiceDocument).Pages[0].Items
	if len(items) != 1 || items[0].Description != "Shaft seal" {
		t.Fatalf("expected one item from text, got %+v", items)
	}
}
