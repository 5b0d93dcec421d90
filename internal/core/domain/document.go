package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// NotAvailable replaces every missing leaf value in rendered output.
const NotAvailable = "N/A"

type DocumentKind string

const (
	KindInvoice DocumentKind = "invoice"
	KindManual  DocumentKind = "manual"
)

// Document is the decoded body of a transform result. It is either an
// *InvoiceDocument or a *ManualDocument.
type Document interface {
	Kind() DocumentKind
	PageCount() int
	document()
}

type InvoiceDocument struct {
	Pages []InvoicePage
}

func (*InvoiceDocument) Kind() DocumentKind { return KindInvoice }
func (d *InvoiceDocument) PageCount() int   { return len(d.Pages) }
func (*InvoiceDocument) document()          {}

type ManualDocument struct {
	Pages []ManualPage
}

func (*ManualDocument) Kind() DocumentKind { return KindManual }
func (d *ManualDocument) PageCount() int   { return len(d.Pages) }
func (*ManualDocument) document()          {}

type InvoicePage struct {
	Index               int        `json:"-"`
	Type                Text       `json:"type"`
	CustomerName        Text       `json:"customer_name"`
	InvoiceDate         Text       `json:"invoice_date"`
	InvoiceNumber       Text       `json:"invoice_number"`
	OrderNumber         Text       `json:"order_number"`
	Currency            Text       `json:"currency"`
	Items               List[Item] `json:"line_items"`
	Discount            Text       `json:"discount"`
	TotalAmount         Text       `json:"total_amount"`
	PaymentInstructions Fields     `json:"payment_instructions"`
}

type Item struct {
	Description Text `json:"description"`
	PartNumber  Text `json:"part_number"`
	Quantity    Text `json:"quantity"`
	UnitPrice   Text `json:"unit_price"`
	TotalPrice  Text `json:"total_price"`
}

type ManualPage struct {
	Index                int             `json:"-"`
	Type                 Text            `json:"type"`
	Assemblies           List[Assembly]  `json:"assembly"`
	SpareParts           List[SparePart] `json:"spare_parts_information"`
	ManufacturerContacts List[Contact]   `json:"manufacturer_contact_details"`
}

// HasContent reports whether the page carries anything a manual template
// can render.
func (p ManualPage) HasContent() bool {
	return len(p.Assemblies) > 0 || len(p.SpareParts) > 0 || len(p.ManufacturerContacts) > 0
}

type Assembly struct {
	Name          Text          `json:"name"`
	PartNumber    Text          `json:"part_number"`
	Maker         List[Contact] `json:"maker_details"`
	SerialNumber  Text          `json:"serial_number"`
	Model         Text          `json:"model"`
	Quantity      Text          `json:"quantity"`
	Parts         List[Part]    `json:"parts"`
	Subassemblies List[Part]    `json:"subassembly"`
}

type Part struct {
	ItemNumber Text `json:"item_number"`
	Name       Text `json:"name"`
	PartNumber Text `json:"part_number"`
	Quantity   Text `json:"quantity"`
}

type SparePart struct {
	Name       Text `json:"name"`
	PartNumber Text `json:"part_number"`
	Quantity   Text `json:"quantity"`
	Remarks    Text `json:"remarks"`
}

type Contact struct {
	Name    Text `json:"name"`
	Address Text `json:"address"`
	Phone   Text `json:"phone"`
	Email   Text `json:"email"`
	Website Text `json:"website"`
}

// Text is a leaf value. Strings, numbers and booleans decode to their text;
// null and absent fields decode to the empty string.
type Text string

func (t *Text) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		*t = ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
	case trimmed[0] == '{', trimmed[0] == '[':
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return err
		}
		*t = Text(compact.String())
	default:
		*t = Text(trimmed)
	}
	return nil
}

func (t Text) Missing() bool {
	return strings.TrimSpace(string(t)) == ""
}

// OrNA returns the value or NotAvailable when missing.
func (t Text) OrNA() string {
	if t.Missing() {
		return NotAvailable
	}
	return string(t)
}

// List is a best-effort list. It accepts an array or a single object;
// bare strings become one element for types that can be built from text,
// and elements that fail to decode are dropped.
type List[T any] []T

// textElement is implemented by list elements that can stand in for a bare
// string, such as a part known only by its name.
type textElement interface {
	setText(Text)
}

func (l *List[T]) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		*l = nil
		return nil
	}
	if trimmed[0] != '[' {
		*l = nil
		if elem, ok := decodeElement[T](trimmed); ok {
			*l = List[T]{elem}
		}
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		*l = nil
		return nil
	}
	out := make(List[T], 0, len(elems))
	for _, e := range elems {
		if elem, ok := decodeElement[T](e); ok {
			out = append(out, elem)
		}
	}
	*l = out
	return nil
}

func decodeElement[T any](raw json.RawMessage) (T, bool) {
	var elem T
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")), raw[0] == '[':
		return elem, false
	case raw[0] == '{':
		if err := json.Unmarshal(raw, &elem); err != nil {
			return elem, false
		}
		return elem, true
	}

	setter, ok := any(&elem).(textElement)
	if !ok {
		return elem, false
	}
	var text Text
	if err := json.Unmarshal(raw, &text); err != nil || text.Missing() || strings.EqualFold(string(text), NotAvailable) {
		return elem, false
	}
	setter.setText(text)
	return elem, true
}

func (i *Item) setText(t Text)      { i.Description = t }
func (a *Assembly) setText(t Text)  { a.Name = t }
func (p *Part) setText(t Text)      { p.Name = t }
func (s *SparePart) setText(t Text) { s.Name = t }
func (c *Contact) setText(t Text)   { c.Name = t }

type Field struct {
	Key   string
	Value Text
}

// Fields keeps the key order of a JSON object. A bare string decodes to a
// single "instructions" field and an array to numbered fields.
type Fields []Field

func (f *Fields) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = nil
		return nil
	}

	switch trimmed[0] {
	case '{':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if _, err := dec.Token(); err != nil {
			return err
		}
		out := Fields{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := keyTok.(string)
			var value Text
			if err := dec.Decode(&value); err != nil {
				return err
			}
			out = append(out, Field{Key: key, Value: value})
		}
		*f = out
	case '[':
		var values []Text
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return err
		}
		out := make(Fields, 0, len(values))
		for i, v := range values {
			out = append(out, Field{Key: strconv.Itoa(i + 1), Value: v})
		}
		*f = out
	default:
		var value Text
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		if value.Missing() {
			*f = nil
			return nil
		}
		*f = Fields{{Key: "instructions", Value: value}}
	}
	return nil
}

// ParsedDocument is a transform result: the backend body wrapped as
// {"data":{"data":<body>}} plus its decoded form.
type ParsedDocument struct {
	Raw      json.RawMessage
	Document Document
}

func (p *ParsedDocument) Kind() DocumentKind {
	if p == nil || p.Document == nil {
		return KindInvoice
	}
	return p.Document.Kind()
}

func (p *ParsedDocument) MarshalJSON() ([]byte, error) {
	if p == nil || len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

// DecodeDocument wraps a backend body and decides its document kind once.
func DecodeDocument(body []byte) (*ParsedDocument, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, WrapError(ErrInvalidInput, "decode document", errors.New("response body is not a json object"))
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return nil, WrapError(ErrInvalidInput, "decode document", err)
	}
	raw := json.RawMessage(`{"data":{"data":` + compact.String() + `}}`)

	pages, err := pageObjects(trimmed)
	if err != nil {
		return nil, err
	}

	return &ParsedDocument{Raw: raw, Document: decodePages(pages)}, nil
}

type indexedPage struct {
	index int
	raw   json.RawMessage
}

// pageObjects returns page_N entries sorted by N. Bodies that nest the pages
// under one or two "data" keys are unwrapped first.
func pageObjects(body []byte) ([]indexedPage, error) {
	current := body
	for depth := 0; depth < 3; depth++ {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(current, &obj); err != nil {
			return nil, WrapError(ErrInvalidInput, "decode pages", err)
		}

		pages := make([]indexedPage, 0, len(obj))
		for key, value := range obj {
			idx, ok := pageIndex(key)
			if !ok {
				continue
			}
			pages = append(pages, indexedPage{index: idx, raw: value})
		}
		if len(pages) > 0 {
			sort.Slice(pages, func(i, j int) bool { return pages[i].index < pages[j].index })
			return pages, nil
		}

		nested, ok := obj["data"]
		if !ok || len(bytes.TrimSpace(nested)) == 0 || bytes.TrimSpace(nested)[0] != '{' {
			break
		}
		current = nested
	}
	return nil, nil
}

func pageIndex(key string) (int, bool) {
	suffix, ok := strings.CutPrefix(key, "page_")
	if !ok || suffix == "" {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

type kindProbe struct {
	Type     *string         `json:"type"`
	Assembly json.RawMessage `json:"assembly"`
}

func detectKind(first json.RawMessage) DocumentKind {
	var probe kindProbe
	if err := json.Unmarshal(first, &probe); err != nil {
		return KindInvoice
	}
	if probe.Type != nil {
		if strings.EqualFold(strings.TrimSpace(*probe.Type), string(KindInvoice)) || strings.TrimSpace(*probe.Type) == "" {
			return KindInvoice
		}
		return KindManual
	}
	if len(probe.Assembly) > 0 {
		return KindManual
	}
	return KindInvoice
}

// decodePages never fails: a page that is not an object keeps its slot
// with empty fields so page numbering survives.
func decodePages(pages []indexedPage) Document {
	if len(pages) == 0 {
		return &InvoiceDocument{}
	}

	switch detectKind(pages[0].raw) {
	case KindManual:
		doc := &ManualDocument{Pages: make([]ManualPage, 0, len(pages))}
		for _, p := range pages {
			var page ManualPage
			if err := json.Unmarshal(p.raw, &page); err != nil {
				page = ManualPage{}
			}
			page.Index = p.index
			doc.Pages = append(doc.Pages, page)
		}
		return doc
	default:
		doc := &InvoiceDocument{Pages: make([]InvoicePage, 0, len(pages))}
		for _, p := range pages {
			var page InvoicePage
			if err := json.Unmarshal(p.raw, &page); err != nil {
				page = InvoicePage{}
			}
			page.Index = p.index
			doc.Pages = append(doc.Pages, page)
		}
		return doc
	}
}

// RestoreDocument decodes a result stored in its wrapped
// {"data":{"data":<body>}} form.
func RestoreDocument(wrapped []byte) (*ParsedDocument, error) {
	var envelope struct {
		Data struct {
			Data json.RawMessage `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(wrapped, &envelope); err != nil {
		return nil, WrapError(ErrInvalidInput, "restore document", err)
	}
	if len(bytes.TrimSpace(envelope.Data.Data)) == 0 {
		return nil, WrapError(ErrInvalidInput, "restore document", errors.New("missing data.data"))
	}
	return DecodeDocument(envelope.Data.Data)
}
