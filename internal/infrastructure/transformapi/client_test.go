package transformapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/httpclient"
)

type staticSession struct{ token string }

func (s staticSession) AccessToken(context.Context) (string, error) { return s.token, nil }
func (s staticSession) Refresh(context.Context) (string, error)     { return "", errors.New("no refresh") }

func memoryFile(name string, content []byte) domain.UploadFile {
	return domain.UploadFile{
		Name:        name,
		ContentType: "application/pdf",
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(httpclient.New(server.URL, staticSession{token: "tok"}, httpclient.Options{}))
}

func TestUploadManualSendsFileAndPageNumbers(t *testing.T) {
	var gotFile, gotPages, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathTransformManual {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		gotFile = header.Filename
		gotPages = r.FormValue("pageNumbers")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page_0":{"type":"manual","assembly":{"name":"Pump"}}}`))
	})

	result, err := client.UploadManual(context.Background(), memoryFile("m.pdf", []byte("%PDF-1.4")), []int{1, 2}, nil)
	if err != nil {
		t.Fatalf("UploadManual() error = %v", err)
	}
	if gotFile != "m.pdf" || gotPages != "[1,2]" {
		t.Fatalf("unexpected multipart fields file=%q pageNumbers=%q", gotFile, gotPages)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if result.Kind() != domain.KindManual {
		t.Fatalf("expected manual document, got %s", result.Kind())
	}

	var wrapped map[string]map[string]json.RawMessage
	if err := json.Unmarshal(result.Raw, &wrapped); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if _, ok := wrapped["data"]["data"]; !ok {
		t.Fatalf("expected body wrapped under data.data, got %s", result.Raw)
	}
}

func TestUploadManualRejectsEmptyPages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request")
	})
	_, err := client.UploadManual(context.Background(), memoryFile("m.pdf", nil), nil, nil)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransformInvoiceReportsUploadProgress(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"page_0":{"type":"invoice","invoice_number":"INV-1"}}`))
	})

	var mu sync.Mutex
	var updates []domain.Progress
	_, err := client.TransformInvoice(context.Background(), memoryFile("a.pdf", bytes.Repeat([]byte("x"), 256<<10)), func(p domain.Progress) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("TransformInvoice() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(updates) == 0 {
		t.Fatalf("expected progress updates")
	}
	last := updates[len(updates)-1]
	if last.Operation != uploadingLabel || last.Percentage != 100 {
		t.Fatalf("expected final upload progress of 100, got %+v", last)
	}
}

func TestTransformInvoiceReadsEventStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", ndjsonContentType)
		_, _ = w.Write([]byte(strings.Join([]string{
			`{"type":"progress","progress":{"operation":"Extracting tables","percentage":40}}`,
			`{"type":"progress","progress":{"operation":"Extracting tables","percentage":80}}`,
			`{"type":"result","payload":{"page_0":{"invoice_number":"INV-9"}}}`,
		}, "\n")))
	})

	var ops []domain.Progress
	result, err := client.TransformInvoice(context.Background(), memoryFile("a.pdf", []byte("x")), func(p domain.Progress) {
		if p.Operation != uploadingLabel {
			ops = append(ops, p)
		}
	})
	if err != nil {
		t.Fatalf("TransformInvoice() error = %v", err)
	}
	if len(ops) != 2 || ops[1].Percentage != 80 {
		t.Fatalf("unexpected stream progress %+v", ops)
	}
	invoice, ok := result.Document.(*domain.InvoiceDocument)
	if !ok || invoice.Pages[0].InvoiceNumber != "INV-9" {
		t.Fatalf("unexpected document %#v", result.Document)
	}
}

func TestTransformStreamErrorBecomesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", ndjsonContentType)
		_, _ = w.Write([]byte(`{"type":"error","error":{"message":"unreadable scan"}}` + "\n"))
	})

	_, err := client.TransformInvoice(context.Background(), memoryFile("a.pdf", []byte("x")), nil)
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "unreadable scan" {
		t.Fatalf("expected stream api error, got %v", err)
	}
}

func TestTransformPassesBackendErrorThrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"unsupported file"}`))
	})

	_, invoiceErr := client.TransformInvoice(context.Background(), memoryFile("a.pdf", []byte("x")), nil)
	_, manualErr := client.UploadManual(context.Background(), memoryFile("m.pdf", []byte("x")), []int{1}, nil)
	if domain.UserMessage(invoiceErr) != domain.UserMessage(manualErr) {
		t.Fatalf("expected identical messages, got %q and %q", domain.UserMessage(invoiceErr), domain.UserMessage(manualErr))
	}
	var apiErr *domain.APIError
	if !errors.As(manualErr, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 api error, got %v", manualErr)
	}
}

func TestDemoInvoiceIsUnauthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathDemoInvoice || r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"page_0":{"invoice_number":"DEMO"}}`))
	}))
	defer server.Close()

	client := New(httpclient.New(server.URL, nil, httpclient.Options{}))
	result, err := client.DemoInvoice(context.Background(), memoryFile("a.pdf", []byte("x")), nil)
	if err != nil {
		t.Fatalf("DemoInvoice() error = %v", err)
	}
	if result.Kind() != domain.KindInvoice {
		t.Fatalf("expected invoice, got %s", result.Kind())
	}
}
