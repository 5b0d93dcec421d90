package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	err     error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *storageFake) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	return out
}

func TestStageFileSavesAndReleases(t *testing.T) {
	storage := newStorageFake()
	uc := NewStageFileUseCase(storage)

	file, err := uc.Stage(context.Background(), "report 1.pdf", "application/pdf", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if file.Name != "report 1.pdf" || file.Size != 5 {
		t.Fatalf("unexpected file %+v", file)
	}
	keys := storage.keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "uploads/") || !strings.HasSuffix(keys[0], "_report_1.pdf") {
		t.Fatalf("unexpected staged keys %v", keys)
	}

	for i := 0; i < 2; i++ {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		raw, _ := io.ReadAll(rc)
		rc.Close()
		if string(raw) != "hello" {
			t.Fatalf("expected staged body, got %q", raw)
		}
	}

	file.Release()
	if len(storage.keys()) != 0 {
		t.Fatalf("expected staged file removed")
	}
}

func TestStageFileStorageError(t *testing.T) {
	storage := newStorageFake()
	storage.err = errors.New("disk full")
	uc := NewStageFileUseCase(storage)

	_, err := uc.Stage(context.Background(), "a.pdf", "application/pdf", bytes.NewBufferString("x"))
	if err == nil || !strings.Contains(err.Error(), "save to object storage") {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":  "passwd",
		"Engine Manual.pdf": "Engine_Manual.pdf",
		"fac+ura#1.pdf":     "fac_ura_1.pdf",
		"":                  "document.bin",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
