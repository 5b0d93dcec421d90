package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
)

const stagingPrefix = "uploads"

// StageFileUseCase copies a selected file into object storage so it can be
// re-read for every transform attempt.
type StageFileUseCase struct {
	storage ports.ObjectStorage
}

func NewStageFileUseCase(storage ports.ObjectStorage) *StageFileUseCase {
	return &StageFileUseCase{storage: storage}
}

func (uc *StageFileUseCase) Stage(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (domain.UploadFile, error) {
	key := fmt.Sprintf("%s/%s_%s", stagingPrefix, uuid.NewString(), sanitizeFilename(filename))

	counter := &byteCounter{reader: body}
	if err := uc.storage.Save(ctx, key, counter); err != nil {
		return domain.UploadFile{}, fmt.Errorf("save to object storage: %w", err)
	}

	storage := uc.storage
	return domain.UploadFile{
		Name:        filepath.Base(filename),
		ContentType: mimeType,
		Size:        counter.n,
		Open: func() (io.ReadCloser, error) {
			return storage.Open(context.Background(), key)
		},
		Release: func() {
			if err := storage.Delete(context.Background(), key); err != nil {
				slog.Warn("staged_file_release_failed", "key", key, "error", err)
			}
		},
	}, nil
}

type byteCounter struct {
	reader io.Reader
	n      int64
}

func (c *byteCounter) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.n += int64(n)
	return n, err
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		return "document.bin"
	}
	return base
}
