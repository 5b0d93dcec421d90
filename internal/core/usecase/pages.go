package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
)

const (
	DefaultManualMaxPages = 6
	pageNumbersField      = "pageNumbers"
)

// ParsePageNumbers parses a comma-separated list of positive page numbers.
// Empty segments are skipped, duplicates are rejected, and at most maxPages
// entries are accepted when maxPages > 0.
func ParsePageNumbers(raw string, maxPages int) ([]int, error) {
	parts := strings.Split(raw, ",")
	pages := make([]int, 0, len(parts))
	seen := make(map[int]struct{}, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, domain.NewValidationError(pageNumbersField, fmt.Sprintf("%q is not a valid page number", part))
		}
		if n <= 0 {
			return nil, domain.NewValidationError(pageNumbersField, "Page numbers must be positive")
		}
		if _, dup := seen[n]; dup {
			return nil, domain.NewValidationError(pageNumbersField, fmt.Sprintf("Page %d is listed twice", n))
		}
		seen[n] = struct{}{}
		pages = append(pages, n)
	}

	if len(pages) == 0 {
		return nil, domain.NewValidationError(pageNumbersField, "Enter at least one page number")
	}
	if maxPages > 0 && len(pages) > maxPages {
		return nil, domain.NewValidationError(pageNumbersField, fmt.Sprintf("You can select at most %d pages", maxPages))
	}
	return pages, nil
}

// manualPageParser also checks the pages against the file's page count when
// the counter can read the file.
func manualPageParser(maxPages int, counter ports.PageCounter) InputParser[[]int] {
	return func(ctx context.Context, raw string, file *domain.UploadFile) ([]int, error) {
		pages, err := ParsePageNumbers(raw, maxPages)
		if err != nil {
			return nil, err
		}
		if counter == nil || file == nil {
			return pages, nil
		}

		total, err := counter.CountPages(ctx, *file)
		if err != nil {
			slog.Debug("page_count_unavailable", "file", file.Name, "error", err)
			return pages, nil
		}
		for _, n := range pages {
			if n > total {
				return nil, domain.NewValidationError(pageNumbersField, fmt.Sprintf("Page %d is beyond the last page (%d)", n, total))
			}
		}
		return pages, nil
	}
}
