package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

func TestParsePageNumbers(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []int
		wantMsg string
	}{
		{name: "simple", raw: "1,2", want: []int{1, 2}},
		{name: "spaces and trailing comma", raw: " 3 , 1 ,", want: []int{3, 1}},
		{name: "empty", raw: " ", wantMsg: "Enter at least one page number"},
		{name: "not a number", raw: "1,a", wantMsg: `"a" is not a valid page number`},
		{name: "zero", raw: "0", wantMsg: "Page numbers must be positive"},
		{name: "negative", raw: "-2", wantMsg: "Page numbers must be positive"},
		{name: "duplicate", raw: "2,2", wantMsg: "Page 2 is listed twice"},
		{name: "too many", raw: "1,2,3,4,5,6,7", wantMsg: "You can select at most 6 pages"},
		{name: "at limit", raw: "1,2,3,4,5,6", want: []int{1, 2, 3, 4, 5, 6}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePageNumbers(tc.raw, DefaultManualMaxPages)
			if tc.wantMsg != "" {
				var verr *domain.ValidationError
				if !errors.As(err, &verr) || verr.Message != tc.wantMsg {
					t.Fatalf("expected %q, got %v", tc.wantMsg, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePageNumbers() error = %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestManualPageParserIgnoresUnreadableFiles(t *testing.T) {
	parse := manualPageParser(6, pageCounterFake{err: errors.New("not a pdf")})
	file := (&releaseTracker{}).file("scan.tiff")
	pages, err := parse(context.Background(), "9", &file)
	if err != nil {
		t.Fatalf("expected pages accepted when count is unknown, got %v", err)
	}
	if len(pages) != 1 || pages[0] != 9 {
		t.Fatalf("unexpected pages %v", pages)
	}
}
