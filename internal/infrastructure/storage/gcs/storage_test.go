package gcs

import (
	"fmt"
	"testing"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{name: "missing object", err: storage.ErrObjectNotExist, kind: domain.ErrNotFound},
		{name: "api 404", err: &googleapi.Error{Code: 404}, kind: domain.ErrNotFound},
		{name: "throttled", err: fmt.Errorf("copy: %w", &googleapi.Error{Code: 429}), kind: domain.ErrTemporary},
		{name: "backend", err: &googleapi.Error{Code: 503}, kind: domain.ErrTemporary},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := classify("op", tc.err); !domain.IsKind(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}

	err := classify("op", &googleapi.Error{Code: 403})
	if domain.IsKind(err, domain.ErrNotFound) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("forbidden must stay unclassified, got %v", err)
	}
}

func TestObjectName(t *testing.T) {
	s := &Storage{prefix: "docflow"}
	if got := s.objectName("/exports/job/a.csv"); got != "docflow/exports/job/a.csv" {
		t.Fatalf("unexpected object name %s", got)
	}
	s.prefix = ""
	if got := s.objectName("exports/job/a.csv"); got != "exports/job/a.csv" {
		t.Fatalf("unexpected object name %s", got)
	}
}
