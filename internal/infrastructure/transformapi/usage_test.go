package transformapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/httpclient"
)

func TestUsageClientSendsQueryParameters(t *testing.T) {
	var activityQuery, historyQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathUsageActivity:
			activityQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"granularity":"day","buckets":[{"period":"2026-03-01T00:00:00Z","invoices":2,"manuals":1,"pages":9}]}`))
		case pathUsageOverview:
			_, _ = w.Write([]byte(`{"totalRequests":3,"invoiceCount":2,"manualCount":1,"pagesProcessed":9,"successRate":0.5}`))
		case pathUsageHistory:
			historyQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"items":[{"id":"u1","type":"invoice","filename":"a.pdf","pages":1,"status":"succeeded"}],"total":1}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	usage := NewUsageClient(httpclient.New(server.URL, staticSession{token: "tok"}, httpclient.Options{}))
	window := domain.UsageRange{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
	}

	activity, err := usage.Activity(context.Background(), domain.GranularityDay, window)
	if err != nil {
		t.Fatalf("Activity() error = %v", err)
	}
	if activityQuery != "endTime=2026-03-08T00%3A00%3A00Z&granularity=day&startTime=2026-03-01T00%3A00%3A00Z" {
		t.Fatalf("unexpected activity query %q", activityQuery)
	}
	if len(activity.Buckets) != 1 || activity.Buckets[0].Pages != 9 {
		t.Fatalf("unexpected activity %+v", activity)
	}

	overview, err := usage.Overview(context.Background(), window)
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if overview.TotalRequests != 3 || overview.SuccessRate != 0.5 {
		t.Fatalf("unexpected overview %+v", overview)
	}

	history, err := usage.History(context.Background(), "invoice", 0, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if historyQuery != "limit=20&page=1&type=invoice" {
		t.Fatalf("unexpected history query %q", historyQuery)
	}
	if history.Total != 1 || history.Items[0].Filename != "a.pdf" {
		t.Fatalf("unexpected history %+v", history)
	}
}
