package transformapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/httpclient"
)

const (
	pathUsageActivity = "/api/v1/usage/activity"
	pathUsageOverview = "/api/v1/usage/overview"
	pathUsageHistory  = "/api/v1/usage/history"
)

type UsageClient struct {
	http *httpclient.Client
}

func NewUsageClient(http *httpclient.Client) *UsageClient {
	return &UsageClient{http: http}
}

func (c *UsageClient) Activity(ctx context.Context, granularity domain.UsageGranularity, window domain.UsageRange) (*domain.UsageActivity, error) {
	query := windowQuery(window)
	if granularity != "" {
		query.Set("granularity", string(granularity))
	}

	var payload struct {
		Granularity string `json:"granularity"`
		Buckets     []struct {
			Period   time.Time `json:"period"`
			Invoices int       `json:"invoices"`
			Manuals  int       `json:"manuals"`
			Pages    int       `json:"pages"`
		} `json:"buckets"`
	}
	if err := c.get(ctx, "usage activity", pathUsageActivity, query, &payload); err != nil {
		return nil, err
	}

	out := &domain.UsageActivity{Granularity: granularity, Buckets: make([]domain.UsageBucket, 0, len(payload.Buckets))}
	if payload.Granularity != "" {
		out.Granularity = domain.UsageGranularity(payload.Granularity)
	}
	for _, b := range payload.Buckets {
		out.Buckets = append(out.Buckets, domain.UsageBucket{Period: b.Period, Invoices: b.Invoices, Manuals: b.Manuals, Pages: b.Pages})
	}
	return out, nil
}

func (c *UsageClient) Overview(ctx context.Context, window domain.UsageRange) (*domain.UsageOverview, error) {
	var payload struct {
		TotalRequests  int     `json:"totalRequests"`
		InvoiceCount   int     `json:"invoiceCount"`
		ManualCount    int     `json:"manualCount"`
		PagesProcessed int     `json:"pagesProcessed"`
		CreditsUsed    float64 `json:"creditsUsed"`
		SuccessRate    float64 `json:"successRate"`
	}
	if err := c.get(ctx, "usage overview", pathUsageOverview, windowQuery(window), &payload); err != nil {
		return nil, err
	}
	return &domain.UsageOverview{
		TotalRequests:  payload.TotalRequests,
		InvoiceCount:   payload.InvoiceCount,
		ManualCount:    payload.ManualCount,
		PagesProcessed: payload.PagesProcessed,
		CreditsUsed:    payload.CreditsUsed,
		SuccessRate:    payload.SuccessRate,
	}, nil
}

func (c *UsageClient) History(ctx context.Context, usageType string, page, limit int) (*domain.UsageHistory, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	query := url.Values{}
	if usageType != "" {
		query.Set("type", usageType)
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var payload struct {
		Items []struct {
			ID        string    `json:"id"`
			Type      string    `json:"type"`
			Filename  string    `json:"filename"`
			Pages     int       `json:"pages"`
			Status    string    `json:"status"`
			CreatedAt time.Time `json:"createdAt"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := c.get(ctx, "usage history", pathUsageHistory, query, &payload); err != nil {
		return nil, err
	}

	out := &domain.UsageHistory{Page: page, Limit: limit, Total: payload.Total, Items: make([]domain.UsageRecord, 0, len(payload.Items))}
	for _, item := range payload.Items {
		out.Items = append(out.Items, domain.UsageRecord{
			ID:        item.ID,
			Type:      item.Type,
			Filename:  item.Filename,
			Pages:     item.Pages,
			Status:    item.Status,
			CreatedAt: item.CreatedAt,
		})
	}
	return out, nil
}

func (c *UsageClient) get(ctx context.Context, operation, path string, query url.Values, out any) error {
	target := c.http.URL(path)
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return c.http.DoJSON(ctx, operation, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}, httpclient.CallOptions{Authenticated: true, Idempotent: true}, out)
}

func windowQuery(window domain.UsageRange) url.Values {
	query := url.Values{}
	if !window.Start.IsZero() {
		query.Set("startTime", window.Start.UTC().Format(time.RFC3339))
	}
	if !window.End.IsZero() {
		query.Set("endTime", window.End.UTC().Format(time.RFC3339))
	}
	return query
}
