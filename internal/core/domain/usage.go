package domain

import "time"

type UsageGranularity string

const (
	GranularityHour  UsageGranularity = "hour"
	GranularityDay   UsageGranularity = "day"
	GranularityWeek  UsageGranularity = "week"
	GranularityMonth UsageGranularity = "month"
)

type UsageBucket struct {
	Period   time.Time `json:"period"`
	Invoices int       `json:"invoices"`
	Manuals  int       `json:"manuals"`
	Pages    int       `json:"pages"`
}

type UsageActivity struct {
	Granularity UsageGranularity `json:"granularity"`
	Buckets     []UsageBucket    `json:"buckets"`
}

type UsageOverview struct {
	TotalRequests  int     `json:"total_requests"`
	InvoiceCount   int     `json:"invoice_count"`
	ManualCount    int     `json:"manual_count"`
	PagesProcessed int     `json:"pages_processed"`
	CreditsUsed    float64 `json:"credits_used"`
	SuccessRate    float64 `json:"success_rate"`
}

type UsageRecord struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Filename  string    `json:"filename"`
	Pages     int       `json:"pages"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type UsageHistory struct {
	Items []UsageRecord `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
}

type UsageRange struct {
	Start time.Time
	End   time.Time
}
