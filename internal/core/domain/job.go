package domain

import "time"

type JobStatus string

const (
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one finished transform, kept for history and artifact export.
type Job struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id,omitempty"`
	Mode       Mode            `json:"mode"`
	Filename   string          `json:"filename"`
	Status     JobStatus       `json:"status"`
	Error      string          `json:"error,omitempty"`
	Result     *ParsedDocument `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	ExportedAt *time.Time      `json:"exported_at,omitempty"`
}
