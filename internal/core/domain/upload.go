package domain

import "io"

type Mode string

const (
	ModeInvoice Mode = "invoice"
	ModeManual  Mode = "manual"
)

func ParseMode(raw string) (Mode, bool) {
	switch Mode(raw) {
	case ModeInvoice, ModeManual:
		return Mode(raw), true
	default:
		return "", false
	}
}

type UploadStatus string

const (
	UploadIdle         UploadStatus = "idle"
	UploadFileSelected UploadStatus = "file_selected"
	UploadSubmitting   UploadStatus = "uploading"
	UploadSucceeded    UploadStatus = "succeeded"
	UploadFailed       UploadStatus = "failed"
)

type Progress struct {
	Operation  string  `json:"operation"`
	Percentage float64 `json:"percentage"`
}

// ProgressFunc receives job-status updates during a transform call.
type ProgressFunc func(Progress)

type FileInfo struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// UploadSession is a snapshot of one upload workflow.
type UploadSession struct {
	Mode              Mode            `json:"mode"`
	Files             []FileInfo      `json:"files"`
	PageNumbers       []int           `json:"page_numbers,omitempty"`
	Status            UploadStatus    `json:"status"`
	Progress          *Progress       `json:"progress"`
	Result            *ParsedDocument `json:"result"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	ValidationMessage string          `json:"validation_message,omitempty"`
}

// UploadFile is a selected file. Open may be called more than once, e.g.
// when a request is replayed after a token refresh.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
	// Release frees whatever backs the file once it is replaced or removed.
	Release func()
}

func (f UploadFile) Info() FileInfo {
	return FileInfo{Name: f.Name, Size: f.Size, ContentType: f.ContentType}
}

// Artifact is a rendered export ready to be downloaded or stored.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}
