package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

// SessionProvider supplies bearer tokens for authenticated backend calls.
type SessionProvider interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Authenticator is the auth-provider surface behind the sign-in screens.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context) error
	RecoverPassword(ctx context.Context, email string) error
	Current() (*domain.Session, bool)
}

// DocumentTransformer submits documents for structured extraction.
type DocumentTransformer interface {
	TransformInvoice(ctx context.Context, file domain.UploadFile, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error)
	UploadManual(ctx context.Context, file domain.UploadFile, pageNumbers []int, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error)
}

// DemoTransformer is the unauthenticated demo variant of DocumentTransformer.
type DemoTransformer interface {
	DemoInvoice(ctx context.Context, file domain.UploadFile, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error)
	DemoManual(ctx context.Context, file domain.UploadFile, pageNumbers []int, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error)
}

// APIKeyService manages API keys on the backend.
type APIKeyService interface {
	List(ctx context.Context) ([]domain.APIKey, error)
	Create(ctx context.Context, name string) (*domain.APIKey, error)
	Delete(ctx context.Context, id string) error
}

// UsageService reads usage analytics.
type UsageService interface {
	Activity(ctx context.Context, granularity domain.UsageGranularity, window domain.UsageRange) (*domain.UsageActivity, error)
	Overview(ctx context.Context, window domain.UsageRange) (*domain.UsageOverview, error)
	History(ctx context.Context, usageType string, page, limit int) (*domain.UsageHistory, error)
}

// PageCounter reads the page count of a selected file when it can.
type PageCounter interface {
	CountPages(ctx context.Context, file domain.UploadFile) (int, error)
}

// Exporter renders a parsed document into a downloadable artifact.
type Exporter interface {
	Format() string
	Export(doc *domain.ParsedDocument, now time.Time) (*domain.Artifact, error)
}

// ProfileStore persists account profiles.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	Upsert(ctx context.Context, profile *domain.Profile) error
}

// JobRepository persists finished transform jobs.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	MarkExported(ctx context.Context, id string, at time.Time) error
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.Job, error)
}

// JobRecorder keeps a record of finished transform calls.
type JobRecorder interface {
	Record(ctx context.Context, job *domain.Job) error
}

// JobEventQueue publishes and consumes job-completed events.
type JobEventQueue interface {
	PublishJobCompleted(ctx context.Context, jobID string) error
	SubscribeJobCompleted(ctx context.Context, handler func(context.Context, string) error) error
}

// ObjectStorage stores staged uploads and export artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
