package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/config"
	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
	"github.com/kirillkom/maritime-docflow/internal/core/pricing"
	"github.com/kirillkom/maritime-docflow/internal/core/usecase"
	"github.com/kirillkom/maritime-docflow/internal/observability/metrics"
)

const (
	serviceName       = "dashboard"
	defaultUploadSize = 50 << 20
	backpressureWait  = 250 * time.Millisecond
)

// Dependencies are the use cases and adapters behind the dashboard API.
// Profiles, Jobs and Metrics are optional.
type Dependencies struct {
	Dashboard *usecase.Dashboard
	Keys      *usecase.KeyManager
	Auth      ports.Authenticator
	Usage     ports.UsageService
	Demo      ports.DemoTransformer
	Stager    *usecase.StageFileUseCase
	Exporters []ports.Exporter
	Pricing   *pricing.Catalog
	Profiles  ports.ProfileStore
	Jobs      ports.JobRepository
	Metrics   *metrics.HTTPServerMetrics
	Now       func() time.Time
}

type Router struct {
	cfg  config.Config
	deps Dependencies

	exporters map[string]ports.Exporter
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = defaultUploadSize
	}
	exporters := make(map[string]ports.Exporter, len(deps.Exporters))
	for _, exporter := range deps.Exporters {
		exporters[exporter.Format()] = exporter
	}
	return &Router{cfg: cfg, deps: deps, exporters: exporters}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.deps.Metrics != nil {
		mux.Handle("GET /metrics", rt.deps.Metrics.Handler())
	}

	mux.HandleFunc("POST /v1/auth/login", rt.login)
	mux.HandleFunc("POST /v1/auth/signup", rt.signup)
	mux.HandleFunc("POST /v1/auth/logout", rt.logout)
	mux.HandleFunc("POST /v1/auth/recover", rt.recoverPassword)
	mux.HandleFunc("GET /v1/profile", rt.getProfile)
	mux.HandleFunc("PUT /v1/profile", rt.updateProfile)
	mux.HandleFunc("GET /v1/jobs", rt.listJobs)

	mux.HandleFunc("GET /v1/uploads", rt.uploadsState)
	mux.HandleFunc("POST /v1/uploads/mode", rt.switchMode)
	mux.HandleFunc("GET /v1/uploads/{mode}", rt.uploadSession)
	mux.HandleFunc("POST /v1/uploads/{mode}/file", rt.selectFile)
	mux.HandleFunc("POST /v1/uploads/{mode}/pages", rt.commitPages)
	mux.HandleFunc("POST /v1/uploads/{mode}/submit", rt.submit)
	mux.HandleFunc("POST /v1/uploads/{mode}/cancel", rt.cancel)
	mux.HandleFunc("POST /v1/uploads/{mode}/reset", rt.reset)
	mux.HandleFunc("GET /v1/uploads/{mode}/export", rt.exportResult)
	mux.HandleFunc("POST /v1/demo/{mode}", rt.demo)

	mux.HandleFunc("GET /v1/keys", rt.listKeys)
	mux.HandleFunc("POST /v1/keys", rt.createKey)
	mux.HandleFunc("DELETE /v1/keys/{id}", rt.deleteKey)
	mux.HandleFunc("POST /v1/keys/{id}/{action}", rt.keyAction)

	mux.HandleFunc("GET /v1/usage/activity", rt.usageActivity)
	mux.HandleFunc("GET /v1/usage/overview", rt.usageOverview)
	mux.HandleFunc("GET /v1/usage/history", rt.usageHistory)
	mux.HandleFunc("GET /v1/pricing", rt.pricing)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathMode(r *http.Request) (domain.Mode, error) {
	mode, ok := domain.ParseMode(r.PathValue("mode"))
	if !ok {
		return "", domain.NewValidationError("mode", "Mode must be invoice or manual")
	}
	return mode, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
