package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

type Config struct {
	LogLevel      string
	DashboardPort string

	APIBaseURL      string
	SupabaseURL     string
	SupabaseAnonKey string
	AppBaseURL      string
	SessionFile     string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	StorageBackend string
	StoragePath    string
	GCSBucket      string
	GCSPrefix      string

	TransformTimeout time.Duration
	ManualMaxPages   int
	KeyRevealTimeout time.Duration
	UploadMaxBytes   int64

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int

	BackendRateLimitRPS  float64
	HTTPRetryMaxAttempts int
	HTTPBreakerEnabled   bool
	HTTPShutdownTimeout  time.Duration

	WorkerMetricsPort string
}

// Load reads an optional .env file and then the environment. Variables
// already set win over the file.
func Load() Config {
	return LoadWithEnvFile(".env")
}

func LoadWithEnvFile(path string) Config {
	if path != "" {
		// a missing file is normal outside local development
		_ = godotenv.Load(path)
	}

	return Config{
		LogLevel:      mustEnv("LOG_LEVEL", "info"),
		DashboardPort: mustEnv("DASHBOARD_PORT", "8080"),

		APIBaseURL:      strings.TrimRight(mustEnv("API_BASE_URL", ""), "/"),
		SupabaseURL:     strings.TrimRight(mustEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey: mustEnv("SUPABASE_ANON_KEY", ""),
		AppBaseURL:      strings.TrimRight(mustEnv("APP_BASE_URL", ""), "/"),
		SessionFile:     mustEnv("SESSION_FILE", defaultSessionFile()),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "docflow.jobs.completed"),

		StorageBackend: strings.ToLower(mustEnv("STORAGE_BACKEND", StorageLocal)),
		StoragePath:    mustEnv("STORAGE_PATH", "./data/storage"),
		GCSBucket:      mustEnv("GCS_BUCKET", ""),
		GCSPrefix:      mustEnv("GCS_PREFIX", ""),

		TransformTimeout: time.Duration(mustEnvInt("TRANSFORM_TIMEOUT_SECONDS", 300)) * time.Second,
		ManualMaxPages:   mustEnvInt("MANUAL_MAX_PAGES", 6),
		KeyRevealTimeout: time.Duration(mustEnvInt("KEY_REVEAL_SECONDS", 10)) * time.Second,
		UploadMaxBytes:   int64(mustEnvInt("UPLOAD_MAX_BYTES", 50<<20)),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 32),

		BackendRateLimitRPS:  mustEnvFloat("BACKEND_RATE_LIMIT_RPS", 5),
		HTTPRetryMaxAttempts: mustEnvInt("HTTP_RETRY_MAX_ATTEMPTS", 3),
		HTTPBreakerEnabled:   mustEnvBool("HTTP_BREAKER_ENABLED", true),
		HTTPShutdownTimeout:  mustEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// Validate reports every missing or invalid setting the dashboard and CLI
// need in one error.
func (c Config) Validate() error {
	var errs []error
	for _, required := range []struct{ key, value string }{
		{"API_BASE_URL", c.APIBaseURL},
		{"SUPABASE_URL", c.SupabaseURL},
		{"SUPABASE_ANON_KEY", c.SupabaseAnonKey},
		{"APP_BASE_URL", c.AppBaseURL},
	} {
		if strings.TrimSpace(required.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", required.key))
		}
	}
	errs = append(errs, c.validateStorage()...)
	if c.ManualMaxPages <= 0 {
		errs = append(errs, errors.New("MANUAL_MAX_PAGES must be positive"))
	}
	if c.TransformTimeout <= 0 {
		errs = append(errs, errors.New("TRANSFORM_TIMEOUT_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateWorker checks the settings the export worker cannot run without.
func (c Config) ValidateWorker() error {
	var errs []error
	if strings.TrimSpace(c.PostgresDSN) == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	if strings.TrimSpace(c.NATSURL) == "" {
		errs = append(errs, errors.New("NATS_URL is required"))
	}
	errs = append(errs, c.validateStorage()...)
	return errors.Join(errs...)
}

func (c Config) validateStorage() []error {
	switch c.StorageBackend {
	case StorageLocal:
		return nil
	case StorageGCS:
		if strings.TrimSpace(c.GCSBucket) == "" {
			return []error{errors.New("GCS_BUCKET is required when STORAGE_BACKEND=gcs")}
		}
		return nil
	default:
		return []error{fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageLocal, StorageGCS, c.StorageBackend)}
	}
}

// PasswordResetURL is where recovery mails send the user back to.
func (c Config) PasswordResetURL() string {
	return c.AppBaseURL + "/reset-password"
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data/session.json"
	}
	return dir + string(os.PathSeparator) + "docflow" + string(os.PathSeparator) + "session.json"
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
