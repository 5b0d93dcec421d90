package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/config"
	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
	"github.com/kirillkom/maritime-docflow/internal/core/pricing"
	"github.com/kirillkom/maritime-docflow/internal/core/usecase"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export/csvexport"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export/pdfexport"
)

var fixedNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type transformerFake struct {
	err error
}

func (f *transformerFake) TransformInvoice(_ context.Context, _ domain.UploadFile, _ domain.ProgressFunc) (*domain.ParsedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.DecodeDocument([]byte(`{"page_0":{"invoice_number":"INV-7","customer_name":"Nordic Lines"}}`))
}

func (f *transformerFake) UploadManual(_ context.Context, _ domain.UploadFile, _ []int, _ domain.ProgressFunc) (*domain.ParsedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.DecodeDocument([]byte(`{"page_1":{"type":"manual","assembly":{"name":"Pump"}}}`))
}

type authFake struct {
	mu      sync.Mutex
	session *domain.Session
}

func (a *authFake) SignIn(_ context.Context, email, password string) (*domain.Session, error) {
	if password != "correct-horse" {
		return nil, domain.WrapError(domain.ErrAuthentication, "sign in", errors.New("invalid login credentials"))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = &domain.Session{AccessToken: "access", RefreshToken: "refresh", UserID: "user-1", Email: email}
	return a.session, nil
}

func (a *authFake) SignUp(_ context.Context, _, _ string) (*domain.Session, error) {
	return nil, nil
}

func (a *authFake) SignOut(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = nil
	return nil
}

func (a *authFake) RecoverPassword(_ context.Context, _ string) error { return nil }

func (a *authFake) Current() (*domain.Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session, a.session != nil
}

type keyServiceFake struct{}

func (keyServiceFake) List(_ context.Context) ([]domain.APIKey, error) {
	return []domain.APIKey{{ID: "key-1", Name: "ci", Value: "sk_live_123"}}, nil
}

func (keyServiceFake) Create(_ context.Context, name string) (*domain.APIKey, error) {
	return &domain.APIKey{ID: "key-2", Name: name, Value: "sk_live_456"}, nil
}

func (keyServiceFake) Delete(_ context.Context, _ string) error { return nil }

type usageFake struct {
	granularity domain.UsageGranularity
	window      domain.UsageRange
}

func (u *usageFake) Activity(_ context.Context, granularity domain.UsageGranularity, window domain.UsageRange) (*domain.UsageActivity, error) {
	u.granularity = granularity
	u.window = window
	return &domain.UsageActivity{Granularity: granularity}, nil
}

func (u *usageFake) Overview(_ context.Context, window domain.UsageRange) (*domain.UsageOverview, error) {
	u.window = window
	return &domain.UsageOverview{TotalRequests: 3}, nil
}

func (u *usageFake) History(_ context.Context, _ string, page, limit int) (*domain.UsageHistory, error) {
	return &domain.UsageHistory{Page: page, Limit: limit}, nil
}

type testEnv struct {
	handler http.Handler
	auth    *authFake
	usage   *usageFake
}

func newTestEnv(t *testing.T, cfg config.Config, transformer ports.DocumentTransformer) *testEnv {
	t.Helper()
	catalog, err := pricing.Load()
	if err != nil {
		t.Fatalf("load pricing: %v", err)
	}
	dashboard := usecase.NewDashboard(transformer, nil, nil, usecase.DashboardConfig{Timeout: time.Second})
	keys := usecase.NewKeyManager(keyServiceFake{}, usecase.NewRevealScheduler(time.Minute, nil))
	t.Cleanup(func() {
		dashboard.Close()
		keys.Close()
	})

	env := &testEnv{auth: &authFake{}, usage: &usageFake{}}
	router := NewRouter(cfg, Dependencies{
		Dashboard: dashboard,
		Keys:      keys,
		Auth:      env.auth,
		Usage:     env.usage,
		Exporters: []ports.Exporter{csvexport.New(), pdfexport.New()},
		Pricing:   catalog,
		Now:       func() time.Time { return fixedNow },
	})
	env.handler = router.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res := httptest.NewRecorder()
	e.handler.ServeHTTP(res, req)
	return res
}

func multipartFile(t *testing.T, name string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return buf.Bytes(), mw.FormDataContentType()
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(res.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})
	res := env.do(t, http.MethodGet, "/healthz", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestInvoiceUploadSubmitAndExport(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})

	body, contentType := multipartFile(t, "invoice.pdf", []byte("%PDF-1.4"))
	res := env.do(t, http.MethodPost, "/v1/uploads/invoice/file", body, contentType)
	if res.Code != http.StatusOK {
		t.Fatalf("select file expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var session domain.UploadSession
	decodeBody(t, res, &session)
	if session.Status != domain.UploadFileSelected || len(session.Files) != 1 || session.Files[0].Name != "invoice.pdf" {
		t.Fatalf("unexpected session after select: %+v", session)
	}

	res = env.do(t, http.MethodPost, "/v1/uploads/invoice/submit?wait=true", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("submit expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var done struct {
		Status domain.UploadStatus `json:"status"`
		Result json.RawMessage     `json:"result"`
	}
	decodeBody(t, res, &done)
	if done.Status != domain.UploadSucceeded {
		t.Fatalf("expected succeeded, got %s", done.Status)
	}
	if !strings.HasPrefix(string(done.Result), `{"data":{"data":`) {
		t.Fatalf("expected wrapped result, got %s", done.Result)
	}

	res = env.do(t, http.MethodGet, "/v1/uploads/invoice/export?format=csv", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("export expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Disposition"); !strings.Contains(got, "invoice_data_2026-01-01.csv") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if !bytes.HasPrefix(res.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatalf("expected csv to start with a byte order mark")
	}
	if !strings.Contains(res.Body.String(), "INV-7") {
		t.Fatalf("expected invoice number in csv, got %q", res.Body.String())
	}

	res = env.do(t, http.MethodGet, "/v1/uploads/invoice/export?format=pdf", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("pdf export expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Disposition"); !strings.Contains(got, "invoice_INV-7.pdf") {
		t.Fatalf("unexpected pdf content disposition %q", got)
	}
}

func TestSubmitFailureReportsUserMessage(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{
		err: &domain.APIError{Operation: "transform invoice", Status: 400, Message: "Unsupported file"},
	})
	body, contentType := multipartFile(t, "invoice.pdf", []byte("%PDF-1.4"))
	env.do(t, http.MethodPost, "/v1/uploads/invoice/file", body, contentType)

	res := env.do(t, http.MethodPost, "/v1/uploads/invoice/submit?wait=true", nil, "")
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
	var resp errorResponse
	decodeBody(t, res, &resp)
	if resp.Error != "Request failed (400): Unsupported file" {
		t.Fatalf("unexpected error message %q", resp.Error)
	}
}

func TestSubmitWithoutFileIsRejected(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})
	res := env.do(t, http.MethodPost, "/v1/uploads/invoice/submit", nil, "")
	if res.Code < 400 || res.Code >= 500 {
		t.Fatalf("expected client error, got %d", res.Code)
	}
}

func TestExportWithoutResultIsUnprocessable(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})
	res := env.do(t, http.MethodGet, "/v1/uploads/invoice/export", nil, "")
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}

	res = env.do(t, http.MethodGet, "/v1/uploads/invoice/export?format=docx", nil, "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", res.Code)
	}
}

func TestUnknownModeIsRejected(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})
	res := env.do(t, http.MethodGet, "/v1/uploads/receipt", nil, "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var resp errorResponse
	decodeBody(t, res, &resp)
	if resp.Field != "mode" {
		t.Fatalf("expected mode field error, got %+v", resp)
	}
}

func TestSwitchModeResetsWorkflows(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})
	body, contentType := multipartFile(t, "invoice.pdf", []byte("%PDF-1.4"))
	env.do(t, http.MethodPost, "/v1/uploads/invoice/file", body, contentType)

	res := env.do(t, http.MethodPost, "/v1/uploads/mode", []byte(`{"mode":"manual"}`), "application/json")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var state usecase.DashboardState
	decodeBody(t, res, &state)
	if state.ActiveMode != domain.ModeManual {
		t.Fatalf("expected manual mode, got %s", state.ActiveMode)
	}
	if state.Invoice.Status != domain.UploadIdle || len(state.Invoice.Files) != 0 {
		t.Fatalf("expected invoice workflow reset, got %+v", state.Invoice)
	}
}

func TestLoginValidationReportsEveryField(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})
	res := env.do(t, http.MethodPost, "/v1/auth/login", []byte(`{"email":"not-an-email","password":""}`), "application/json")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var resp errorResponse
	decodeBody(t, res, &resp)
	if resp.Fields["email"] == "" || resp.Fields["password"] == "" {
		t.Fatalf("expected email and password errors, got %+v", resp.Fields)
	}
}

func TestLoginThenProfileAndLogout(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})

	res := env.do(t, http.MethodGet, "/v1/profile", nil, "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before sign-in, got %d", res.Code)
	}

	res = env.do(t, http.MethodPost, "/v1/auth/login", []byte(`{"email":"crew@example.com","password":"wrong"}`), "application/json")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials, got %d", res.Code)
	}

	res = env.do(t, http.MethodPost, "/v1/auth/login", []byte(`{"email":" crew@example.com ","password":"correct-horse"}`), "application/json")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var session sessionResponse
	decodeBody(t, res, &session)
	if session.UserID != "user-1" || session.Email != "crew@example.com" {
		t.Fatalf("unexpected session %+v", session)
	}
	if strings.Contains(res.Body.String(), "access") {
		t.Fatalf("tokens must not be returned: %s", res.Body.String())
	}

	res = env.do(t, http.MethodGet, "/v1/profile", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var profile domain.Profile
	decodeBody(t, res, &profile)
	if profile.ID != "user-1" || profile.Email != "crew@example.com" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	res = env.do(t, http.MethodPost, "/v1/auth/logout", nil, "")
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if _, ok := env.auth.Current(); ok {
		t.Fatalf("expected session to be cleared")
	}
}

func TestSignupWithoutSessionRequiresConfirmation(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})
	res := env.do(t, http.MethodPost, "/v1/auth/signup",
		[]byte(`{"email":"crew@example.com","password":"Sea-Legs-2026","confirm_password":"Other-2026"}`), "application/json")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched confirmation, got %d", res.Code)
	}
	var resp errorResponse
	decodeBody(t, res, &resp)
	if resp.Fields["confirm_password"] != "Passwords do not match" {
		t.Fatalf("unexpected confirmation error %+v", resp.Fields)
	}

	res = env.do(t, http.MethodPost, "/v1/auth/signup",
		[]byte(`{"email":"crew@example.com","password":"Sea-Legs-2026","confirm_password":"Sea-Legs-2026"}`), "application/json")
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var session sessionResponse
	decodeBody(t, res, &session)
	if !session.ConfirmationRequired {
		t.Fatalf("expected confirmation to be required")
	}
}

func TestKeyRevealAndCopy(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})

	res := env.do(t, http.MethodGet, "/v1/keys", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var keys []domain.APIKey
	decodeBody(t, res, &keys)
	if len(keys) != 1 || keys[0].Value != domain.MaskedKey {
		t.Fatalf("expected one masked key, got %+v", keys)
	}

	res = env.do(t, http.MethodPost, "/v1/keys/key-1/reveal", nil, "")
	var shown map[string]any
	decodeBody(t, res, &shown)
	if shown["value"] != "sk_live_123" {
		t.Fatalf("expected plaintext after reveal, got %v", shown["value"])
	}

	res = env.do(t, http.MethodPost, "/v1/keys/key-1/hide", nil, "")
	var hidden map[string]any
	decodeBody(t, res, &hidden)
	if hidden["value"] != domain.MaskedKey {
		t.Fatalf("expected mask after hide, got %v", hidden["value"])
	}

	res = env.do(t, http.MethodPost, "/v1/keys/key-1/copy", nil, "")
	var copied map[string]any
	decodeBody(t, res, &copied)
	if copied["value"] != "sk_live_123" || copied["copied"] != true {
		t.Fatalf("unexpected copy response %v", copied)
	}

	res = env.do(t, http.MethodPost, "/v1/keys/key-9/reveal", nil, "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", res.Code)
	}

	res = env.do(t, http.MethodPost, "/v1/keys/key-1/rotate", nil, "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", res.Code)
	}
}

func TestCreateAndDeleteKey(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})
	res := env.do(t, http.MethodPost, "/v1/keys", []byte(`{"name":"deploy"}`), "application/json")
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	var created domain.APIKey
	decodeBody(t, res, &created)
	if created.Value != "sk_live_456" {
		t.Fatalf("expected plaintext on create, got %q", created.Value)
	}

	res = env.do(t, http.MethodDelete, "/v1/keys/key-2", nil, "")
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
}

func TestUsageActivityDefaults(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})
	res := env.do(t, http.MethodGet, "/v1/usage/activity", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if env.usage.granularity != domain.GranularityDay {
		t.Fatalf("expected day granularity, got %s", env.usage.granularity)
	}
	if !env.usage.window.End.Equal(fixedNow) || !env.usage.window.Start.Equal(fixedNow.Add(-7*24*time.Hour)) {
		t.Fatalf("unexpected window %+v", env.usage.window)
	}

	res = env.do(t, http.MethodGet, "/v1/usage/activity?granularity=minute", nil, "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad granularity, got %d", res.Code)
	}

	res = env.do(t, http.MethodGet, "/v1/usage/overview?start=2026-01-02T00:00:00Z&end=2026-01-01T00:00:00Z", nil, "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", res.Code)
	}
}

func TestPricingEstimate(t *testing.T) {
	env := newTestEnv(t, config.Config{}, &transformerFake{})
	catalog, _ := pricing.Load()
	plan := catalog.Plans[0]

	res := env.do(t, http.MethodGet, fmt.Sprintf("/v1/pricing?plan=%s&tier=%s&pages=10", plan.ID, plan.Tiers[0]), nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp map[string]any
	decodeBody(t, res, &resp)
	if _, ok := resp["total"]; !ok {
		t.Fatalf("expected total in estimate, got %v", resp)
	}

	res = env.do(t, http.MethodGet, "/v1/pricing?plan=nope&tier=nope&pages=1", nil, "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown plan, got %d", res.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("file", "Select a file to upload"), http.StatusBadRequest},
		{domain.WrapError(domain.ErrAuthentication, "op", errors.New("expired")), http.StatusUnauthorized},
		{domain.WrapError(domain.ErrNotFound, "op", errors.New("gone")), http.StatusNotFound},
		{domain.WrapError(domain.ErrConflict, "op", errors.New("busy")), http.StatusConflict},
		{domain.WrapError(domain.ErrExport, "op", errors.New("empty")), http.StatusUnprocessableEntity},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("down")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrNetwork, "op", errors.New("reset")), http.StatusBadGateway},
		{&domain.APIError{Status: 500}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	env := newTestEnv(t, config.Config{APIRateLimitRPS: 1, APIRateLimitBurst: 1}, &transformerFake{})

	res1 := env.do(t, http.MethodGet, "/healthz", nil, "")
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}
	res2 := env.do(t, http.MethodGet, "/healthz", nil, "")
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/v1/uploads", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/v1/uploads", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(bytes.NewReader(res2.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected overload error message in response")
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}
