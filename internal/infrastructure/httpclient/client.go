package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/resilience"
)

const maxErrorBody = 64 << 10

// RequestFactory builds a fresh request for every attempt so bodies can be
// replayed.
type RequestFactory func(ctx context.Context) (*http.Request, error)

// Observer receives one observation per finished call.
type Observer interface {
	ObserveBackendCall(operation string, status int, duration time.Duration, err error)
}

type CallOptions struct {
	Authenticated bool
	// Idempotent calls may be retried on temporary failures.
	Idempotent bool
}

type Options struct {
	HTTPClient *http.Client
	Executor   *resilience.Executor
	Limiter    *rate.Limiter
	Observer   Observer
}

// Client attaches bearer tokens from the session provider and refreshes
// them once on 401.
type Client struct {
	baseURL    string
	session    ports.SessionProvider
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
	observer   Observer
}

func New(baseURL string, session ports.SessionProvider, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		httpClient: httpClient,
		executor:   opts.Executor,
		limiter:    opts.Limiter,
		observer:   opts.Observer,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// URL joins a path onto the base URL.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do runs the request and returns the response of a 2xx answer with its body
// open. Non-2xx answers become *domain.APIError.
func (c *Client) Do(ctx context.Context, operation string, build RequestFactory, opts CallOptions) (*http.Response, error) {
	start := time.Now()
	var resp *http.Response
	// refreshed spans executor retries so one call refreshes at most once.
	refreshed := false
	call := func(callCtx context.Context) error {
		r, err := c.roundTrip(callCtx, operation, build, opts.Authenticated, &refreshed)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	var err error
	switch {
	case c.executor == nil:
		err = call(ctx)
	case opts.Idempotent:
		err = c.executor.Execute(ctx, operation, call, classifyError)
	default:
		err = c.executor.ExecuteOnce(ctx, operation, call, classifyError)
	}
	if err != nil && resilience.IsCircuitOpen(err) {
		err = domain.WrapError(domain.ErrTemporary, operation, err)
	}

	if c.observer != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Status
		}
		c.observer.ObserveBackendCall(operation, status, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DoJSON runs the request and decodes a JSON answer into out when out is
// not nil.
func (c *Client) DoJSON(ctx context.Context, operation string, build RequestFactory, opts CallOptions, out any) error {
	resp, err := c.Do(ctx, operation, build, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode "+operation+" response", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, operation string, build RequestFactory, authenticated bool, refreshed *bool) (*http.Response, error) {
	token := ""
	if authenticated {
		t, err := c.accessToken(ctx, operation)
		if err != nil {
			return nil, err
		}
		token = t
	}

	resp, err := c.send(ctx, operation, build, token)
	if err != nil {
		return nil, err
	}
	if !authenticated || resp.StatusCode != http.StatusUnauthorized {
		return checkStatus(operation, resp)
	}

	unauthorized := unauthorizedError(operation, resp)
	if *refreshed {
		return nil, unauthorized
	}
	*refreshed = true
	newToken, refreshErr := c.session.Refresh(ctx)
	if refreshErr != nil || strings.TrimSpace(newToken) == "" {
		slog.Warn("token_refresh_failed", "operation", operation, "error", refreshErr)
		return nil, unauthorized
	}

	resp, err = c.send(ctx, operation, build, newToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, unauthorizedError(operation, resp)
	}
	return checkStatus(operation, resp)
}

func (c *Client) accessToken(ctx context.Context, operation string) (string, error) {
	if c.session == nil {
		return "", domain.WrapError(domain.ErrAuthentication, operation, errors.New("no session provider"))
	}
	token, err := c.session.AccessToken(ctx)
	if err != nil {
		return "", domain.WrapError(domain.ErrAuthentication, operation, err)
	}
	if strings.TrimSpace(token) == "" {
		return "", domain.WrapError(domain.ErrAuthentication, operation, errors.New("no access token"))
	}
	return token, nil
}

func (c *Client) send(ctx context.Context, operation string, build RequestFactory, token string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: wait for rate limiter: %w", operation, err)
		}
	}

	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s request: %w", operation, ctxErr)
		}
		return nil, domain.WrapError(domain.ErrNetwork, operation+" request", err)
	}
	return resp, nil
}

func checkStatus(operation string, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	return nil, statusError(operation, resp)
}

func unauthorizedError(operation string, resp *http.Response) error {
	return domain.WrapError(domain.ErrAuthentication, operation, statusError(operation, resp))
}

// StatusError turns a non-2xx response into a *domain.APIError. It reads and
// closes the body.
func StatusError(operation string, resp *http.Response) error {
	return statusError(operation, resp)
}

func statusError(operation string, resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.APIError{
		Operation: operation,
		Status:    resp.StatusCode,
		Message:   errorMessage(body, resp.Status),
		Body:      strings.TrimSpace(string(body)),
	}
}

// errorMessage picks the backend's own message out of common error payload
// shapes and falls back to the raw body or the status line.
func errorMessage(body []byte, status string) string {
	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		Error            any    `json:"error"`
		Detail           any    `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, text := range []string{payload.Message, payload.ErrorDescription, payload.Msg} {
			if strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
		for _, candidate := range []any{payload.Error, payload.Detail} {
			switch v := candidate.(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v)
				}
			case map[string]any:
				if msg, ok := v["message"].(string); ok && strings.TrimSpace(msg) != "" {
					return strings.TrimSpace(msg)
				}
			}
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return status
}
