package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"golang.org/x/time/rate"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/httpclient"
)

const defaultAuthTimeout = 30 * time.Second

type ClientOptions struct {
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Limiter   *rate.Limiter
	Observer  httpclient.Observer
	Timeout   time.Duration
}

// Client signs users in against the project's GoTrue endpoint.
type Client struct {
	auth        gotrue.Client
	redirectURL string
	opts        ClientOptions
	now         func() time.Time
}

// NewClient talks to {projectURL}/auth/v1.
func NewClient(projectURL, anonKey, redirectURL string, opts ClientOptions) *Client {
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultAuthTimeout
	}
	auth := gotrue.New("", anonKey).WithCustomGoTrueURL(strings.TrimRight(projectURL, "/") + "/auth/v1")
	return &Client{auth: auth, redirectURL: redirectURL, opts: opts, now: time.Now}
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	var out *types.TokenResponse
	err := c.do(ctx, "sign in", nil, func(auth gotrue.Client) (err error) {
		out, err = auth.SignInWithEmailPassword(email, password)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, domain.WrapError(domain.ErrAuthentication, "sign in", errors.New("no access token in response"))
	}
	return c.session(out.Session, out.User), nil
}

// SignUp returns a session without tokens when the project requires email
// confirmation first.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	var out *types.SignupResponse
	err := c.do(ctx, "sign up", nil, func(auth gotrue.Client) (err error) {
		out, err = auth.Signup(types.SignupRequest{Email: email, Password: password})
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.session(out.Session, out.User), nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, domain.WrapError(domain.ErrAuthentication, "refresh session", errors.New("no refresh token"))
	}
	var out *types.TokenResponse
	err := c.do(ctx, "refresh session", nil, func(auth gotrue.Client) (err error) {
		out, err = auth.RefreshToken(refreshToken)
		return err
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrAuthentication, "refresh session", err)
	}
	if out.AccessToken == "" {
		return nil, domain.WrapError(domain.ErrAuthentication, "refresh session", errors.New("no access token in response"))
	}
	return c.session(out.Session, out.User), nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, "sign out", nil, func(auth gotrue.Client) error {
		return auth.WithToken(accessToken).Logout()
	})
}

func (c *Client) RecoverPassword(ctx context.Context, email string) error {
	var query map[string]string
	if c.redirectURL != "" {
		query = map[string]string{"redirect_to": c.redirectURL}
	}
	return c.do(ctx, "recover password", query, func(auth gotrue.Client) error {
		return auth.Recover(types.RecoverRequest{Email: email})
	})
}

func (c *Client) session(s types.Session, user types.User) *domain.Session {
	out := &domain.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		UserID:       userID(s.User.ID),
		Email:        s.User.Email,
	}
	if out.UserID == "" {
		out.UserID = userID(user.ID)
	}
	if out.Email == "" {
		out.Email = user.Email
	}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	case s.ExpiresIn > 0:
		out.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second).UTC()
	}
	return out
}

func userID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// do runs one gotrue call through a transport bound to ctx. gotrue reports
// failures as plain strings, so the transport keeps the backend's answer
// and do returns it as a *domain.APIError instead.
func (c *Client) do(ctx context.Context, operation string, query map[string]string, fn func(gotrue.Client) error) error {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	rt := &callTransport{ctx: callCtx, operation: operation, query: query, base: c.opts.Transport, limiter: c.opts.Limiter}
	err := fn(c.auth.WithClient(http.Client{Transport: rt}))

	switch {
	case err == nil:
	case rt.apiErr != nil:
		err = rt.apiErr
	case rt.sendErr != nil && callCtx.Err() != nil:
		err = fmt.Errorf("%s request: %w", operation, callCtx.Err())
	case rt.sendErr != nil:
		err = domain.WrapError(domain.ErrNetwork, operation+" request", rt.sendErr)
	default:
		err = domain.WrapError(domain.ErrInvalidInput, operation, err)
	}

	if c.opts.Observer != nil {
		c.opts.Observer.ObserveBackendCall(operation, rt.status, time.Since(start), err)
	}
	return err
}

type callTransport struct {
	ctx       context.Context
	operation string
	query     map[string]string
	base      http.RoundTripper
	limiter   *rate.Limiter

	status  int
	apiErr  error
	sendErr error
}

func (t *callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(t.ctx); err != nil {
			t.sendErr = err
			return nil, err
		}
	}
	req = req.Clone(t.ctx)
	if len(t.query) > 0 {
		q := req.URL.Query()
		for k, v := range t.query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.sendErr = err
		return nil, err
	}
	t.status = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	t.apiErr = httpclient.StatusError(t.operation, resp)
	if resp.StatusCode == http.StatusUnauthorized {
		t.apiErr = domain.WrapError(domain.ErrAuthentication, t.operation, t.apiErr)
	}
	// gotrue still reads the body to build its own message.
	resp.Body = io.NopCloser(strings.NewReader(""))
	return resp, nil
}
