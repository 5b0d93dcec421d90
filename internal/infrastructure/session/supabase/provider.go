package supabase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

const refreshSkew = 30 * time.Second

// Provider holds the signed-in session and hands out access tokens. It
// implements both ports.SessionProvider and ports.Authenticator.
type Provider struct {
	client *Client
	store  *FileStore
	now    func() time.Time

	mu      sync.Mutex
	session *domain.Session
}

// NewProvider restores a persisted session when store is not nil.
func NewProvider(client *Client, store *FileStore) *Provider {
	p := &Provider{client: client, store: store, now: time.Now}
	if store != nil {
		session, err := store.Load()
		if err != nil {
			slog.Warn("session_restore_failed", "error", err)
		} else {
			p.session = session
		}
	}
	return p
}

func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil || p.session.AccessToken == "" {
		return "", domain.WrapError(domain.ErrAuthentication, "access token", errors.New("not signed in"))
	}
	if p.session.RefreshToken != "" && p.session.Expired(p.now().Add(refreshSkew)) {
		if _, err := p.refreshLocked(ctx); err != nil {
			return "", err
		}
	}
	return p.session.AccessToken, nil
}

func (p *Provider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked(ctx)
}

func (p *Provider) refreshLocked(ctx context.Context) (string, error) {
	if p.session == nil {
		return "", domain.WrapError(domain.ErrAuthentication, "refresh session", errors.New("not signed in"))
	}
	next, err := p.client.Refresh(ctx, p.session.RefreshToken)
	if err != nil {
		return "", err
	}
	if next.UserID == "" {
		next.UserID = p.session.UserID
	}
	if next.Email == "" {
		next.Email = p.session.Email
	}
	p.setLocked(next)
	slog.Info("session_refreshed", "user_id", next.UserID)
	return next.AccessToken, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	session, err := p.client.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.setLocked(session)
	p.mu.Unlock()
	return session, nil
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	session, err := p.client.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if session.AccessToken != "" {
		p.mu.Lock()
		p.setLocked(session)
		p.mu.Unlock()
	}
	return session, nil
}

// SignOut clears the local session even when the remote logout fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.session
	p.setLocked(nil)
	p.mu.Unlock()

	if current == nil || current.AccessToken == "" {
		return nil
	}
	return p.client.SignOut(ctx, current.AccessToken)
}

func (p *Provider) RecoverPassword(ctx context.Context, email string) error {
	return p.client.RecoverPassword(ctx, email)
}

func (p *Provider) Current() (*domain.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil || p.session.AccessToken == "" {
		return nil, false
	}
	copied := *p.session
	return &copied, true
}

func (p *Provider) setLocked(session *domain.Session) {
	p.session = session
	if p.store == nil {
		return
	}
	if err := p.store.Save(session); err != nil {
		slog.Warn("session_persist_failed", "error", err)
	}
}
