package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/form"
)

type sessionResponse struct {
	UserID    string     `json:"user_id,omitempty"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// ConfirmationRequired is set after sign-up when the account must be
	// confirmed by email before signing in.
	ConfirmationRequired bool `json:"confirmation_required,omitempty"`
}

func newSessionResponse(session *domain.Session) sessionResponse {
	if session == nil || session.AccessToken == "" {
		return sessionResponse{ConfirmationRequired: true}
	}
	resp := sessionResponse{UserID: session.UserID, Email: session.Email}
	if !session.ExpiresAt.IsZero() {
		expires := session.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

// submitForm validates the request body against the form rules and runs fn
// with the trimmed values. Validation failures answer 400 with every field
// error.
func submitForm(
	w http.ResponseWriter,
	r *http.Request,
	validators map[string]form.Validator,
	fn func(ctx context.Context, values map[string]string) error,
) bool {
	var body map[string]string
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return false
	}
	state := form.New(body, validators)
	err := state.Submit(r.Context(), func(ctx context.Context, values map[string]string) error {
		if email, ok := values["email"]; ok {
			values["email"] = strings.TrimSpace(email)
		}
		return fn(ctx, values)
	})
	if err == nil {
		return true
	}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  validationErr.Message,
			Field:  validationErr.Field,
			Fields: state.Errors(),
		})
		return false
	}
	writeError(w, r, err)
	return false
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	var session *domain.Session
	ok := submitForm(w, r, map[string]form.Validator{
		"email":    form.Email(),
		"password": form.Required("Password"),
	}, func(ctx context.Context, values map[string]string) error {
		var err error
		session, err = rt.deps.Auth.SignIn(ctx, values["email"], values["password"])
		return err
	})
	if !ok {
		return
	}
	rt.ensureProfile(r, session)
	requestLogger(r).Info("signed_in", "user_id", session.UserID)
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (rt *Router) signup(w http.ResponseWriter, r *http.Request) {
	var session *domain.Session
	ok := submitForm(w, r, map[string]form.Validator{
		"email":            form.Email(),
		"password":         form.Password(),
		"confirm_password": form.All(form.Required("Password confirmation"), form.Matches("password", "Passwords do not match")),
	}, func(ctx context.Context, values map[string]string) error {
		var err error
		session, err = rt.deps.Auth.SignUp(ctx, values["email"], values["password"])
		return err
	})
	if !ok {
		return
	}
	rt.ensureProfile(r, session)
	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

func (rt *Router) logout(w http.ResponseWriter, r *http.Request) {
	rt.deps.Dashboard.Close()
	if rt.deps.Keys != nil {
		rt.deps.Keys.Reset()
	}
	if err := rt.deps.Auth.SignOut(r.Context()); err != nil {
		// the local session is already gone
		requestLogger(r).Warn("remote_sign_out_failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) recoverPassword(w http.ResponseWriter, r *http.Request) {
	ok := submitForm(w, r, map[string]form.Validator{
		"email": form.Email(),
	}, func(ctx context.Context, values map[string]string) error {
		return rt.deps.Auth.RecoverPassword(ctx, values["email"])
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (rt *Router) currentSession() (*domain.Session, error) {
	session, ok := rt.deps.Auth.Current()
	if !ok || session == nil {
		return nil, domain.WrapError(domain.ErrAuthentication, "current session", errors.New("not signed in"))
	}
	return session, nil
}

func (rt *Router) getProfile(w http.ResponseWriter, r *http.Request) {
	session, err := rt.currentSession()
	if err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := rt.loadProfile(r.Context(), session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) updateProfile(w http.ResponseWriter, r *http.Request) {
	session, err := rt.currentSession()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.deps.Profiles == nil {
		writeError(w, r, domain.WrapError(domain.ErrNotFound, "update profile", errors.New("profile storage is not configured")))
		return
	}
	var req struct {
		FullName string `json:"full_name"`
		Company  string `json:"company"`
		Plan     string `json:"plan"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	plan := strings.TrimSpace(req.Plan)
	if plan != "" && rt.deps.Pricing != nil {
		if _, ok := rt.deps.Pricing.Plan(plan); !ok {
			writeError(w, r, domain.NewValidationError("plan", "Choose one of the listed plans"))
			return
		}
	}

	profile := &domain.Profile{
		ID:        session.UserID,
		Email:     session.Email,
		FullName:  strings.TrimSpace(req.FullName),
		Company:   strings.TrimSpace(req.Company),
		Plan:      plan,
		UpdatedAt: rt.deps.Now().UTC(),
	}
	if err := rt.deps.Profiles.Upsert(r.Context(), profile); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) loadProfile(ctx context.Context, session *domain.Session) (*domain.Profile, error) {
	fallback := &domain.Profile{ID: session.UserID, Email: session.Email}
	if rt.deps.Profiles == nil {
		return fallback, nil
	}
	profile, err := rt.deps.Profiles.GetByID(ctx, session.UserID)
	if domain.IsKind(err, domain.ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ensureProfile creates an empty profile on first sign-in.
func (rt *Router) ensureProfile(r *http.Request, session *domain.Session) {
	ctx := r.Context()
	if rt.deps.Profiles == nil || session == nil || session.UserID == "" {
		return
	}
	_, err := rt.deps.Profiles.GetByID(ctx, session.UserID)
	if err == nil {
		return
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		requestLogger(r).Warn("profile_lookup_failed", "user_id", session.UserID, "error", err)
		return
	}
	profile := &domain.Profile{ID: session.UserID, Email: session.Email, UpdatedAt: rt.deps.Now().UTC()}
	if err := rt.deps.Profiles.Upsert(ctx, profile); err != nil {
		requestLogger(r).Warn("profile_create_failed", "user_id", session.UserID, "error", err)
	}
}

func (rt *Router) listJobs(w http.ResponseWriter, r *http.Request) {
	session, err := rt.currentSession()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.deps.Jobs == nil {
		writeJSON(w, http.StatusOK, []domain.Job{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := rt.deps.Jobs.ListRecent(r.Context(), session.UserID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
