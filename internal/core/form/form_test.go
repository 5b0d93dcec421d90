package form

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

func TestValidateEmail(t *testing.T) {
	cases := map[string]bool{
		"captain@vessel.com":     true,
		"  ":                     false,
		"no-at-sign":             false,
		"name@localhost":         false,
		"Bosun <bosun@ship.com>": false,
	}
	for input, valid := range cases {
		if got := ValidateEmail(input) == ""; got != valid {
			t.Fatalf("ValidateEmail(%q) valid=%v, want %v", input, got, valid)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]string{
		"":           "Password is required",
		"short1":     "Password must be at least 8 characters",
		"onlyletter": "Password must contain letters and numbers",
		"12345678":   "Password must contain letters and numbers",
		"anchor2024": "",
	}
	for input, want := range cases {
		if got := ValidatePassword(input); got != want {
			t.Fatalf("ValidatePassword(%q) = %q, want %q", input, got, want)
		}
	}
}

func newSignupForm() *State {
	return New(nil, map[string]Validator{
		"email":    Email(),
		"password": Password(),
		"confirm":  All(Required("Confirmation"), Matches("password", "Passwords do not match")),
	})
}

func TestBlurValidatesSingleField(t *testing.T) {
	f := newSignupForm()
	f.Set("email", "bad")
	if msg := f.Blur("email"); msg == "" {
		t.Fatalf("expected email error on blur")
	}
	if _, ok := f.Errors()["password"]; ok {
		t.Fatalf("blur must not validate other fields")
	}

	f.Set("email", "mate@ship.io")
	if _, ok := f.Errors()["email"]; ok {
		t.Fatalf("expected Set to clear the field error")
	}
}

func TestSubmitRunsOnlyWhenValid(t *testing.T) {
	f := newSignupForm()
	f.Set("email", "mate@ship.io")
	f.Set("password", "anchor2024")
	f.Set("confirm", "anchor2025")

	called := false
	err := f.Submit(context.Background(), func(context.Context, map[string]string) error {
		called = true
		return nil
	})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if called {
		t.Fatalf("submit callback must not run with invalid values")
	}

	f.Set("confirm", "anchor2024")
	err = f.Submit(context.Background(), func(_ context.Context, values map[string]string) error {
		called = true
		if !f.IsSubmitting() {
			t.Fatalf("expected submitting flag during callback")
		}
		if values["email"] != "mate@ship.io" {
			t.Fatalf("unexpected values %+v", values)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !called || f.IsSubmitting() {
		t.Fatalf("expected callback run and submitting flag cleared")
	}
}

func TestSubmitRefusesReentry(t *testing.T) {
	f := New(map[string]string{"name": "x"}, nil)
	var inner error
	err := f.Submit(context.Background(), func(ctx context.Context, _ map[string]string) error {
		inner = f.Submit(ctx, func(context.Context, map[string]string) error { return nil })
		return errors.New("outer failed")
	})
	if err == nil || err.Error() != "outer failed" {
		t.Fatalf("expected outer error to propagate, got %v", err)
	}
	if !errors.Is(inner, ErrSubmitting) {
		t.Fatalf("expected nested submit to be refused, got %v", inner)
	}
	if f.IsSubmitting() {
		t.Fatalf("expected flag cleared after failed submit")
	}
}
