package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuthentication = errors.New("authentication required")
	ErrNetwork        = errors.New("network failure")
	ErrValidation     = errors.New("validation failed")
	ErrExport         = errors.New("export failed")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// APIError is a non-2xx answer from the transform backend. Status and
// Message are passed through untouched.
type APIError struct {
	Operation string
	Status    int
	Message   string
	Body      string
}

func (e *APIError) Error() string {
	if e == nil {
		return "api error"
	}
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("%s: status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.Status, e.Message)
}

// ValidationError carries a field-level message shown inline next to the input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UserMessage renders one user-facing string for any workflow failure,
// identical for invoice and manual uploads.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = "request rejected"
		}
		return fmt.Sprintf("Request failed (%d): %s", apiErr.Status, msg)
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Please try again."
	case errors.Is(err, context.Canceled):
		return "The upload was cancelled."
	case IsKind(err, ErrAuthentication):
		return "Your session has expired. Please sign in again."
	case IsKind(err, ErrNetwork):
		return "Could not reach the server. Check your connection and try again."
	case IsKind(err, ErrTemporary):
		return "The service is temporarily unavailable. Please try again shortly."
	case IsKind(err, ErrExport):
		return "No data to export."
	default:
		return err.Error()
	}
}
