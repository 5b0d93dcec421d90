package form

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

var ErrSubmitting = errors.New("form is already submitting")

// State is controlled form state: values, per-field errors and a submit flag.
type State struct {
	mu           sync.Mutex
	values       map[string]string
	errors       map[string]string
	validators   map[string]Validator
	isSubmitting bool
}

func New(initial map[string]string, validators map[string]Validator) *State {
	values := make(map[string]string, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	rules := make(map[string]Validator, len(validators))
	for k, v := range validators {
		rules[k] = v
		if _, ok := values[k]; !ok {
			values[k] = ""
		}
	}
	return &State{
		values:     values,
		errors:     make(map[string]string),
		validators: rules,
	}
}

// Set updates a value and clears that field's error until the next blur.
func (s *State) Set(field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[field] = value
	delete(s.errors, field)
}

// Blur validates a single field, as when it loses focus.
func (s *State) Blur(field string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateField(field)
}

// Validate checks every field with a validator and reports whether all pass.
func (s *State) Validate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateAll()
}

func (s *State) validateAll() bool {
	ok := true
	for field := range s.validators {
		if msg := s.validateField(field); msg != "" {
			ok = false
		}
	}
	return ok
}

func (s *State) validateField(field string) string {
	rule, ok := s.validators[field]
	if !ok {
		return ""
	}
	msg := rule(s.values[field], s.values)
	if msg == "" {
		delete(s.errors, field)
		return ""
	}
	s.errors[field] = msg
	return msg
}

// Submit validates, then runs fn with a copy of the values while the form
// is marked as submitting. Concurrent submits are refused.
func (s *State) Submit(ctx context.Context, fn func(ctx context.Context, values map[string]string) error) error {
	s.mu.Lock()
	if s.isSubmitting {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrConflict, "submit form", ErrSubmitting)
	}
	if !s.validateAll() {
		err := s.firstErrorLocked()
		s.mu.Unlock()
		return err
	}
	s.isSubmitting = true
	values := s.copyValues()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSubmitting = false
		s.mu.Unlock()
	}()

	return fn(ctx, values)
}

func (s *State) firstErrorLocked() error {
	fields := make([]string, 0, len(s.errors))
	for field := range s.errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	if len(fields) == 0 {
		return nil
	}
	return domain.NewValidationError(fields[0], s.errors[fields[0]])
}

func (s *State) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyValues()
}

func (s *State) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

func (s *State) IsSubmitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSubmitting
}

func (s *State) Value(field string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.values[field])
}

func (s *State) copyValues() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
