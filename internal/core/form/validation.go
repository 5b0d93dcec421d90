package form

import (
	"net/mail"
	"strings"
	"unicode"
)

const MinPasswordLength = 8

// Validator returns an empty string for a valid value and a user-facing
// message otherwise.
type Validator func(value string, values map[string]string) string

func ValidateEmail(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Email is required"
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@")+1:], ".") {
		return "Enter a valid email address"
	}
	return ""
}

func ValidatePassword(value string) string {
	if value == "" {
		return "Password is required"
	}
	if len([]rune(value)) < MinPasswordLength {
		return "Password must be at least 8 characters"
	}
	var hasLetter, hasDigit bool
	for _, r := range value {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return "Password must contain letters and numbers"
	}
	return ""
}

func Email() Validator {
	return func(value string, _ map[string]string) string { return ValidateEmail(value) }
}

func Password() Validator {
	return func(value string, _ map[string]string) string { return ValidatePassword(value) }
}

func Required(label string) Validator {
	return func(value string, _ map[string]string) string {
		if strings.TrimSpace(value) == "" {
			return label + " is required"
		}
		return ""
	}
}

// Matches checks the value equals another field, e.g. a password confirmation.
func Matches(field, message string) Validator {
	return func(value string, values map[string]string) string {
		if value != values[field] {
			return message
		}
		return ""
	}
}

// All runs validators in order and returns the first failure.
func All(validators ...Validator) Validator {
	return func(value string, values map[string]string) string {
		for _, v := range validators {
			if msg := v(value, values); msg != "" {
				return msg
			}
		}
		return ""
	}
}
