package domain

import "time"

// MaskedKey is shown in place of a hidden key, independent of its length.
const MaskedKey = "••••••••••••••••••••••••"

type APIKey struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Value     string     `json:"value,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	Visible bool `json:"visible"`
	Copied  bool `json:"copied"`
}

// Display returns the plaintext while visible and the mask otherwise.
func (k APIKey) Display() string {
	if k.Visible && k.Value != "" {
		return k.Value
	}
	return MaskedKey
}
