package entities

import "time"

// AttenuationSpec describes the form a provider shows before granting a
// stored permission: which limits the user may tighten.
type AttenuationSpec struct {
	Fields []Field `json:"fields" yaml:"fields"`
}

// GrantTerms are the limits an attenuator derived from the user's answers.
// Data becomes the granted policy's data; a zero ExpiresAt means the
// provider's default lifetime applies.
type GrantTerms struct {
	Data      map[string]any `json:"data" yaml:"data"`
	ExpiresAt time.Time      `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}
