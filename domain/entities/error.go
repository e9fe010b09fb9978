package entities

import "strings"

// ErrorDetail is the serialisable form of a broker error. Type doubles as
// the denial kind reported to DenialHandlers: "validation", "no_match",
// "selection", "unauthorized", "delegation", "unknown_type", "timeout",
// "state", "not_implemented", "panic" or "internal".
type ErrorDetail struct {
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`

	// Details carries structured context, e.g. the issues of a validation error.
	Details map[string]any `json:"details,omitempty"`

	Message string `json:"message"`
	Type    string `json:"type"`

	// Code narrows Type, e.g. the type name for no_match or the host id
	// for delegation.
	Code string `json:"code,omitempty"`

	// IsDeclined marks failures that end a negotiation with a declined
	// outcome instead of an error returned to the requester.
	IsDeclined bool `json:"is_declined,omitempty"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Type != "" && e.Type != "internal" {
		b.WriteString(e.Type)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Code != "" {
		b.WriteString(" [" + e.Code + "]")
	}
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

// NewErrorDetail creates an ErrorDetail of the given type.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{Type: errorType, Message: message}
}
