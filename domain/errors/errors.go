// Package errors provides the broker's error taxonomy.
// All error types support error unwrapping via errors.As() and errors.Is().
// Authorization and validation failures are raised to callers; the other
// negotiation failures become declined outcomes and are only reported to
// diagnostics.
package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/reglet-dev/reglet-broker/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail. New error types only need to implement this
// interface without modifying ToErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// This function recognizes custom error types and categorizes them appropriately.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// IsDeclined reports whether err belongs to the part of the taxonomy that
// resolves to a declined outcome instead of being raised.
func IsDeclined(err error) bool {
	d := ToErrorDetail(err)
	return d != nil && d.IsDeclined
}

// ValidationError reports a malformed request shape.
type ValidationError struct {
	Err    error
	Target string
	Issues []entities.ValidationError
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid ")
	if e.Target != "" {
		b.WriteString(e.Target)
	} else {
		b.WriteString("request")
	}
	if len(e.Issues) > 0 {
		parts := make([]string, 0, len(e.Issues))
		for _, issue := range e.Issues {
			if issue.Field != "" {
				parts = append(parts, issue.Field+": "+issue.Message)
			} else {
				parts = append(parts, issue.Message)
			}
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, "; "))
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ValidationError) ToErrorDetail() *entities.ErrorDetail {
	d := &entities.ErrorDetail{Message: e.Error(), Type: "validation", Code: e.Target}
	if len(e.Issues) > 0 {
		issues := make([]any, 0, len(e.Issues))
		for _, issue := range e.Issues {
			issues = append(issues, map[string]any{"field": issue.Field, "message": issue.Message})
		}
		d.Details = map[string]any{"issues": issues}
	}
	return d
}

// NoMatchError means no offer satisfies the requested type.
type NoMatchError struct {
	TypeName string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no permission offered for type %q", e.TypeName)
}

// ToErrorDetail implements DetailedError.
func (e *NoMatchError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "no_match", Code: e.TypeName, IsDeclined: true}
}

// SelectionError means the user chose nothing usable.
type SelectionError struct {
	Input      string
	Candidates int
	Dismissed  bool
}

func (e *SelectionError) Error() string {
	if e.Dismissed {
		return "selection dialog dismissed"
	}
	return fmt.Sprintf("invalid selection %q for %d candidates", e.Input, e.Candidates)
}

// ToErrorDetail implements DetailedError.
func (e *SelectionError) ToErrorDetail() *entities.ErrorDetail {
	code := "invalid"
	if e.Dismissed {
		code = "dismissed"
	}
	return &entities.ErrorDetail{Message: e.Error(), Type: "selection", Code: code, IsDeclined: true}
}

// UnauthorizedOriginError rejects a call from anyone but the allowed identity.
type UnauthorizedOriginError struct {
	Origin string
	Method string
}

func (e *UnauthorizedOriginError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("origin %q is not allowed to call %s", e.Origin, e.Method)
	}
	return fmt.Sprintf("origin %q is not allowed", e.Origin)
}

// ToErrorDetail implements DetailedError.
func (e *UnauthorizedOriginError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "unauthorized", Code: e.Origin}
}

// DelegationError reports a provider that failed or answered garbage.
type DelegationError struct {
	Err    error
	HostID string
	Method string
}

func (e *DelegationError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("delegation to %s (%s) failed: %v", e.HostID, e.Method, e.Err)
	}
	return fmt.Sprintf("delegation to %s failed: %v", e.HostID, e.Err)
}

func (e *DelegationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *DelegationError) ToErrorDetail() *entities.ErrorDetail {
	d := &entities.ErrorDetail{Message: e.Error(), Type: "delegation", Code: e.HostID, IsDeclined: true}
	if e.Err != nil {
		d.Wrapped = ToErrorDetail(e.Err)
	}
	return d
}

// UnknownTypeError is raised by the attenuation engine for unregistered types.
type UnknownTypeError struct {
	TypeName string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("no attenuator registered for type %q", e.TypeName)
}

// ToErrorDetail implements DetailedError.
func (e *UnknownTypeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "unknown_type", Code: e.TypeName, IsDeclined: true}
}

// TimeoutError represents a timeout during an operation.
type TimeoutError struct {
	Operation string
	Target    string
	Duration  time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s timeout after %v (target: %s)", e.Operation, e.Duration, e.Target)
	}
	return fmt.Sprintf("%s timeout after %v", e.Operation, e.Duration)
}

func (e *TimeoutError) Timeout() bool {
	return true
}

// ToErrorDetail implements DetailedError.
func (e *TimeoutError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "timeout", Code: e.Operation, IsDeclined: true}
}

// SchemaError represents a schema generation or validation error.
type SchemaError struct {
	Err  error
	Type string
}

func (e *SchemaError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("schema error for type %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("schema error: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *SchemaError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "validation", Code: "schema"}
}

// StateError reports a refused negotiation transition.
type StateError struct {
	From entities.NegotiationState
	To   entities.NegotiationState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("illegal negotiation transition %s -> %s", e.From, e.To)
}

// ToErrorDetail implements DetailedError.
func (e *StateError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "state", Code: string(e.To)}
}

// NotImplementedError marks a stubbed operation.
type NotImplementedError struct {
	Operation string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s is not implemented", e.Operation)
}

// ToErrorDetail implements DetailedError.
func (e *NotImplementedError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "not_implemented", Code: e.Operation}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}
