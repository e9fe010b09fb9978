package rpc

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/errors"
)

// ErrorResponse is the structured failure of a method call. It travels as
// JSON between modules and keeps the typed cause for in-process callers.
type ErrorResponse struct {
	cause error

	// Detail is the structured form of the cause, when one is known.
	Detail *entities.ErrorDetail `json:"detail,omitempty"`

	// Kind is a machine-readable error type identifier (e.g., "VALIDATION_ERROR", "INTERNAL_ERROR").
	Kind string `json:"error"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Code is a numeric error code (e.g., 400, 500).
	Code int `json:"code"`
}

// Error implements the error interface.
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the typed cause, if any.
func (e *ErrorResponse) Unwrap() error {
	return e.cause
}

// ToJSON serializes the ErrorResponse to JSON bytes.
// Returns nil if serialization fails (which should never happen for this simple type).
func (e *ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

func withCause(resp *ErrorResponse, cause error) *ErrorResponse {
	if cause != nil {
		resp.cause = cause
		resp.Detail = errors.ToErrorDetail(cause)
	}
	return resp
}

// NewValidationError creates an error response for bad input (e.g., malformed JSON).
func NewValidationError(message string, cause error) *ErrorResponse {
	if cause != nil {
		message = message + ": " + cause.Error()
	}
	return withCause(&ErrorResponse{Kind: "VALIDATION_ERROR", Message: message, Code: 400}, cause)
}

// NewUnauthorizedError creates an error response for a rejected caller.
func NewUnauthorizedError(cause error) *ErrorResponse {
	return withCause(&ErrorResponse{Kind: "UNAUTHORIZED_ORIGIN", Message: cause.Error(), Code: 403}, cause)
}

// NewNotFoundError creates an error response for unknown method names.
func NewNotFoundError(name string) *ErrorResponse {
	return &ErrorResponse{
		Kind:    "NOT_FOUND",
		Message: "Method not found: " + name,
		Code:    404,
	}
}

// NewNotImplementedError creates an error response for stubbed methods.
func NewNotImplementedError(cause error) *ErrorResponse {
	return withCause(&ErrorResponse{Kind: "NOT_IMPLEMENTED", Message: cause.Error(), Code: 501}, cause)
}

// NewInternalError creates an error response for unexpected failures.
func NewInternalError(message string) *ErrorResponse {
	return &ErrorResponse{
		Kind:    "INTERNAL_ERROR",
		Message: message,
		Code:    500,
	}
}

// NewPanicError creates an error response for recovered panics.
func NewPanicError(panicValue any) *ErrorResponse {
	var msg string
	if err, ok := panicValue.(error); ok {
		msg = err.Error()
	} else if s, ok := panicValue.(string); ok {
		msg = s
	} else {
		msg = "panic recovered"
	}
	return &ErrorResponse{
		Kind:    "INTERNAL_ERROR",
		Message: "panic: " + msg,
		Code:    500,
		Detail:  &entities.ErrorDetail{Message: msg, Type: "panic"},
	}
}

// AsErrorResponse maps any error onto an ErrorResponse, choosing the code
// from the typed cause.
func AsErrorResponse(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	var resp *ErrorResponse
	if stdErrors.As(err, &resp) {
		return resp
	}

	var unauthorized *errors.UnauthorizedOriginError
	if stdErrors.As(err, &unauthorized) {
		return NewUnauthorizedError(err)
	}

	var validation *errors.ValidationError
	var schema *errors.SchemaError
	if stdErrors.As(err, &validation) || stdErrors.As(err, &schema) {
		return NewValidationError("invalid params", err)
	}

	var notImplemented *errors.NotImplementedError
	if stdErrors.As(err, &notImplemented) {
		return NewNotImplementedError(err)
	}

	return withCause(NewInternalError(err.Error()), err)
}

// DecodeErrorResponse parses a JSON error payload produced by ToJSON.
// ok is false when raw is not an error response.
func DecodeErrorResponse(raw []byte) (resp *ErrorResponse, ok bool) {
	var envelope struct {
		Kind *string `json:"error"`
		Code int     `json:"code"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Kind == nil || envelope.Code == 0 {
		return nil, false
	}
	resp = &ErrorResponse{}
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, false
	}
	return resp, true
}
