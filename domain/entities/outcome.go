package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var falseJSON = []byte("false")

// Outcome is the result of a permission request or a grant call.
// A granted outcome carries the provider's response bytes unchanged; a
// declined outcome marshals as JSON false. The decline reason never
// leaves the process on the wire.
type Outcome struct {
	raw    json.RawMessage
	reason error
}

// Granted wraps a provider response payload.
func Granted(raw []byte) Outcome {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return Outcome{raw: cp}
}

// GrantedResponse marshals resp into a granted outcome.
func GrantedResponse(resp PermissionsResponse) (Outcome, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to marshal permissions response: %w", err)
	}
	return Outcome{raw: raw}, nil
}

// Declined builds a declined outcome; reason is kept for diagnostics only.
func Declined(reason error) Outcome {
	if reason == nil {
		reason = errors.New("declined")
	}
	return Outcome{reason: reason}
}

// IsGranted reports whether the outcome carries a response.
func (o Outcome) IsGranted() bool {
	return o.raw != nil
}

// Reason returns why the outcome was declined, or nil for grants.
func (o Outcome) Reason() error {
	return o.reason
}

// Raw returns the response bytes exactly as the provider produced them.
func (o Outcome) Raw() json.RawMessage {
	return o.raw
}

// Response decodes the granted payload.
func (o Outcome) Response() (PermissionsResponse, error) {
	var resp PermissionsResponse
	if !o.IsGranted() {
		return resp, errors.New("outcome is declined")
	}
	if err := json.Unmarshal(o.raw, &resp); err != nil {
		return resp, fmt.Errorf("failed to decode permissions response: %w", err)
	}
	return resp, nil
}

// MarshalJSON implements json.Marshaler.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if !o.IsGranted() {
		return falseJSON, nil
	}
	return o.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler. false and null decode as declined.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, falseJSON) || bytes.Equal(trimmed, []byte("null")) {
		*o = Declined(nil)
		return nil
	}
	if !json.Valid(trimmed) {
		return errors.New("outcome is not valid JSON")
	}
	*o = Granted(trimmed)
	return nil
}
