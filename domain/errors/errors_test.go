package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Target: "RequestedPermission",
		Issues: []entities.ValidationError{
			{Field: "/sessionAccount", Message: "missing property"},
			{Message: "bad type"},
		},
	}

	assert.Equal(t, "invalid RequestedPermission: /sessionAccount: missing property; bad type", err.Error())

	detail := err.ToErrorDetail()
	assert.Equal(t, "validation", detail.Type)
	assert.False(t, detail.IsDeclined)
	assert.Len(t, detail.Details["issues"], 2)
}

func TestValidationError_Wrapped(t *testing.T) {
	base := fmt.Errorf("unexpected end of JSON input")
	err := &ValidationError{Err: base}

	assert.Equal(t, "invalid request: unexpected end of JSON input", err.Error())
	assert.True(t, errors.Is(err, base))
}

func TestSelectionError(t *testing.T) {
	invalid := &SelectionError{Input: "99", Candidates: 2}
	assert.Equal(t, `invalid selection "99" for 2 candidates`, invalid.Error())
	assert.Equal(t, "invalid", invalid.ToErrorDetail().Code)

	dismissed := &SelectionError{Dismissed: true}
	assert.Equal(t, "selection dialog dismissed", dismissed.Error())
	assert.Equal(t, "dismissed", dismissed.ToErrorDetail().Code)
}

func TestUnauthorizedOriginError(t *testing.T) {
	err := &UnauthorizedOriginError{Origin: "https://evil.example", Method: "eth_accounts"}
	assert.Equal(t, `origin "https://evil.example" is not allowed to call eth_accounts`, err.Error())

	var target *UnauthorizedOriginError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &target))
	assert.Equal(t, "https://evil.example", target.Origin)
	assert.False(t, IsDeclined(err))
}

func TestDelegationError(t *testing.T) {
	base := &TimeoutError{Operation: "dialog", Duration: time.Second}
	err := &DelegationError{HostID: "npm:provider", Method: "permissionProvider_grantAttenuatedPermission", Err: base}

	assert.Contains(t, err.Error(), "delegation to npm:provider")
	assert.True(t, errors.Is(err, base))

	detail := err.ToErrorDetail()
	require.NotNil(t, detail.Wrapped)
	assert.Equal(t, "timeout", detail.Wrapped.Type)
}

func TestIsDeclined(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "no match", err: &NoMatchError{TypeName: "Asset"}, want: true},
		{name: "selection", err: &SelectionError{Dismissed: true}, want: true},
		{name: "delegation", err: &DelegationError{HostID: "p", Err: errors.New("x")}, want: true},
		{name: "unknown type", err: &UnknownTypeError{TypeName: "Nope"}, want: true},
		{name: "timeout", err: &TimeoutError{Operation: "dialog"}, want: true},
		{name: "validation", err: &ValidationError{}, want: false},
		{name: "unauthorized", err: &UnauthorizedOriginError{Origin: "x"}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDeclined(tt.err))
		})
	}
}

func TestToErrorDetail(t *testing.T) {
	assert.Nil(t, ToErrorDetail(nil))

	plain := ToErrorDetail(errors.New("boom"))
	assert.Equal(t, "internal", plain.Type)
	assert.Equal(t, "boom", plain.Message)

	entity := entities.NewErrorDetail("config", "bad")
	assert.Same(t, entity, ToErrorDetail(entity))

	state := ToErrorDetail(&StateError{From: entities.StateSelected, To: entities.StateAwaitingSelection})
	assert.Equal(t, "state", state.Type)
	assert.Equal(t, "illegal negotiation transition SELECTED -> AWAITING_SELECTION", state.Message)

	ni := ToErrorDetail(&NotImplementedError{Operation: "revokePermission"})
	assert.Equal(t, "not_implemented", ni.Type)
}

func TestConfigError(t *testing.T) {
	base := fmt.Errorf("must be positive")
	err := &ConfigError{Field: "dialog_timeout", Err: base}

	assert.Equal(t, "config validation failed for field 'dialog_timeout': must be positive", err.Error())
	assert.True(t, errors.Is(err, base))
}
